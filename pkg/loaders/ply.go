package loaders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/df07/go-view-analysis/pkg/core"
	"github.com/df07/go-view-analysis/pkg/geometry"
)

// preallocLimit caps slice capacity taken from header counts; larger
// elements grow by append as data actually arrives
const preallocLimit = 1 << 20

// PLYHeader represents the parsed header information from a PLY file
type PLYHeader struct {
	Format   string // "binary_little_endian", "binary_big_endian", or "ascii"
	Version  string // Usually "1.0"
	Elements []PLYElement
}

// PLYElement is one element block declared in the header, in file order
type PLYElement struct {
	Name       string
	Count      int
	Properties []PLYProperty
}

// PLYProperty represents a property definition in the PLY header
type PLYProperty struct {
	Name     string
	Type     string
	IsList   bool
	ListType string // For list properties, the type of the count
	DataType string // For list properties, the type of the data
}

// PLYData contains the geometry loaded from a PLY file
type PLYData struct {
	Vertices []core.Vec3 // Vertex positions (x, y, z)
	Faces    []int       // Triangle indices (3 per triangle); polygons are fan-triangulated
	Normals  []core.Vec3 // Per-vertex normals (nx, ny, nz) - empty if not present
}

// LoadPLY loads a PLY file. A nil logger uses slog.Default().
func LoadPLY(filename string, logger *slog.Logger) (*PLYData, error) {
	if logger == nil {
		logger = slog.Default()
	}
	startTime := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer file.Close()

	data, err := ReadPLY(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	logger.Info("loaded PLY",
		"file", filename,
		"vertices", len(data.Vertices),
		"triangles", len(data.Faces)/3,
		"normals", len(data.Normals) > 0,
		"elapsed", time.Since(startTime))

	return data, nil
}

// ReadPLY parses PLY data (ascii, binary_little_endian or binary_big_endian)
func ReadPLY(r io.Reader) (*PLYData, error) {
	reader := bufio.NewReaderSize(r, 1024*1024)

	header, err := parsePLYHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PLY header: %w", err)
	}

	var values valueReader
	switch header.Format {
	case "ascii":
		values = newASCIIReader(reader)
	case "binary_little_endian":
		values = &binaryReader{r: reader, order: binary.LittleEndian}
	case "binary_big_endian":
		values = &binaryReader{r: reader, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("unsupported PLY format: %q", header.Format)
	}

	data := &PLYData{}
	for _, element := range header.Elements {
		switch element.Name {
		case "vertex":
			err = readVertices(values, element, data)
		case "face":
			err = readFaces(values, element, data)
		default:
			err = skipElement(values, element)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s data: %w", element.Name, err)
		}
	}

	for i, idx := range data.Faces {
		if idx < 0 || idx >= len(data.Vertices) {
			return nil, fmt.Errorf("face index %d at position %d out of range (%d vertices)", idx, i, len(data.Vertices))
		}
	}

	return data, nil
}

// parsePLYHeader reads header lines up to and including end_header
func parsePLYHeader(reader *bufio.Reader) (*PLYHeader, error) {
	header := &PLYHeader{}
	first := true

	for {
		raw, err := reader.ReadString('\n')
		line := strings.TrimSpace(raw)
		if err != nil {
			if err == io.EOF && line == "end_header" {
				break
			}
			if err == io.EOF {
				return nil, fmt.Errorf("missing end_header")
			}
			return nil, fmt.Errorf("error reading header: %w", err)
		}

		if first {
			if line != "ply" {
				return nil, fmt.Errorf("not a PLY file (magic %q)", line)
			}
			first = false
			continue
		}
		if line == "end_header" {
			break
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "format":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid format line: %q", line)
			}
			header.Format = parts[1]
			header.Version = parts[2]
		case "comment", "obj_info":
			// Ignore comments
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid element line: %q", line)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("invalid element count: %s", parts[2])
			}
			header.Elements = append(header.Elements, PLYElement{Name: parts[1], Count: count})
		case "property":
			if len(header.Elements) == 0 {
				return nil, fmt.Errorf("property before any element: %q", line)
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, fmt.Errorf("failed to parse property: %w", err)
			}
			last := &header.Elements[len(header.Elements)-1]
			last.Properties = append(last.Properties, prop)
		default:
			return nil, fmt.Errorf("unexpected header line: %q", line)
		}
	}

	if header.Format == "" {
		return nil, fmt.Errorf("missing format line")
	}
	return header, nil
}

// parsePLYProperty parses a property line from the PLY header
func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("invalid property definition")
	}

	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("invalid list property definition")
		}
		return PLYProperty{IsList: true, ListType: parts[1], DataType: parts[2], Name: parts[3]}, nil
	}
	return PLYProperty{Type: parts[0], Name: parts[1]}, nil
}

// readVertices reads positions and, when declared, normals
func readVertices(values valueReader, element PLYElement, data *PLYData) error {
	hasNormals := false
	for _, prop := range element.Properties {
		if prop.Name == "nx" {
			hasNormals = true
		}
	}

	data.Vertices = make([]core.Vec3, 0, min(element.Count, preallocLimit))
	if hasNormals {
		data.Normals = make([]core.Vec3, 0, min(element.Count, preallocLimit))
	}

	for i := 0; i < element.Count; i++ {
		var position, normal core.Vec3
		for _, prop := range element.Properties {
			if prop.IsList {
				if err := skipList(values, prop); err != nil {
					return fmt.Errorf("vertex %d: %w", i, err)
				}
				continue
			}
			v, err := values.scalar(prop.Type)
			if err != nil {
				return fmt.Errorf("vertex %d property %s: %w", i, prop.Name, err)
			}
			switch prop.Name {
			case "x":
				position.X = v
			case "y":
				position.Y = v
			case "z":
				position.Z = v
			case "nx":
				normal.X = v
			case "ny":
				normal.Y = v
			case "nz":
				normal.Z = v
			}
		}
		data.Vertices = append(data.Vertices, position)
		if hasNormals {
			data.Normals = append(data.Normals, normal)
		}
	}
	return nil
}

// readFaces reads vertex index lists and fan-triangulates polygons
func readFaces(values valueReader, element PLYElement, data *PLYData) error {
	data.Faces = make([]int, 0, 3*min(element.Count, preallocLimit))

	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Properties {
			isIndexList := prop.IsList && (prop.Name == "vertex_indices" || prop.Name == "vertex_index")
			if !isIndexList {
				if err := skipProperty(values, prop); err != nil {
					return fmt.Errorf("face %d property %s: %w", i, prop.Name, err)
				}
				continue
			}

			count, err := listCount(values, prop.ListType)
			if err != nil {
				return fmt.Errorf("face %d vertex count: %w", i, err)
			}
			if count < 3 {
				return fmt.Errorf("face %d has %d vertices, need at least 3", i, count)
			}

			indices := make([]int, 0, min(count, 64))
			for j := 0; j < count; j++ {
				idx, err := values.scalar(prop.DataType)
				if err != nil {
					return fmt.Errorf("face %d index %d: %w", i, j, err)
				}
				if idx != math.Trunc(idx) || idx < 0 || idx > math.MaxInt32 {
					return fmt.Errorf("face %d index %d: invalid vertex index %v", i, j, idx)
				}
				indices = append(indices, int(idx))
			}
			for j := 1; j+1 < count; j++ {
				data.Faces = append(data.Faces, indices[0], indices[j], indices[j+1])
			}
		}
	}
	return nil
}

// skipElement consumes every item of an element the loader does not use
func skipElement(values valueReader, element PLYElement) error {
	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Properties {
			if err := skipProperty(values, prop); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipProperty(values valueReader, prop PLYProperty) error {
	if prop.IsList {
		return skipList(values, prop)
	}
	_, err := values.scalar(prop.Type)
	return err
}

func skipList(values valueReader, prop PLYProperty) error {
	n, err := listCount(values, prop.ListType)
	if err != nil {
		return err
	}
	for j := 0; j < n; j++ {
		if _, err := values.scalar(prop.DataType); err != nil {
			return err
		}
	}
	return nil
}

// listCount reads a list length and checks it is a whole number that fits countType
func listCount(values valueReader, countType string) (int, error) {
	n, err := values.scalar(countType)
	if err != nil {
		return 0, err
	}
	maxCount, ok := listCountLimits[countType]
	if !ok {
		return 0, fmt.Errorf("unsupported list count type: %s", countType)
	}
	if n != math.Trunc(n) || n < 0 || n > maxCount {
		return 0, fmt.Errorf("invalid list count %v for type %s", n, countType)
	}
	return int(n), nil
}

// listCountLimits holds the largest list length each integer type can carry
var listCountLimits = map[string]float64{
	"uchar": math.MaxUint8, "uint8": math.MaxUint8,
	"char": math.MaxInt8, "int8": math.MaxInt8,
	"ushort": math.MaxUint16, "uint16": math.MaxUint16,
	"short": math.MaxInt16, "int16": math.MaxInt16,
	"uint": math.MaxUint32, "uint32": math.MaxUint32,
	"int": math.MaxInt32, "int32": math.MaxInt32,
}

// valueReader yields successive scalar values from the PLY body
type valueReader interface {
	scalar(dataType string) (float64, error)
}

// asciiReader reads whitespace-separated values
type asciiReader struct {
	scanner *bufio.Scanner
}

func newASCIIReader(r io.Reader) *asciiReader {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	return &asciiReader{scanner: scanner}
}

func (a *asciiReader) scalar(dataType string) (float64, error) {
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	token := a.scanner.Text()
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", dataType, token)
	}
	return v, nil
}

// binaryReader reads fixed-size values in the given byte order
type binaryReader struct {
	r     io.Reader
	order binary.ByteOrder
}

func (b *binaryReader) scalar(dataType string) (float64, error) {
	switch dataType {
	case "float", "float32":
		var v float32
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	case "double", "float64":
		var v float64
		err := binary.Read(b.r, b.order, &v)
		return v, err
	case "int", "int32":
		var v int32
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	case "uint", "uint32":
		var v uint32
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	case "short", "int16":
		var v int16
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	case "ushort", "uint16":
		var v uint16
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	case "char", "int8":
		var v int8
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	case "uchar", "uint8":
		var v uint8
		err := binary.Read(b.r, b.order, &v)
		return float64(v), err
	default:
		return 0, fmt.Errorf("unsupported data type: %s", dataType)
	}
}

// VertexNormals returns the file's normals, or area-weighted normals
// computed from the faces when the file has none
func (d *PLYData) VertexNormals() []core.Vec3 {
	if len(d.Normals) == len(d.Vertices) && len(d.Normals) > 0 {
		return d.Normals
	}

	normals := make([]core.Vec3, len(d.Vertices))
	for i := 0; i+2 < len(d.Faces); i += 3 {
		i0, i1, i2 := d.Faces[i], d.Faces[i+1], d.Faces[i+2]
		// Cross product length is twice the area, so larger faces weigh more
		n := d.Vertices[i1].Subtract(d.Vertices[i0]).Cross(d.Vertices[i2].Subtract(d.Vertices[i0]))
		normals[i0] = normals[i0].Add(n)
		normals[i1] = normals[i1].Add(n)
		normals[i2] = normals[i2].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// Mesh builds an obstacle mesh from the loaded data
func (d *PLYData) Mesh(options *geometry.TriangleMeshOptions) (*geometry.TriangleMesh, error) {
	return geometry.NewTriangleMesh(d.Vertices, d.Faces, options)
}

// DegreesToRadians converts an Euler rotation given in degrees
func DegreesToRadians(rotation core.Vec3) core.Vec3 {
	return rotation.Multiply(math.Pi / 180)
}
