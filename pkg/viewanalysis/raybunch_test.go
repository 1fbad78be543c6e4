package viewanalysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-view-analysis/pkg/core"
)

func TestGenerateRayBunch_SingleRingIsNormal(t *testing.T) {
	normals := []core.Vec3{
		core.NewVec3(0, 0, 1),
		core.NewVec3(1, 0, 0),
		core.NewVec3(0.6, 0.8, 0),
	}

	bunches, err := GenerateRayBunch(normals, 10, 1, 8)
	require.NoError(t, err)
	require.Len(t, bunches, len(normals))

	for i, bunch := range bunches {
		assert.Equal(t, i, bunch.Index)
		require.Len(t, bunch.Directions, 1)
		assert.Equal(t, normals[i], bunch.Directions[0])
	}
}

func TestGenerateRayBunch_GroupSize(t *testing.T) {
	tests := []struct {
		rings, divisions int
	}{
		{1, 1},
		{2, 1},
		{2, 4},
		{3, 6},
		{5, 12},
	}

	for _, tt := range tests {
		bunches, err := GenerateRayBunch([]core.Vec3{core.NewVec3(0, 1, 0), core.NewVec3(1, 1, 1).Normalize()}, 7.5, tt.rings, tt.divisions)
		require.NoError(t, err)
		for _, bunch := range bunches {
			assert.Len(t, bunch.Directions, 1+(tt.rings-1)*tt.divisions, "rings=%d divisions=%d", tt.rings, tt.divisions)
		}
	}
}

func TestGenerateRayBunch_ConeAroundZ(t *testing.T) {
	v := core.NewVec3(0, 0, 1)
	bunches, err := GenerateRayBunch([]core.Vec3{v}, 10, 2, 4)
	require.NoError(t, err)

	dirs := bunches[0].Directions
	require.Len(t, dirs, 5)
	assert.Equal(t, v, dirs[0])

	// u = (1,0,0) for the Z axis, so the first ring direction tilts toward -Y
	rad := 10 * math.Pi / 180
	assert.InDelta(t, 0, dirs[1].X, 1e-12)
	assert.InDelta(t, -math.Sin(rad), dirs[1].Y, 1e-12)
	assert.InDelta(t, math.Cos(rad), dirs[1].Z, 1e-12)

	for i, d := range dirs {
		assert.InDelta(t, 1, d.Length(), 1e-12, "direction %d", i)
	}
	for i := 1; i < 5; i++ {
		assert.InDelta(t, 10, angleBetween(dirs[i], v), 1e-9, "direction %d", i)

		next := dirs[1+i%4]
		a := core.NewVec3(dirs[i].X, dirs[i].Y, 0)
		b := core.NewVec3(next.X, next.Y, 0)
		assert.InDelta(t, 90, angleBetween(a, b), 1e-9, "azimuth between %d and next", i)
	}
}

func TestGenerateRayBunch_RingAnglesAndLength(t *testing.T) {
	random := rand.New(rand.NewSource(42))
	const angleStep = 15.0
	const rings = 4
	const divisions = 7

	for n := 0; n < 50; n++ {
		v := core.NewVec3(random.Float64()*2-1, random.Float64()*2-1, random.Float64()*2-1)
		if v.Length() < 0.1 {
			continue
		}
		if n%2 == 0 {
			v = v.Normalize()
		}

		dirs, err := GenerateBunch(v, BunchParams{AngleStep: angleStep, RingCount: rings, DivisionCount: divisions})
		require.NoError(t, err)

		for i, d := range dirs {
			assert.InDelta(t, v.Length(), d.Length(), 1e-9, "normal %v direction %d", v, i)
		}
		for j := 1; j < rings; j++ {
			for k := 0; k < divisions; k++ {
				d := dirs[1+(j-1)*divisions+k]
				assert.InDelta(t, float64(j)*angleStep, angleBetween(d, v), 1e-6, "normal %v ring %d division %d", v, j, k)
			}
		}
	}
}

func TestGenerateRayBunch_InvalidArguments(t *testing.T) {
	z := []core.Vec3{core.NewVec3(0, 0, 1)}

	tests := []struct {
		name      string
		normals   []core.Vec3
		angle     float64
		rings     int
		divisions int
		want      error
	}{
		{"empty normals", nil, 10, 2, 4, ErrInvalidArgument},
		{"zero angle", z, 0, 2, 4, ErrInvalidArgument},
		{"negative angle", z, -5, 2, 4, ErrInvalidArgument},
		{"NaN angle", z, math.NaN(), 2, 4, ErrInvalidArgument},
		{"zero rings", z, 10, 0, 4, ErrInvalidArgument},
		{"negative divisions", z, 10, 2, -1, ErrInvalidArgument},
		{"zero divisions", z, 10, 2, 0, ErrInvalidArgument},
		{"non-finite normal", []core.Vec3{core.NewVec3(math.Inf(1), 0, 0)}, 10, 2, 4, ErrInvalidArgument},
		{"zero normal", []core.Vec3{core.NewVec3(0, 0, 1), core.NewVec3(0, 0, 0)}, 10, 2, 4, ErrDegenerateInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bunches, err := GenerateRayBunch(tt.normals, tt.angle, tt.rings, tt.divisions)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, bunches)
		})
	}
}

func TestGenerateRayBunch_Idempotent(t *testing.T) {
	normals := []core.Vec3{core.NewVec3(0.3, -0.2, 0.9).Normalize(), core.NewVec3(0, 0, -1)}

	first, err := GenerateRayBunch(normals, 12, 4, 9)
	require.NoError(t, err)
	second, err := GenerateRayBunch(normals, 12, 4, 9)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPerpendicularVector(t *testing.T) {
	tests := []struct {
		name string
		v    core.Vec3
	}{
		{"Z axis", core.NewVec3(0, 0, 1)},
		{"negative Z axis", core.NewVec3(0, 0, -3)},
		{"X axis", core.NewVec3(1, 0, 0)},
		{"Y axis", core.NewVec3(0, 1, 0)},
		{"X dominant", core.NewVec3(-3, 0.5, 2)},
		{"Y dominant", core.NewVec3(0.2, -4, 1)},
		{"diagonal", core.NewVec3(1, 1, 1)},
		{"horizontal", core.NewVec3(0.7, -0.7, 0)},
		{"nearly Z", core.NewVec3(1e-7, -1e-7, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := PerpendicularVector(tt.v)
			assert.InDelta(t, 1, u.Length(), 1e-12)
			assert.InDelta(t, 0, u.Dot(tt.v.Normalize()), 1e-6)
		})
	}

	assert.Equal(t, core.NewVec3(1, 0, 0), PerpendicularVector(core.NewVec3(0, 0, 1)))
	assert.Equal(t, core.NewVec3(1, 0, 0), PerpendicularVector(core.NewVec3(5e-7, 5e-7, -2)))
}

func TestBunchParams_Size(t *testing.T) {
	assert.Equal(t, 1, BunchParams{AngleStep: 5, RingCount: 1, DivisionCount: 10}.Size())
	assert.Equal(t, 21, BunchParams{AngleStep: 5, RingCount: 3, DivisionCount: 10}.Size())
}
