package obstacle

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-view-analysis/pkg/core"
	"github.com/df07/go-view-analysis/pkg/viewanalysis"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_Block(t *testing.T) {
	scene := Scene{
		Blocks:    []Block{{Min: core.NewVec3(0, 0, 0), Size: core.NewVec3(10, 10, 10)}},
		MeshCells: 40,
	}

	mesh, err := Build(scene, quietLogger())
	require.NoError(t, err)
	require.NoError(t, mesh.Validate())
	assert.Greater(t, mesh.TriangleCount(), 0)

	bbox := mesh.BoundingBox()
	assert.InDelta(t, 0, bbox.Min.X, 0.5)
	assert.InDelta(t, 10, bbox.Max.Z, 0.5)

	// Face x = 0 seen from x = -5
	tHit, ok, err := mesh.IntersectRay(core.NewRay(core.NewVec3(-5, 5, 5), core.NewVec3(1, 0, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 5, tHit, 0.05)

	// Roof seen from above
	tHit, ok, err = mesh.IntersectRay(core.NewRay(core.NewVec3(5, 5, 30), core.NewVec3(0, 0, -1)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 20, tHit, 0.05)

	// Passing beside the block
	_, ok, err = mesh.IntersectRay(core.NewRay(core.NewVec3(-5, 20, 5), core.NewVec3(1, 0, 0)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuild_Tower(t *testing.T) {
	scene := Scene{
		Towers:    []Tower{{Base: core.NewVec3(20, 0, 0), Radius: 3, Height: 20}},
		MeshCells: 60,
	}

	mesh, err := Build(scene, quietLogger())
	require.NoError(t, err)

	tHit, ok, err := mesh.IntersectRay(core.NewRay(core.NewVec3(10, 0, 5), core.NewVec3(1, 0, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 7, tHit, 0.25)

	// Above the tower top
	_, ok, err = mesh.IntersectRay(core.NewRay(core.NewVec3(10, 0, 25), core.NewVec3(1, 0, 0)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuild_UnionWithYaw(t *testing.T) {
	scene := Scene{
		Blocks: []Block{
			{Min: core.NewVec3(0, 0, 0), Size: core.NewVec3(4, 4, 4)},
			{Min: core.NewVec3(10, 0, 0), Size: core.NewVec3(4, 4, 8), Yaw: 45},
		},
		MeshCells: 80,
	}

	mesh, err := Build(scene, quietLogger())
	require.NoError(t, err)

	// Low ray hits the first block
	tHit, ok, err := mesh.IntersectRay(core.NewRay(core.NewVec3(-2, 2, 2), core.NewVec3(1, 0, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 2, tHit, 0.1)

	// High ray clears the first block and reaches the rotated corner of the second,
	// which sits 2*sqrt(2) from its center at (12, 2)
	tHit, ok, err = mesh.IntersectRay(core.NewRay(core.NewVec3(-2, 2, 6), core.NewVec3(1, 0, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 14-2*1.41421356, tHit, 0.5)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(Scene{}, quietLogger())
	assert.ErrorIs(t, err, ErrNoPrimitives)

	_, err = Build(Scene{Blocks: []Block{{Size: core.NewVec3(1, 0, 1)}}}, quietLogger())
	assert.ErrorContains(t, err, "block 0")

	_, err = Build(Scene{Towers: []Tower{{Radius: -1, Height: 5}}}, quietLogger())
	assert.ErrorContains(t, err, "tower 0")

	_, err = Build(Scene{
		Blocks:    []Block{{Size: core.NewVec3(1, 1, 1)}},
		MeshCells: MaxMeshCells + 1,
	}, quietLogger())
	assert.ErrorIs(t, err, ErrTooManyCells)
}

func TestBuild_ViewAnalysis(t *testing.T) {
	// A wall of blocks east of the sample point blocks the eastward view only
	scene := Scene{
		Blocks:    []Block{{Min: core.NewVec3(10, -20, 0), Size: core.NewVec3(2, 40, 30)}},
		MeshCells: 50,
	}
	mesh, err := Build(scene, quietLogger())
	require.NoError(t, err)

	dirs := []core.Vec3{
		core.NewVec3(1, 0, 0),
		core.NewVec3(-1, 0, 0),
		core.NewVec3(0, 0, 1),
	}
	distances, err := viewanalysis.ComputeClearDistances(core.NewVec3(0, 0, 5), dirs, mesh, 100)
	require.NoError(t, err)

	assert.InDelta(t, 10-viewanalysis.NudgeDistance, distances[0], 0.05)
	assert.Equal(t, 100.0, distances[1])
	assert.Equal(t, 100.0, distances[2])
}
