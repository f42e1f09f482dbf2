package nav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskgraph/pkg/api"
)

func TestSearch_StraightLine(t *testing.T) {
	g := NewGrid(5, 1, 1)
	cells, err := g.Search(context.Background(), Cell{0, 0}, Cell{4, 0})
	require.NoError(t, err)
	assert.Len(t, cells, 5)
	assert.Equal(t, Cell{0, 0}, cells[0])
	assert.Equal(t, Cell{4, 0}, cells[4])
}

func TestSearch_DiagonalWhenOpen(t *testing.T) {
	g := NewGrid(4, 4, 1)
	cells, err := g.Search(context.Background(), Cell{0, 0}, Cell{3, 3})
	require.NoError(t, err)
	assert.Len(t, cells, 4)
}

func TestSearch_NoCornerCutting(t *testing.T) {
	g := NewGrid(2, 2, 1)
	g.Block(Cell{1, 0})

	cells, err := g.Search(context.Background(), Cell{0, 0}, Cell{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []Cell{{0, 0}, {0, 1}, {1, 1}}, cells)
}

func TestSearch_AroundWall(t *testing.T) {
	g := NewGrid(5, 5, 1)
	g.Block(Cell{2, 0}, Cell{2, 1}, Cell{2, 2}, Cell{2, 3})

	cells, err := g.Search(context.Background(), Cell{0, 0}, Cell{4, 0})
	require.NoError(t, err)
	for _, c := range cells {
		assert.True(t, g.Walkable(c.Col, c.Row), "path crosses blocked cell %v", c)
	}
	assert.Contains(t, cells, Cell{2, 4})
}

func TestSearch_Unreachable(t *testing.T) {
	g := NewGrid(3, 3, 1)
	g.Block(Cell{1, 0}, Cell{1, 1}, Cell{1, 2})

	_, err := g.Search(context.Background(), Cell{0, 0}, Cell{2, 2})
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = g.Search(context.Background(), Cell{0, 0}, Cell{1, 1})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestSearch_Cancelled(t *testing.T) {
	g := NewGrid(10, 10, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Search(ctx, Cell{0, 0}, Cell{9, 9})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindPath_WorldCoordinates(t *testing.T) {
	g := NewGrid(10, 10, 2)
	goal := api.Vec3(9, 1, 1)

	path, err := g.FindPath(context.Background(), api.Vec3(1, 0, 1), goal)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, goal, path[len(path)-1])
	assert.Equal(t, api.Vec3(3, 1, 1), path[0])

	same, err := g.FindPath(context.Background(), api.Vec3(0.5, 0, 0.5), api.Vec3(1.5, 0, 1.5))
	require.NoError(t, err)
	assert.Equal(t, []api.Vector3{api.Vec3(1.5, 0, 1.5)}, same)

	_, err = g.FindPath(context.Background(), api.Vec3(-1, 0, 0), goal)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}
