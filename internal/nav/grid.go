// Package nav plans paths over a uniform walkability grid laid on the X/Z
// ground plane.
package nav

import (
	"container/heap"
	"context"
	"errors"
	"math"

	"github.com/petrijr/taskgraph/pkg/api"
)

var (
	ErrNoPath      = errors.New("no path")
	ErrOutOfBounds = errors.New("position outside grid")
)

type neighbor struct {
	col, row int
	cost     float64
	diagonal bool
}

var neighborOffsets = [...]neighbor{
	{col: 0, row: -1, cost: 1},
	{col: 1, row: 0, cost: 1},
	{col: 0, row: 1, cost: 1},
	{col: -1, row: 0, cost: 1},
	{col: 1, row: -1, cost: math.Sqrt2, diagonal: true},
	{col: 1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: -1, cost: math.Sqrt2, diagonal: true},
}

// cancelCheckInterval is how many expansions run between context checks.
const cancelCheckInterval = 256

// Cell addresses one grid cell.
type Cell struct {
	Col, Row int
}

// Grid is a walkability grid. Cells are CellSize wide; cell (0,0) covers
// world X in [0, CellSize) and Z in [0, CellSize). A Grid is read-only once
// built and safe for concurrent path queries.
type Grid struct {
	cols, rows int
	cellSize   float64
	walkable   []bool
}

// NewGrid returns a fully walkable grid. Non-positive sizes are clamped to
// one cell of size one.
func NewGrid(cols, rows int, cellSize float64) *Grid {
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	g := &Grid{
		cols:     cols,
		rows:     rows,
		cellSize: cellSize,
		walkable: make([]bool, cols*rows),
	}
	for i := range g.walkable {
		g.walkable[i] = true
	}
	return g
}

// Block marks cells as not walkable. Cells outside the grid are ignored.
func (g *Grid) Block(cells ...Cell) {
	for _, c := range cells {
		if g.inBounds(c.Col, c.Row) {
			g.walkable[g.index(c.Col, c.Row)] = false
		}
	}
}

// Cols returns the number of grid columns.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of grid rows.
func (g *Grid) Rows() int { return g.rows }

// CellSize returns the world-space edge length of one cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

func (g *Grid) index(col, row int) int { return row*g.cols + col }

func (g *Grid) inBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

// Walkable reports whether the cell exists and is not blocked.
func (g *Grid) Walkable(col, row int) bool {
	return g.inBounds(col, row) && g.walkable[g.index(col, row)]
}

// Locate returns the cell containing world position p.
func (g *Grid) Locate(p api.Vector3) (Cell, bool) {
	if p.X < 0 || p.Z < 0 {
		return Cell{}, false
	}
	c := Cell{Col: int(p.X / g.cellSize), Row: int(p.Z / g.cellSize)}
	return c, g.inBounds(c.Col, c.Row)
}

// Center returns the world position of a cell's centre at height y.
func (g *Grid) Center(c Cell, y float64) api.Vector3 {
	return api.Vec3((float64(c.Col)+0.5)*g.cellSize, y, (float64(c.Row)+0.5)*g.cellSize)
}

func (g *Grid) canTraverseDiagonal(from Cell, d neighbor) bool {
	if !d.diagonal {
		return true
	}
	return g.Walkable(from.Col+d.col, from.Row) && g.Walkable(from.Col, from.Row+d.row)
}

func heuristic(a, b Cell) float64 {
	dx := math.Abs(float64(a.Col - b.Col))
	dy := math.Abs(float64(a.Row - b.Row))
	if dx > dy {
		return dx + (math.Sqrt2-1)*dy
	}
	return dy + (math.Sqrt2-1)*dx
}

type pathNode struct {
	cell   Cell
	g, f   float64
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int           { return len(pq) }
func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }
func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathNode)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// Search runs A* between two cells with 8-way movement. Diagonal steps may
// not cut blocked corners. The returned path includes both ends.
func (g *Grid) Search(ctx context.Context, start, goal Cell) ([]Cell, error) {
	if !g.Walkable(start.Col, start.Row) || !g.Walkable(goal.Col, goal.Row) {
		return nil, ErrNoPath
	}

	open := &pathQueue{}
	heap.Push(open, &pathNode{cell: start, f: heuristic(start, goal)})
	gScore := map[int]float64{g.index(start.Col, start.Row): 0}
	closed := make(map[int]struct{})

	for expanded := 0; open.Len() > 0; expanded++ {
		if expanded%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		current := heap.Pop(open).(*pathNode)
		currIdx := g.index(current.cell.Col, current.cell.Row)
		if _, seen := closed[currIdx]; seen {
			continue
		}
		closed[currIdx] = struct{}{}
		if current.cell == goal {
			return reconstruct(current), nil
		}

		for _, d := range neighborOffsets {
			if !g.canTraverseDiagonal(current.cell, d) {
				continue
			}
			next := Cell{Col: current.cell.Col + d.col, Row: current.cell.Row + d.row}
			if !g.Walkable(next.Col, next.Row) {
				continue
			}
			idx := g.index(next.Col, next.Row)
			if _, seen := closed[idx]; seen {
				continue
			}
			tentative := current.g + d.cost
			if prev, ok := gScore[idx]; ok && tentative >= prev {
				continue
			}
			gScore[idx] = tentative
			heap.Push(open, &pathNode{
				cell:   next,
				g:      tentative,
				f:      tentative + heuristic(next, goal),
				parent: current,
			})
		}
	}
	return nil, ErrNoPath
}

func reconstruct(end *pathNode) []Cell {
	var path []Cell
	for n := end; n != nil; n = n.parent {
		path = append(path, n.cell)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindPath plans a route between world positions. The result starts with
// the first waypoint after start and ends exactly at goal; waypoints in
// between are cell centres at the goal's height.
func (g *Grid) FindPath(ctx context.Context, start, goal api.Vector3) ([]api.Vector3, error) {
	from, ok := g.Locate(start)
	if !ok {
		return nil, ErrOutOfBounds
	}
	to, ok := g.Locate(goal)
	if !ok {
		return nil, ErrOutOfBounds
	}

	cells, err := g.Search(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(cells) == 1 {
		return []api.Vector3{goal}, nil
	}

	path := make([]api.Vector3, 0, len(cells)-1)
	for _, c := range cells[1 : len(cells)-1] {
		path = append(path, g.Center(c, goal.Y))
	}
	return append(path, goal), nil
}
