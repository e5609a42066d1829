package pathfinding

import (
	"math"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/terrain"
)

// DefaultCellSize is the edge length of a grid cell in map units.
const DefaultCellSize = 20.0

// Node is one grid cell. Cost fields are scratch state owned by the
// current search and are reset before each FindPath call.
type Node struct {
	X, Y     int
	Walkable bool

	g, h   int
	parent int
	open   bool
	closed bool
	seq    int
	heap   int
}

func (n *Node) f() int { return n.g + n.h }

// Grid is a uniform walkability grid shared across searches.
type Grid struct {
	cols, rows int
	cellSize   float64
	nodes      []Node
}

// NewGrid builds a cols x rows grid with every cell walkable.
func NewGrid(cols, rows int, cellSize float64) *Grid {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	g := &Grid{cols: cols, rows: rows, cellSize: cellSize, nodes: make([]Node, cols*rows)}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			g.nodes[g.index(x, y)] = Node{X: x, Y: y, Walkable: true, parent: -1}
		}
	}
	return g
}

// FromLayout rasterizes the ground walkability of an arena layout. A cell is
// walkable when its center is.
func FromLayout(layout terrain.Layout, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	cols := int(math.Ceil(layout.Width / cellSize))
	rows := int(math.Ceil(layout.Height / cellSize))
	g := NewGrid(cols, rows, cellSize)
	for y := 0; y < g.rows; y++ {
		for x := 0; x < g.cols; x++ {
			g.SetWalkable(x, y, layout.GroundWalkable(g.CellCenter(x, y)))
		}
	}
	return g
}

func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }
func (g *Grid) CellSize() float64 { return g.cellSize }
func (g *Grid) index(x, y int) int { return y*g.cols + x }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.cols && y < g.rows
}

// Node returns the cell at (x, y), or nil when out of range.
func (g *Grid) Node(x, y int) *Node {
	if g == nil || !g.inBounds(x, y) {
		return nil
	}
	return &g.nodes[g.index(x, y)]
}

func (g *Grid) SetWalkable(x, y int, walkable bool) {
	if n := g.Node(x, y); n != nil {
		n.Walkable = walkable
	}
}

// NodeFromWorld resolves a world position to its cell, or nil when the
// position lies outside the grid.
func (g *Grid) NodeFromWorld(p geom.Vec2) *Node {
	if g == nil || p.X < 0 || p.Y < 0 {
		return nil
	}
	return g.Node(int(p.X/g.cellSize), int(p.Y/g.cellSize))
}

// CellCenter returns the world position at the middle of cell (x, y).
func (g *Grid) CellCenter(x, y int) geom.Vec2 {
	return geom.V((float64(x)+0.5)*g.cellSize, (float64(y)+0.5)*g.cellSize)
}

func (g *Grid) resetAll() {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.g, n.h = 0, 0
		n.parent = -1
		n.open, n.closed = false, false
		n.seq = 0
		n.heap = -1
	}
}
