package pathfinding

import (
	"container/heap"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

const (
	orthogonalCost = 10
	diagonalCost   = 14
)

type neighbor struct {
	dx, dy   int
	cost     int
	diagonal bool
}

var neighborOffsets = [...]neighbor{
	{dx: 0, dy: -1, cost: orthogonalCost},
	{dx: 1, dy: 0, cost: orthogonalCost},
	{dx: 0, dy: 1, cost: orthogonalCost},
	{dx: -1, dy: 0, cost: orthogonalCost},
	{dx: 1, dy: -1, cost: diagonalCost, diagonal: true},
	{dx: 1, dy: 1, cost: diagonalCost, diagonal: true},
	{dx: -1, dy: 1, cost: diagonalCost, diagonal: true},
	{dx: -1, dy: -1, cost: diagonalCost, diagonal: true},
}

// Pathfinder runs A* searches over a grid. It mutates the grid's scratch
// costs and must not be shared between goroutines.
type Pathfinder struct {
	grid *Grid
}

func NewPathfinder(grid *Grid) *Pathfinder {
	return &Pathfinder{grid: grid}
}

func (p *Pathfinder) Grid() *Grid {
	return p.grid
}

// FindPath returns world-space waypoints (cell centers) from start to goal,
// excluding the start cell. It returns nil when either endpoint is outside
// the grid or blocked, or when no route exists.
func (p *Pathfinder) FindPath(start, goal geom.Vec2) []geom.Vec2 {
	if p == nil || p.grid == nil {
		return nil
	}
	g := p.grid
	g.resetAll()

	startNode := g.NodeFromWorld(start)
	goalNode := g.NodeFromWorld(goal)
	if startNode == nil || goalNode == nil || !startNode.Walkable || !goalNode.Walkable {
		return nil
	}

	open := &openSet{grid: g}
	seq := 0
	startNode.h = heuristic(startNode, goalNode)
	startNode.open = true
	heap.Push(open, g.index(startNode.X, startNode.Y))

	for open.Len() > 0 {
		currentIdx := heap.Pop(open).(int)
		current := &g.nodes[currentIdx]
		current.open = false
		current.closed = true

		if current == goalNode {
			return p.retrace(startNode, goalNode)
		}

		for _, delta := range neighborOffsets {
			nx, ny := current.X+delta.dx, current.Y+delta.dy
			next := g.Node(nx, ny)
			if next == nil || !next.Walkable || next.closed {
				continue
			}
			if delta.diagonal && !g.canTraverseDiagonal(current, delta) {
				continue
			}
			cost := current.g + delta.cost
			if next.open && cost >= next.g {
				continue
			}
			next.g = cost
			next.h = heuristic(next, goalNode)
			next.parent = currentIdx
			if next.open {
				heap.Fix(open, next.heap)
				continue
			}
			seq++
			next.seq = seq
			next.open = true
			heap.Push(open, g.index(nx, ny))
		}
	}
	return nil
}

// canTraverseDiagonal refuses a diagonal step when either orthogonal cell
// flanking it exists and is blocked.
func (g *Grid) canTraverseDiagonal(from *Node, delta neighbor) bool {
	if side := g.Node(from.X+delta.dx, from.Y); side != nil && !side.Walkable {
		return false
	}
	if side := g.Node(from.X, from.Y+delta.dy); side != nil && !side.Walkable {
		return false
	}
	return true
}

func heuristic(a, b *Node) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return diagonalCost*dy + orthogonalCost*(dx-dy)
	}
	return diagonalCost*dx + orthogonalCost*(dy-dx)
}

func (p *Pathfinder) retrace(start, goal *Node) []geom.Vec2 {
	g := p.grid
	var cells []*Node
	for n := goal; n != start; n = &g.nodes[n.parent] {
		cells = append(cells, n)
		if n.parent < 0 {
			break
		}
	}
	path := make([]geom.Vec2, 0, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		path = append(path, g.CellCenter(cells[i].X, cells[i].Y))
	}
	return path
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// openSet orders grid indices by F cost, then H cost, then discovery order.
type openSet struct {
	grid  *Grid
	items []int
}

func (s *openSet) Len() int { return len(s.items) }

func (s *openSet) Less(i, j int) bool {
	a := &s.grid.nodes[s.items[i]]
	b := &s.grid.nodes[s.items[j]]
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (s *openSet) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.grid.nodes[s.items[i]].heap = i
	s.grid.nodes[s.items[j]].heap = j
}

func (s *openSet) Push(x any) {
	idx := x.(int)
	s.grid.nodes[idx].heap = len(s.items)
	s.items = append(s.items, idx)
}

func (s *openSet) Pop() any {
	old := s.items
	n := len(old)
	idx := old[n-1]
	s.items = old[:n-1]
	s.grid.nodes[idx].heap = -1
	return idx
}
