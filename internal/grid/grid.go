// Package grid provides the stadium cell lattice: passability, directional
// walls, terrain penalties, height levels, zone tags and occupant tracking,
// plus world↔grid coordinate conversion.
//
// The grid is shared mutable state. Only layout registration and explicit
// terrain/wall edits mutate it, and those happen between ticks, so queries
// take no locks.
package grid

import (
	"fmt"
	"math"

	"github.com/zyedidia/generic/mapset"
)

// Coord addresses a cell by row and column.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Point is a world-space position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an inclusive range of cells.
type Rect struct {
	MinRow int `json:"min_row"`
	MinCol int `json:"min_col"`
	MaxRow int `json:"max_row"`
	MaxCol int `json:"max_col"`
}

// Contains reports whether c lies inside the rectangle.
func (r Rect) Contains(c Coord) bool {
	return c.Row >= r.MinRow && c.Row <= r.MaxRow && c.Col >= r.MinCol && c.Col <= r.MaxCol
}

// ZoneType tags what a cell is used for.
type ZoneType uint8

const (
	ZoneNone      ZoneType = iota
	ZoneCorridor           // Open walkway around and between stands
	ZoneStair              // Aisle stairs running beside a section
	ZoneRowEntry           // End cell of a seat row
	ZoneSeat               // A seat
	ZoneField              // Playing surface, off limits to vendors
	ZoneDropZone           // Vendor restock point
	ZoneConcourse          // Wide walkway behind the stands
)

var zoneNames = [...]string{"none", "corridor", "stair", "row_entry", "seat", "field", "drop_zone", "concourse"}

func (z ZoneType) String() string {
	if int(z) < len(zoneNames) {
		return zoneNames[z]
	}
	return fmt.Sprintf("zone(%d)", z)
}

// ParseZone converts a config name into a ZoneType.
func ParseZone(name string) (ZoneType, bool) {
	for i, n := range zoneNames {
		if n == name {
			return ZoneType(i), true
		}
	}
	return ZoneNone, false
}

// Direction names one edge of a cell.
type Direction uint8

const (
	Top Direction = iota
	Right
	Bottom
	Left
)

// Directions lists the four orthogonal edges in a fixed order.
var Directions = [4]Direction{Top, Right, Bottom, Left}

// Opposite returns the matching edge on the neighboring cell.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Delta returns the row/column step across this edge.
func (d Direction) Delta() (dr, dc int) {
	switch d {
	case Top:
		return -1, 0
	case Right:
		return 0, 1
	case Bottom:
		return 1, 0
	default:
		return 0, -1
	}
}

// ParseDirection converts "top", "right", "bottom" or "left".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "top":
		return Top, true
	case "right":
		return Right, true
	case "bottom":
		return Bottom, true
	case "left":
		return Left, true
	}
	return Top, false
}

// Walls holds one flag per edge, indexed by Direction.
type Walls [4]bool

// OccupantKind distinguishes what is standing in a cell.
type OccupantKind uint8

const (
	OccupantFan OccupantKind = iota
	OccupantVendor
)

// OccupantRef identifies an occupant without pointing at it.
type OccupantRef struct {
	Kind OccupantKind `json:"kind"`
	ID   uint64       `json:"id"`
}

// Cell is one grid unit.
type Cell struct {
	Row            int
	Col            int
	Passable       bool
	Walls          Walls
	TerrainPenalty float64 // >= 0
	HeightLevel    int
	Zone           ZoneType

	occupants mapset.Set[OccupantRef]
}

// Neighbor is a traversable orthogonal neighbor and the cost to step onto it.
type Neighbor struct {
	Row  int
	Col  int
	Cost float64
}

// Config sizes a grid.
type Config struct {
	Width    float64
	Height   float64
	CellSize float64
	OriginX  float64
	OriginY  float64
}

// Grid is the cell lattice.
type Grid struct {
	cellSize float64
	originX  float64
	originY  float64
	width    float64
	height   float64
	rows     int
	cols     int
	cells    []Cell

	listeners map[int]Listener
	nextSub   int
}

// New creates a grid of ceil(width/cellSize) × ceil(height/cellSize) cells
// (at least 1×1). Every cell starts passable, flat, without walls and tagged
// as corridor.
func New(cfg Config) *Grid {
	cs := cfg.CellSize
	if cs <= 0 {
		cs = 1
	}
	cols := int(math.Ceil(cfg.Width / cs))
	rows := int(math.Ceil(cfg.Height / cs))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	g := &Grid{
		cellSize:  cs,
		originX:   cfg.OriginX,
		originY:   cfg.OriginY,
		width:     cfg.Width,
		height:    cfg.Height,
		rows:      rows,
		cols:      cols,
		cells:     make([]Cell, rows*cols),
		listeners: make(map[int]Listener),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.cells[r*cols+c] = Cell{
				Row:       r,
				Col:       c,
				Passable:  true,
				Zone:      ZoneCorridor,
				occupants: mapset.New[OccupantRef](),
			}
		}
	}
	return g
}

func (g *Grid) Rows() int                 { return g.rows }
func (g *Grid) Cols() int                 { return g.cols }
func (g *Grid) CellSize() float64         { return g.cellSize }
func (g *Grid) Origin() Point             { return Point{X: g.originX, Y: g.originY} }
func (g *Grid) WorldSize() (w, h float64) { return g.width, g.height }

// InBounds reports whether (row, col) names a cell.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

func (g *Grid) cell(row, col int) *Cell {
	if !g.InBounds(row, col) {
		return nil
	}
	return &g.cells[row*g.cols+col]
}

// WorldToGrid converts a world point to the cell containing it. Points
// outside the world bounds return false; they are never clamped.
func (g *Grid) WorldToGrid(x, y float64) (Coord, bool) {
	lx := x - g.originX
	ly := y - g.originY
	if lx < 0 || ly < 0 || lx >= g.width || ly >= g.height {
		return Coord{}, false
	}
	c := Coord{Row: int(ly / g.cellSize), Col: int(lx / g.cellSize)}
	if !g.InBounds(c.Row, c.Col) {
		return Coord{}, false
	}
	return c, true
}

// GridToWorld returns the world point at the center of a cell.
func (g *Grid) GridToWorld(row, col int) Point {
	return Point{
		X: g.originX + (float64(col)+0.5)*g.cellSize,
		Y: g.originY + (float64(row)+0.5)*g.cellSize,
	}
}

// CellBounds returns the world-space rectangle covered by a cell.
func (g *Grid) CellBounds(row, col int) (minX, minY, maxX, maxY float64) {
	minX = g.originX + float64(col)*g.cellSize
	minY = g.originY + float64(row)*g.cellSize
	return minX, minY, minX + g.cellSize, minY + g.cellSize
}

// CellAt returns a copy of the cell. The copy shares its occupant set with
// the grid and must be treated as read-only.
func (g *Grid) CellAt(row, col int) (Cell, bool) {
	c := g.cell(row, col)
	if c == nil {
		return Cell{}, false
	}
	return *c, true
}

// IsPassable is false for impassable and out-of-bounds cells.
func (g *Grid) IsPassable(row, col int) bool {
	c := g.cell(row, col)
	return c != nil && c.Passable
}

// Zone returns the zone tag, ZoneNone when out of bounds.
func (g *Grid) Zone(row, col int) ZoneType {
	if c := g.cell(row, col); c != nil {
		return c.Zone
	}
	return ZoneNone
}

// TerrainPenalty returns the extra traversal cost of a cell.
func (g *Grid) TerrainPenalty(row, col int) float64 {
	if c := g.cell(row, col); c != nil {
		return c.TerrainPenalty
	}
	return 0
}

// HeightLevel returns the tier height of a cell.
func (g *Grid) HeightLevel(row, col int) int {
	if c := g.cell(row, col); c != nil {
		return c.HeightLevel
	}
	return 0
}

// EdgeBlocked reports whether a wall on either side of the shared edge
// blocks movement from (row, col) across dir. Edges leading off the grid
// are blocked.
func (g *Grid) EdgeBlocked(row, col int, dir Direction) bool {
	a := g.cell(row, col)
	if a == nil {
		return true
	}
	dr, dc := dir.Delta()
	b := g.cell(row+dr, col+dc)
	if b == nil {
		return true
	}
	return a.Walls[dir] || b.Walls[dir.Opposite()]
}

// PassableNeighbors returns the orthogonal neighbors reachable in one step.
// A neighbor qualifies when it is passable and no wall blocks the shared
// edge from either side. Cost is 1 plus the destination terrain penalty.
// Impassable or invalid origins have no neighbors.
func (g *Grid) PassableNeighbors(row, col int) []Neighbor {
	origin := g.cell(row, col)
	if origin == nil || !origin.Passable {
		return nil
	}
	out := make([]Neighbor, 0, 4)
	for _, dir := range Directions {
		dr, dc := dir.Delta()
		n := g.cell(row+dr, col+dc)
		if n == nil || !n.Passable {
			continue
		}
		if origin.Walls[dir] || n.Walls[dir.Opposite()] {
			continue
		}
		out = append(out, Neighbor{Row: n.Row, Col: n.Col, Cost: 1 + n.TerrainPenalty})
	}
	return out
}

// CellsInZone lists every cell tagged with one of the given zones,
// in row-major order.
func (g *Grid) CellsInZone(zones ...ZoneType) []Coord {
	want := mapset.Of(zones...)
	var out []Coord
	for i := range g.cells {
		if want.Has(g.cells[i].Zone) {
			out = append(out, Coord{Row: g.cells[i].Row, Col: g.cells[i].Col})
		}
	}
	return out
}

// ManhattanDistance is |Δrow| + |Δcol|.
func ManhattanDistance(a, b Coord) int {
	dr := a.Row - b.Row
	dc := a.Col - b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d @ %.0fpx)", g.rows, g.cols, g.cellSize)
}
