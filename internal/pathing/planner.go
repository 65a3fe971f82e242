// Package pathing computes lowest-cost vendor routes over the stadium grid.
// Costs depend on the node type being entered, the agent's abilities and
// the crowd sitting in the way; every segment cost is bounded.
package pathing

import (
	"log/slog"
	"math"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/zyedidia/generic/heap"
)

// NodeType classifies a grid cell for costing.
type NodeType uint8

const (
	NodeCorridor NodeType = iota
	NodeStair
	NodeRowEntry
	NodeSeat
)

func (n NodeType) String() string {
	switch n {
	case NodeStair:
		return "stair"
	case NodeRowEntry:
		return "row_entry"
	case NodeSeat:
		return "seat"
	default:
		return "corridor"
	}
}

// NodeTypeOf maps a zone tag to its node type. Drop zones and the
// concourse cost like corridor.
func NodeTypeOf(z grid.ZoneType) NodeType {
	switch z {
	case grid.ZoneStair:
		return NodeStair
	case grid.ZoneRowEntry:
		return NodeRowEntry
	case grid.ZoneSeat:
		return NodeSeat
	default:
		return NodeCorridor
	}
}

func (n NodeType) inRow() bool { return n == NodeRowEntry || n == NodeSeat }

// Abilities waive penalties or unlock node types.
type Abilities struct {
	IgnoreRowPenalty      bool `json:"ignore_row_penalty"`
	IgnoreOccupantPenalty bool `json:"ignore_occupant_penalty"`
	CanEnterRows          bool `json:"can_enter_rows"`
}

// AbilitiesFrom converts the config representation.
func AbilitiesFrom(s config.AbilitySpec) Abilities {
	return Abilities{
		IgnoreRowPenalty:      s.IgnoreRowPenalty,
		IgnoreOccupantPenalty: s.IgnoreOccupantPenalty,
		CanEnterRows:          s.CanEnterRows,
	}
}

// Profile is what the planner needs to know about the moving agent.
type Profile struct {
	Abilities   Abilities
	QualityTier int
}

// Occupancy reports crowd conditions on seat cells.
type Occupancy interface {
	// SeatOccupancy reports whether the seat at c holds a fan and the
	// fraction of occupied seats in its row.
	SeatOccupancy(c grid.Coord) (occupied bool, density float64)
	// Difficult reports whether the fan at c resists letting people past.
	Difficult(c grid.Coord) bool
}

// Segment is one step of a route.
type Segment struct {
	NodeType NodeType `json:"node_type"`
	Row      int      `json:"row"`
	Col      int      `json:"col"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Cost     float64  `json:"cost"`
	Penalty  float64  `json:"penalty"`
}

// Coord returns the grid cell of the segment.
func (s Segment) Coord() grid.Coord { return grid.Coord{Row: s.Row, Col: s.Col} }

// Route is an ordered list of segments, excluding the start cell.
type Route struct {
	Segments    []Segment `json:"segments"`
	TotalCost   float64   `json:"total_cost"`
	Penalty     float64   `json:"penalty"`
	NeedsDetour bool      `json:"needs_detour"`
}

// Empty reports whether the route has no steps.
func (r Route) Empty() bool { return len(r.Segments) == 0 }

// Waypoint is the service-boundary form of a segment.
type Waypoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Cost float64 `json:"cost"`
}

// Planner runs Dijkstra over the grid's passable adjacency.
type Planner struct {
	grid   *grid.Grid
	cfg    config.PathingConfig
	occ    Occupancy
	logger *slog.Logger
}

// NewPlanner creates a planner. occ may be nil, in which case seat
// penalties are never applied.
func NewPlanner(g *grid.Grid, cfg config.PathingConfig, occ Occupancy, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{grid: g, cfg: cfg, occ: occ, logger: logger}
}

// Grid returns the grid the planner searches.
func (p *Planner) Grid() *grid.Grid { return p.grid }

// DefaultProfile is used for RequestPath callers that do not carry one.
func (p *Planner) DefaultProfile() Profile {
	return Profile{Abilities: AbilitiesFrom(p.cfg.DefaultAbilities), QualityTier: 1}
}

// DetourTolerance is the accumulated penalty a route may carry before the
// agent should look for a detour. It scales linearly with quality tier.
func (p *Planner) DetourTolerance(tier int) float64 {
	if tier < 1 {
		tier = 1
	}
	return p.cfg.DetourTolerance * float64(tier)
}

func (p *Planner) baseCost(n NodeType) float64 {
	switch n {
	case NodeStair:
		return p.cfg.StairCost
	case NodeRowEntry:
		return p.cfg.RowEntryCost
	case NodeSeat:
		return p.cfg.SeatCost
	default:
		return p.cfg.CorridorCost
	}
}

// SegmentCost prices the step from one cell onto an adjacent one. Penalties
// are summed and capped before being added; the total is clamped to
// [1, max_segment_cost]. The returned penalty is the capped penalty part.
func (p *Planner) SegmentCost(from, to grid.Coord, prof Profile) (cost, penalty float64) {
	fromNode := NodeTypeOf(p.grid.Zone(from.Row, from.Col))
	toNode := NodeTypeOf(p.grid.Zone(to.Row, to.Col))

	if toNode.inRow() && !fromNode.inRow() && !prof.Abilities.IgnoreRowPenalty {
		penalty += p.cfg.RowEntryPenalty
	}
	if toNode == NodeSeat && p.occ != nil {
		if occupied, density := p.occ.SeatOccupancy(to); occupied {
			penalty += p.cfg.OccupiedSeatPenalty * density
		}
		if !prof.Abilities.IgnoreOccupantPenalty && p.occ.Difficult(to) {
			penalty += p.cfg.DifficultOccupantPenalty
		}
	}
	penalty = math.Min(penalty, p.cfg.PenaltyCap)

	cost = p.baseCost(toNode) + p.grid.TerrainPenalty(to.Row, to.Col) + penalty
	if cost < 1 {
		cost = 1
	}
	if cost > p.cfg.MaxSegmentCost {
		cost = p.cfg.MaxSegmentCost
	}
	return cost, penalty
}

type queueItem struct {
	idx  int
	cost float64
}

// Plan returns the cheapest route from one cell to another. ok is false
// when either end is invalid or no connected path exists. from == target
// yields an empty route with ok true.
func (p *Planner) Plan(from, target grid.Coord, prof Profile) (Route, bool) {
	return p.search(from, target, prof, 1)
}

// PlanDetour searches again with penalties weighted more heavily, trading
// extra distance for a less congested route.
func (p *Planner) PlanDetour(from, target grid.Coord, prof Profile) (Route, bool) {
	return p.search(from, target, prof, p.cfg.DetourPenaltyWeight)
}

// RequestPath is the world-space service boundary. It returns nil when
// either point is off the grid or the target is currently unreachable.
func (p *Planner) RequestPath(fromX, fromY, toX, toY float64) []Waypoint {
	from, ok := p.grid.WorldToGrid(fromX, fromY)
	if !ok {
		return nil
	}
	to, ok := p.grid.WorldToGrid(toX, toY)
	if !ok {
		return nil
	}
	route, ok := p.Plan(from, to, p.DefaultProfile())
	if !ok {
		return nil
	}
	out := make([]Waypoint, len(route.Segments))
	for i, s := range route.Segments {
		out[i] = Waypoint{X: s.X, Y: s.Y, Cost: s.Cost}
	}
	return out
}

func (p *Planner) search(from, target grid.Coord, prof Profile, penaltyWeight float64) (Route, bool) {
	g := p.grid
	if !g.IsPassable(from.Row, from.Col) || !g.IsPassable(target.Row, target.Col) {
		return Route{}, false
	}
	if from == target {
		return Route{}, true
	}

	cols := g.Cols()
	n := g.Rows() * cols
	dist := make([]float64, n)
	prev := make([]int, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	start := from.Row*cols + from.Col
	goal := target.Row*cols + target.Col
	dist[start] = 0

	pq := heap.New(func(a, b queueItem) bool { return a.cost < b.cost })
	pq.Push(queueItem{idx: start})

	for pq.Size() > 0 {
		item, _ := pq.Pop()
		if item.cost > dist[item.idx] {
			continue
		}
		if item.idx == goal {
			break
		}
		cur := grid.Coord{Row: item.idx / cols, Col: item.idx % cols}
		for _, nb := range g.PassableNeighbors(cur.Row, cur.Col) {
			next := grid.Coord{Row: nb.Row, Col: nb.Col}
			if !p.traversable(next, target, prof) {
				continue
			}
			cost, pen := p.SegmentCost(cur, next, prof)
			nd := dist[item.idx] + cost + (penaltyWeight-1)*pen
			ni := nb.Row*cols + nb.Col
			if nd < dist[ni] {
				dist[ni] = nd
				prev[ni] = item.idx
				pq.Push(queueItem{idx: ni, cost: nd})
			}
		}
	}

	if math.IsInf(dist[goal], 1) {
		p.logger.Debug("no path", "from", from, "target", target)
		return Route{}, false
	}

	var cells []grid.Coord
	for i := goal; i != start; i = prev[i] {
		cells = append(cells, grid.Coord{Row: i / cols, Col: i % cols})
	}

	route := Route{Segments: make([]Segment, 0, len(cells))}
	last := from
	for i := len(cells) - 1; i >= 0; i-- {
		c := cells[i]
		cost, pen := p.SegmentCost(last, c, prof)
		w := g.GridToWorld(c.Row, c.Col)
		route.Segments = append(route.Segments, Segment{
			NodeType: NodeTypeOf(g.Zone(c.Row, c.Col)),
			Row:      c.Row,
			Col:      c.Col,
			X:        w.X,
			Y:        w.Y,
			Cost:     cost,
			Penalty:  pen,
		})
		route.TotalCost += cost
		route.Penalty += pen
		last = c
	}
	route.NeedsDetour = route.Penalty > p.DetourTolerance(prof.QualityTier)
	return route, true
}

// traversable filters nodes the agent may step onto. The field is never
// entered; seats need CanEnterRows unless the seat is the target itself.
func (p *Planner) traversable(c, target grid.Coord, prof Profile) bool {
	switch p.grid.Zone(c.Row, c.Col) {
	case grid.ZoneField:
		return c == target
	case grid.ZoneSeat:
		return c == target || prof.Abilities.CanEnterRows
	}
	return true
}
