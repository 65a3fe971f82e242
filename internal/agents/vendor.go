package agents

import (
	"log/slog"
	"math"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/crowd"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/pathing"
)

// Deps are the collaborators a vendor consults. Planner may be nil, in
// which case every pathing request fails with ErrNoPlanner.
type Deps struct {
	Grid    *grid.Grid
	Stadium *crowd.Stadium
	Planner *pathing.Planner
	Rng     entropy.Source
	Config  config.VendorConfig
	Logger  *slog.Logger
	Emit    func(Event)
}

// errand is why a vendor is following its current path.
type errand uint8

const (
	errandNone    errand = iota
	errandSeat           // Reserved seat to serve
	errandSection        // Section entry
	errandPatrol
	errandDropoff
)

// Vendor is one mobile seller. All mutation happens inside Update or the
// command methods, which the orchestrator calls between ticks.
type Vendor struct {
	Profile Profile

	id     VendorID
	deps   Deps
	logger *slog.Logger

	state State
	phase DropoffPhase
	pos   grid.Point
	cell  grid.Coord
	alpha float64

	path    []pathing.Segment
	pathIdx int
	dest    grid.Coord
	errand  errand

	section    int // Assigned section, -1 for none
	targetSeat *crowd.Seat
	servePhase crowd.ThirstPhase

	assignCooldown float64
	scanTimer      float64
	idleTime       float64
	retryTimer     float64
	retrySection   int
	patrolTimer    float64
	stateTimer     float64 // Service, splat recovery or fade phase
	lastWave       string

	pointsEarned int
	pointsBanked int
	served       int
	splats       int
}

// NewVendor places a vendor on a cell, awaiting assignment.
func NewVendor(id VendorID, p Profile, at grid.Coord, deps Deps) *Vendor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if p.Quality < 1 {
		p.Quality = 1
	}
	v := &Vendor{
		Profile:      p,
		id:           id,
		deps:         deps,
		logger:       logger,
		cell:         at,
		dest:         at,
		alpha:        1,
		section:      -1,
		retrySection: -1,
	}
	if deps.Grid != nil {
		v.pos = deps.Grid.GridToWorld(at.Row, at.Col)
		deps.Grid.AddOccupant(at.Row, at.Col, v.ref())
	}
	return v
}

func (v *Vendor) ref() grid.OccupantRef {
	return grid.OccupantRef{Kind: grid.OccupantVendor, ID: uint64(v.id)}
}

func (v *Vendor) ID() VendorID            { return v.id }
func (v *Vendor) Name() string            { return v.Profile.Name }
func (v *Vendor) Position() grid.Point    { return v.pos }
func (v *Vendor) Cell() grid.Coord        { return v.cell }
func (v *Vendor) State() State            { return v.state }
func (v *Vendor) Phase() DropoffPhase     { return v.phase }
func (v *Vendor) Alpha() float64          { return v.alpha }
func (v *Vendor) Section() int            { return v.section }
func (v *Vendor) PointsEarned() int       { return v.pointsEarned }
func (v *Vendor) PointsBanked() int       { return v.pointsBanked }
func (v *Vendor) Served() int             { return v.served }
func (v *Vendor) Splats() int             { return v.splats }
func (v *Vendor) AssignCooldown() float64 { return v.assignCooldown }
func (v *Vendor) HasPath() bool           { return v.pathIdx < len(v.path) }
func (v *Vendor) Destination() grid.Coord { return v.dest }
func (v *Vendor) Target() (grid.Coord, bool) {
	if v.targetSeat == nil {
		return grid.Coord{}, false
	}
	return v.targetSeat.Cell, true
}

// Path returns the remaining route.
func (v *Vendor) Path() []pathing.Segment {
	if !v.HasPath() {
		return nil
	}
	return append([]pathing.Segment(nil), v.path[v.pathIdx:]...)
}

// ClearPath drops the remaining route. Calling it again is a no-op.
func (v *Vendor) ClearPath() {
	v.path = nil
	v.pathIdx = 0
}

// Speed is the movement rate in px/s, raised by quality tier.
func (v *Vendor) Speed() float64 {
	cfg := v.deps.Config
	return cfg.Speed * (1 + float64(v.Profile.Quality-1)*cfg.QualitySpeedBonus)
}

// Status snapshots the vendor for the renderer.
func (v *Vendor) Status() Status {
	return Status{
		ID:           v.id,
		Name:         v.Profile.Name,
		Type:         v.Profile.Type,
		Quality:      v.Profile.Quality,
		State:        v.state,
		Phase:        v.phase,
		X:            v.pos.X,
		Y:            v.pos.Y,
		Alpha:        v.alpha,
		Section:      v.section,
		PointsEarned: v.pointsEarned,
		PointsBanked: v.pointsBanked,
		Served:       v.served,
		Splats:       v.splats,
		PathLen:      len(v.path) - v.pathIdx,
	}
}

func (v *Vendor) emit(kind EventKind, section, points int) {
	if v.deps.Emit == nil {
		return
	}
	v.deps.Emit(Event{
		Kind:    kind,
		Vendor:  v.id,
		Name:    v.Profile.Name,
		Type:    v.Profile.Type,
		Section: section,
		Points:  points,
	})
}

// planTo finds a route from the vendor's cell, switching to the detour
// search when the direct route carries more penalty than the vendor's
// tier tolerates.
func (v *Vendor) planTo(to grid.Coord) (pathing.Route, error) {
	p := v.deps.Planner
	if p == nil {
		return pathing.Route{}, ErrNoPlanner
	}
	prof := v.Profile.PathProfile()
	route, ok := p.Plan(v.cell, to, prof)
	if !ok {
		return pathing.Route{}, ErrUnreachable
	}
	if route.NeedsDetour {
		if alt, ok := p.PlanDetour(v.cell, to, prof); ok && alt.Penalty < route.Penalty {
			route = alt
		}
	}
	return route, nil
}

func (v *Vendor) follow(r pathing.Route, dest grid.Coord, e errand) {
	v.path = r.Segments
	v.pathIdx = 0
	v.dest = dest
	v.errand = e
}

// advance moves along the path at the vendor's speed and reports whether
// the path is exhausted.
func (v *Vendor) advance(dt float64) bool {
	budget := v.Speed() * dt
	for v.pathIdx < len(v.path) && budget > 0 {
		seg := v.path[v.pathIdx]
		dx, dy := seg.X-v.pos.X, seg.Y-v.pos.Y
		d := math.Hypot(dx, dy)
		if d <= budget {
			v.pos = grid.Point{X: seg.X, Y: seg.Y}
			budget -= d
			v.moveTo(seg.Coord())
			v.pathIdx++
			continue
		}
		v.pos.X += dx / d * budget
		v.pos.Y += dy / d * budget
		budget = 0
	}
	return v.pathIdx >= len(v.path)
}

func (v *Vendor) moveTo(c grid.Coord) {
	if c == v.cell {
		return
	}
	if v.deps.Grid != nil {
		v.deps.Grid.MoveOccupant(v.cell, c, v.ref())
	}
	v.cell = c
}

func (v *Vendor) dropTarget() {
	if v.targetSeat == nil {
		return
	}
	if v.deps.Stadium != nil {
		v.deps.Stadium.Release(v.targetSeat.Cell, uint64(v.id))
	}
	v.targetSeat = nil
}

// reset returns the vendor to a resting state with no route or target.
func (v *Vendor) reset(s State) {
	v.ClearPath()
	v.dropTarget()
	v.state = s
	v.phase = PhaseNone
	v.errand = errandNone
	v.alpha = 1
	v.stateTimer = 0
	v.scanTimer = 0
	v.idleTime = 0
	v.dest = v.cell
}

// Reset puts a misbehaving vendor back to idle. Points are kept.
func (v *Vendor) Reset() {
	v.reset(StateIdle)
}

// ScoreCandidate ranks a seat for service; lower is better, so close and
// thirsty wins.
func ScoreCandidate(distance, cellSize, thirst float64) float64 {
	if cellSize <= 0 {
		cellSize = 1
	}
	return distance/cellSize + (100-thirst)/10
}

// ServicePoints is what one completed service earns.
func ServicePoints(cfg config.VendorConfig, phase crowd.ThirstPhase) int {
	pts := float64(cfg.BasePoints)
	if phase == crowd.PhaseFast {
		pts *= cfg.FastPhaseMultiplier
	}
	return int(math.Round(pts))
}

// SplatProbability scales with the points a vendor is carrying.
func SplatProbability(cfg config.VendorConfig, points int) float64 {
	p := cfg.SplatBase + float64(points)*cfg.SplatPerPoint
	if p < 0 {
		return 0
	}
	if p > cfg.SplatMax {
		return cfg.SplatMax
	}
	return p
}
