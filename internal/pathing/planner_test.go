package pathing

import (
	"math"
	"testing"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/grid"
)

type fakeOccupancy struct {
	occupied  map[grid.Coord]float64
	difficult map[grid.Coord]bool
}

func (f fakeOccupancy) SeatOccupancy(c grid.Coord) (bool, float64) {
	d, ok := f.occupied[c]
	return ok, d
}

func (f fakeOccupancy) Difficult(c grid.Coord) bool { return f.difficult[c] }

func newGrid(rows, cols int) *grid.Grid {
	return grid.New(grid.Config{Width: float64(cols * 32), Height: float64(rows * 32), CellSize: 32})
}

func rowsProfile() Profile {
	return Profile{Abilities: Abilities{CanEnterRows: true}, QualityTier: 1}
}

func TestPlanOpenCorridor(t *testing.T) {
	p := NewPlanner(newGrid(5, 10), config.Default().Pathing, nil, nil)
	route, ok := p.Plan(grid.Coord{Row: 0, Col: 0}, grid.Coord{Row: 0, Col: 3}, rowsProfile())
	if !ok {
		t.Fatal("expected a route")
	}
	if len(route.Segments) != 3 || route.TotalCost != 3 || route.Penalty != 0 {
		t.Fatalf("got %d segments cost %v penalty %v", len(route.Segments), route.TotalCost, route.Penalty)
	}
	last := route.Segments[2]
	if last.Row != 0 || last.Col != 3 || last.X != 112 || last.Y != 16 {
		t.Errorf("last segment = %+v", last)
	}
	if route.NeedsDetour {
		t.Error("penalty-free route should not need a detour")
	}
}

func TestPlanSameCell(t *testing.T) {
	p := NewPlanner(newGrid(3, 3), config.Default().Pathing, nil, nil)
	route, ok := p.Plan(grid.Coord{Row: 1, Col: 1}, grid.Coord{Row: 1, Col: 1}, rowsProfile())
	if !ok || !route.Empty() {
		t.Fatalf("same-cell plan = %+v, %v", route, ok)
	}
}

func TestPlanUnreachable(t *testing.T) {
	g := newGrid(5, 10)
	for r := 0; r < 5; r++ {
		g.SetPassable(r, 5, false)
	}
	p := NewPlanner(g, config.Default().Pathing, nil, nil)

	if _, ok := p.Plan(grid.Coord{Row: 2, Col: 1}, grid.Coord{Row: 2, Col: 8}, rowsProfile()); ok {
		t.Error("expected no route across a blocked column")
	}
	if _, ok := p.Plan(grid.Coord{Row: 2, Col: 1}, grid.Coord{Row: 2, Col: 5}, rowsProfile()); ok {
		t.Error("expected no route to an impassable target")
	}
	if _, ok := p.Plan(grid.Coord{Row: -1, Col: 1}, grid.Coord{Row: 2, Col: 2}, rowsProfile()); ok {
		t.Error("expected no route from an invalid start")
	}
	if got := p.RequestPath(48, 80, 272, 80); got != nil {
		t.Errorf("RequestPath across the blocked column = %+v, want nil", got)
	}
}

func TestPlanRespectsWalls(t *testing.T) {
	g := newGrid(4, 4)
	g.SetWall(0, 0, grid.Right, true)
	g.SetWall(1, 0, grid.Top, true)
	p := NewPlanner(g, config.Default().Pathing, nil, nil)

	if _, ok := p.Plan(grid.Coord{Row: 0, Col: 0}, grid.Coord{Row: 3, Col: 3}, rowsProfile()); ok {
		t.Error("walled-in corner should be unreachable")
	}
	if _, ok := p.Plan(grid.Coord{Row: 3, Col: 3}, grid.Coord{Row: 0, Col: 0}, rowsProfile()); ok {
		t.Error("walls must block from the other side too")
	}
}

// seatRow tags row 2 of a 5x9 grid as a seat row: entries at cols 1 and 7,
// seats at cols 2..6.
func seatRow() *grid.Grid {
	g := newGrid(5, 9)
	g.SetZone(2, 1, grid.ZoneRowEntry)
	g.SetZone(2, 7, grid.ZoneRowEntry)
	for c := 2; c <= 6; c++ {
		g.SetZone(2, c, grid.ZoneSeat)
	}
	return g
}

func TestSeatsNeedRowAccess(t *testing.T) {
	p := NewPlanner(seatRow(), config.Default().Pathing, nil, nil)
	walker := Profile{QualityTier: 1}

	route, ok := p.Plan(grid.Coord{Row: 2, Col: 0}, grid.Coord{Row: 2, Col: 8}, walker)
	if !ok {
		t.Fatal("expected a route around the row")
	}
	for _, s := range route.Segments {
		if s.NodeType == NodeSeat {
			t.Fatalf("agent without row access crossed seat %+v", s)
		}
	}

	target := grid.Coord{Row: 2, Col: 4}
	route, ok = p.Plan(grid.Coord{Row: 0, Col: 4}, target, walker)
	if !ok {
		t.Fatal("a seat target must stay reachable")
	}
	last := route.Segments[len(route.Segments)-1]
	if last.Coord() != target || last.NodeType != NodeSeat {
		t.Errorf("last segment = %+v", last)
	}
	for _, s := range route.Segments[:len(route.Segments)-1] {
		if s.NodeType == NodeSeat {
			t.Errorf("intermediate seat %+v", s)
		}
	}
}

func TestSegmentCost(t *testing.T) {
	g := seatRow()
	seat := grid.Coord{Row: 2, Col: 3}
	above := grid.Coord{Row: 1, Col: 3}
	occ := fakeOccupancy{
		occupied:  map[grid.Coord]float64{seat: 0.5},
		difficult: map[grid.Coord]bool{seat: true},
	}

	tests := []struct {
		name     string
		mutate   func(*config.PathingConfig)
		from, to grid.Coord
		prof     Profile
		wantCost float64
		wantPen  float64
	}{
		{"corridor step", nil, grid.Coord{Row: 0, Col: 0}, grid.Coord{Row: 0, Col: 1}, rowsProfile(), 1, 0},
		// 3 + 4*0.5 + 6 = 11, capped at 10; 2 + 10 = 12 = max.
		{"all penalties capped", nil, above, seat, rowsProfile(), 12, 10},
		{"abilities waive row and difficult", nil, above, seat,
			Profile{Abilities: Abilities{CanEnterRows: true, IgnoreRowPenalty: true, IgnoreOccupantPenalty: true}}, 4, 2},
		{"seat to seat has no row penalty", nil, grid.Coord{Row: 2, Col: 2}, grid.Coord{Row: 2, Col: 4}, rowsProfile(), 2, 0},
		{"clamped to max", func(c *config.PathingConfig) { c.MaxSegmentCost = 8 }, above, seat, rowsProfile(), 8, 10},
		{"clamped to one", func(c *config.PathingConfig) { c.CorridorCost = 0.2 }, grid.Coord{Row: 0, Col: 0}, grid.Coord{Row: 0, Col: 1}, rowsProfile(), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Pathing
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			p := NewPlanner(g, cfg, occ, nil)
			cost, pen := p.SegmentCost(tt.from, tt.to, tt.prof)
			if cost != tt.wantCost || pen != tt.wantPen {
				t.Errorf("SegmentCost = (%v, %v), want (%v, %v)", cost, pen, tt.wantCost, tt.wantPen)
			}
		})
	}
}

func TestSegmentCostAlwaysBounded(t *testing.T) {
	g := seatRow()
	for c := 0; c < 9; c++ {
		g.SetTerrainPenalty(1, c, float64(c)*5)
	}
	occ := fakeOccupancy{occupied: map[grid.Coord]float64{}, difficult: map[grid.Coord]bool{}}
	for c := 2; c <= 6; c++ {
		occ.occupied[grid.Coord{Row: 2, Col: c}] = 1
		occ.difficult[grid.Coord{Row: 2, Col: c}] = true
	}
	cfg := config.Default().Pathing
	p := NewPlanner(g, cfg, occ, nil)
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			for _, nb := range g.PassableNeighbors(r, c) {
				cost, _ := p.SegmentCost(grid.Coord{Row: r, Col: c}, grid.Coord{Row: nb.Row, Col: nb.Col}, rowsProfile())
				if cost < 1 || cost > cfg.MaxSegmentCost || math.IsNaN(cost) {
					t.Fatalf("cost %v out of bounds at (%d,%d)->(%d,%d)", cost, r, c, nb.Row, nb.Col)
				}
			}
		}
	}
}

func TestDetourTolerance(t *testing.T) {
	p := NewPlanner(newGrid(2, 2), config.Default().Pathing, nil, nil)
	for tier, want := range map[int]float64{0: 15, 1: 15, 2: 30, 3: 45} {
		if got := p.DetourTolerance(tier); got != want {
			t.Errorf("DetourTolerance(%d) = %v, want %v", tier, got, want)
		}
	}
}

// gateGrid puts a vertical strip of row-entry cells at col 3, rows 0..3, so
// the short way from (1,2) to (1,4) pays a row-entry penalty and the long
// way round through row 4 pays none.
func gateGrid() *grid.Grid {
	g := newGrid(5, 7)
	for r := 0; r <= 3; r++ {
		g.SetZone(r, 3, grid.ZoneRowEntry)
	}
	return g
}

func TestNeedsDetourScalesWithTier(t *testing.T) {
	cfg := config.Default().Pathing
	cfg.DetourTolerance = 1
	p := NewPlanner(gateGrid(), cfg, nil, nil)
	from, to := grid.Coord{Row: 1, Col: 2}, grid.Coord{Row: 1, Col: 4}

	low, ok := p.Plan(from, to, Profile{Abilities: Abilities{CanEnterRows: true}, QualityTier: 1})
	if !ok {
		t.Fatal("expected a route")
	}
	if low.Penalty != 3 || !low.NeedsDetour {
		t.Errorf("tier 1: penalty %v needsDetour %v, want 3 true", low.Penalty, low.NeedsDetour)
	}

	high, _ := p.Plan(from, to, Profile{Abilities: Abilities{CanEnterRows: true}, QualityTier: 3})
	if high.NeedsDetour {
		t.Error("tier 3 tolerates a penalty of 3")
	}
}

func TestPlanDetourAvoidsPenalty(t *testing.T) {
	p := NewPlanner(gateGrid(), config.Default().Pathing, nil, nil)
	from, to := grid.Coord{Row: 1, Col: 2}, grid.Coord{Row: 1, Col: 4}

	direct, ok := p.Plan(from, to, rowsProfile())
	if !ok || len(direct.Segments) != 2 || direct.TotalCost != 6 {
		t.Fatalf("direct route = %+v", direct)
	}
	detour, ok := p.PlanDetour(from, to, rowsProfile())
	if !ok {
		t.Fatal("expected a detour")
	}
	if detour.Penalty != 0 || len(detour.Segments) != 8 || detour.TotalCost != 8 {
		t.Errorf("detour = %d segments cost %v penalty %v", len(detour.Segments), detour.TotalCost, detour.Penalty)
	}
}

func TestRequestPath(t *testing.T) {
	p := NewPlanner(newGrid(5, 10), config.Default().Pathing, nil, nil)

	wps := p.RequestPath(16, 16, 80, 48)
	if len(wps) != 3 {
		t.Fatalf("expected 3 waypoints, got %+v", wps)
	}
	end := wps[len(wps)-1]
	if end.X != 80 || end.Y != 48 || end.Cost != 1 {
		t.Errorf("last waypoint = %+v", end)
	}

	if wps := p.RequestPath(16, 16, 20, 20); wps == nil || len(wps) != 0 {
		t.Errorf("same-cell request = %+v, want empty non-nil", wps)
	}
	if p.RequestPath(-5, 16, 80, 48) != nil || p.RequestPath(16, 16, 80, 4000) != nil {
		t.Error("off-grid requests must return nil")
	}
}
