package crowd

import (
	"math"
	"testing"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/pathing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// fixtureSection builds rows×seats with the first `occupied` seats filled
// by fans of the given mood.
func fixtureSection(id string, rows, seats, occupied int, happiness, thirst float64) *Section {
	sec := &Section{ID: id}
	next := FanID(1)
	n := 0
	for i := 0; i < rows; i++ {
		row := &Row{Index: i}
		for j := 0; j < seats; j++ {
			seat := &Seat{Index: j, Cell: grid.Coord{Row: i, Col: j}}
			if n < occupied {
				seat.Fan = &Fan{ID: next, Happiness: happiness, Thirst: thirst, Attention: 50}
				next++
				n++
			}
			row.Seats = append(row.Seats, seat)
		}
		sec.Rows = append(sec.Rows, row)
	}
	return sec
}

func TestWaveSuccessProbabilityScenario(t *testing.T) {
	cfg := config.Default().Crowd
	cfg.WaveBase, cfg.WaveHappinessWeight, cfg.WaveThirstWeight = 80, 0.2, 0.3

	sec := fixtureSection("A", 3, 4, 6, 70, 0)
	st := sec.Stats()
	if st.Seats != 12 || st.Occupied != 6 || st.Occupancy != 0.5 {
		t.Fatalf("stats = %+v", st)
	}
	if got := sec.WaveSuccessProbability(cfg); !approx(got, 94) {
		t.Errorf("WaveSuccessProbability = %v, want 94", got)
	}
}

func TestWaveSuccessProbabilityClamps(t *testing.T) {
	cfg := config.Default().Crowd
	if got := WaveSuccessProbability(SectionStats{AvgHappiness: 100, AvgThirst: 0}, cfg); got != 100 {
		t.Errorf("high end = %v, want 100", got)
	}
	cfg.WaveBase = 0
	if got := WaveSuccessProbability(SectionStats{AvgHappiness: 0, AvgThirst: 100}, cfg); got != 0 {
		t.Errorf("low end = %v, want 0", got)
	}
}

func TestFanTick(t *testing.T) {
	cfg := config.Default().Crowd
	cfg.ThirstRate = 2
	cfg.ThirstPhaseThreshold = 50
	cfg.HappinessDecayRate = 4
	cfg.AttentionDecayRate = 1

	f := &Fan{Happiness: 80, Thirst: 10, Attention: 50}
	for i := 0; i < 10; i++ {
		f.Tick(0.05, cfg)
	}
	if !approx(f.Thirst, 11) {
		t.Errorf("thirst after 0.5s = %v, want 11 (fractional accumulation)", f.Thirst)
	}
	if f.Happiness != 80 {
		t.Errorf("happiness decayed below the phase threshold: %v", f.Happiness)
	}
	if !approx(f.Attention, 49.5) {
		t.Errorf("attention = %v, want 49.5", f.Attention)
	}

	f.Thirst = 60
	f.Tick(1, cfg)
	if !approx(f.Happiness, 76) || !approx(f.Thirst, 62) {
		t.Errorf("past threshold: happiness %v thirst %v", f.Happiness, f.Thirst)
	}

	f.Tick(0, cfg)
	f.Tick(-3, cfg)
	if !approx(f.Thirst, 62) {
		t.Error("non-positive dt must not change state")
	}

	f.Tick(1000, cfg)
	if f.Thirst != 100 || f.Happiness != 0 || f.Attention != 0 {
		t.Errorf("stats not clamped: %+v", f)
	}
}

func TestVendorServeClamps(t *testing.T) {
	cfg := config.Default().Crowd
	f := &Fan{Happiness: 95, Thirst: 30}
	f.VendorServe(cfg)
	if f.Thirst != 0 || f.Happiness != 100 {
		t.Errorf("after serve: %+v", f)
	}

	g := &Fan{Happiness: 40, Thirst: 80}
	g.VendorServe(cfg)
	if g.Thirst != 30 || g.Happiness != 50 {
		t.Errorf("after serve: %+v", g)
	}

	h := &Fan{Thirst: 5}
	if got := h.ReduceThirst(20); got != 5 {
		t.Errorf("ReduceThirst reported %v, want 5", got)
	}
}

func TestThirstPhaseAndDifficult(t *testing.T) {
	cfg := config.Default().Crowd
	f := &Fan{Thirst: cfg.ThirstPhaseThreshold - 0.1, Happiness: cfg.DifficultHappiness}
	if f.ThirstPhase(cfg) != PhaseSlow || f.Difficult(cfg) {
		t.Error("expected slow phase, not difficult")
	}
	f.Thirst = cfg.ThirstPhaseThreshold
	f.Happiness = cfg.DifficultHappiness - 1
	if f.ThirstPhase(cfg) != PhaseFast || !f.Difficult(cfg) {
		t.Error("expected fast phase, difficult")
	}

	// Exactly at the threshold the fan is fast and its happiness decays.
	cfg.ThirstRate = 0
	cfg.HappinessDecayRate = 2
	f = &Fan{Thirst: cfg.ThirstPhaseThreshold, Happiness: 50}
	f.Tick(1, cfg)
	if f.ThirstPhase(cfg) != PhaseFast || !approx(f.Happiness, 48) {
		t.Errorf("at threshold: phase %v happiness %v, want fast and 48", f.ThirstPhase(cfg), f.Happiness)
	}
}

func TestParticipationChance(t *testing.T) {
	cfg := config.Default().Crowd
	f := &Fan{Happiness: 100, Attention: 100, Thirst: 0}
	if got := f.ParticipationChance(cfg, 0.5); got != 1 {
		t.Errorf("chance = %v, want clamp to 1", got)
	}
	f = &Fan{Happiness: 0, Attention: 0, Thirst: 100}
	if got := f.ParticipationChance(cfg, -0.5); got != 0 {
		t.Errorf("chance = %v, want clamp to 0", got)
	}
	f = &Fan{Happiness: 50, Attention: 50, Thirst: 50}
	want := cfg.ParticipationBase + 0.5*cfg.ParticipationHappinessWeight + 0.5*cfg.ParticipationAttentionWeight - 0.5*cfg.ParticipationThirstWeight
	if got := f.ParticipationChance(cfg, 0); !approx(got, want) {
		t.Errorf("chance = %v, want %v", got, want)
	}
}

func TestColumnAndDensity(t *testing.T) {
	sec := fixtureSection("A", 3, 4, 5, 50, 0)
	col := sec.Column(1)
	if len(col) != 3 || col[0].Cell != (grid.Coord{Row: 0, Col: 1}) || col[2].Cell != (grid.Coord{Row: 2, Col: 1}) {
		t.Fatalf("column = %+v", col)
	}
	if sec.Column(4) != nil || sec.Column(-1) != nil {
		t.Error("out-of-range column should be nil")
	}
	if d := sec.Rows[0].Density(); d != 1 {
		t.Errorf("row 0 density = %v", d)
	}
	if d := sec.Rows[1].Density(); d != 0.25 {
		t.Errorf("row 1 density = %v", d)
	}
	empty := fixtureSection("E", 2, 2, 0, 0, 0)
	if st := empty.Stats(); st.AvgHappiness != 0 || st.Occupied != 0 {
		t.Errorf("empty stats = %+v", st)
	}
}

func buildDefault(t *testing.T) (*grid.Grid, *Stadium) {
	t.Helper()
	cfg := config.Default()
	g := grid.New(grid.Config{Width: cfg.World.Width, Height: cfg.World.Height, CellSize: cfg.World.CellSize})
	s, err := Build(g, cfg.Stadium, cfg.Crowd, 42, entropy.NewSeeded(42), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g, s
}

func TestBuildLayout(t *testing.T) {
	g, s := buildDefault(t)

	if len(s.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(s.Sections))
	}
	if s.FanCount() != 15+16+16+15 {
		t.Errorf("fan count = %d, want 62", s.FanCount())
	}
	a, ok := s.Section("A")
	if !ok || a.Index != 0 || a.Columns() != 5 || len(a.Rows) != 4 {
		t.Fatalf("section A = %+v", a)
	}
	if len(a.Entries) != 8 {
		t.Errorf("expected 8 row entries, got %d", len(a.Entries))
	}

	checks := []struct {
		row, col int
		zone     grid.ZoneType
	}{
		{3, 1, grid.ZoneRowEntry},
		{3, 7, grid.ZoneRowEntry},
		{3, 2, grid.ZoneSeat},
		{6, 6, grid.ZoneSeat},
		{3, 0, grid.ZoneStair},
		{3, 8, grid.ZoneStair},
		{7, 4, grid.ZoneCorridor},
		{2, 4, grid.ZoneCorridor},
		{0, 4, grid.ZoneField},
		{12, 4, grid.ZoneConcourse},
		{9, 4, grid.ZoneDropZone},
		{9, 28, grid.ZoneDropZone},
	}
	for _, c := range checks {
		if got := g.Zone(c.row, c.col); got != c.zone {
			t.Errorf("zone(%d,%d) = %v, want %v", c.row, c.col, got, c.zone)
		}
	}

	if !g.EdgeBlocked(3, 3, grid.Bottom) || !g.EdgeBlocked(4, 3, grid.Top) {
		t.Error("seat rows should be walled apart")
	}
	if g.EdgeBlocked(6, 3, grid.Bottom) {
		t.Error("back row should open onto the walkway")
	}
	if g.EdgeBlocked(3, 3, grid.Top) {
		t.Error("front row should open onto the corridor")
	}
	if !g.EdgeBlocked(4, 3, grid.Bottom) || !g.EdgeBlocked(5, 3, grid.Top) {
		t.Error("inner rows should only open at their ends")
	}
	if g.EdgeBlocked(3, 1, grid.Bottom) {
		t.Error("row entries should connect vertically")
	}
	if g.HeightLevel(3, 3) != 1 || g.HeightLevel(6, 3) != 4 {
		t.Errorf("heights = %d, %d", g.HeightLevel(3, 3), g.HeightLevel(6, 3))
	}

	for _, sec := range s.Sections {
		for _, r := range sec.Rows {
			for _, seat := range r.Seats {
				if seat.Fan == nil {
					continue
				}
				ref := grid.OccupantRef{Kind: grid.OccupantFan, ID: uint64(seat.Fan.ID)}
				if !g.HasOccupant(seat.Cell.Row, seat.Cell.Col, ref) {
					t.Fatalf("fan %d not registered on its cell", seat.Fan.ID)
				}
				if got, ok := s.SeatOf(seat.Fan.ID); !ok || got != seat {
					t.Fatalf("SeatOf(%d) mismatch", seat.Fan.ID)
				}
				f := seat.Fan
				if f.Happiness < 0 || f.Happiness > 100 || f.Thirst < 0 || f.Thirst > 30 {
					t.Fatalf("fan mood out of range: %+v", f)
				}
			}
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	_, a := buildDefault(t)
	_, b := buildDefault(t)
	for i := range a.Sections {
		sa, sb := a.Sections[i].Stats(), b.Sections[i].Stats()
		if sa != sb {
			t.Fatalf("section %d differs: %+v vs %+v", i, sa, sb)
		}
	}
}

func TestBuildRejectsOversizedSection(t *testing.T) {
	g := grid.New(grid.Config{Width: 320, Height: 320, CellSize: 32})
	layout := config.StadiumConfig{Sections: []config.SectionLayout{{ID: "X", Row: 1, Col: 5, Rows: 2, Seats: 6, Occupancy: 1}}}
	if _, err := Build(g, layout, config.Default().Crowd, 1, entropy.NewSeeded(1), nil); err == nil {
		t.Fatal("expected an error for a section wider than the grid")
	}
}

func TestOccupancyQueries(t *testing.T) {
	_, s := buildDefault(t)
	a, _ := s.Section("A")

	var seat *Seat
	for _, r := range a.Rows {
		for _, st := range r.Seats {
			if st.Fan != nil && seat == nil {
				seat = st
			}
		}
	}
	occupied, density := s.SeatOccupancy(seat.Cell)
	if !occupied || density <= 0 || density > 1 {
		t.Errorf("SeatOccupancy = %v, %v", occupied, density)
	}
	if occ, _ := s.SeatOccupancy(grid.Coord{Row: 9, Col: 4}); occ {
		t.Error("drop zone reported as occupied seat")
	}

	seat.Fan.Happiness = 0
	if !s.Difficult(seat.Cell) {
		t.Error("unhappy fan should be difficult")
	}

	seat.Fan.Thirst = 90
	cands := s.ThirstyCandidates(80, 0)
	if len(cands) == 0 {
		t.Fatal("expected the thirsty fan as a candidate")
	}
	if !s.Reserve(seat.Cell, 7) || s.Reserve(seat.Cell, 8) {
		t.Error("reservation should be exclusive")
	}
	for _, c := range s.ThirstyCandidates(80, 0) {
		if c.Seat == seat {
			t.Error("reserved seat still offered")
		}
	}
	s.Release(seat.Cell, 8)
	if seat.ReservedBy != 7 {
		t.Error("release by another vendor must not clear the claim")
	}
	s.Release(seat.Cell, 7)
	if seat.ReservedBy != 0 {
		t.Error("release failed")
	}
	if got := s.ThirstyCandidates(80, 1); len(got) != 0 && got[0].Section != 1 {
		t.Error("section filter ignored")
	}
}

func TestSeatsReachableFromDropZone(t *testing.T) {
	g, s := buildDefault(t)
	p := pathing.NewPlanner(g, config.Default().Pathing, s, nil)
	prof := pathing.Profile{Abilities: pathing.Abilities{CanEnterRows: true}, QualityTier: 1}

	for _, sec := range s.Sections {
		for _, r := range sec.Rows {
			target := r.Seats[len(r.Seats)/2].Cell
			route, ok := p.Plan(s.DropZones[0], target, prof)
			if !ok {
				t.Fatalf("seat %+v in %s unreachable", target, sec.ID)
			}
			for _, seg := range route.Segments {
				if g.Zone(seg.Row, seg.Col) == grid.ZoneField {
					t.Fatalf("route crossed the field at %+v", seg)
				}
			}
		}
	}
}

func TestStadiumTick(t *testing.T) {
	_, s := buildDefault(t)
	before := s.Sections[0].Stats().AvgThirst
	s.Tick(1)
	after := s.Sections[0].Stats().AvgThirst
	if !approx(after-before, s.Config().ThirstRate) {
		t.Errorf("avg thirst rose by %v, want %v", after-before, s.Config().ThirstRate)
	}
}
