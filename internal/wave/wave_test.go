package wave

import (
	"errors"
	"testing"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/crowd"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
)

// fixture lays out n sections of rows×seats side by side, every seat
// holding a fan with the given mood.
func fixture(n, rows, seats int, happiness, attention, thirst float64) (*grid.Grid, *crowd.Stadium) {
	g := grid.New(grid.Config{Width: 64 * 32, Height: 20 * 32, CellSize: 32})
	var sections []*crowd.Section
	next := crowd.FanID(1)
	for i := 0; i < n; i++ {
		sec := &crowd.Section{ID: string(rune('A' + i))}
		col0 := 1 + i*(seats+3)
		for r := 0; r < rows; r++ {
			row := &crowd.Row{Index: r}
			for c := 0; c < seats; c++ {
				row.Seats = append(row.Seats, &crowd.Seat{
					Index: c,
					Cell:  grid.Coord{Row: 2 + r, Col: col0 + c},
					Fan:   &crowd.Fan{ID: next, Happiness: happiness, Attention: attention, Thirst: thirst},
				})
				next++
			}
			sec.Rows = append(sec.Rows, row)
		}
		sec.Bounds = grid.Rect{MinRow: 2, MinCol: col0, MaxRow: 2 + rows - 1, MaxCol: col0 + seats - 1}
		sections = append(sections, sec)
	}
	return g, crowd.NewStadium(g, config.Default().Crowd, sections)
}

func testConfig() config.WaveConfig {
	cfg := config.Default().Wave
	cfg.StartupGraceSec = 0
	cfg.CountdownSec = 0
	cfg.ColumnIntervalSec = 1
	cfg.TriggerIntervalSec = 1
	return cfg
}

func newEngine(cfg config.WaveConfig, g *grid.Grid, s *crowd.Stadium, rng entropy.Source) *Engine {
	return New(cfg, config.Default().Crowd, s, g, rng, nil)
}

func TestClassifyMonotonic(t *testing.T) {
	cfg := testConfig()
	for i := 0; i <= 100; i++ {
		rate := float64(i) / 100
		got := Classify(rate, cfg.SuccessThreshold, cfg.SputterThreshold)
		if rate >= cfg.SuccessThreshold && got != ClassSuccess {
			t.Errorf("rate %v classified %v, want success", rate, got)
		}
		if rate < cfg.SputterThreshold && got != ClassDeath {
			t.Errorf("rate %v classified %v, want death", rate, got)
		}
		if rate >= cfg.SputterThreshold && rate < cfg.SuccessThreshold && got != ClassSputter {
			t.Errorf("rate %v classified %v, want sputter", rate, got)
		}
	}
}

func TestSectionOutcome(t *testing.T) {
	tests := []struct {
		s, p, d int
		want    Classification
	}{
		{3, 1, 1, ClassSuccess},
		{1, 1, 1, ClassSuccess},
		{2, 2, 0, ClassSuccess},
		{1, 2, 0, ClassSputter},
		{1, 2, 2, ClassSputter},
		{0, 2, 2, ClassSputter},
		{0, 1, 2, ClassDeath},
		{1, 0, 3, ClassDeath},
	}
	for _, tt := range tests {
		if got := SectionOutcome(tt.s, tt.p, tt.d); got != tt.want {
			t.Errorf("SectionOutcome(%d,%d,%d) = %v, want %v", tt.s, tt.p, tt.d, got, tt.want)
		}
	}
}

// A column of 8 seats where 5 fans stand is a success; coming right after a
// sputter it earns the recovery bonus rather than the plain gain.
func TestRecoveryBonusScenario(t *testing.T) {
	g, s := fixture(1, 8, 2, 50, 50, 0)
	rolls := entropy.NewSequence(
		0, 0, 0, 0, 0.99, 0.99, 0.99, 0.99, // column 0: 4/8 = 0.5, sputter
		0, 0, 0, 0, 0, 0.99, 0.99, 0.99, // column 1: 5/8 = 0.625, success
	)
	cfg := testConfig()
	e := newEngine(cfg, g, s, rolls)

	var kinds []EventKind
	e.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	if _, err := e.StartWave("A", KindNormal); err != nil {
		t.Fatalf("StartWave: %v", err)
	}
	e.Update(0.01)
	if e.State() != StatePropagating {
		t.Fatalf("state = %v, want propagating", e.State())
	}
	if got := e.Strength(); got != cfg.InitialStrength-cfg.SputterLoss {
		t.Fatalf("strength after sputter = %v", got)
	}
	e.Update(1)

	hist := e.History()
	if len(hist) != 1 {
		t.Fatalf("expected 1 finalized wave, got %d", len(hist))
	}
	cols := hist[0].Results[0].Columns
	if cols[0].Class != ClassSputter || cols[0].Rate != 0.5 {
		t.Errorf("column 0 = %+v", cols[0])
	}
	if cols[1].Class != ClassSuccess || cols[1].Rate != 0.625 {
		t.Errorf("column 1 = %+v", cols[1])
	}
	want := cfg.InitialStrength - cfg.SputterLoss + cfg.RecoveryBonus
	if cols[1].Strength != want {
		t.Errorf("strength after recovery = %v, want %v", cols[1].Strength, want)
	}
	if hist[0].Results[0].Result != ClassSuccess || !hist[0].Success {
		t.Errorf("wave result = %+v", hist[0])
	}
	if e.Score() != cfg.SectionPoints || e.Multiplier() != 1+cfg.MultiplierStep {
		t.Errorf("score %d multiplier %v", e.Score(), e.Multiplier())
	}

	wantKinds := []EventKind{EventCreated, EventStart, EventColumn, EventColumn, EventSectionResult, EventComplete}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("events = %v", kinds)
	}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], wantKinds[i])
		}
	}
}

func TestPeerPressureRaisesStragglers(t *testing.T) {
	g, s := fixture(1, 10, 2, 50, 50, 0)
	rolls := entropy.NewSequence(0, 0, 0, 0, 0, 0, 0, 0.99, 0.99, 0.99)
	e := newEngine(testConfig(), g, s, rolls)
	e.StartWave("A", KindNormal)
	e.Update(0.01)

	forced, standing := 0, 0
	for _, seat := range s.Sections[0].Column(0) {
		if seat.Fan.Participating {
			standing++
		}
		if seat.Fan.Forced {
			forced++
			if seat.Fan.Intensity != testConfig().PeerPressureIntensity {
				t.Errorf("forced fan intensity = %v", seat.Fan.Intensity)
			}
		}
	}
	if standing != 10 || forced != 3 {
		t.Errorf("standing %d forced %d, want 10 and 3", standing, forced)
	}
}

func TestStrengthAlwaysClamped(t *testing.T) {
	g, s := fixture(4, 3, 4, 40, 40, 30)
	cfg := testConfig()
	cfg.ColumnIntervalSec = 0.25
	cfg.CooldownSuccessSec = 1
	cfg.CooldownFailureSec = 1
	cfg.SectionCooldownSec = 0
	e := newEngine(cfg, g, s, entropy.NewSeeded(11))

	overrides := []float64{150, -40, 55, 1e9, -1e9}
	classes := []Classification{ClassDeath, ClassSuccess, ClassSputter}
	for i := 0; i < 4000; i++ {
		if i%37 == 0 {
			e.OverrideStrength(overrides[(i/37)%len(overrides)])
		}
		if i%53 == 0 {
			e.ForceNextSection(classes[(i/53)%len(classes)])
		}
		e.Update(0.25)
		if st := e.Strength(); st < 0 || st > 100 {
			t.Fatalf("step %d: strength %v out of range", i, st)
		}
	}
	if len(e.History()) == 0 {
		t.Fatal("expected some waves to complete")
	}
	for _, w := range e.History() {
		for _, r := range w.Results {
			for _, c := range r.Columns {
				if c.Strength < 0 || c.Strength > 100 {
					t.Fatalf("recorded strength %v out of range", c.Strength)
				}
			}
		}
	}
}

func TestForceNextSectionIsOneShot(t *testing.T) {
	g, s := fixture(2, 2, 2, 50, 50, 0)
	cfg := testConfig()
	e := newEngine(cfg, g, s, entropy.NewSequence(0))

	if err := e.ForceNextSection(ClassNone); !errors.Is(err, ErrBadClass) {
		t.Errorf("ForceNextSection(none) error = %v", err)
	}
	if err := e.ForceNextSection(ClassDeath); err != nil {
		t.Fatal(err)
	}
	e.StartWave("A", KindNormal)
	e.Update(0.01)
	for i := 0; i < 3; i++ {
		e.Update(1)
	}

	w := e.History()[0]
	if w.Path[0] != "A" || w.Path[1] != "B" || w.Direction != DirRight {
		t.Fatalf("path = %v dir %v", w.Path, w.Direction)
	}
	a, b := w.Results[0], w.Results[1]
	if a.Result != ClassDeath || !a.Columns[0].Forced || !a.Columns[1].Forced {
		t.Errorf("section A = %+v", a)
	}
	if b.Result != ClassSuccess || b.Columns[0].Forced {
		t.Errorf("section B = %+v", b)
	}
	// 70 -25 -25 +5 +5
	if w.Strength != 30 {
		t.Errorf("final strength = %v, want 30", w.Strength)
	}
	if w.Success {
		t.Error("one success out of two sections is not a successful wave")
	}
	if e.CooldownRemaining() > cfg.CooldownFailureSec {
		t.Errorf("failure cooldown = %v", e.CooldownRemaining())
	}

	e.Update(cfg.CooldownFailureSec)
	if e.State() != StateIdle {
		t.Fatalf("state = %v, want idle", e.State())
	}
	e.StartWave("A", KindNormal)
	e.Update(0.01)
	if act, ok := e.Active(); !ok || len(act.Results) != 0 {
		t.Fatalf("active = %+v, %v", act, ok)
	}
	for i := 0; i < 3; i++ {
		e.Update(1)
	}
	for _, r := range e.History()[1].Results {
		for _, c := range r.Columns {
			if c.Forced {
				t.Fatal("forced classification leaked into the next wave")
			}
		}
	}
}

func TestOverrideStrengthAndDeadWave(t *testing.T) {
	g, s := fixture(1, 2, 4, 50, 50, 0)
	e := newEngine(testConfig(), g, s, entropy.NewSequence(0))

	e.StartWave("A", KindNormal)
	e.OverrideStrength(500)
	e.Update(0.01)
	if e.Strength() != 100 {
		t.Fatalf("override not clamped: %v", e.Strength())
	}

	e.OverrideStrength(-10)
	e.Update(1)
	if e.Strength() != 0 || !e.Dead() {
		t.Fatalf("strength %v dead %v", e.Strength(), e.Dead())
	}

	e.Update(1)
	e.Update(1)
	cols := e.History()[0].Results[0].Columns
	if cols[1].Class != ClassSuccess {
		t.Errorf("column 1 class = %v", cols[1].Class)
	}
	for _, c := range cols[2:] {
		if c.Class != ClassDeath {
			t.Errorf("dead wave column %d classified %v", c.Column, c.Class)
		}
	}
}

func TestCooldowns(t *testing.T) {
	g, s := fixture(1, 2, 2, 80, 80, 0)
	cfg := testConfig()
	e := newEngine(cfg, g, s, entropy.NewSequence(0))

	e.StartWave("A", KindNormal)
	if _, err := e.StartWave("A", KindNormal); !errors.Is(err, ErrWaveActive) {
		t.Errorf("second start error = %v, want ErrWaveActive", err)
	}
	e.Update(0.01)
	e.Update(1)
	if e.State() != StateFinalized {
		t.Fatalf("state = %v", e.State())
	}
	if _, err := e.StartWave("A", KindNormal); !errors.Is(err, ErrCoolingDown) {
		t.Errorf("start during cooldown error = %v, want ErrCoolingDown", err)
	}
	if got := e.SectionCooldown(0); got != cfg.SectionCooldownSec {
		t.Errorf("section cooldown = %v", got)
	}

	e.Update(cfg.CooldownSuccessSec)
	if e.State() != StateIdle {
		t.Fatalf("state after cooldown = %v", e.State())
	}

	// Section A is still cooling down: manual starts are refused and
	// autonomous triggers skip it.
	if _, err := e.StartWave("A", KindNormal); !errors.Is(err, ErrCoolingDown) {
		t.Errorf("start during section cooldown error = %v, want ErrCoolingDown", err)
	}
	if e.State() != StateIdle {
		t.Fatalf("refused start changed state to %v", e.State())
	}
	e.Update(1)
	if e.State() != StateIdle {
		t.Fatalf("section cooldown ignored, state = %v", e.State())
	}
	e.Update(cfg.SectionCooldownSec)
	if e.State() != StateCountdown && e.State() != StatePropagating {
		t.Fatalf("expected a triggered wave, state = %v", e.State())
	}
}

func TestStartupGrace(t *testing.T) {
	g, s := fixture(3, 2, 2, 80, 80, 0)
	cfg := testConfig()
	cfg.StartupGraceSec = 5
	cfg.CountdownSec = 2
	e := newEngine(cfg, g, s, entropy.NewSequence(0))

	for i := 0; i < 4; i++ {
		e.Update(1)
		if e.State() != StateIdle {
			t.Fatalf("wave triggered during grace at t=%v", e.Elapsed())
		}
	}
	e.Update(1)
	if e.State() != StateCountdown {
		t.Fatalf("state after grace = %v, want countdown", e.State())
	}
	w, _ := e.Active()
	if w.Origin != "A" {
		t.Errorf("origin = %s, want A", w.Origin)
	}
}

func TestStartWaveErrors(t *testing.T) {
	g, s := fixture(1, 1, 1, 50, 50, 0)
	e := newEngine(testConfig(), g, s, entropy.NewSequence(0))
	if _, err := e.StartWave("Z", KindNormal); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("error = %v, want ErrUnknownSection", err)
	}
}

func TestLeftwardWaveAndFront(t *testing.T) {
	g, s := fixture(3, 2, 3, 80, 80, 0)
	e := newEngine(testConfig(), g, s, entropy.NewSequence(0))

	if _, ok := e.FrontBounds(); ok {
		t.Error("no front while idle")
	}
	w, err := e.StartWave("C", KindSuper)
	if err != nil {
		t.Fatal(err)
	}
	if w.Direction != DirLeft || len(w.Path) != 3 || w.Path[2] != "A" {
		t.Fatalf("wave = %+v", w)
	}
	if e.Strength() != testConfig().InitialStrength+testConfig().SuperStrengthBonus {
		t.Errorf("super strength = %v", e.Strength())
	}

	e.Update(0.01)
	b, ok := e.FrontBounds()
	if !ok {
		t.Fatal("expected a front while propagating")
	}
	// Section C spans cols 13..15; a leftward wave evaluated col 15 first,
	// so the next column is 14.
	minX, minY, _, _ := g.CellBounds(2, 14)
	if b.MinX != minX || b.MinY != minY || b.MaxY != minY+64 {
		t.Errorf("front = %+v", b)
	}
	if !b.Expand(8).Contains(minX-4, minY+10) {
		t.Error("expanded front should contain a nearby point")
	}

	for i := 0; i < 10; i++ {
		e.Update(1)
	}
	h := e.History()[0]
	if h.Results[0].Columns[0].Column != 2 {
		t.Errorf("first column = %d, want 2", h.Results[0].Columns[0].Column)
	}
	if h.Results[0].Points != 2*testConfig().SectionPoints {
		t.Errorf("super wave points = %d", h.Results[0].Points)
	}
}

func TestHistoryLimit(t *testing.T) {
	g, s := fixture(1, 1, 1, 80, 80, 0)
	cfg := testConfig()
	cfg.HistoryLimit = 3
	cfg.CooldownSuccessSec = 0
	cfg.CooldownFailureSec = 0
	cfg.SectionCooldownSec = 0
	e := newEngine(cfg, g, s, entropy.NewSequence(0))

	for i := 0; i < 200 && len(e.History()) < 3; i++ {
		e.Update(1)
	}
	for i := 0; i < 40; i++ {
		e.Update(1)
	}
	if n := len(e.History()); n != 3 {
		t.Errorf("history length = %d, want 3", n)
	}
}

func TestTriggerChanceBands(t *testing.T) {
	g, s := fixture(1, 1, 1, 50, 50, 0)
	e := newEngine(testConfig(), g, s, entropy.NewSequence(0))

	tests := []struct {
		happiness float64
		want      float64
	}{
		{0, 0.4},
		{19.9, 0.4},
		{20, 0.6},
		{45, 0.6},
		{60, 0.6},
		{60.1, 0.9},
		{100, 0.9},
	}
	for _, tt := range tests {
		if got := e.triggerChance(tt.happiness); got != tt.want {
			t.Errorf("triggerChance(%v) = %v, want %v", tt.happiness, got, tt.want)
		}
	}
}

func TestWeightedOrderFavorsEdges(t *testing.T) {
	tests := []struct {
		name       string
		edgeWeight float64
		wantEdges  int
	}{
		{"default edge weight", 3, 75},
		{"flat weights", 1, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, s := fixture(4, 1, 1, 50, 50, 0)
			cfg := testConfig()
			cfg.EdgeSectionWeight = tt.edgeWeight

			edges := 0
			for i := 0; i < 100; i++ {
				e := newEngine(cfg, g, s, entropy.NewSequence((float64(i)+0.5)/100))
				order := e.weightedOrder()
				if len(order) != 4 {
					t.Fatalf("order = %v", order)
				}
				seen := make(map[int]bool)
				for _, idx := range order {
					seen[idx] = true
				}
				if len(seen) != 4 {
					t.Fatalf("order %v repeats a section", order)
				}
				if order[0] == 0 || order[0] == 3 {
					edges++
				}
			}
			if edges != tt.wantEdges {
				t.Errorf("edge sections drawn first %d/100 times, want %d", edges, tt.wantEdges)
			}
		})
	}
}

func TestAutonomousTriggerStartsAtEdge(t *testing.T) {
	g, s := fixture(3, 1, 2, 80, 80, 0)
	// Three draws for the order (C, B, A), then the trigger roll for C.
	e := newEngine(testConfig(), g, s, entropy.NewSequence(0.9, 0.9, 0.9, 0.5))

	e.Update(1)
	w, ok := e.Active()
	if !ok {
		t.Fatalf("no wave triggered, state = %v", e.State())
	}
	if w.Origin != "C" || w.Direction != DirLeft || w.Kind != KindNormal {
		t.Errorf("wave = %+v, want a normal leftward wave from C", w)
	}
}
