// Simulation ties together all stadium systems and runs them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/stadium-wave/internal/agents"
	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/content"
	"github.com/talgya/stadium-wave/internal/crowd"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/pathing"
	"github.com/talgya/stadium-wave/internal/wave"
)

var (
	ErrUnknownVendor = errors.New("unknown vendor")
	ErrOutOfBounds   = errors.New("cell out of bounds")
	ErrBadEdit       = errors.New("invalid cell edit")
)

// Event categories.
const (
	CategoryWave    = "wave"
	CategoryVendor  = "vendor"
	CategoryControl = "control"
	CategoryFault   = "fault"
)

// Event is a notable occurrence in the session.
type Event struct {
	Tick        uint64         `json:"tick"`
	Time        float64        `json:"time"` // Elapsed simulated seconds
	Category    string         `json:"category"`
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`

	// Wave is set on wave completion events.
	Wave *wave.Wave `json:"wave,omitempty"`
}

// Listener receives session events after the transition they describe.
// Listeners run on the tick goroutine with the simulation locked and must
// not call back into the Simulation.
type Listener func(Event)

// SimStats tracks aggregate session statistics.
type SimStats struct {
	Fans           int     `json:"fans"`
	AvgHappiness   float64 `json:"avg_happiness"`
	AvgThirst      float64 `json:"avg_thirst"`
	AvgAttention   float64 `json:"avg_attention"`
	Served         int     `json:"served"`
	Splats         int     `json:"splats"`
	Waves          int     `json:"waves"`
	WavesSucceeded int     `json:"waves_succeeded"`
	Faults         int     `json:"faults"`
}

// Options carries optional collaborators. Zero values get defaults.
type Options struct {
	Logger  *slog.Logger
	Rng     entropy.Source
	Content content.Provider
}

// Simulation holds the complete session state and wires systems together.
// All exported methods are safe to call from other goroutines; the tick
// itself runs under the same lock, so interventions land between ticks.
type Simulation struct {
	mu sync.Mutex

	cfg     *config.Config
	logger  *slog.Logger
	rng     entropy.Source
	content content.Provider

	SessionID string
	Grid      *grid.Grid
	Stadium   *crowd.Stadium
	Planner   *pathing.Planner
	Waves     *wave.Engine
	Spawner   *agents.Spawner
	Vendors   []*agents.Vendor

	vendorIndex map[agents.VendorID]*agents.Vendor

	tick         uint64
	elapsed      float64
	bankedScore  int
	balanceTimer float64
	events       []Event // Bounded by engine.max_events
	listeners    []Listener
	stats        SimStats
}

// NewSimulation builds the grid, stadium, planner, wave engine and vendor
// roster from configuration.
func NewSimulation(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := opts.Rng
	if rng == nil {
		rng = entropy.NewSeeded(cfg.Seed)
	}
	provider := opts.Content
	if provider == nil {
		// Dialogue picks use their own stream.
		provider = content.NewStatic(cfg.Vendors, entropy.NewSeeded(cfg.Seed+700))
	}

	w := cfg.World
	g := grid.New(grid.Config{Width: w.Width, Height: w.Height, CellSize: w.CellSize, OriginX: w.OriginX, OriginY: w.OriginY})
	st, err := crowd.Build(g, cfg.Stadium, cfg.Crowd, cfg.Seed, rng, logger)
	if err != nil {
		return nil, fmt.Errorf("build stadium: %w", err)
	}

	s := &Simulation{
		cfg:         cfg,
		logger:      logger,
		rng:         rng,
		content:     provider,
		SessionID:   uuid.NewString(),
		Grid:        g,
		Stadium:     st,
		Planner:     pathing.NewPlanner(g, cfg.Pathing, st, logger),
		Spawner:     agents.NewSpawner(cfg.Seed),
		vendorIndex: make(map[agents.VendorID]*agents.Vendor),
	}
	s.Waves = wave.New(cfg.Wave, cfg.Crowd, st, g, rng, logger)
	s.Waves.Subscribe(s.onWaveEvent)

	deps := s.vendorDeps()
	s.Vendors = s.Spawner.SpawnRoster(provider.Profiles(), st.DropZones, deps)
	for _, v := range s.Vendors {
		s.vendorIndex[v.ID()] = v
	}
	g.Subscribe(s.onGridChange)

	s.updateStats()
	logger.Info("simulation ready",
		"session", s.SessionID,
		"grid", g.String(),
		"sections", len(st.Sections),
		"fans", st.FanCount(),
		"vendors", len(s.Vendors),
	)
	return s, nil
}

func (s *Simulation) vendorDeps() agents.Deps {
	return agents.Deps{
		Grid:    s.Grid,
		Stadium: s.Stadium,
		Planner: s.Planner,
		Rng:     s.rng,
		Config:  s.cfg.Vendor,
		Logger:  s.logger,
		Emit:    s.onVendorEvent,
	}
}

// Config returns the configuration the simulation was built from.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Subscribe adds a listener for session events.
func (s *Simulation) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Tick runs one orchestrator pass. The order is fixed: crowd, wave
// engine, vendors, then cross-agent checks that must see this tick's
// positions.
func (s *Simulation) Tick(tick uint64, dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick = tick
	s.elapsed += dt

	s.Stadium.Tick(dt)
	s.Waves.Update(dt)
	for _, v := range s.Vendors {
		s.updateVendor(v, dt)
	}
	s.checkCollisions()
	s.balance(dt)
}

func (s *Simulation) updateVendor(v *agents.Vendor, dt float64) {
	s.guard(v, "update", func() { v.Update(dt) })
}

// guard runs one vendor operation in isolation: a panic resets that vendor
// and the rest of the roster carries on. It reports whether fn returned.
func (s *Simulation) guard(v *agents.Vendor, op string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.stats.Faults++
			s.logger.Error("vendor operation failed", "vendor", v.Name(), "op", op, "state", v.State(), "panic", r)
			v.Reset()
			s.record(Event{
				Category:    CategoryFault,
				Kind:        "vendorReset",
				Description: fmt.Sprintf("%s was reset after a fault", v.Name()),
				Meta:        map[string]any{"vendor": v.ID(), "op": op, "panic": fmt.Sprint(r)},
			})
		}
	}()
	fn()
	return true
}

// checkCollisions rolls a splat for every vendor inside the wave front.
func (s *Simulation) checkCollisions() {
	front, ok := s.Waves.FrontBounds()
	if !ok {
		return
	}
	w, ok := s.Waves.Active()
	if !ok {
		return
	}
	front = front.Expand(s.cfg.Vendor.CollisionMargin)
	for _, v := range s.Vendors {
		if collides(v, front) {
			s.guard(v, "collision", func() { v.HandleWaveCollision(w.ID) })
		}
	}
}

func collides(h agents.Handle, b wave.Bounds) bool {
	p := h.Position()
	return b.Contains(p.X, p.Y)
}

// balance sends vendors waiting for work to the section with the most
// thirsty fans per vendor already working it.
func (s *Simulation) balance(dt float64) {
	if !s.cfg.Engine.AutoAssign {
		return
	}
	s.balanceTimer -= dt
	if s.balanceTimer > 0 {
		return
	}
	s.balanceTimer = s.cfg.Engine.BalanceIntervalSec

	n := len(s.Stadium.Sections)
	if n == 0 {
		return
	}
	working := make([]int, n)
	for _, v := range s.Vendors {
		if sec := v.Section(); sec >= 0 && sec < n && v.State() != agents.StateAwaitingAssignment {
			working[sec]++
		}
	}
	demand := make([]int, n)
	for _, c := range s.Stadium.ThirstyCandidates(s.cfg.Vendor.MinServeThirst, -1) {
		demand[c.Section]++
	}

	for _, v := range s.Vendors {
		if v.State() != agents.StateAwaitingAssignment || v.AssignCooldown() > 0 {
			continue
		}
		best, bestScore := 0, -1.0
		for i := 0; i < n; i++ {
			score := float64(demand[i]) / float64(1+working[i])
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		var err error
		if !s.guard(v, "assign", func() { err = v.AssignToSection(best, nil) }) {
			continue
		}
		if err != nil {
			s.logger.Debug("auto-assign failed", "vendor", v.Name(), "section", best, "error", err)
			continue
		}
		working[best]++
	}
}

func (s *Simulation) onGridChange(ch grid.Change) {
	for _, v := range s.Vendors {
		s.guard(v, "gridChange", func() { v.OnGridChange(ch) })
	}
}

func (s *Simulation) onWaveEvent(ev wave.Event) {
	e := Event{
		Category: CategoryWave,
		Kind:     string(ev.Kind),
		Meta: map[string]any{
			"wave":     ev.WaveID,
			"strength": ev.Strength,
		},
	}
	switch ev.Kind {
	case wave.EventCreated:
		e.Description = fmt.Sprintf("A wave is building in section %s", ev.Section)
		e.Meta["section"] = ev.Section
	case wave.EventStart:
		e.Description = fmt.Sprintf("The wave takes off from section %s", ev.Section)
		e.Meta["section"] = ev.Section
	case wave.EventColumn:
		e.Description = fmt.Sprintf("Section %s column %d: %s", ev.Section, ev.Column, ev.Class)
		e.Meta["section"] = ev.Section
		e.Meta["column"] = ev.Column
		e.Meta["class"] = ev.Class.String()
	case wave.EventSectionResult:
		e.Description = fmt.Sprintf("Section %s: %s (+%d)", ev.Section, ev.Class, ev.Points)
		e.Meta["section"] = ev.Section
		e.Meta["class"] = ev.Class.String()
		e.Meta["points"] = ev.Points
	case wave.EventComplete:
		outcome := "fizzles out"
		if ev.Success {
			outcome = "rolls all the way around"
		}
		e.Description = fmt.Sprintf("The wave %s (+%d)", outcome, ev.Points)
		e.Meta["success"] = ev.Success
		e.Meta["points"] = ev.Points
		hist := s.Waves.History()
		if len(hist) > 0 {
			last := hist[len(hist)-1]
			e.Wave = &last
		}
		s.stats.Waves++
		if ev.Success {
			s.stats.WavesSucceeded++
		}
	}
	s.record(e)
}

func (s *Simulation) onVendorEvent(ev agents.Event) {
	e := Event{
		Category: CategoryVendor,
		Kind:     string(ev.Kind),
		Meta: map[string]any{
			"vendor":  ev.Vendor,
			"name":    ev.Name,
			"section": ev.Section,
		},
	}
	var moment string
	switch ev.Kind {
	case agents.EventSpawned:
		e.Description = fmt.Sprintf("%s arrives with a tray of %s", ev.Name, ev.Type)
	case agents.EventAssigned:
		moment = content.MomentAssigned
		e.Description = fmt.Sprintf("%s heads for %s", ev.Name, s.sectionName(ev.Section))
	case agents.EventArrived:
		e.Description = fmt.Sprintf("%s reaches the stands", ev.Name)
	case agents.EventServiceComplete:
		moment = content.MomentServe
		s.stats.Served++
		e.Description = fmt.Sprintf("%s serves a fan in %s (+%d)", ev.Name, s.sectionName(ev.Section), ev.Points)
		e.Meta["points"] = ev.Points
	case agents.EventPointsLost:
		e.Description = fmt.Sprintf("%s drops %d points worth of stock", ev.Name, ev.Points)
		e.Meta["points"] = ev.Points
	case agents.EventSplatted:
		moment = content.MomentSplat
		s.stats.Splats++
		e.Description = fmt.Sprintf("%s gets flattened by the wave", ev.Name)
	case agents.EventDropoff:
		moment = content.MomentDropoff
		s.bankedScore += ev.Points
		e.Description = fmt.Sprintf("%s banks %d points", ev.Name, ev.Points)
		e.Meta["points"] = ev.Points
	}
	if moment != "" {
		if line := s.content.Line(ev.Type, moment); line != "" {
			e.Meta["line"] = line
		}
	}
	s.record(e)
}

func (s *Simulation) sectionName(idx int) string {
	if sec, ok := s.Stadium.SectionAt(idx); ok {
		return "section " + sec.ID
	}
	return "the concourse"
}

// record stamps, stores and fans out an event. Callers hold the lock.
func (s *Simulation) record(e Event) {
	e.Tick = s.tick
	e.Time = s.elapsed
	s.events = append(s.events, e)
	if limit := s.cfg.Engine.MaxEvents; limit > 0 && len(s.events) > limit {
		s.events = s.events[len(s.events)-limit:]
	}
	for _, l := range s.listeners {
		l(e)
	}
}

func (s *Simulation) updateStats() {
	var fans int
	var happiness, thirst, attention float64
	for _, st := range s.Stadium.Stats() {
		fans += st.Occupied
		happiness += st.AvgHappiness * float64(st.Occupied)
		thirst += st.AvgThirst * float64(st.Occupied)
		attention += st.AvgAttention * float64(st.Occupied)
	}
	s.stats.Fans = fans
	if fans > 0 {
		s.stats.AvgHappiness = happiness / float64(fans)
		s.stats.AvgThirst = thirst / float64(fans)
		s.stats.AvgAttention = attention / float64(fans)
	}
}

// Score is the session total: wave points plus banked vendor points.
func (s *Simulation) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score()
}

func (s *Simulation) score() int {
	return s.Waves.Score() + s.bankedScore
}

// Stats refreshes and returns the aggregate statistics.
func (s *Simulation) Stats() SimStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()
	return s.stats
}

// Report logs the periodic session summary.
func (s *Simulation) Report(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()

	kinds := make(map[string]int)
	for _, e := range s.events {
		kinds[e.Category]++
	}
	s.logger.Info("session report",
		"tick", tick,
		"clock", Clock(s.elapsed),
		"score", humanize.Comma(int64(s.score())),
		"banked", humanize.Comma(int64(s.bankedScore)),
		"multiplier", fmt.Sprintf("%.1f", s.Waves.Multiplier()),
		"wave_state", s.Waves.State(),
		"waves", s.stats.Waves,
		"waves_succeeded", s.stats.WavesSucceeded,
		"fans", s.stats.Fans,
		"avg_happiness", fmt.Sprintf("%.1f", s.stats.AvgHappiness),
		"avg_thirst", fmt.Sprintf("%.1f", s.stats.AvgThirst),
		"served", s.stats.Served,
		"splats", s.stats.Splats,
		"faults", s.stats.Faults,
		"events_wave", kinds[CategoryWave],
		"events_vendor", kinds[CategoryVendor],
	)
}

// Events returns up to limit of the most recent events, oldest first.
func (s *Simulation) Events(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	return append([]Event(nil), s.events[start:]...)
}

// Elapsed returns simulated seconds since the session started.
func (s *Simulation) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}
