package wave

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/crowd"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
)

// Engine owns the single active wave and everything that persists between
// waves: score, multiplier, cooldowns and history.
type Engine struct {
	cfg      config.WaveConfig
	crowdCfg config.CrowdConfig
	stadium  *crowd.Stadium
	grid     *grid.Grid
	rng      entropy.Source
	logger   *slog.Logger

	state        State
	elapsed      float64
	stateTimer   float64 // Countdown or cooldown remaining
	triggerTimer float64
	columnTimer  float64
	cooldowns    []float64 // Per section, indexed like stadium.Sections

	active     *Wave
	history    []Wave
	score      int
	multiplier float64

	// Per-wave momentum.
	strength            float64
	consecutiveFailures int
	prevClass           Classification
	dead                bool

	// Propagation cursor.
	pathPos int
	column  int
	current *SectionResult

	// One-shot debug overrides.
	pendingForce     *Classification
	sectionForce     *Classification
	strengthOverride *float64

	listeners []Listener
}

// New creates an idle engine. The startup grace period counts from here.
func New(cfg config.WaveConfig, crowdCfg config.CrowdConfig, stadium *crowd.Stadium, g *grid.Grid, rng entropy.Source, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		crowdCfg:   crowdCfg,
		stadium:    stadium,
		grid:       g,
		rng:        rng,
		logger:     logger,
		cooldowns:  make([]float64, len(stadium.Sections)),
		multiplier: 1,
	}
}

// Subscribe adds a listener.
func (e *Engine) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

func (e *Engine) emit(ev Event) {
	ev.Time = e.elapsed
	for _, l := range e.listeners {
		l(ev)
	}
}

func (e *Engine) State() State             { return e.state }
func (e *Engine) Elapsed() float64         { return e.elapsed }
func (e *Engine) Score() int               { return e.score }
func (e *Engine) Multiplier() float64      { return e.multiplier }
func (e *Engine) Strength() float64        { return e.strength }
func (e *Engine) ConsecutiveFailures() int { return e.consecutiveFailures }
func (e *Engine) Dead() bool               { return e.dead }

// CooldownRemaining is the time left in the post-wave window.
func (e *Engine) CooldownRemaining() float64 {
	if e.state != StateFinalized {
		return 0
	}
	return e.stateTimer
}

// SectionCooldown returns the time before a section may originate a wave.
func (e *Engine) SectionCooldown(idx int) float64 {
	if idx < 0 || idx >= len(e.cooldowns) {
		return 0
	}
	return e.cooldowns[idx]
}

// Active returns a copy of the wave in progress.
func (e *Engine) Active() (Wave, bool) {
	if e.active == nil {
		return Wave{}, false
	}
	return e.active.clone(), true
}

// History returns the finalized waves, oldest first.
func (e *Engine) History() []Wave {
	out := make([]Wave, len(e.history))
	copy(out, e.history)
	return out
}

// Update advances the engine by dt seconds.
func (e *Engine) Update(dt float64) {
	if dt < 0 {
		dt = 0
	}
	e.elapsed += dt
	for i := range e.cooldowns {
		if e.cooldowns[i] > 0 {
			e.cooldowns[i] -= dt
			if e.cooldowns[i] < 0 {
				e.cooldowns[i] = 0
			}
		}
	}

	switch e.state {
	case StateIdle:
		if e.elapsed < e.cfg.StartupGraceSec {
			return
		}
		e.triggerTimer -= dt
		if e.triggerTimer > 0 {
			return
		}
		e.triggerTimer = e.cfg.TriggerIntervalSec
		e.evaluateTriggers()

	case StateCountdown:
		e.stateTimer -= dt
		if e.stateTimer > 0 {
			return
		}
		e.beginPropagation()
		e.propagate(0)

	case StatePropagating:
		e.propagate(dt)

	case StateFinalized:
		e.stateTimer -= dt
		if e.stateTimer <= 0 {
			e.state = StateIdle
			e.stateTimer = 0
			e.triggerTimer = 0
		}
	}
}

// evaluateTriggers rolls each eligible section in a weighted random order
// that favors the ends of the stand. The first success starts a wave.
func (e *Engine) evaluateTriggers() {
	for _, idx := range e.weightedOrder() {
		if e.cooldowns[idx] > 0 {
			continue
		}
		sec := e.stadium.Sections[idx]
		st := sec.Stats()
		if st.Occupied == 0 {
			continue
		}
		if e.rng.Float64() < e.triggerChance(st.AvgHappiness) {
			if _, err := e.start(idx, KindNormal); err != nil {
				e.logger.Warn("wave trigger failed", "section", sec.ID, "error", err)
			}
			return
		}
	}
}

func (e *Engine) triggerChance(happiness float64) float64 {
	switch {
	case happiness < e.cfg.HappinessLowBand:
		return e.cfg.TriggerChanceLow
	case happiness <= e.cfg.HappinessHighBand:
		return e.cfg.TriggerChanceMed
	default:
		return e.cfg.TriggerChanceHigh
	}
}

// weightedOrder draws section indexes without replacement. The first and
// last sections carry the edge weight, the rest weigh 1.
func (e *Engine) weightedOrder() []int {
	n := len(e.stadium.Sections)
	pool := make([]int, n)
	weights := make([]float64, n)
	for i := range pool {
		pool[i] = i
		weights[i] = 1
		if i == 0 || i == n-1 {
			weights[i] = e.cfg.EdgeSectionWeight
		}
	}

	order := make([]int, 0, n)
	for len(pool) > 0 {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		r := e.rng.Float64() * total
		pick := len(pool) - 1
		for i, w := range weights {
			if r < w {
				pick = i
				break
			}
			r -= w
		}
		order = append(order, pool[pick])
		pool = append(pool[:pick], pool[pick+1:]...)
		weights = append(weights[:pick], weights[pick+1:]...)
	}
	return order
}

// StartWave begins a wave from the named section, skipping the startup
// grace period and trigger rolls. It still refuses while a wave is active,
// the post-wave cooldown is running or the section is cooling down.
func (e *Engine) StartWave(sectionID string, kind Kind) (Wave, error) {
	sec, ok := e.stadium.Section(sectionID)
	if !ok {
		return Wave{}, fmt.Errorf("%w: %s", ErrUnknownSection, sectionID)
	}
	if e.state == StateIdle && e.cooldowns[sec.Index] > 0 {
		return Wave{}, fmt.Errorf("%w: section %s has %.1fs left", ErrCoolingDown, sectionID, e.cooldowns[sec.Index])
	}
	if kind == "" {
		kind = KindNormal
	}
	w, err := e.start(sec.Index, kind)
	if err != nil {
		return Wave{}, err
	}
	return w.clone(), nil
}

func (e *Engine) start(originIdx int, kind Kind) (*Wave, error) {
	switch e.state {
	case StateCountdown, StatePropagating:
		return nil, ErrWaveActive
	case StateFinalized:
		return nil, ErrCoolingDown
	}

	n := len(e.stadium.Sections)
	dir := DirRight
	if originIdx > n-1-originIdx {
		dir = DirLeft
	}
	var path []string
	for i := originIdx; i >= 0 && i < n; i += int(dir) {
		path = append(path, e.stadium.Sections[i].ID)
	}

	strength := e.cfg.InitialStrength
	if kind == KindSuper {
		strength += e.cfg.SuperStrengthBonus
	}
	w := &Wave{
		ID:        uuid.NewString(),
		Kind:      kind,
		Origin:    e.stadium.Sections[originIdx].ID,
		Path:      path,
		Direction: dir,
		StartTime: e.elapsed,
	}
	e.active = w
	e.strength = clampStrength(strength)
	w.Strength = e.strength
	e.consecutiveFailures = 0
	e.prevClass = ClassNone
	e.dead = false
	e.state = StateCountdown
	e.stateTimer = e.cfg.CountdownSec

	e.logger.Info("wave created",
		"wave", w.ID,
		"kind", w.Kind,
		"origin", w.Origin,
		"direction", w.Direction,
		"sections", len(path),
	)
	e.emit(Event{Kind: EventCreated, WaveID: w.ID, Section: w.Origin, Strength: e.strength})
	return w, nil
}

func (e *Engine) beginPropagation() {
	e.state = StatePropagating
	e.pathPos = 0
	e.columnTimer = 0
	e.beginSection()
	e.emit(Event{Kind: EventStart, WaveID: e.active.ID, Section: e.active.Origin, Strength: e.strength})
}

func (e *Engine) beginSection() {
	e.column = 0
	e.current = &SectionResult{SectionID: e.active.Path[e.pathPos]}
	e.sectionForce = e.pendingForce
	e.pendingForce = nil
}

func (e *Engine) propagate(dt float64) {
	e.columnTimer -= dt
	for e.state == StatePropagating && e.columnTimer <= 0 {
		e.stepColumn()
		if e.cfg.ColumnIntervalSec > 0 {
			e.columnTimer += e.cfg.ColumnIntervalSec
		}
	}
}

// ForceNextSection makes every column of the next section to be evaluated
// take the given class. The override is consumed by that section.
func (e *Engine) ForceNextSection(class Classification) error {
	if class != ClassSuccess && class != ClassSputter && class != ClassDeath {
		return fmt.Errorf("%w: %v", ErrBadClass, class)
	}
	c := class
	e.pendingForce = &c
	e.logger.Debug("wave override queued", "class", class)
	return nil
}

// OverrideStrength replaces the strength after the next column's
// adjustment. The value is clamped like any other strength.
func (e *Engine) OverrideStrength(v float64) {
	e.strengthOverride = &v
	e.logger.Debug("wave strength override queued", "strength", v)
}

func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
