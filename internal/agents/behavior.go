// Vendor behavior: a tick-driven state machine. Every timed effect keeps a
// stored countdown advanced by Update; nothing schedules callbacks.
package agents

import (
	"fmt"
	"math"
	"sort"

	"github.com/talgya/stadium-wave/internal/crowd"
	"github.com/talgya/stadium-wave/internal/grid"
)

// maxCandidatePlans bounds how many ranked seats a scan tries to path to.
const maxCandidatePlans = 5

// Update advances the vendor by dt seconds.
func (v *Vendor) Update(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if v.assignCooldown > 0 {
		v.assignCooldown = math.Max(0, v.assignCooldown-dt)
	}

	switch v.state {
	case StateAwaitingAssignment:
		v.updateAwaiting(dt)
	case StateIdle:
		v.updateIdle(dt)
	case StateMoving:
		v.updateMoving(dt)
	case StateServing:
		v.updateServing(dt)
	case StatePatrolling:
		v.updatePatrol(dt)
	case StateRecalling:
		v.updateRecalling(dt)
	case StateDroppingOff:
		v.updateDropoff(dt)
	case StateSplatted:
		v.stateTimer -= dt
		if v.stateTimer <= 0 {
			v.reset(StateAwaitingAssignment)
		}
	}
}

// AssignToSection sends the vendor to work a section, optionally aiming at
// a specific seat. The assignment cooldown starts whether or not a path is
// found; a failed assignment is retried after the retry delay.
func (v *Vendor) AssignToSection(sectionIdx int, target *grid.Coord) error {
	if v.assignCooldown > 0 {
		return ErrAssignCooldown
	}
	switch v.state {
	case StateRecalling, StateDroppingOff, StateSplatted:
		return fmt.Errorf("%w: %s", ErrUnavailable, v.state)
	}
	v.assignCooldown = v.deps.Config.AssignCooldownSec
	return v.assign(sectionIdx, target)
}

func (v *Vendor) assign(sectionIdx int, target *grid.Coord) error {
	if v.deps.Stadium == nil {
		return fmt.Errorf("%w: %d", ErrNoSection, sectionIdx)
	}
	sec, ok := v.deps.Stadium.SectionAt(sectionIdx)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSection, sectionIdx)
	}
	if v.deps.Planner == nil {
		v.logger.Error("vendor has no path planner", "vendor", v.Profile.Name)
		v.reset(StateAwaitingAssignment)
		return ErrNoPlanner
	}

	v.reset(StateAwaitingAssignment)
	v.section = sectionIdx
	v.retrySection = -1
	if err := v.headInto(sec, target); err != nil {
		v.retrySection = sectionIdx
		v.retryTimer = v.deps.Config.RetryDelaySec
		v.logger.Info("vendor assignment failed",
			"vendor", v.Profile.Name,
			"section", sec.ID,
			"retry_in", v.retryTimer,
			"error", err,
		)
		return err
	}
	v.state = StateMoving
	v.emit(EventAssigned, sectionIdx, 0)
	return nil
}

// headInto picks where to go inside a section: the requested seat, the
// best thirsty candidate, or failing those the nearest reachable entry.
func (v *Vendor) headInto(sec *crowd.Section, target *grid.Coord) error {
	if target != nil {
		seat, ok := v.deps.Stadium.SeatAt(*target)
		if !ok || !seat.Occupied() {
			return fmt.Errorf("%w: no fan at %v", ErrUnreachable, *target)
		}
		if owner, ok := v.deps.Stadium.SectionOf(*target); !ok || owner != sec {
			return fmt.Errorf("%w: seat %v is outside section %s", ErrUnreachable, *target, sec.ID)
		}
		route, err := v.planTo(seat.Cell)
		if err != nil {
			return err
		}
		if !v.deps.Stadium.Reserve(seat.Cell, uint64(v.id)) {
			return fmt.Errorf("%w: seat %v is taken", ErrUnreachable, seat.Cell)
		}
		v.targetSeat = seat
		v.follow(route, seat.Cell, errandSeat)
		return nil
	}

	if v.claimCandidate(sec.Index) {
		return nil
	}

	entries := append([]grid.Coord(nil), sec.Entries...)
	sort.Slice(entries, func(i, j int) bool {
		return grid.ManhattanDistance(v.cell, entries[i]) < grid.ManhattanDistance(v.cell, entries[j])
	})
	for _, e := range entries {
		if route, err := v.planTo(e); err == nil {
			v.follow(route, e, errandSection)
			return nil
		}
	}
	return fmt.Errorf("%w: section %s", ErrUnreachable, sec.ID)
}

// claimCandidate ranks thirsty seats, optionally inside one section, and
// reserves the best one it can reach.
func (v *Vendor) claimCandidate(sectionIdx int) bool {
	cands := v.deps.Stadium.ThirstyCandidates(v.deps.Config.MinServeThirst, sectionIdx)
	if len(cands) == 0 {
		return false
	}
	cs := v.deps.Grid.CellSize()
	scores := make([]float64, len(cands))
	for i, c := range cands {
		p := v.deps.Grid.GridToWorld(c.Seat.Cell.Row, c.Seat.Cell.Col)
		scores[i] = ScoreCandidate(math.Hypot(p.X-v.pos.X, p.Y-v.pos.Y), cs, c.Seat.Fan.Thirst)
	}
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	for n, i := range order {
		if n >= maxCandidatePlans {
			break
		}
		seat := cands[i].Seat
		route, err := v.planTo(seat.Cell)
		if err != nil {
			continue
		}
		if !v.deps.Stadium.Reserve(seat.Cell, uint64(v.id)) {
			continue
		}
		v.targetSeat = seat
		v.follow(route, seat.Cell, errandSeat)
		return true
	}
	return false
}

func (v *Vendor) updateAwaiting(dt float64) {
	if v.retrySection < 0 {
		return
	}
	v.retryTimer -= dt
	if v.retryTimer > 0 {
		return
	}
	sec := v.retrySection
	v.retrySection = -1
	if err := v.assign(sec, nil); err != nil {
		v.logger.Debug("vendor retry failed", "vendor", v.Profile.Name, "error", err)
	}
}

func (v *Vendor) toIdle() {
	v.ClearPath()
	v.state = StateIdle
	v.errand = errandNone
	v.dest = v.cell
	v.scanTimer = 0
	v.idleTime = 0
}

func (v *Vendor) updateIdle(dt float64) {
	v.idleTime += dt
	v.scanTimer -= dt
	if v.scanTimer > 0 {
		return
	}
	v.scanTimer = v.deps.Config.ScanIntervalSec
	if v.deps.Planner == nil {
		v.logger.Error("vendor has no path planner", "vendor", v.Profile.Name)
		v.reset(StateAwaitingAssignment)
		return
	}
	if v.claimCandidate(v.section) {
		v.state = StateMoving
		return
	}
	if v.idleTime >= v.deps.Config.IdleTimeoutSec {
		v.startPatrol()
	}
}

func (v *Vendor) updateMoving(dt float64) {
	if v.targetSeat != nil && !v.targetSeat.Occupied() {
		v.dropTarget()
		v.toIdle()
		return
	}
	if !v.advance(dt) {
		return
	}
	if v.cell != v.dest {
		// Route was cleared before arrival.
		v.dropTarget()
		v.toIdle()
		return
	}
	v.emit(EventArrived, v.section, 0)
	if v.targetSeat != nil {
		v.beginService()
		return
	}
	v.toIdle()
}

func (v *Vendor) beginService() {
	v.ClearPath()
	v.state = StateServing
	v.errand = errandNone
	v.stateTimer = v.deps.Config.ServiceDurationSec
	v.servePhase = v.targetSeat.Fan.ThirstPhase(v.deps.Stadium.Config())
}

// updateServing drains thirst linearly over the service duration, then
// pays out.
func (v *Vendor) updateServing(dt float64) {
	seat := v.targetSeat
	if seat == nil || seat.Fan == nil {
		v.dropTarget()
		v.toIdle()
		return
	}
	crowdCfg := v.deps.Stadium.Config()
	dur := v.deps.Config.ServiceDurationSec
	if dur > 0 {
		step := math.Min(dt, v.stateTimer)
		seat.Fan.ReduceThirst(crowdCfg.ServeThirstReduction * step / dur)
	}
	v.stateTimer -= dt
	if v.stateTimer > 0 {
		return
	}
	if dur > 0 {
		seat.Fan.Cheer(crowdCfg.ServeHappinessBoost)
	} else {
		seat.Fan.VendorServe(crowdCfg)
	}

	points := ServicePoints(v.deps.Config, v.servePhase)
	v.pointsEarned += points
	v.served++
	section := v.section
	if sec, ok := v.deps.Stadium.SectionOf(seat.Cell); ok {
		section = sec.Index
	}
	v.dropTarget()
	v.toIdle()
	v.emit(EventServiceComplete, section, points)
}

func (v *Vendor) startPatrol() {
	v.ClearPath()
	v.state = StatePatrolling
	v.errand = errandNone
	v.patrolTimer = 0
	v.scanTimer = v.deps.Config.ScanIntervalSec
}

// updatePatrol wanders between random walkway cells near the vendor's
// column band and keeps scanning for customers on the way.
func (v *Vendor) updatePatrol(dt float64) {
	v.scanTimer -= dt
	if v.scanTimer <= 0 {
		v.scanTimer = v.deps.Config.ScanIntervalSec
		if v.deps.Planner != nil && v.claimCandidate(v.section) {
			v.state = StateMoving
			return
		}
	}
	if v.HasPath() {
		v.advance(dt)
		return
	}
	v.patrolTimer -= dt
	if v.patrolTimer > 0 {
		return
	}
	v.patrolTimer = v.deps.Config.PatrolIntervalSec
	if v.deps.Planner == nil {
		v.logger.Error("vendor has no path planner", "vendor", v.Profile.Name)
		v.reset(StateAwaitingAssignment)
		return
	}
	v.patrolStep()
}

func (v *Vendor) patrolStep() {
	cfg := v.deps.Config
	var zones []grid.ZoneType
	for _, name := range cfg.PatrolZones {
		if z, ok := grid.ParseZone(name); ok {
			zones = append(zones, z)
		}
	}
	var pool []grid.Coord
	for _, c := range v.deps.Grid.CellsInZone(zones...) {
		if c == v.cell {
			continue
		}
		if d := c.Col - v.cell.Col; d > cfg.PatrolBand || -d > cfg.PatrolBand {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return
	}
	attempts := cfg.PatrolAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		c := pool[v.deps.Rng.Intn(len(pool))]
		if route, err := v.planTo(c); err == nil {
			v.follow(route, c, errandPatrol)
			return
		}
	}
}

// Recall sends the vendor to the nearest drop zone to bank its points.
func (v *Vendor) Recall() error {
	switch v.state {
	case StateRecalling, StateDroppingOff:
		return nil
	case StateSplatted:
		return fmt.Errorf("%w: %s", ErrUnavailable, v.state)
	}
	if v.deps.Planner == nil {
		v.logger.Error("vendor has no path planner", "vendor", v.Profile.Name)
		v.reset(StateAwaitingAssignment)
		return ErrNoPlanner
	}
	zone, ok := v.nearestDropZone()
	if !ok {
		return fmt.Errorf("%w: no drop zones", ErrUnreachable)
	}
	v.reset(StateAwaitingAssignment)
	v.retrySection = -1
	route, err := v.planTo(zone)
	if err != nil {
		v.logger.Info("vendor recall failed", "vendor", v.Profile.Name, "zone", zone, "error", err)
		return err
	}
	v.follow(route, zone, errandDropoff)
	v.state = StateRecalling
	return nil
}

func (v *Vendor) nearestDropZone() (grid.Coord, bool) {
	if v.deps.Stadium == nil || len(v.deps.Stadium.DropZones) == 0 {
		return grid.Coord{}, false
	}
	best := v.deps.Stadium.DropZones[0]
	bestD := grid.ManhattanDistance(v.cell, best)
	for _, z := range v.deps.Stadium.DropZones[1:] {
		if d := grid.ManhattanDistance(v.cell, z); d < bestD {
			best, bestD = z, d
		}
	}
	return best, true
}

func (v *Vendor) updateRecalling(dt float64) {
	if !v.advance(dt) {
		return
	}
	if v.cell != v.dest {
		v.reset(StateAwaitingAssignment)
		return
	}
	v.ClearPath()
	v.state = StateDroppingOff
	v.phase = PhaseFadeOut
	v.stateTimer = v.deps.Config.FadeOutSec
}

// updateDropoff runs fade-out, the unavailable delay and fade-in, then
// banks the carried points.
func (v *Vendor) updateDropoff(dt float64) {
	cfg := v.deps.Config
	v.stateTimer -= dt
	switch v.phase {
	case PhaseFadeOut:
		v.alpha = fraction(v.stateTimer, cfg.FadeOutSec)
		if v.stateTimer <= 0 {
			v.alpha = 0
			v.phase = PhaseUnavailable
			v.stateTimer += cfg.UnavailableSec
		}
	case PhaseUnavailable:
		if v.stateTimer <= 0 {
			v.phase = PhaseFadeIn
			v.stateTimer += cfg.FadeInSec
		}
	case PhaseFadeIn:
		v.alpha = 1 - fraction(v.stateTimer, cfg.FadeInSec)
		if v.stateTimer <= 0 {
			banked := v.pointsEarned
			v.pointsBanked += banked
			v.pointsEarned = 0
			v.reset(StateAwaitingAssignment)
			v.logger.Info("vendor dropped off", "vendor", v.Profile.Name, "banked", banked)
			v.emit(EventDropoff, -1, banked)
		}
	}
}

// fraction is remaining/total clamped to [0, 1]; zero-length phases are
// already complete.
func fraction(remaining, total float64) float64 {
	if total <= 0 || remaining <= 0 {
		return 0
	}
	if remaining >= total {
		return 1
	}
	return remaining / total
}

// HandleWaveCollision rolls for a splat when a wave front passes over the
// vendor. Each wave gets one roll per vendor; splatted and fading vendors
// are immune.
func (v *Vendor) HandleWaveCollision(waveID string) bool {
	if v.state == StateSplatted || v.state == StateDroppingOff {
		return false
	}
	if waveID != "" && waveID == v.lastWave {
		return false
	}
	v.lastWave = waveID
	if v.deps.Rng.Float64() >= SplatProbability(v.deps.Config, v.pointsEarned) {
		return false
	}

	lost := v.pointsEarned
	section := v.section
	v.reset(StateSplatted)
	v.pointsEarned = 0
	v.splats++
	v.retrySection = -1
	v.stateTimer = v.deps.Config.SplatRecoverySec
	v.logger.Info("vendor splatted", "vendor", v.Profile.Name, "wave", waveID, "points_lost", lost)
	v.emit(EventPointsLost, section, lost)
	v.emit(EventSplatted, section, 0)
	return true
}

// OnGridChange re-plans the current route when an edit touches it. A
// route that can no longer be completed is abandoned.
func (v *Vendor) OnGridChange(ch grid.Change) {
	if !v.HasPath() || !v.routeTouches(ch.Coord) {
		return
	}
	route, err := v.planTo(v.dest)
	if err == nil {
		v.follow(route, v.dest, v.errand)
		v.logger.Debug("vendor re-planned", "vendor", v.Profile.Name, "cell", ch.Coord, "change", ch.Kind)
		return
	}

	v.logger.Info("vendor route blocked", "vendor", v.Profile.Name, "cell", ch.Coord, "error", err)
	switch v.errand {
	case errandPatrol:
		v.ClearPath()
		v.dest = v.cell
	case errandSeat, errandSection:
		section := v.section
		v.reset(StateAwaitingAssignment)
		if section >= 0 {
			v.retrySection = section
			v.retryTimer = v.deps.Config.RetryDelaySec
		}
	default:
		v.reset(StateAwaitingAssignment)
	}
}

func (v *Vendor) routeTouches(c grid.Coord) bool {
	if c == v.cell {
		return true
	}
	for _, s := range v.path[v.pathIdx:] {
		if s.Coord() == c {
			return true
		}
	}
	return false
}

var _ Handle = (*Vendor)(nil)
