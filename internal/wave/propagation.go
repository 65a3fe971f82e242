package wave

import (
	"math"

	"github.com/talgya/stadium-wave/internal/crowd"
)

// Classify grades a participation rate against the thresholds.
func Classify(rate, successThreshold, sputterThreshold float64) Classification {
	switch {
	case rate >= successThreshold:
		return ClassSuccess
	case rate >= sputterThreshold:
		return ClassSputter
	default:
		return ClassDeath
	}
}

// SectionOutcome reduces column counts to a section result. Success needs
// at least as many columns as each other class; otherwise sputter wins
// over death on a tie.
func SectionOutcome(success, sputter, death int) Classification {
	switch {
	case success >= sputter && success >= death:
		return ClassSuccess
	case sputter >= death:
		return ClassSputter
	default:
		return ClassDeath
	}
}

func (e *Engine) currentSection() *crowd.Section {
	sec, _ := e.stadium.Section(e.active.Path[e.pathPos])
	return sec
}

// seatColumn maps the cursor to a seat column, sweeping right-to-left for
// waves travelling left.
func (e *Engine) seatColumn(sec *crowd.Section) int {
	if e.active.Direction == DirLeft {
		return sec.Columns() - 1 - e.column
	}
	return e.column
}

func (e *Engine) stepColumn() {
	sec := e.currentSection()
	if sec.Columns() == 0 {
		e.finishSection(sec)
		return
	}

	col := e.seatColumn(sec)
	seats := sec.Column(col)

	var (
		rate   float64
		forced bool
	)
	switch {
	case e.sectionForce != nil:
		rate = e.forcedRate(*e.sectionForce)
		forced = true
		e.standForced(seats, rate)
	case e.dead:
		for _, s := range seats {
			if s.Fan != nil {
				s.Fan.SitDown()
			}
		}
	default:
		rate = e.rollColumn(sec, seats)
	}

	class := Classify(rate, e.cfg.SuccessThreshold, e.cfg.SputterThreshold)
	if e.dead && !forced {
		class = ClassDeath
	}
	e.adjustStrength(class)

	e.current.Columns = append(e.current.Columns, ColumnResult{
		Column:   col,
		Rate:     rate,
		Class:    class,
		Strength: e.strength,
		Forced:   forced,
	})
	e.active.Strength = e.strength
	e.emit(Event{
		Kind:     EventColumn,
		WaveID:   e.active.ID,
		Section:  sec.ID,
		Column:   col,
		Class:    class,
		Strength: e.strength,
	})

	e.column++
	if e.column >= sec.Columns() {
		e.finishSection(sec)
	}
}

// rollColumn has every seated fan roll participation with the section
// bonus, then applies peer pressure. Returns the rate before peer pressure;
// an empty column has rate 0.
func (e *Engine) rollColumn(sec *crowd.Section, seats []*crowd.Seat) float64 {
	bonus := e.sectionBonus(sec)
	occupied, joined := 0, 0
	for _, s := range seats {
		if s.Fan == nil {
			continue
		}
		occupied++
		s.Fan.SitDown()
		if e.rng.Float64() < s.Fan.ParticipationChance(e.crowdCfg, bonus) {
			s.Fan.Join(1, false)
			s.Fan.Energize(e.crowdCfg.AttentionWaveBoost)
			joined++
		}
	}
	if occupied == 0 {
		return 0
	}
	rate := float64(joined) / float64(occupied)
	if rate >= e.cfg.PeerPressureThreshold {
		for _, s := range seats {
			if s.Fan != nil && !s.Fan.Participating {
				s.Fan.Join(e.cfg.PeerPressureIntensity, true)
			}
		}
	}
	return rate
}

// sectionBonus shifts every fan's odds by how well the section is doing
// and by the wave's current strength.
func (e *Engine) sectionBonus(sec *crowd.Section) float64 {
	prob := sec.WaveSuccessProbability(e.crowdCfg) / 100
	return e.cfg.SectionBonusWeight*(prob-0.5) + e.cfg.MomentumBonus*(e.strength-50)/50
}

func (e *Engine) forcedRate(class Classification) float64 {
	switch class {
	case ClassSuccess:
		return 1
	case ClassSputter:
		return (e.cfg.SputterThreshold + e.cfg.SuccessThreshold) / 2
	default:
		return 0
	}
}

// standForced raises the first round(rate × occupied) fans so forced
// columns still look right.
func (e *Engine) standForced(seats []*crowd.Seat, rate float64) {
	occupied := 0
	for _, s := range seats {
		if s.Fan != nil {
			occupied++
		}
	}
	up := int(math.Round(rate * float64(occupied)))
	for _, s := range seats {
		if s.Fan == nil {
			continue
		}
		s.Fan.SitDown()
		if up > 0 {
			s.Fan.Join(1, false)
			up--
		}
	}
}

// adjustStrength applies the momentum transition for one column, then any
// pending override, then re-evaluates whether the wave is dead.
func (e *Engine) adjustStrength(class Classification) {
	switch class {
	case ClassSuccess:
		if e.prevClass == ClassSputter {
			e.strength += e.cfg.RecoveryBonus
		} else {
			e.strength += e.cfg.SuccessGain
		}
		e.consecutiveFailures = 0
	case ClassSputter:
		e.strength -= e.cfg.SputterLoss
	case ClassDeath:
		e.strength -= e.cfg.DeathLoss
		e.consecutiveFailures++
	}
	e.strength = clampStrength(e.strength)

	if e.strengthOverride != nil {
		e.strength = clampStrength(*e.strengthOverride)
		e.strengthOverride = nil
	}

	e.prevClass = class
	wasDead := e.dead
	e.dead = e.strength < e.cfg.DeadStrengthFloor || e.consecutiveFailures > e.cfg.MaxConsecutiveFailures
	if e.dead && !wasDead {
		e.logger.Info("wave died",
			"wave", e.active.ID,
			"strength", e.strength,
			"consecutive_failures", e.consecutiveFailures,
		)
	}
}

func (e *Engine) finishSection(sec *crowd.Section) {
	res := e.current
	s, p, d := res.Counts()
	res.Result = SectionOutcome(s, p, d)
	if len(res.Columns) == 0 {
		res.Result = ClassDeath
	}
	res.Multiplier = e.multiplier

	switch res.Result {
	case ClassSuccess:
		points := float64(e.cfg.SectionPoints) * e.multiplier
		if e.active.Kind == KindSuper {
			points *= 2
		}
		res.Points = int(math.Round(points))
		e.score += res.Points
		e.active.Score += res.Points
		e.multiplier += e.cfg.MultiplierStep
		for _, f := range sec.Fans() {
			f.Cheer(e.cfg.SuccessHappinessBoost)
		}
	case ClassDeath:
		e.multiplier = 1
	}

	sec.SitDown()
	e.cooldowns[sec.Index] = e.cfg.SectionCooldownSec
	e.active.Results = append(e.active.Results, *res)
	e.sectionForce = nil

	e.emit(Event{
		Kind:     EventSectionResult,
		WaveID:   e.active.ID,
		Section:  sec.ID,
		Class:    res.Result,
		Strength: e.strength,
		Points:   res.Points,
	})

	e.pathPos++
	if e.pathPos >= len(e.active.Path) {
		e.finalize()
		return
	}
	e.beginSection()
}

// finalize grades the wave, moves it to history and opens the cooldown
// window. A wave succeeds when more than half of its sections did.
func (e *Engine) finalize() {
	w := e.active
	successes := 0
	for _, r := range w.Results {
		if r.Result == ClassSuccess {
			successes++
		}
	}
	w.Success = successes*2 > len(w.Path)
	w.EndTime = e.elapsed
	w.Strength = e.strength
	w.Finalized = true

	e.history = append(e.history, w.clone())
	if limit := e.cfg.HistoryLimit; limit > 0 && len(e.history) > limit {
		e.history = e.history[len(e.history)-limit:]
	}

	e.active = nil
	e.current = nil
	e.pendingForce = nil
	e.sectionForce = nil
	e.strengthOverride = nil
	e.state = StateFinalized
	if w.Success {
		e.stateTimer = e.cfg.CooldownSuccessSec
	} else {
		e.stateTimer = e.cfg.CooldownFailureSec
	}

	e.logger.Info("wave complete",
		"wave", w.ID,
		"success", w.Success,
		"score", w.Score,
		"total_score", e.score,
		"strength", w.Strength,
		"duration", w.EndTime-w.StartTime,
	)
	e.emit(Event{Kind: EventComplete, WaveID: w.ID, Success: w.Success, Strength: w.Strength, Points: w.Score})
}

// FrontBounds returns the world rectangle of the column being evaluated,
// or false when no wave is propagating.
func (e *Engine) FrontBounds() (Bounds, bool) {
	if e.state != StatePropagating || e.active == nil || e.grid == nil {
		return Bounds{}, false
	}
	sec := e.currentSection()
	if sec == nil || sec.Columns() == 0 {
		return Bounds{}, false
	}
	col := e.column
	if col >= sec.Columns() {
		col = sec.Columns() - 1
	}
	if e.active.Direction == DirLeft {
		col = sec.Columns() - 1 - col
	}
	seats := sec.Column(col)
	if len(seats) == 0 {
		return Bounds{}, false
	}
	first, last := seats[0].Cell, seats[len(seats)-1].Cell
	minX, minY, _, _ := e.grid.CellBounds(first.Row, first.Col)
	_, _, maxX, maxY := e.grid.CellBounds(last.Row, last.Col)
	return Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, true
}
