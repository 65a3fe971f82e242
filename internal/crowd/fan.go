// Package crowd holds the stands: sections, rows, seats and the fans in
// them, with the per-tick decay and service rules that drive their mood.
package crowd

import (
	"github.com/talgya/stadium-wave/internal/config"
)

// FanID is a unique identifier for a fan.
type FanID uint64

// ThirstPhase describes how fast a fan's thirst is building.
type ThirstPhase uint8

const (
	PhaseSlow ThirstPhase = iota // Below the phase threshold, mood holds
	PhaseFast                    // At or above it, mood starts sliding
)

func (p ThirstPhase) String() string {
	if p == PhaseFast {
		return "fast"
	}
	return "slow"
}

// Fan is the occupant of one seat. Stats range 0–100.
type Fan struct {
	ID        FanID   `json:"id"`
	Happiness float64 `json:"happiness"`
	Thirst    float64 `json:"thirst"`
	Attention float64 `json:"attention"`

	// Wave participation for the column currently being evaluated.
	Participating bool    `json:"participating"`
	Forced        bool    `json:"forced"`    // Joined through peer pressure
	Intensity     float64 `json:"intensity"` // Visual only, 0.0–1.0
}

// Tick advances the fan by dt seconds. Thirst builds continuously; happiness
// only decays while the fan is in the fast thirst phase.
func (f *Fan) Tick(dt float64, cfg config.CrowdConfig) {
	if dt <= 0 {
		return
	}
	f.Thirst += cfg.ThirstRate * dt
	if f.ThirstPhase(cfg) == PhaseFast {
		f.Happiness -= cfg.HappinessDecayRate * dt
	}
	f.Attention -= cfg.AttentionDecayRate * dt
	f.clamp()
}

// VendorServe applies a complete service at once.
func (f *Fan) VendorServe(cfg config.CrowdConfig) {
	f.Thirst -= cfg.ServeThirstReduction
	f.Happiness += cfg.ServeHappinessBoost
	f.clamp()
}

// ReduceThirst lowers thirst by amount and returns how much was actually
// removed.
func (f *Fan) ReduceThirst(amount float64) float64 {
	before := f.Thirst
	f.Thirst -= amount
	f.clamp()
	return before - f.Thirst
}

// Cheer raises happiness by amount.
func (f *Fan) Cheer(amount float64) {
	f.Happiness += amount
	f.clamp()
}

// Energize raises attention, used when the fan takes part in a wave.
func (f *Fan) Energize(amount float64) {
	f.Attention += amount
	f.clamp()
}

// ThirstPhase reports which phase the fan's thirst is in.
func (f *Fan) ThirstPhase(cfg config.CrowdConfig) ThirstPhase {
	if f.Thirst >= cfg.ThirstPhaseThreshold {
		return PhaseFast
	}
	return PhaseSlow
}

// Difficult reports whether the fan is unhappy enough to obstruct vendors.
func (f *Fan) Difficult(cfg config.CrowdConfig) bool {
	return f.Happiness < cfg.DifficultHappiness
}

// ParticipationChance is the probability this fan stands up for a wave,
// given a section-wide bonus.
func (f *Fan) ParticipationChance(cfg config.CrowdConfig, bonus float64) float64 {
	p := cfg.ParticipationBase +
		f.Happiness/100*cfg.ParticipationHappinessWeight +
		f.Attention/100*cfg.ParticipationAttentionWeight -
		f.Thirst/100*cfg.ParticipationThirstWeight +
		bonus
	return clamp01(p)
}

// Join marks the fan as participating at the given visual intensity.
func (f *Fan) Join(intensity float64, forced bool) {
	f.Participating = true
	f.Forced = forced
	f.Intensity = clamp01(intensity)
}

// SitDown clears wave participation.
func (f *Fan) SitDown() {
	f.Participating = false
	f.Forced = false
	f.Intensity = 0
}

func (f *Fan) clamp() {
	f.Happiness = clampStat(f.Happiness)
	f.Thirst = clampStat(f.Thirst)
	f.Attention = clampStat(f.Attention)
}

func clampStat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
