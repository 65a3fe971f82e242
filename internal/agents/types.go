// Package agents provides the vendor model and its behavior state machine.
// Vendors take assignments, hunt for thirsty fans, serve them, patrol when
// the stands are quiet, bank points at drop zones and get splatted by waves.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/pathing"
)

var (
	ErrAssignCooldown = errors.New("vendor assignment is cooling down")
	ErrNoPlanner      = errors.New("no path planner attached")
	ErrUnreachable    = errors.New("target currently unreachable")
	ErrUnavailable    = errors.New("vendor unavailable")
	ErrNoSection      = errors.New("no such section")
)

// VendorID is a unique identifier for a vendor.
type VendorID uint64

// Profile is the immutable description of a vendor.
type Profile struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Quality   int               `json:"quality"` // Tier, 1 and up
	Abilities pathing.Abilities `json:"abilities"`
}

// ProfileFrom converts a roster entry.
func ProfileFrom(s config.VendorSpec) Profile {
	q := s.Quality
	if q < 1 {
		q = 1
	}
	return Profile{
		Name:      s.Name,
		Type:      s.Type,
		Quality:   q,
		Abilities: pathing.AbilitiesFrom(s.Abilities),
	}
}

// PathProfile is what the planner needs from this profile.
func (p Profile) PathProfile() pathing.Profile {
	return pathing.Profile{Abilities: p.Abilities, QualityTier: p.Quality}
}

// State is the vendor's position in its behavior state machine.
type State uint8

const (
	StateAwaitingAssignment State = iota
	StateIdle
	StateMoving
	StateServing
	StatePatrolling
	StateRecalling
	StateDroppingOff
	StateSplatted
)

var stateNames = [...]string{
	"awaitingAssignment", "idle", "moving", "serving",
	"patrolling", "recalling", "droppingOff", "splatted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DropoffPhase sequences the drop-off fade.
type DropoffPhase uint8

const (
	PhaseNone DropoffPhase = iota
	PhaseFadeOut
	PhaseUnavailable
	PhaseFadeIn
)

var phaseNames = [...]string{"", "fadeOut", "unavailable", "fadeIn"}

func (p DropoffPhase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// MarshalText encodes the phase by name.
func (p DropoffPhase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Handle is the narrow view of a vendor that other components may hold.
type Handle interface {
	ID() VendorID
	Position() grid.Point
	State() State
	HasPath() bool
	ClearPath()
}

// EventKind names a vendor lifecycle event.
type EventKind string

const (
	EventSpawned         EventKind = "spawned"
	EventAssigned        EventKind = "assigned"
	EventArrived         EventKind = "arrived"
	EventServiceComplete EventKind = "serviceComplete"
	EventPointsLost      EventKind = "pointsLost"
	EventSplatted        EventKind = "splatted"
	EventDropoff         EventKind = "dropoff"
)

// Event is emitted after the transition it describes.
type Event struct {
	Kind    EventKind `json:"kind"`
	Vendor  VendorID  `json:"vendor"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Section int       `json:"section"` // -1 when not tied to a section
	Points  int       `json:"points,omitempty"`
}

// Status is a vendor's renderer-facing state.
type Status struct {
	ID           VendorID     `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Quality      int          `json:"quality"`
	State        State        `json:"state"`
	Phase        DropoffPhase `json:"phase,omitempty"`
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
	Alpha        float64      `json:"alpha"`
	Section      int          `json:"section"`
	PointsEarned int          `json:"points_earned"`
	PointsBanked int          `json:"points_banked"`
	Served       int          `json:"served"`
	Splats       int          `json:"splats"`
	PathLen      int          `json:"path_len"`
}
