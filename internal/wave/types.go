// Package wave runs the crowd wave: autonomous triggering, a countdown,
// column-by-column propagation through the stand sections with a
// strength/momentum model, scoring, and cooldowns.
package wave

import (
	"errors"
	"fmt"
)

var (
	ErrWaveActive     = errors.New("a wave is already active")
	ErrCoolingDown    = errors.New("waves are cooling down")
	ErrUnknownSection = errors.New("unknown section")
	ErrBadClass       = errors.New("invalid classification")
)

// State is the engine's position in the wave lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateCountdown
	StatePropagating
	StateFinalized // Post-wave cooldown window
)

var stateNames = [...]string{"idle", "countdown", "propagating", "finalized"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Kind distinguishes ordinary waves from boosted ones.
type Kind string

const (
	KindNormal Kind = "normal"
	KindSuper  Kind = "super" // Starts stronger, doubles section points
)

// Direction is the way a wave travels along the section list.
type Direction int

const (
	DirRight Direction = 1
	DirLeft  Direction = -1
)

func (d Direction) String() string {
	if d == DirLeft {
		return "left"
	}
	return "right"
}

// Classification grades a column or a section.
type Classification uint8

const (
	ClassNone Classification = iota
	ClassSuccess
	ClassSputter
	ClassDeath
)

var classNames = [...]string{"none", "success", "sputter", "death"}

func (c Classification) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", c)
}

// MarshalText encodes the classification by name.
func (c Classification) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText accepts the names MarshalText produces.
func (c *Classification) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*c = ClassNone
		return nil
	}
	v, err := ParseClassification(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseClassification converts "success", "sputter" or "death".
func ParseClassification(s string) (Classification, error) {
	switch s {
	case "success":
		return ClassSuccess, nil
	case "sputter":
		return ClassSputter, nil
	case "death":
		return ClassDeath, nil
	}
	return ClassNone, fmt.Errorf("%w: %q", ErrBadClass, s)
}

// ColumnResult records one evaluated column.
type ColumnResult struct {
	Column   int            `json:"column"`
	Rate     float64        `json:"rate"` // Before peer pressure
	Class    Classification `json:"class"`
	Strength float64        `json:"strength"` // After adjustment
	Forced   bool           `json:"forced,omitempty"`
}

// SectionResult is the outcome of a wave passing through one section.
type SectionResult struct {
	SectionID  string         `json:"section_id"`
	Columns    []ColumnResult `json:"columns"`
	Result     Classification `json:"result"`
	Points     int            `json:"points"`
	Multiplier float64        `json:"multiplier"` // In effect when scored
}

// Counts returns how many columns fell in each class.
func (r SectionResult) Counts() (success, sputter, death int) {
	for _, c := range r.Columns {
		switch c.Class {
		case ClassSuccess:
			success++
		case ClassSputter:
			sputter++
		case ClassDeath:
			death++
		}
	}
	return success, sputter, death
}

// Wave is one propagating crowd event. Once finalized it is moved to the
// history and never modified again.
type Wave struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Origin    string          `json:"origin"`
	Path      []string        `json:"path"`
	Direction Direction       `json:"direction"`
	StartTime float64         `json:"start_time"` // Elapsed seconds
	EndTime   float64         `json:"end_time,omitempty"`
	Results   []SectionResult `json:"results"`
	Strength  float64         `json:"strength"`
	Score     int             `json:"score"`
	Success   bool            `json:"success"`
	Finalized bool            `json:"finalized"`
}

func (w *Wave) clone() Wave {
	c := *w
	c.Path = append([]string(nil), w.Path...)
	c.Results = make([]SectionResult, len(w.Results))
	for i, r := range w.Results {
		r.Columns = append([]ColumnResult(nil), r.Columns...)
		c.Results[i] = r
	}
	return c
}

// Bounds is a world-space rectangle.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Expand grows the rectangle by m on every side.
func (b Bounds) Expand(m float64) Bounds {
	return Bounds{MinX: b.MinX - m, MinY: b.MinY - m, MaxX: b.MaxX + m, MaxY: b.MaxY + m}
}

// Contains reports whether (x, y) lies inside.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// EventKind names a wave lifecycle event.
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventStart         EventKind = "start"
	EventColumn        EventKind = "column"
	EventSectionResult EventKind = "sectionResult"
	EventComplete      EventKind = "complete"
)

// Event is delivered to listeners after the transition it describes.
type Event struct {
	Kind     EventKind      `json:"kind"`
	WaveID   string         `json:"wave_id"`
	Section  string         `json:"section,omitempty"`
	Column   int            `json:"column,omitempty"`
	Class    Classification `json:"class,omitempty"`
	Strength float64        `json:"strength"`
	Points   int            `json:"points,omitempty"`
	Success  bool           `json:"success,omitempty"`
	Time     float64        `json:"time"`
}

// Listener receives wave events.
type Listener func(Event)
