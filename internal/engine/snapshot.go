package engine

import (
	"fmt"
	"strings"

	"github.com/talgya/stadium-wave/internal/agents"
	"github.com/talgya/stadium-wave/internal/crowd"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/wave"
)

// WaveStatus is the wave engine's state as the renderer sees it.
type WaveStatus struct {
	State               wave.State   `json:"state"`
	Active              *wave.Wave   `json:"active,omitempty"`
	Front               *wave.Bounds `json:"front,omitempty"`
	Strength            float64      `json:"strength"`
	Multiplier          float64      `json:"multiplier"`
	Dead                bool         `json:"dead"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	Cooldown            float64      `json:"cooldown"`
}

// SectionView is a section's aggregates plus its wave odds and cooldown.
type SectionView struct {
	crowd.SectionStats
	Index       int     `json:"index"`
	Probability float64 `json:"wave_probability"`
	Cooldown    float64 `json:"cooldown"`
}

// Snapshot is everything the renderer needs for one frame.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Tick      uint64          `json:"tick"`
	Elapsed   float64         `json:"elapsed"`
	Clock     string          `json:"clock"`
	Score     int             `json:"score"`
	WaveScore int             `json:"wave_score"`
	Banked    int             `json:"banked"`
	Wave      WaveStatus      `json:"wave"`
	Vendors   []agents.Status `json:"vendors"`
	Sections  []SectionView   `json:"sections"`
	Stats     SimStats        `json:"stats"`
}

// Snapshot captures the session between ticks.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()

	snap := Snapshot{
		SessionID: s.SessionID,
		Tick:      s.tick,
		Elapsed:   s.elapsed,
		Clock:     Clock(s.elapsed),
		Score:     s.score(),
		WaveScore: s.Waves.Score(),
		Banked:    s.bankedScore,
		Wave:      s.waveStatus(),
		Sections:  s.sectionViews(),
		Stats:     s.stats,
	}
	for _, v := range s.Vendors {
		snap.Vendors = append(snap.Vendors, v.Status())
	}
	return snap
}

func (s *Simulation) waveStatus() WaveStatus {
	ws := WaveStatus{
		State:               s.Waves.State(),
		Strength:            s.Waves.Strength(),
		Multiplier:          s.Waves.Multiplier(),
		Dead:                s.Waves.Dead(),
		ConsecutiveFailures: s.Waves.ConsecutiveFailures(),
		Cooldown:            s.Waves.CooldownRemaining(),
	}
	if w, ok := s.Waves.Active(); ok {
		ws.Active = &w
	}
	if b, ok := s.Waves.FrontBounds(); ok {
		ws.Front = &b
	}
	return ws
}

func (s *Simulation) sectionViews() []SectionView {
	cfg := s.Stadium.Config()
	views := make([]SectionView, 0, len(s.Stadium.Sections))
	for _, sec := range s.Stadium.Sections {
		st := sec.Stats()
		views = append(views, SectionView{
			SectionStats: st,
			Index:        sec.Index,
			Probability:  crowd.WaveSuccessProbability(st, cfg),
			Cooldown:     s.Waves.SectionCooldown(sec.Index),
		})
	}
	return views
}

// Sections returns the per-section view.
func (s *Simulation) Sections() []SectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sectionViews()
}

// SeatView is one seat in a section detail.
type SeatView struct {
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	Occupied   bool    `json:"occupied"`
	Happiness  float64 `json:"happiness,omitempty"`
	Thirst     float64 `json:"thirst,omitempty"`
	Attention  float64 `json:"attention,omitempty"`
	Standing   bool    `json:"standing,omitempty"` // Participating in the current column
	ReservedBy uint64  `json:"reserved_by,omitempty"`
}

// SectionDetail is a section view with every seat.
type SectionDetail struct {
	SectionView
	Rows [][]SeatView `json:"rows"`
}

// SectionDetail returns the seat-level view of a section.
func (s *Simulation) SectionDetail(id string) (SectionDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.Stadium.Section(id)
	if !ok {
		return SectionDetail{}, false
	}
	views := s.sectionViews()
	d := SectionDetail{SectionView: views[sec.Index]}
	for _, r := range sec.Rows {
		row := make([]SeatView, 0, len(r.Seats))
		for _, seat := range r.Seats {
			sv := SeatView{Row: seat.Cell.Row, Col: seat.Cell.Col, ReservedBy: seat.ReservedBy}
			if f := seat.Fan; f != nil {
				sv.Occupied = true
				sv.Happiness = f.Happiness
				sv.Thirst = f.Thirst
				sv.Attention = f.Attention
				sv.Standing = f.Participating
			}
			row = append(row, sv)
		}
		d.Rows = append(d.Rows, row)
	}
	return d, true
}

// VendorDetail is a vendor status plus its current route.
type VendorDetail struct {
	agents.Status
	Target *grid.Coord  `json:"target,omitempty"`
	Route  []grid.Coord `json:"route,omitempty"`
}

// VendorStatuses returns every vendor's status.
func (s *Simulation) VendorStatuses() []agents.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agents.Status, 0, len(s.Vendors))
	for _, v := range s.Vendors {
		out = append(out, v.Status())
	}
	return out
}

// VendorDetail returns one vendor with its route.
func (s *Simulation) VendorDetail(id agents.VendorID) (VendorDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendorIndex[id]
	if !ok {
		return VendorDetail{}, fmt.Errorf("%w: %d", ErrUnknownVendor, id)
	}
	d := VendorDetail{Status: v.Status()}
	if c, ok := v.Target(); ok {
		d.Target = &c
	}
	for _, seg := range v.Path() {
		d.Route = append(d.Route, seg.Coord())
	}
	return d, nil
}

// WaveHistory returns finished waves, oldest first.
func (s *Simulation) WaveHistory() []wave.Wave {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Waves.History()
}

// GridView renders the grid as one character per cell, vendors marked V.
func (s *Simulation) GridView() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([][]byte, s.Grid.Rows())
	for r := range rows {
		line := make([]byte, s.Grid.Cols())
		for c := range line {
			line[c] = cellGlyph(s.Grid, r, c)
		}
		rows[r] = line
	}
	for _, v := range s.Vendors {
		c := v.Cell()
		if s.Grid.InBounds(c.Row, c.Col) {
			rows[c.Row][c.Col] = 'V'
		}
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r)
	}
	return out
}

func cellGlyph(g *grid.Grid, r, c int) byte {
	if !g.IsPassable(r, c) {
		return '#'
	}
	switch g.Zone(r, c) {
	case grid.ZoneCorridor:
		return '.'
	case grid.ZoneStair:
		return '='
	case grid.ZoneRowEntry:
		return '>'
	case grid.ZoneSeat:
		return 's'
	case grid.ZoneField:
		return '~'
	case grid.ZoneDropZone:
		return 'D'
	case grid.ZoneConcourse:
		return ':'
	}
	return ' '
}

// Legend explains GridView glyphs.
func Legend() string {
	return strings.Join([]string{
		"# blocked", ". corridor", "= stair", "> row entry", "s seat",
		"~ field", "D drop zone", ": concourse", "V vendor",
	}, ", ")
}
