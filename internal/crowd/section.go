package crowd

import (
	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/grid"
)

// Seat is one seat cell. ReservedBy holds the ID of the vendor heading
// to serve it, 0 when free.
type Seat struct {
	Index      int        `json:"index"`
	Cell       grid.Coord `json:"cell"`
	Fan        *Fan       `json:"fan,omitempty"`
	ReservedBy uint64     `json:"reserved_by,omitempty"`
}

// Occupied reports whether a fan sits here.
func (s *Seat) Occupied() bool { return s.Fan != nil }

// Row is an ordered run of seats.
type Row struct {
	Index int     `json:"index"`
	Seats []*Seat `json:"seats"`
}

// Density is the fraction of seats in the row holding a fan.
func (r *Row) Density() float64 {
	if len(r.Seats) == 0 {
		return 0
	}
	n := 0
	for _, s := range r.Seats {
		if s.Occupied() {
			n++
		}
	}
	return float64(n) / float64(len(r.Seats))
}

// Section is a stand region, the unit of wave propagation.
type Section struct {
	ID     string    `json:"id"`
	Index  int       `json:"index"`
	Bounds grid.Rect `json:"bounds"`
	Rows   []*Row    `json:"rows"`

	// Walkway cells bordering the section, used as vendor targets.
	Entries []grid.Coord `json:"entries"`
}

// Columns returns the number of seat columns.
func (s *Section) Columns() int {
	if len(s.Rows) == 0 {
		return 0
	}
	return len(s.Rows[0].Seats)
}

// Column returns the same-index seat from every row, front row first.
// Out-of-range indexes return nil.
func (s *Section) Column(col int) []*Seat {
	if col < 0 || col >= s.Columns() {
		return nil
	}
	out := make([]*Seat, 0, len(s.Rows))
	for _, r := range s.Rows {
		if col < len(r.Seats) {
			out = append(out, r.Seats[col])
		}
	}
	return out
}

// Fans returns every fan in the section.
func (s *Section) Fans() []*Fan {
	var out []*Fan
	for _, r := range s.Rows {
		for _, seat := range r.Seats {
			if seat.Fan != nil {
				out = append(out, seat.Fan)
			}
		}
	}
	return out
}

// SectionStats aggregates a section's crowd.
type SectionStats struct {
	ID           string  `json:"id"`
	Seats        int     `json:"seats"`
	Occupied     int     `json:"occupied"`
	Occupancy    float64 `json:"occupancy"`
	AvgHappiness float64 `json:"avg_happiness"`
	AvgThirst    float64 `json:"avg_thirst"`
	AvgAttention float64 `json:"avg_attention"`
}

// Stats computes averages over occupied seats. An empty section reports
// zero averages.
func (s *Section) Stats() SectionStats {
	st := SectionStats{ID: s.ID}
	var h, t, a float64
	for _, r := range s.Rows {
		for _, seat := range r.Seats {
			st.Seats++
			if seat.Fan == nil {
				continue
			}
			st.Occupied++
			h += seat.Fan.Happiness
			t += seat.Fan.Thirst
			a += seat.Fan.Attention
		}
	}
	if st.Seats > 0 {
		st.Occupancy = float64(st.Occupied) / float64(st.Seats)
	}
	if st.Occupied > 0 {
		n := float64(st.Occupied)
		st.AvgHappiness = h / n
		st.AvgThirst = t / n
		st.AvgAttention = a / n
	}
	return st
}

// WaveSuccessProbability is base + happiness·w₁ − thirst·w₂ as a
// percentage clamped to [0, 100].
func WaveSuccessProbability(st SectionStats, cfg config.CrowdConfig) float64 {
	return clampStat(cfg.WaveBase + st.AvgHappiness*cfg.WaveHappinessWeight - st.AvgThirst*cfg.WaveThirstWeight)
}

// WaveSuccessProbability computes the section's current odds.
func (s *Section) WaveSuccessProbability(cfg config.CrowdConfig) float64 {
	return WaveSuccessProbability(s.Stats(), cfg)
}

// SitDown clears participation flags on every fan.
func (s *Section) SitDown() {
	for _, f := range s.Fans() {
		f.SitDown()
	}
}
