package crowd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
)

// Stadium is the set of sections plus lookups from cells and fans to seats.
type Stadium struct {
	Sections  []*Section
	DropZones []grid.Coord

	cfg       config.CrowdConfig
	grid      *grid.Grid
	seatIndex map[grid.Coord]*Seat
	fanIndex  map[FanID]*Seat
	rowIndex  map[grid.Coord]*Row
	byID      map[string]*Section
}

// NewStadium wraps already-built sections. Build is the usual entry point;
// tests use this to assemble small fixtures.
func NewStadium(g *grid.Grid, cfg config.CrowdConfig, sections []*Section) *Stadium {
	s := &Stadium{
		Sections:  sections,
		cfg:       cfg,
		grid:      g,
		seatIndex: make(map[grid.Coord]*Seat),
		fanIndex:  make(map[FanID]*Seat),
		rowIndex:  make(map[grid.Coord]*Row),
		byID:      make(map[string]*Section, len(sections)),
	}
	for i, sec := range sections {
		sec.Index = i
		s.byID[sec.ID] = sec
		for _, r := range sec.Rows {
			for _, seat := range r.Seats {
				s.seatIndex[seat.Cell] = seat
				s.rowIndex[seat.Cell] = r
				if seat.Fan != nil {
					s.fanIndex[seat.Fan.ID] = seat
				}
			}
		}
	}
	return s
}

// Build lays the stand sections out on the grid, fills seats and registers
// fans as grid occupants. Each section row gets a row-entry cell at both
// ends and aisle stairs outside those. Walls separate consecutive seat
// rows, so inner rows are reached through their ends; the front row also
// opens onto the corridor above it and the back row onto the walkway
// below. Cells above that corridor become field, cells below the walkway
// row become concourse.
func Build(g *grid.Grid, layout config.StadiumConfig, cfg config.CrowdConfig, seed int64, rng entropy.Source, logger *slog.Logger) (*Stadium, error) {
	if logger == nil {
		logger = slog.Default()
	}
	moods := NewMoodField(cfg, seed, rng)

	minRow, maxBottom := g.Rows(), 0
	for _, l := range layout.Sections {
		if l.Row < minRow {
			minRow = l.Row
		}
		if bottom := l.Row + l.Rows; bottom > maxBottom {
			maxBottom = bottom
		}
	}

	var (
		sections []*Section
		nextFan  FanID = 1
	)
	for _, l := range layout.Sections {
		if !g.InBounds(l.Row, l.Col) || !g.InBounds(l.Row+l.Rows, l.Col+l.Seats+1) {
			return nil, fmt.Errorf("section %s does not fit in %dx%d grid", l.ID, g.Rows(), g.Cols())
		}
		sec := &Section{
			ID: l.ID,
			Bounds: grid.Rect{
				MinRow: l.Row, MinCol: l.Col,
				MaxRow: l.Row + l.Rows - 1, MaxCol: l.Col + l.Seats + 1,
			},
		}

		var seats []*Seat
		for i := 0; i < l.Rows; i++ {
			r := l.Row + i
			row := &Row{Index: i}
			left, right := l.Col, l.Col+l.Seats+1
			g.SetZone(r, left, grid.ZoneRowEntry)
			g.SetZone(r, right, grid.ZoneRowEntry)
			sec.Entries = append(sec.Entries, grid.Coord{Row: r, Col: left}, grid.Coord{Row: r, Col: right})
			for _, sc := range []int{left - 1, right + 1} {
				if g.Zone(r, sc) == grid.ZoneCorridor {
					g.SetZone(r, sc, grid.ZoneStair)
				}
			}
			for c := left; c <= right; c++ {
				g.SetHeight(r, c, i+1)
			}
			for j := 0; j < l.Seats; j++ {
				c := left + 1 + j
				g.SetZone(r, c, grid.ZoneSeat)
				if i < l.Rows-1 {
					g.SetWall(r, c, grid.Bottom, true)
				}
				seat := &Seat{Index: j, Cell: grid.Coord{Row: r, Col: c}}
				row.Seats = append(row.Seats, seat)
				seats = append(seats, seat)
			}
			sec.Rows = append(sec.Rows, row)
		}

		picked := pickSeats(len(seats), l.Occupancy, rng)
		sort.Ints(picked)
		for _, idx := range picked {
			seat := seats[idx]
			seat.Fan = moods.Fan(nextFan, seat.Cell)
			g.AddOccupant(seat.Cell.Row, seat.Cell.Col, grid.OccupantRef{Kind: grid.OccupantFan, ID: uint64(nextFan)})
			nextFan++
		}
		sections = append(sections, sec)
	}

	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if g.Zone(r, c) != grid.ZoneCorridor {
				continue
			}
			switch {
			case r < minRow-1:
				g.SetZone(r, c, grid.ZoneField)
			case r > maxBottom:
				g.SetZone(r, c, grid.ZoneConcourse)
			}
		}
	}

	s := NewStadium(g, cfg, sections)
	for _, dz := range layout.DropZones {
		g.SetZone(dz.Row, dz.Col, grid.ZoneDropZone)
		s.DropZones = append(s.DropZones, grid.Coord{Row: dz.Row, Col: dz.Col})
	}
	for _, b := range layout.Blocked {
		g.SetPassable(b.Row, b.Col, false)
	}
	for _, w := range layout.Walls {
		dir, ok := grid.ParseDirection(w.Side)
		if !ok {
			return nil, fmt.Errorf("wall (%d,%d): unknown side %q", w.Row, w.Col, w.Side)
		}
		g.SetWall(w.Row, w.Col, dir, true)
	}
	for _, t := range layout.Terrain {
		g.SetTerrainPenalty(t.Row, t.Col, t.Penalty)
		g.SetHeight(t.Row, t.Col, t.Height)
	}

	logger.Info("stadium built",
		"sections", len(sections),
		"fans", len(s.fanIndex),
		"drop_zones", len(s.DropZones),
		"grid", g.String(),
	)
	return s, nil
}

// Tick decays every fan by dt seconds.
func (s *Stadium) Tick(dt float64) {
	for _, sec := range s.Sections {
		for _, r := range sec.Rows {
			for _, seat := range r.Seats {
				if seat.Fan != nil {
					seat.Fan.Tick(dt, s.cfg)
				}
			}
		}
	}
}

// Grid returns the grid the stands are laid out on.
func (s *Stadium) Grid() *grid.Grid { return s.grid }

// Config returns the crowd tuning in use.
func (s *Stadium) Config() config.CrowdConfig { return s.cfg }

// Section looks a section up by ID.
func (s *Stadium) Section(id string) (*Section, bool) {
	sec, ok := s.byID[id]
	return sec, ok
}

// SectionAt returns the section at an index.
func (s *Stadium) SectionAt(idx int) (*Section, bool) {
	if idx < 0 || idx >= len(s.Sections) {
		return nil, false
	}
	return s.Sections[idx], true
}

// Column returns one column of a section, nil for bad indexes.
func (s *Stadium) Column(sectionIdx, col int) []*Seat {
	sec, ok := s.SectionAt(sectionIdx)
	if !ok {
		return nil
	}
	return sec.Column(col)
}

// SeatAt returns the seat on a cell.
func (s *Stadium) SeatAt(c grid.Coord) (*Seat, bool) {
	seat, ok := s.seatIndex[c]
	return seat, ok
}

// SeatOf returns the seat a fan sits in.
func (s *Stadium) SeatOf(id FanID) (*Seat, bool) {
	seat, ok := s.fanIndex[id]
	return seat, ok
}

// SectionOf returns the section containing a seat cell.
func (s *Stadium) SectionOf(c grid.Coord) (*Section, bool) {
	for _, sec := range s.Sections {
		if sec.Bounds.Contains(c) {
			return sec, true
		}
	}
	return nil, false
}

// FanCount returns the number of seated fans.
func (s *Stadium) FanCount() int { return len(s.fanIndex) }

// SeatOccupancy implements pathing.Occupancy.
func (s *Stadium) SeatOccupancy(c grid.Coord) (bool, float64) {
	seat, ok := s.seatIndex[c]
	if !ok || seat.Fan == nil {
		return false, 0
	}
	return true, s.rowIndex[c].Density()
}

// Difficult implements pathing.Occupancy.
func (s *Stadium) Difficult(c grid.Coord) bool {
	seat, ok := s.seatIndex[c]
	return ok && seat.Fan != nil && seat.Fan.Difficult(s.cfg)
}

// Candidate is a seat a vendor could serve.
type Candidate struct {
	Seat    *Seat
	Section int
}

// ThirstyCandidates lists occupied, unreserved seats whose fan has at
// least minThirst. sectionIdx < 0 searches every section.
func (s *Stadium) ThirstyCandidates(minThirst float64, sectionIdx int) []Candidate {
	var out []Candidate
	for i, sec := range s.Sections {
		if sectionIdx >= 0 && i != sectionIdx {
			continue
		}
		for _, r := range sec.Rows {
			for _, seat := range r.Seats {
				if seat.Fan == nil || seat.ReservedBy != 0 || seat.Fan.Thirst < minThirst {
					continue
				}
				out = append(out, Candidate{Seat: seat, Section: i})
			}
		}
	}
	return out
}

// Reserve claims a seat for a vendor. Fails when another vendor holds it.
func (s *Stadium) Reserve(c grid.Coord, vendorID uint64) bool {
	seat, ok := s.seatIndex[c]
	if !ok || (seat.ReservedBy != 0 && seat.ReservedBy != vendorID) {
		return false
	}
	seat.ReservedBy = vendorID
	return true
}

// Release drops a vendor's claim on a seat.
func (s *Stadium) Release(c grid.Coord, vendorID uint64) {
	if seat, ok := s.seatIndex[c]; ok && seat.ReservedBy == vendorID {
		seat.ReservedBy = 0
	}
}

// Stats returns per-section aggregates in section order.
func (s *Stadium) Stats() []SectionStats {
	out := make([]SectionStats, len(s.Sections))
	for i, sec := range s.Sections {
		out[i] = sec.Stats()
	}
	return out
}
