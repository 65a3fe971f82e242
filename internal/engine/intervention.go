package engine

import (
	"fmt"

	"github.com/talgya/stadium-wave/internal/agents"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/wave"
)

// StartWave launches a wave from a section, skipping trigger rolls.
func (s *Simulation) StartWave(sectionID string, kind wave.Kind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.Waves.StartWave(sectionID, kind)
	if err != nil {
		return "", err
	}
	desc := fmt.Sprintf("The operator starts a %s wave in section %s", w.Kind, sectionID)
	s.control("startWave", desc, map[string]any{"section": sectionID, "wave": w.ID, "kind": string(w.Kind)})
	return desc, nil
}

// ForceNextSection makes the next section evaluated take the given class.
func (s *Simulation) ForceNextSection(class string) (string, error) {
	c, err := wave.ParseClassification(class)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Waves.ForceNextSection(c); err != nil {
		return "", err
	}
	desc := fmt.Sprintf("The next section is rigged for %s", c)
	s.control("forceSection", desc, map[string]any{"class": c.String()})
	return desc, nil
}

// OverrideStrength replaces the wave strength after the next column.
func (s *Simulation) OverrideStrength(v float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Waves.OverrideStrength(v)
	desc := fmt.Sprintf("Wave strength override queued (%.0f)", v)
	s.control("overrideStrength", desc, map[string]any{"strength": v})
	return desc
}

// AssignVendor sends a vendor to a section, optionally to a specific seat.
func (s *Simulation) AssignVendor(id agents.VendorID, sectionID string, seat *grid.Coord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendorIndex[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownVendor, id)
	}
	sec, ok := s.Stadium.Section(sectionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", agents.ErrNoSection, sectionID)
	}
	if err := v.AssignToSection(sec.Index, seat); err != nil {
		return "", err
	}
	desc := fmt.Sprintf("%s is sent to section %s", v.Name(), sec.ID)
	s.control("assignVendor", desc, map[string]any{"vendor": id, "section": sec.ID})
	return desc, nil
}

// RecallVendor sends a vendor to the nearest drop zone.
func (s *Simulation) RecallVendor(id agents.VendorID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendorIndex[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownVendor, id)
	}
	if err := v.Recall(); err != nil {
		return "", err
	}
	desc := fmt.Sprintf("%s is called back to restock", v.Name())
	s.control("recallVendor", desc, map[string]any{"vendor": id})
	return desc, nil
}

// ClearVendorPath halts a vendor where it stands.
func (s *Simulation) ClearVendorPath(id agents.VendorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendorIndex[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVendor, id)
	}
	var h agents.Handle = v
	h.ClearPath()
	return nil
}

// CellEdit describes a grid edit. Nil fields are left unchanged.
type CellEdit struct {
	Row      int      `json:"row"`
	Col      int      `json:"col"`
	Passable *bool    `json:"passable,omitempty"`
	Terrain  *float64 `json:"terrain,omitempty"`
	Height   *int     `json:"height,omitempty"`
	Wall     string   `json:"wall,omitempty"` // top, right, bottom or left
	WallOn   bool     `json:"wall_on,omitempty"`
}

// EditCell applies a grid edit between ticks. Vendors whose routes cross
// the edited cell re-plan through the grid's change notifications.
func (s *Simulation) EditCell(e CellEdit) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Grid.InBounds(e.Row, e.Col) {
		return "", fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, e.Row, e.Col)
	}
	var dir grid.Direction
	if e.Wall != "" {
		d, ok := grid.ParseDirection(e.Wall)
		if !ok {
			return "", fmt.Errorf("%w: unknown wall direction %q", ErrBadEdit, e.Wall)
		}
		dir = d
	}

	changed := 0
	if e.Passable != nil && s.Grid.SetPassable(e.Row, e.Col, *e.Passable) {
		changed++
	}
	if e.Terrain != nil && s.Grid.SetTerrainPenalty(e.Row, e.Col, *e.Terrain) {
		changed++
	}
	if e.Height != nil && s.Grid.SetHeight(e.Row, e.Col, *e.Height) {
		changed++
	}
	if e.Wall != "" && s.Grid.SetWall(e.Row, e.Col, dir, e.WallOn) {
		changed++
	}

	desc := fmt.Sprintf("Grid cell (%d,%d) edited, %d change(s)", e.Row, e.Col, changed)
	s.control("editCell", desc, map[string]any{"row": e.Row, "col": e.Col, "changes": changed})
	return desc, nil
}

func (s *Simulation) control(kind, desc string, meta map[string]any) {
	s.logger.Info("intervention", "kind", kind, "description", desc)
	s.record(Event{Category: CategoryControl, Kind: kind, Description: desc, Meta: meta})
}
