package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML tuning file on top of Default(). Keys missing from the
// file keep their default values; lists in the file replace the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides process-level settings from the environment.
// getenv is usually os.Getenv; tests pass a map lookup.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("STADIUM_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := getenv("STADIUM_DB"); v != "" {
		c.Server.DBPath = v
	}
	if v := getenv("STADIUM_JOURNAL_DIR"); v != "" {
		c.Server.JournalDir = v
	}
	if v := getenv("STADIUM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STADIUM_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("STADIUM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STADIUM_SEED: %w", err)
		}
		c.Seed = seed
	}
	return nil
}

// GridSize returns the lattice dimensions the world settings produce.
func (w WorldConfig) GridSize() (rows, cols int) {
	if w.CellSize <= 0 {
		return 1, 1
	}
	cols = int(math.Ceil(w.Width / w.CellSize))
	rows = int(math.Ceil(w.Height / w.CellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return rows, cols
}

// Validate checks that values are in range and the layout fits the grid.
func (c *Config) Validate() error {
	if c.World.CellSize <= 0 {
		return fmt.Errorf("world.cell_size must be > 0, got %v", c.World.CellSize)
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world size must be positive, got %vx%v", c.World.Width, c.World.Height)
	}
	if err := c.validateStadium(); err != nil {
		return err
	}
	if err := c.validateWave(); err != nil {
		return err
	}
	if err := c.validateVendor(); err != nil {
		return err
	}

	p := c.Pathing
	for name, v := range map[string]float64{
		"corridor_cost":              p.CorridorCost,
		"stair_cost":                 p.StairCost,
		"row_entry_cost":             p.RowEntryCost,
		"seat_cost":                  p.SeatCost,
		"row_entry_penalty":          p.RowEntryPenalty,
		"occupied_seat_penalty":      p.OccupiedSeatPenalty,
		"difficult_occupant_penalty": p.DifficultOccupantPenalty,
		"penalty_cap":                p.PenaltyCap,
		"detour_tolerance":           p.DetourTolerance,
	} {
		if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("pathing.%s must be finite and >= 0, got %v", name, v)
		}
	}
	if p.MaxSegmentCost < 1 || math.IsInf(p.MaxSegmentCost, 0) {
		return fmt.Errorf("pathing.max_segment_cost must be finite and >= 1, got %v", p.MaxSegmentCost)
	}
	if p.DetourPenaltyWeight < 1 {
		return fmt.Errorf("pathing.detour_penalty_weight must be >= 1, got %v", p.DetourPenaltyWeight)
	}

	if c.Crowd.ThirstPhaseThreshold < 0 || c.Crowd.ThirstPhaseThreshold > 100 {
		return fmt.Errorf("crowd.thirst_phase_threshold must be in [0,100], got %v", c.Crowd.ThirstPhaseThreshold)
	}
	if c.Crowd.ThirstRate < 0 || c.Crowd.HappinessDecayRate < 0 || c.Crowd.AttentionDecayRate < 0 {
		return fmt.Errorf("crowd rates must be >= 0")
	}

	if c.Engine.TickIntervalMs <= 0 {
		return fmt.Errorf("engine.tick_interval_ms must be > 0, got %d", c.Engine.TickIntervalMs)
	}
	if c.Engine.MaxEvents <= 0 {
		return fmt.Errorf("engine.max_events must be > 0, got %d", c.Engine.MaxEvents)
	}
	return nil
}

func (c *Config) validateStadium() error {
	rows, cols := c.World.GridSize()
	inGrid := func(r, col int) bool { return r >= 0 && r < rows && col >= 0 && col < cols }

	if len(c.Stadium.Sections) == 0 {
		return fmt.Errorf("stadium.sections cannot be empty")
	}
	seen := make(map[string]bool, len(c.Stadium.Sections))
	for i, s := range c.Stadium.Sections {
		if s.ID == "" {
			return fmt.Errorf("stadium.sections[%d]: id cannot be empty", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("stadium.sections[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Rows <= 0 || s.Seats <= 0 {
			return fmt.Errorf("section %s: rows and seats must be > 0", s.ID)
		}
		if s.Occupancy < 0 || s.Occupancy > 1 {
			return fmt.Errorf("section %s: occupancy must be in [0,1], got %v", s.ID, s.Occupancy)
		}
		// Row-entry cells at Col and Col+Seats+1, one corridor row below.
		if !inGrid(s.Row, s.Col) || !inGrid(s.Row+s.Rows, s.Col+s.Seats+1) {
			return fmt.Errorf("section %s does not fit in %dx%d grid", s.ID, rows, cols)
		}
	}
	for _, dz := range c.Stadium.DropZones {
		if !inGrid(dz.Row, dz.Col) {
			return fmt.Errorf("drop zone (%d,%d) out of bounds", dz.Row, dz.Col)
		}
	}
	for _, b := range c.Stadium.Blocked {
		if !inGrid(b.Row, b.Col) {
			return fmt.Errorf("blocked cell (%d,%d) out of bounds", b.Row, b.Col)
		}
	}
	for _, w := range c.Stadium.Walls {
		if !inGrid(w.Row, w.Col) {
			return fmt.Errorf("wall cell (%d,%d) out of bounds", w.Row, w.Col)
		}
		switch w.Side {
		case "top", "right", "bottom", "left":
		default:
			return fmt.Errorf("wall (%d,%d): unknown side %q", w.Row, w.Col, w.Side)
		}
	}
	for _, t := range c.Stadium.Terrain {
		if !inGrid(t.Row, t.Col) {
			return fmt.Errorf("terrain cell (%d,%d) out of bounds", t.Row, t.Col)
		}
		if t.Penalty < 0 {
			return fmt.Errorf("terrain cell (%d,%d): penalty must be >= 0", t.Row, t.Col)
		}
	}
	return nil
}

func (c *Config) validateWave() error {
	w := c.Wave
	if w.SputterThreshold <= 0 || w.SuccessThreshold > 1 || w.SputterThreshold >= w.SuccessThreshold {
		return fmt.Errorf("wave thresholds must satisfy 0 < sputter (%v) < success (%v) <= 1",
			w.SputterThreshold, w.SuccessThreshold)
	}
	if w.HappinessLowBand > w.HappinessHighBand {
		return fmt.Errorf("wave.happiness_low_band (%v) > happiness_high_band (%v)",
			w.HappinessLowBand, w.HappinessHighBand)
	}
	for name, v := range map[string]float64{
		"trigger_chance_low":      w.TriggerChanceLow,
		"trigger_chance_med":      w.TriggerChanceMed,
		"trigger_chance_high":     w.TriggerChanceHigh,
		"peer_pressure_threshold": w.PeerPressureThreshold,
		"peer_pressure_intensity": w.PeerPressureIntensity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("wave.%s must be in [0,1], got %v", name, v)
		}
	}
	if w.InitialStrength < 0 || w.InitialStrength > 100 {
		return fmt.Errorf("wave.initial_strength must be in [0,100], got %v", w.InitialStrength)
	}
	if w.ColumnIntervalSec < 0 || w.CountdownSec < 0 || w.CooldownSuccessSec < 0 ||
		w.CooldownFailureSec < 0 || w.SectionCooldownSec < 0 || w.StartupGraceSec < 0 {
		return fmt.Errorf("wave durations must be >= 0")
	}
	if w.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("wave.max_consecutive_failures must be >= 0, got %d", w.MaxConsecutiveFailures)
	}
	if w.EdgeSectionWeight <= 0 {
		return fmt.Errorf("wave.edge_section_weight must be > 0, got %v", w.EdgeSectionWeight)
	}
	return nil
}

func (c *Config) validateVendor() error {
	v := c.Vendor
	if v.Speed <= 0 {
		return fmt.Errorf("vendor.speed must be > 0, got %v", v.Speed)
	}
	if v.ServiceDurationSec <= 0 {
		return fmt.Errorf("vendor.service_duration_sec must be > 0, got %v", v.ServiceDurationSec)
	}
	if v.SplatBase < 0 || v.SplatMax > 1 || v.SplatBase > v.SplatMax {
		return fmt.Errorf("vendor splat odds must satisfy 0 <= splat_base (%v) <= splat_max (%v) <= 1",
			v.SplatBase, v.SplatMax)
	}
	if v.PatrolAttempts < 1 {
		return fmt.Errorf("vendor.patrol_attempts must be >= 1, got %d", v.PatrolAttempts)
	}
	for i, spec := range c.Vendors {
		if spec.Quality < 1 || spec.Quality > 3 {
			return fmt.Errorf("vendors[%d] (%s): quality must be between 1 and 3, got %d", i, spec.Name, spec.Quality)
		}
		if spec.Type == "" {
			return fmt.Errorf("vendors[%d] (%s): type cannot be empty", i, spec.Name)
		}
	}
	return nil
}
