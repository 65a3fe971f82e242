// Package config holds every tunable of the stadium simulation.
// Values are data, not constants: the simulation packages read thresholds,
// costs, durations and probabilities from here and never hard-code them.
package config

// Config is the root of the YAML tuning file.
type Config struct {
	Seed int64 `yaml:"seed"` // 0 = random seed at startup

	World   WorldConfig   `yaml:"world"`
	Stadium StadiumConfig `yaml:"stadium"`
	Crowd   CrowdConfig   `yaml:"crowd"`
	Pathing PathingConfig `yaml:"pathing"`
	Wave    WaveConfig    `yaml:"wave"`
	Vendor  VendorConfig  `yaml:"vendor"`
	Vendors []VendorSpec  `yaml:"vendors"`
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
}

// WorldConfig sizes the cell lattice. Dimensions are derived as
// ceil(width/cell_size) × ceil(height/cell_size).
type WorldConfig struct {
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	CellSize float64 `yaml:"cell_size"`
	OriginX  float64 `yaml:"origin_x"`
	OriginY  float64 `yaml:"origin_y"`
}

// StadiumConfig is the static level layout.
type StadiumConfig struct {
	Sections  []SectionLayout `yaml:"sections"`
	DropZones []CellRef       `yaml:"drop_zones"`
	Blocked   []CellRef       `yaml:"blocked"`
	Walls     []WallSpec      `yaml:"walls"`
	Terrain   []TerrainSpec   `yaml:"terrain"`
}

// SectionLayout places one stand section on the grid. Col is the left
// row-entry column; seats fill Col+1..Col+Seats and the right row-entry sits
// at Col+Seats+1. Stairs run down both outer columns.
type SectionLayout struct {
	ID        string  `yaml:"id"`
	Row       int     `yaml:"row"`
	Col       int     `yaml:"col"`
	Rows      int     `yaml:"rows"`
	Seats     int     `yaml:"seats"`
	Occupancy float64 `yaml:"occupancy"` // 0.0–1.0
}

// CellRef names a single grid cell.
type CellRef struct {
	Row int `yaml:"row"`
	Col int `yaml:"col"`
}

// WallSpec registers a wall on one edge of a cell.
type WallSpec struct {
	Row  int    `yaml:"row"`
	Col  int    `yaml:"col"`
	Side string `yaml:"side"` // top, right, bottom, left
}

// TerrainSpec patches terrain penalty and height on a cell.
type TerrainSpec struct {
	Row     int     `yaml:"row"`
	Col     int     `yaml:"col"`
	Penalty float64 `yaml:"penalty"`
	Height  int     `yaml:"height"`
}

// CrowdConfig drives fan stat decay, vendor service and wave odds.
// Rates are per simulated second.
type CrowdConfig struct {
	ThirstRate           float64 `yaml:"thirst_rate"`
	ThirstPhaseThreshold float64 `yaml:"thirst_phase_threshold"`
	HappinessDecayRate   float64 `yaml:"happiness_decay_rate"`
	AttentionDecayRate   float64 `yaml:"attention_decay_rate"`
	AttentionWaveBoost   float64 `yaml:"attention_wave_boost"`

	ServeThirstReduction float64 `yaml:"serve_thirst_reduction"`
	ServeHappinessBoost  float64 `yaml:"serve_happiness_boost"`

	WaveBase            float64 `yaml:"wave_base"`
	WaveHappinessWeight float64 `yaml:"wave_happiness_weight"`
	WaveThirstWeight    float64 `yaml:"wave_thirst_weight"`

	ParticipationBase            float64 `yaml:"participation_base"`
	ParticipationHappinessWeight float64 `yaml:"participation_happiness_weight"`
	ParticipationAttentionWeight float64 `yaml:"participation_attention_weight"`
	ParticipationThirstWeight    float64 `yaml:"participation_thirst_weight"`

	DifficultHappiness float64 `yaml:"difficult_happiness"`

	InitialHappiness float64 `yaml:"initial_happiness"`
	HappinessSpread  float64 `yaml:"happiness_spread"`
	InitialThirstMax float64 `yaml:"initial_thirst_max"`
	InitialAttention float64 `yaml:"initial_attention"`
	NoiseFrequency   float64 `yaml:"noise_frequency"`
}

// AbilitySpec mirrors pathing abilities without importing the pathing package.
type AbilitySpec struct {
	IgnoreRowPenalty      bool `yaml:"ignore_row_penalty"`
	IgnoreOccupantPenalty bool `yaml:"ignore_occupant_penalty"`
	CanEnterRows          bool `yaml:"can_enter_rows"`
}

// PathingConfig holds segment costs and penalty caps.
type PathingConfig struct {
	CorridorCost float64 `yaml:"corridor_cost"`
	StairCost    float64 `yaml:"stair_cost"`
	RowEntryCost float64 `yaml:"row_entry_cost"`
	SeatCost     float64 `yaml:"seat_cost"`

	RowEntryPenalty          float64 `yaml:"row_entry_penalty"`
	OccupiedSeatPenalty      float64 `yaml:"occupied_seat_penalty"`
	DifficultOccupantPenalty float64 `yaml:"difficult_occupant_penalty"`
	PenaltyCap               float64 `yaml:"penalty_cap"`
	MaxSegmentCost           float64 `yaml:"max_segment_cost"`

	DetourTolerance     float64 `yaml:"detour_tolerance"` // per quality tier
	DetourPenaltyWeight float64 `yaml:"detour_penalty_weight"`

	DefaultAbilities AbilitySpec `yaml:"default_abilities"`
}

// WaveConfig tunes triggering, propagation, momentum and scoring.
type WaveConfig struct {
	StartupGraceSec    float64 `yaml:"startup_grace_sec"`
	TriggerIntervalSec float64 `yaml:"trigger_interval_sec"`
	CountdownSec       float64 `yaml:"countdown_sec"`
	ColumnIntervalSec  float64 `yaml:"column_interval_sec"`
	CooldownSuccessSec float64 `yaml:"cooldown_success_sec"`
	CooldownFailureSec float64 `yaml:"cooldown_failure_sec"`
	SectionCooldownSec float64 `yaml:"section_cooldown_sec"`

	HappinessLowBand   float64 `yaml:"happiness_low_band"`  // below: low band
	HappinessHighBand  float64 `yaml:"happiness_high_band"` // above: high band
	TriggerChanceLow   float64 `yaml:"trigger_chance_low"`
	TriggerChanceMed   float64 `yaml:"trigger_chance_med"`
	TriggerChanceHigh  float64 `yaml:"trigger_chance_high"`
	EdgeSectionWeight  float64 `yaml:"edge_section_weight"`
	SectionBonusWeight float64 `yaml:"section_bonus_weight"`
	MomentumBonus      float64 `yaml:"momentum_bonus"`

	SuccessThreshold      float64 `yaml:"success_threshold"`
	SputterThreshold      float64 `yaml:"sputter_threshold"`
	PeerPressureThreshold float64 `yaml:"peer_pressure_threshold"`
	PeerPressureIntensity float64 `yaml:"peer_pressure_intensity"`

	InitialStrength        float64 `yaml:"initial_strength"`
	SuperStrengthBonus     float64 `yaml:"super_strength_bonus"`
	SuccessGain            float64 `yaml:"success_gain"`
	RecoveryBonus          float64 `yaml:"recovery_bonus"`
	SputterLoss            float64 `yaml:"sputter_loss"`
	DeathLoss              float64 `yaml:"death_loss"`
	DeadStrengthFloor      float64 `yaml:"dead_strength_floor"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures"`

	SectionPoints         int     `yaml:"section_points"`
	MultiplierStep        float64 `yaml:"multiplier_step"`
	SuccessHappinessBoost float64 `yaml:"success_happiness_boost"`
	HistoryLimit          int     `yaml:"history_limit"`
}

// VendorConfig tunes vendor behavior timers, scoring and splat odds.
type VendorConfig struct {
	Speed             float64 `yaml:"speed"` // px per second
	QualitySpeedBonus float64 `yaml:"quality_speed_bonus"`

	AssignCooldownSec  float64 `yaml:"assign_cooldown_sec"`
	ScanIntervalSec    float64 `yaml:"scan_interval_sec"`
	IdleTimeoutSec     float64 `yaml:"idle_timeout_sec"`
	ServiceDurationSec float64 `yaml:"service_duration_sec"`
	RetryDelaySec      float64 `yaml:"retry_delay_sec"`
	MinServeThirst     float64 `yaml:"min_serve_thirst"`

	BasePoints          int     `yaml:"base_points"`
	FastPhaseMultiplier float64 `yaml:"fast_phase_multiplier"`

	PatrolIntervalSec float64  `yaml:"patrol_interval_sec"`
	PatrolBand        int      `yaml:"patrol_band"` // columns either side
	PatrolZones       []string `yaml:"patrol_zones"`
	PatrolAttempts    int      `yaml:"patrol_attempts"`

	FadeOutSec     float64 `yaml:"fade_out_sec"`
	UnavailableSec float64 `yaml:"unavailable_sec"`
	FadeInSec      float64 `yaml:"fade_in_sec"`

	SplatBase        float64 `yaml:"splat_base"`
	SplatPerPoint    float64 `yaml:"splat_per_point"`
	SplatMax         float64 `yaml:"splat_max"`
	SplatRecoverySec float64 `yaml:"splat_recovery_sec"`
	CollisionMargin  float64 `yaml:"collision_margin"` // px around the wave front
}

// VendorSpec is one roster entry. Lines maps a moment ("assigned",
// "serve", "splat", "dropoff") to dialogue variants.
type VendorSpec struct {
	Name      string              `yaml:"name"`
	Type      string              `yaml:"type"`
	Quality   int                 `yaml:"quality"`
	Abilities AbilitySpec         `yaml:"abilities"`
	Lines     map[string][]string `yaml:"lines"`
}

// EngineConfig controls the tick loop and orchestration cadence.
type EngineConfig struct {
	TickIntervalMs     int     `yaml:"tick_interval_ms"`
	Speed              float64 `yaml:"speed"`
	ReportEveryTicks   uint64  `yaml:"report_every_ticks"`
	MaxEvents          int     `yaml:"max_events"`
	BalanceIntervalSec float64 `yaml:"balance_interval_sec"`
	AutoAssign         bool    `yaml:"auto_assign"`
}

// ServerConfig covers the HTTP surface and session ledger.
type ServerConfig struct {
	Port               int    `yaml:"port"`
	AdminKey           string `yaml:"admin_key"`
	DBPath             string `yaml:"db_path"` // ":memory:" keeps the ledger in-process
	JournalDir         string `yaml:"journal_dir"`
	StreamIntervalMs   int    `yaml:"stream_interval_ms"`
	AdminRatePerMinute int    `yaml:"admin_rate_per_minute"`
}
