package config

// Default returns a playable configuration: a 33×20 grid at 32px holding
// four stand sections side by side, two drop zones on the concourse and a
// three-vendor roster.
func Default() *Config {
	return &Config{
		Seed: 0,
		World: WorldConfig{
			Width:    1056,
			Height:   640,
			CellSize: 32,
		},
		Stadium: StadiumConfig{
			Sections: []SectionLayout{
				{ID: "A", Row: 3, Col: 1, Rows: 4, Seats: 5, Occupancy: 0.75},
				{ID: "B", Row: 3, Col: 9, Rows: 4, Seats: 5, Occupancy: 0.8},
				{ID: "C", Row: 3, Col: 17, Rows: 4, Seats: 5, Occupancy: 0.8},
				{ID: "D", Row: 3, Col: 25, Rows: 4, Seats: 5, Occupancy: 0.75},
			},
			DropZones: []CellRef{{Row: 9, Col: 4}, {Row: 9, Col: 28}},
		},
		Crowd: CrowdConfig{
			ThirstRate:           1.2,
			ThirstPhaseThreshold: 60,
			HappinessDecayRate:   0.8,
			AttentionDecayRate:   0.5,
			AttentionWaveBoost:   15,

			ServeThirstReduction: 50,
			ServeHappinessBoost:  10,

			WaveBase:            80,
			WaveHappinessWeight: 0.2,
			WaveThirstWeight:    0.3,

			ParticipationBase:            0.1,
			ParticipationHappinessWeight: 0.5,
			ParticipationAttentionWeight: 0.3,
			ParticipationThirstWeight:    0.2,

			DifficultHappiness: 25,

			InitialHappiness: 65,
			HappinessSpread:  20,
			InitialThirstMax: 30,
			InitialAttention: 70,
			NoiseFrequency:   0.15,
		},
		Pathing: PathingConfig{
			CorridorCost: 1,
			StairCost:    1.5,
			RowEntryCost: 2,
			SeatCost:     2,

			RowEntryPenalty:          3,
			OccupiedSeatPenalty:      4,
			DifficultOccupantPenalty: 6,
			PenaltyCap:               10,
			MaxSegmentCost:           12,

			DetourTolerance:     15,
			DetourPenaltyWeight: 3,

			DefaultAbilities: AbilitySpec{CanEnterRows: true},
		},
		Wave: WaveConfig{
			StartupGraceSec:    5,
			TriggerIntervalSec: 1,
			CountdownSec:       1.5,
			ColumnIntervalSec:  0.25,
			CooldownSuccessSec: 12,
			CooldownFailureSec: 8,
			SectionCooldownSec: 20,

			HappinessLowBand:   20,
			HappinessHighBand:  60,
			TriggerChanceLow:   0.4,
			TriggerChanceMed:   0.6,
			TriggerChanceHigh:  0.9,
			EdgeSectionWeight:  3,
			SectionBonusWeight: 0.15,
			MomentumBonus:      0.1,

			SuccessThreshold:      0.6,
			SputterThreshold:      0.4,
			PeerPressureThreshold: 0.7,
			PeerPressureIntensity: 0.5,

			InitialStrength:        70,
			SuperStrengthBonus:     15,
			SuccessGain:            5,
			RecoveryBonus:          15,
			SputterLoss:            12,
			DeathLoss:              25,
			DeadStrengthFloor:      15,
			MaxConsecutiveFailures: 3,

			SectionPoints:         100,
			MultiplierStep:        0.5,
			SuccessHappinessBoost: 5,
			HistoryLimit:          50,
		},
		Vendor: VendorConfig{
			Speed:             96,
			QualitySpeedBonus: 0.15,

			AssignCooldownSec:  2,
			ScanIntervalSec:    1,
			IdleTimeoutSec:     8,
			ServiceDurationSec: 2.5,
			RetryDelaySec:      3,
			MinServeThirst:     40,

			BasePoints:          10,
			FastPhaseMultiplier: 1.5,

			PatrolIntervalSec: 3,
			PatrolBand:        6,
			PatrolZones:       []string{"corridor", "concourse", "stair"},
			PatrolAttempts:    5,

			FadeOutSec:     0.5,
			UnavailableSec: 2,
			FadeInSec:      0.5,

			SplatBase:        0.1,
			SplatPerPoint:    0.01,
			SplatMax:         0.9,
			SplatRecoverySec: 4,
			CollisionMargin:  8,
		},
		Vendors: []VendorSpec{
			{
				Name: "Hotdog Hal", Type: "hotdog", Quality: 2,
				Abilities: AbilitySpec{CanEnterRows: true},
				Lines: map[string][]string{
					"assigned": {"Dogs on the way!"},
					"serve":    {"Mustard's on the house.", "Hot dogs, get your hot dogs!"},
					"splat":    {"My buns!"},
				},
			},
			{
				Name: "Lemonade Lou", Type: "drinks", Quality: 1,
				Abilities: AbilitySpec{CanEnterRows: true},
				Lines: map[string][]string{
					"serve": {"Ice cold lemonade!"},
					"splat": {"Not the cooler!"},
				},
			},
			{
				Name: "Peanut Pat", Type: "snacks", Quality: 3,
				Abilities: AbilitySpec{CanEnterRows: true, IgnoreRowPenalty: true},
				Lines: map[string][]string{
					"serve":   {"Peanuts! Cracker Jack!"},
					"dropoff": {"Restocking, back in a flash."},
				},
			},
		},
		Engine: EngineConfig{
			TickIntervalMs:     50,
			Speed:              1,
			ReportEveryTicks:   1200,
			MaxEvents:          1000,
			BalanceIntervalSec: 2,
			AutoAssign:         true,
		},
		Server: ServerConfig{
			Port:               8080,
			DBPath:             ":memory:",
			StreamIntervalMs:   250,
			AdminRatePerMinute: 60,
		},
	}
}
