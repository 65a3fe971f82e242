package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestGridSize(t *testing.T) {
	tests := []struct {
		name           string
		world          WorldConfig
		wantR, wantCol int
	}{
		{"exact", WorldConfig{Width: 800, Height: 608, CellSize: 32}, 19, 25},
		{"rounds up", WorldConfig{Width: 801, Height: 609, CellSize: 32}, 20, 26},
		{"tiny world floors to 1x1", WorldConfig{Width: 0.5, Height: 0.5, CellSize: 32}, 1, 1},
		{"zero cell size", WorldConfig{Width: 100, Height: 100}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c := tt.world.GridSize()
			if r != tt.wantR || c != tt.wantCol {
				t.Errorf("GridSize() = %dx%d, want %dx%d", r, c, tt.wantR, tt.wantCol)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		wantErr     bool
		errContains string
		validate    func(*testing.T, *Config)
	}{
		{
			name: "partial override keeps defaults",
			yamlContent: `
seed: 7
wave:
  success_threshold: 0.7
  sputter_threshold: 0.5
vendor:
  splat_base: 0.2
`,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Seed != 7 {
					t.Errorf("expected seed 7, got %d", cfg.Seed)
				}
				if cfg.Wave.SuccessThreshold != 0.7 {
					t.Errorf("expected success threshold 0.7, got %v", cfg.Wave.SuccessThreshold)
				}
				if cfg.Wave.CountdownSec != Default().Wave.CountdownSec {
					t.Errorf("expected default countdown to survive, got %v", cfg.Wave.CountdownSec)
				}
				if cfg.Vendor.SplatBase != 0.2 {
					t.Errorf("expected splat base 0.2, got %v", cfg.Vendor.SplatBase)
				}
				if len(cfg.Stadium.Sections) != 4 {
					t.Errorf("expected default sections, got %d", len(cfg.Stadium.Sections))
				}
			},
		},
		{
			name: "sections replace defaults",
			yamlContent: `
world: {width: 800, height: 608, cell_size: 32}
stadium:
  sections:
    - {id: north, row: 2, col: 1, rows: 3, seats: 4, occupancy: 0.5}
  drop_zones:
    - {row: 10, col: 3}
`,
			validate: func(t *testing.T, cfg *Config) {
				if len(cfg.Stadium.Sections) != 1 || cfg.Stadium.Sections[0].ID != "north" {
					t.Errorf("expected single section north, got %+v", cfg.Stadium.Sections)
				}
			},
		},
		{
			name: "inverted thresholds",
			yamlContent: `
wave:
  success_threshold: 0.4
  sputter_threshold: 0.6
`,
			wantErr:     true,
			errContains: "sputter",
		},
		{
			name: "section outside grid",
			yamlContent: `
stadium:
  sections:
    - {id: far, row: 1, col: 40, rows: 2, seats: 3, occupancy: 0.5}
`,
			wantErr:     true,
			errContains: "does not fit",
		},
		{
			name: "duplicate section ids",
			yamlContent: `
stadium:
  sections:
    - {id: A, row: 1, col: 1, rows: 2, seats: 3, occupancy: 0.5}
    - {id: A, row: 1, col: 8, rows: 2, seats: 3, occupancy: 0.5}
`,
			wantErr:     true,
			errContains: "duplicate",
		},
		{
			name: "bad wall side",
			yamlContent: `
stadium:
  walls:
    - {row: 1, col: 1, side: diagonal}
`,
			wantErr:     true,
			errContains: "unknown side",
		},
		{
			name: "vendor quality out of range",
			yamlContent: `
vendors:
  - {name: Bob, type: hotdog, quality: 5}
`,
			wantErr:     true,
			errContains: "quality",
		},
		{
			name:        "malformed yaml",
			yamlContent: "wave: [unterminated",
			wantErr:     true,
			errContains: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stadium.yaml")
			if err := os.WriteFile(path, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("write temp config: %v", err)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error containing %q, got %v", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STADIUM_ADMIN_KEY":   "secret",
		"STADIUM_PORT":        "9090",
		"STADIUM_SEED":        "99",
		"STADIUM_DB":          "/tmp/ledger.db",
		"STADIUM_JOURNAL_DIR": "/tmp/journal",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.AdminKey != "secret" || cfg.Server.Port != 9090 || cfg.Seed != 99 {
		t.Errorf("env not applied: %+v seed=%d", cfg.Server, cfg.Seed)
	}
	if cfg.Server.DBPath != "/tmp/ledger.db" || cfg.Server.JournalDir != "/tmp/journal" {
		t.Errorf("paths not applied: %+v", cfg.Server)
	}

	bad := Default()
	err := bad.ApplyEnv(func(k string) string {
		if k == "STADIUM_PORT" {
			return "eighty"
		}
		return ""
	})
	if err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "stadium.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Vendors) != 4 || cfg.Vendors[3].Name != "" {
		t.Errorf("vendors = %+v", cfg.Vendors)
	}
	if cfg.Server.DBPath != "data/stadium.db" || cfg.Engine.MaxEvents != Default().Engine.MaxEvents {
		t.Errorf("server/engine = %+v / %+v", cfg.Server, cfg.Engine)
	}
	if len(cfg.Stadium.Sections) != len(Default().Stadium.Sections) {
		t.Errorf("sections = %d", len(cfg.Stadium.Sections))
	}
}
