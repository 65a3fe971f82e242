// Command stadiumsim runs the stadium wave simulation with its HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/stadium-wave/internal/api"
	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/engine"
	"github.com/talgya/stadium-wave/internal/persistence"
)

func main() {
	logger := newLogger(os.Getenv("STADIUM_LOG_LEVEL"))
	slog.SetDefault(logger)

	slog.Info("Stadium Wave: crowd wave and vendor simulation")

	cfg, err := loadConfig(os.Getenv("STADIUM_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Server.AdminKey == "" {
		slog.Warn("STADIUM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	sim, err := engine.NewSimulation(cfg, engine.Options{Logger: logger})
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Ledger ────────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Server.DBPath); cfg.Server.DBPath != ":memory:" && dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	db, err := persistence.Open(cfg.Server.DBPath, sim.SessionID)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Server.DBPath)

	rec := persistence.NewRecorder(db, 4096, logger)
	sim.Subscribe(rec.Listener())
	recDone := make(chan struct{})
	go func() {
		rec.Run(ctx, time.Second)
		close(recDone)
	}()

	var journal *persistence.Journal
	if cfg.Server.JournalDir != "" {
		journal = persistence.NewJournal(cfg.Server.JournalDir, "events")
		sim.Subscribe(journal.Listener(func(err error) {
			logger.Warn("journal write failed", "error", err)
		}))
		slog.Info("event journal enabled", "dir", cfg.Server.JournalDir)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(time.Duration(cfg.Engine.TickIntervalMs)*time.Millisecond, cfg.Engine.Speed, logger)
	eng.ReportEvery = cfg.Engine.ReportEveryTicks
	eng.OnTick = sim.Tick
	eng.OnReport = func(tick uint64) {
		sim.Report(tick)
		if err := db.SaveSession(sim); err != nil {
			slog.Error("periodic save failed", "error", err)
		}
		if journal != nil {
			if err := journal.Flush(); err != nil {
				slog.Warn("journal flush failed", "error", err)
			}
		}
	}

	apiServer := &api.Server{
		Sim:            sim,
		Eng:            eng,
		DB:             db,
		Port:           cfg.Server.Port,
		AdminKey:       cfg.Server.AdminKey,
		StreamInterval: time.Duration(cfg.Server.StreamIntervalMs) * time.Millisecond,
		AdminRate:      cfg.Server.AdminRatePerMinute,
	}
	httpServer := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nThe stands are full: %d fans across %d sections, %d vendors working the aisles.\n",
		sim.Stadium.FanCount(), len(sim.Stadium.Sections), len(sim.Vendors))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	// Final save on shutdown.
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	cancel()
	<-recDone
	slog.Info("final save...")
	if err := db.SaveSession(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}

	fmt.Printf("Final score %d after %s.\n", sim.Score(), engine.Clock(sim.Elapsed()))
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		slog.Info("config loaded", "path", path)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger uses text output on a terminal and JSON otherwise.
func newLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
