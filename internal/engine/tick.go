// Package engine provides the tick-based simulation loop and the
// orchestrator that advances every stadium system in a fixed order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the simulation forward. Every tick advances the
// simulation by Interval of simulated time; Speed only changes how fast
// ticks happen in wall-clock time, so runs stay reproducible.
type Engine struct {
	Interval    time.Duration // Simulated time per tick
	ReportEvery uint64        // Ticks between OnReport calls, 0 disables

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64, dt float64)
	OnReport func(tick uint64)

	mu      sync.Mutex
	tick    uint64 // Monotonic, never resets
	speed   float64
	running bool
	stop    chan struct{}
	logger  *slog.Logger
}

// NewEngine creates an engine ticking every interval at the given speed.
func NewEngine(interval time.Duration, speed float64, logger *slog.Logger) *Engine {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Interval: interval,
		speed:    speed,
		logger:   logger,
	}
}

// Tick returns the number of ticks processed.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the wall-clock multiplier; 0 means paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the wall-clock multiplier.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until Stop is called or ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	e.logger.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.logger.Info("simulation engine stopped", "tick", e.Tick())
	}()

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond
		if speed > 0 {
			start := time.Now()
			e.Step()
			// Sleep for the remainder of the tick interval, adjusted for speed.
			target := time.Duration(float64(e.Interval) / speed)
			wait = target - time.Since(start)
		}
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick, e.Interval.Seconds())
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}
}

// Clock formats elapsed simulated seconds as m:ss.
func Clock(elapsed float64) string {
	if elapsed < 0 {
		elapsed = 0
	}
	total := int(elapsed)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
