// Package api provides the HTTP API for watching and steering a session.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/stadium-wave/internal/agents"
	"github.com/talgya/stadium-wave/internal/engine"
	"github.com/talgya/stadium-wave/internal/grid"
	"github.com/talgya/stadium-wave/internal/persistence"
	"github.com/talgya/stadium-wave/internal/wave"
)

const (
	maxStreamConns       = 4
	streamDialsPerMinute = 30
)

// Server serves the session over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional ledger
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	StreamInterval time.Duration // Snapshot push period on /stream
	AdminRate      int           // Admin requests per minute per client, 0 = unlimited

	limiter     *RateLimiter
	upgrader    websocket.Upgrader
	streamConns int32
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	if s.AdminRate > 0 && s.limiter == nil {
		s.limiter = NewRateLimiter(s.AdminRate, time.Minute)
	}
	if s.StreamInterval <= 0 {
		s.StreamInterval = 250 * time.Millisecond
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/sections", s.handleSections)
	mux.HandleFunc("/api/v1/section/", s.handleSectionDetail)
	mux.HandleFunc("/api/v1/vendors", s.handleVendors)
	mux.HandleFunc("/api/v1/waves", s.handleWaves)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/grid", s.handleGrid)
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(NewRateLimiter(streamDialsPerMinute, time.Minute), s.handleStream))

	// Mixed endpoints: GET observes, POST requires the bearer token.
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/vendor/", s.adminOnly(s.handleVendorRoutes))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/wave/start", s.adminOnly(postOnly(s.handleWaveStart)))
	mux.HandleFunc("/api/v1/wave/force", s.adminOnly(postOnly(s.handleWaveForce)))
	mux.HandleFunc("/api/v1/wave/strength", s.adminOnly(postOnly(s.handleWaveStrength)))
	mux.HandleFunc("/api/v1/grid/cell", s.adminOnly(postOnly(s.handleGridCell)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "admin_rate", s.AdminRate)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
// Authorized POSTs are rate limited per client.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no STADIUM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if s.limiter != nil && !s.limiter.admit(w, clientIP(r)) {
				return
			}
		}

		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"name":        "Stadium Wave",
		"session_id":  snap.SessionID,
		"tick":        snap.Tick,
		"clock":       snap.Clock,
		"score":       snap.Score,
		"wave_score":  snap.WaveScore,
		"banked":      snap.Banked,
		"wave_state":  snap.Wave.State,
		"strength":    snap.Wave.Strength,
		"multiplier":  snap.Wave.Multiplier,
		"fans":        snap.Stats.Fans,
		"vendors":     len(snap.Vendors),
		"waves":       snap.Stats.Waves,
		"served":      snap.Stats.Served,
		"splats":      snap.Stats.Splats,
		"avg_thirst":  snap.Stats.AvgThirst,
		"avg_happy":   snap.Stats.AvgHappiness,
		"persistence": s.DB != nil,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, s.Sim.Snapshot())
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveSession(s.Sim); err != nil {
		slog.Error("ledger save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "session saved",
	})
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Sections())
}

func (s *Server) handleSectionDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/section/")
	if id == "" {
		http.Error(w, "missing section id", http.StatusBadRequest)
		return
	}
	d, ok := s.Sim.SectionDetail(id)
	if !ok {
		http.Error(w, "section not found", http.StatusNotFound)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.VendorStatuses())
}

// handleVendorRoutes dispatches /vendor/:id, /vendor/:id/assign and
// /vendor/:id/recall.
func (s *Server) handleVendorRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api v1 vendor :id [action]
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "missing vendor id", http.StatusBadRequest)
		return
	}
	n, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		http.Error(w, "invalid vendor id", http.StatusBadRequest)
		return
	}
	id := agents.VendorID(n)

	action := ""
	if len(parts) >= 5 {
		action = parts[4]
	}
	switch action {
	case "":
		d, err := s.Sim.VendorDetail(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, d)
	case "assign":
		postOnly(func(w http.ResponseWriter, r *http.Request) { s.handleVendorAssign(w, r, id) })(w, r)
	case "recall":
		postOnly(func(w http.ResponseWriter, r *http.Request) {
			desc, err := s.Sim.RecallVendor(id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, map[string]any{"success": true, "details": desc})
		})(w, r)
	default:
		http.Error(w, "unknown vendor action", http.StatusNotFound)
	}
}

func (s *Server) handleVendorAssign(w http.ResponseWriter, r *http.Request, id agents.VendorID) {
	var req struct {
		Section string `json:"section"`
		Row     *int   `json:"row,omitempty"`
		Col     *int   `json:"col,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Section == "" {
		http.Error(w, "section required", http.StatusBadRequest)
		return
	}
	var seat *grid.Coord
	if req.Row != nil && req.Col != nil {
		seat = &grid.Coord{Row: *req.Row, Col: *req.Col}
	}
	desc, err := s.Sim.AssignVendor(id, req.Section, seat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": desc})
}

func (s *Server) handleWaves(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 200)
	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		waves, err := s.DB.RecentWaves(limit)
		if err != nil {
			slog.Error("wave query failed", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, waves)
		return
	}

	hist := s.Sim.WaveHistory()
	start := 0
	if len(hist) > limit {
		start = len(hist) - limit
	}
	writeJSON(w, hist[start:])
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)
	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		events, err := s.DB.RecentEvents(limit)
		if err != nil {
			slog.Error("event query failed", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
		return
	}

	events := s.Sim.Events(0)

	// Optional category filter (wave, vendor, control, fault).
	if cat := r.URL.Query().Get("category"); cat != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	rows := s.Sim.GridView()
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	writeJSON(w, map[string]any{
		"rows":      len(rows),
		"cols":      cols,
		"cell_size": s.Sim.Grid.CellSize(),
		"cells":     rows,
		"legend":    engine.Legend(),
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleWaveStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Section string `json:"section"`
		Kind    string `json:"kind,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	kind := wave.Kind(req.Kind)
	switch kind {
	case "", wave.KindNormal, wave.KindSuper:
	default:
		http.Error(w, "kind must be normal or super", http.StatusBadRequest)
		return
	}
	desc, err := s.Sim.StartWave(req.Section, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": desc})
}

func (s *Server) handleWaveForce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Class string `json:"class"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	desc, err := s.Sim.ForceNextSection(req.Class)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": desc})
}

func (s *Server) handleWaveStrength(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strength *float64 `json:"strength"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Strength == nil {
		http.Error(w, "strength required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": s.Sim.OverrideStrength(*req.Strength)})
}

func (s *Server) handleGridCell(w http.ResponseWriter, r *http.Request) {
	var req engine.CellEdit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	desc, err := s.Sim.EditCell(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": desc})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownVendor),
		errors.Is(err, agents.ErrNoSection),
		errors.Is(err, wave.ErrUnknownSection):
		return http.StatusNotFound
	case errors.Is(err, wave.ErrWaveActive),
		errors.Is(err, wave.ErrCoolingDown),
		errors.Is(err, agents.ErrAssignCooldown),
		errors.Is(err, agents.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, agents.ErrUnreachable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrOutOfBounds),
		errors.Is(err, engine.ErrBadEdit),
		errors.Is(err, wave.ErrBadClass):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), code)
}

func queryLimit(r *http.Request, def, ceiling int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= ceiling {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// streamConnOpen reserves a stream slot.
func (s *Server) streamConnOpen() bool {
	if atomic.AddInt32(&s.streamConns, 1) > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		return false
	}
	return true
}

func (s *Server) streamConnClose() { atomic.AddInt32(&s.streamConns, -1) }
