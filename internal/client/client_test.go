package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatusAndCommands(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/status":
			json.NewEncoder(w).Encode(map[string]any{"session_id": "abc", "score": 250, "wave_state": "idle"})
		case r.Method == http.MethodPost:
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			gotBody = nil
			json.NewDecoder(r.Body).Decode(&gotBody)
			if r.URL.Path == "/api/v1/vendor/7/recall" {
				http.Error(w, "vendor unavailable", http.StatusConflict)
				return
			}
			json.NewEncoder(w).Encode(Result{Success: true, Details: "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	ctx := context.Background()

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.SessionID != "abc" || st.Score != 250 || st.WaveState != "idle" {
		t.Errorf("status = %+v", st)
	}

	res, err := c.StartWave(ctx, "B", "super")
	if err != nil || !res.Success {
		t.Fatalf("StartWave = %+v, %v", res, err)
	}
	if gotAuth != "Bearer k" || gotPath != "/api/v1/wave/start" || gotBody["section"] != "B" || gotBody["kind"] != "super" {
		t.Errorf("request = %s %s %v", gotAuth, gotPath, gotBody)
	}

	if _, err := c.OverrideStrength(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if gotBody["strength"] != float64(42) {
		t.Errorf("strength body = %v", gotBody)
	}

	if _, err := c.Assign(ctx, 3, "C"); err != nil || gotPath != "/api/v1/vendor/3/assign" {
		t.Errorf("assign path = %s, err %v", gotPath, err)
	}

	_, err = c.Recall(ctx, 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusConflict || apiErr.Body != "vendor unavailable" {
		t.Errorf("recall err = %v", err)
	}
}

func TestWaitReadyHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "starting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := New(srv.URL, "").WaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
