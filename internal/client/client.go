// Package client talks to a running stadiumsim over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name       string  `json:"name"`
	SessionID  string  `json:"session_id"`
	Tick       uint64  `json:"tick"`
	Clock      string  `json:"clock"`
	Speed      float64 `json:"speed"`
	Running    bool    `json:"running"`
	Score      int     `json:"score"`
	WaveScore  int     `json:"wave_score"`
	Banked     int     `json:"banked"`
	WaveState  string  `json:"wave_state"`
	Strength   float64 `json:"strength"`
	Multiplier float64 `json:"multiplier"`
	Fans       int     `json:"fans"`
	Vendors    int     `json:"vendors"`
	Waves      int     `json:"waves"`
	Served     int     `json:"served"`
	Splats     int     `json:"splats"`
	AvgThirst  float64 `json:"avg_thirst"`
	AvgHappy   float64 `json:"avg_happy"`
}

// Result is the response body of every admin POST.
type Result struct {
	Success bool   `json:"success"`
	Details string `json:"details"`
}

// APIError is a non-200 response.
type APIError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client reads session state and sends admin commands.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// New creates a Client targeting the given API base URL with admin auth.
func New(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status fetches the session summary.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.fetchJSON(ctx, "/api/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StartWave launches a wave from a section. kind may be empty.
func (c *Client) StartWave(ctx context.Context, section, kind string) (*Result, error) {
	return c.post(ctx, "/api/v1/wave/start", map[string]string{"section": section, "kind": kind})
}

// ForceSection rigs the next section: success, sputter or death.
func (c *Client) ForceSection(ctx context.Context, class string) (*Result, error) {
	return c.post(ctx, "/api/v1/wave/force", map[string]string{"class": class})
}

// OverrideStrength replaces the wave strength after the next column.
func (c *Client) OverrideStrength(ctx context.Context, v float64) (*Result, error) {
	return c.post(ctx, "/api/v1/wave/strength", map[string]float64{"strength": v})
}

// Assign sends a vendor to a section.
func (c *Client) Assign(ctx context.Context, vendor uint64, section string) (*Result, error) {
	return c.post(ctx, fmt.Sprintf("/api/v1/vendor/%d/assign", vendor), map[string]string{"section": section})
}

// Recall sends a vendor back to restock.
func (c *Client) Recall(ctx context.Context, vendor uint64) (*Result, error) {
	return c.post(ctx, fmt.Sprintf("/api/v1/vendor/%d/recall", vendor), struct{}{})
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	backoff := 250 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if _, err := c.Status(ctx); err == nil {
			return nil
		}
		slog.Debug("stadiumsim not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// post sends an admin command.
func (c *Client) post(ctx context.Context, path string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AdminKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Method: http.MethodPost, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (c *Client) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Method: http.MethodGet, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
