package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSource struct {
	state    string
	sessions int32
	started  time.Time
	users    []string
}

func (f *fakeSource) State() string         { return f.state }
func (f *fakeSource) ActiveSessions() int32 { return f.sessions }
func (f *fakeSource) StartedAt() time.Time  { return f.started }
func (f *fakeSource) OnlineUsers() []string { return f.users }

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["service"] != "chatd" {
		t.Errorf("Expected service 'chatd', got '%v'", data["service"])
	}
}

func TestReadiness_NoSource_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestReadiness_Running_Returns200(t *testing.T) {
	handler := NewHealthHandler(&fakeSource{state: "running", sessions: 3})
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestReadiness_Draining_Returns503(t *testing.T) {
	handler := NewHealthHandler(&fakeSource{state: "draining"})
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != "server is draining" {
		t.Errorf("Expected draining error, got '%s'", resp.Error)
	}
}

func TestStatus_ReportsOnlineUsers(t *testing.T) {
	handler := NewStatusHandler(&fakeSource{
		state:    "running",
		sessions: 2,
		started:  time.Now().Add(-time.Minute),
		users:    []string{"alice", "bob"},
	})
	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}

	if data["online_count"] != float64(2) {
		t.Errorf("Expected online_count 2, got %v", data["online_count"])
	}
	if data["state"] != "running" {
		t.Errorf("Expected state 'running', got %v", data["state"])
	}
	if data["uptime_seconds"].(float64) < 59 {
		t.Errorf("Expected uptime of about a minute, got %v", data["uptime_seconds"])
	}
}
