package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pverhoeven/warden/pkg/health"
	"github.com/pverhoeven/warden/pkg/journal"
	"github.com/pverhoeven/warden/pkg/metrics"
)

func testServer(t *testing.T, liveness health.Status) (*Server, journal.Journal) {
	t.Helper()

	j := journal.NewMemoryJournal()
	srv := NewServer(Options{
		Addr: "127.0.0.1:0",
		Status: func() Status {
			return Status{
				Liveness: health.Snapshot{
					Status:              liveness,
					ConsecutiveFailures: 0,
				},
				PID:           4242,
				StartedAt:     time.Now().Add(-time.Minute),
				UptimeSeconds: 60,
			}
		},
		Journal: j,
		Metrics: metrics.NewSet().Handler(),
	})
	return srv, j
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		liveness health.Status
		wantCode int
	}{
		{"starting is not unhealthy", health.StatusStarting, http.StatusOK},
		{"healthy", health.StatusHealthy, http.StatusOK},
		{"unhealthy", health.StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, tt.liveness)

			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("GET /health = %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testServer(t, health.StatusHealthy)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", rr.Code)
	}

	var status Status
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.PID != 4242 {
		t.Errorf("status pid = %d, want 4242", status.PID)
	}
	if status.Liveness.Status != health.StatusHealthy {
		t.Errorf("status liveness = %v, want healthy", status.Liveness.Status)
	}
}

func TestProbesEndpoint(t *testing.T) {
	srv, j := testServer(t, health.StatusHealthy)

	for i := 0; i < 5; i++ {
		j.AppendProbe(journal.ProbeRecord{
			Timestamp: time.Now(),
			OK:        true,
			Status:    "healthy",
		})
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/probes?limit=3", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("GET /probes = %d, want 200", rr.Code)
	}

	var probes []journal.ProbeRecord
	if err := json.NewDecoder(rr.Body).Decode(&probes); err != nil {
		t.Fatalf("failed to decode probes: %v", err)
	}
	if len(probes) != 3 {
		t.Errorf("got %d probes, want 3", len(probes))
	}
}

func TestEventsEndpointEmpty(t *testing.T) {
	srv, _ := testServer(t, health.StatusHealthy)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/events", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("GET /events = %d, want 200", rr.Code)
	}
	// Empty history must serialize as [], not null
	if got := rr.Body.String(); got != "[]\n" {
		t.Errorf("empty events body = %q, want []", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t, health.StatusHealthy)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Error("metrics body should not be empty")
	}
}
