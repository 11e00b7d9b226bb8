package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/internal/http/handlers"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/review"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

const routerDay = `[{"id": "42", "messages": [], "ai_analysis": {"score": 50, "is_risk": true, "summary": "", "checkpoints": [], "highlight_indices": [], "review_status": null, "manual_reviewed": false}}]`

func newTestRouter(t *testing.T, rate float64) http.Handler {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "2026-01-13.json"), []byte(routerDay), 0o644); err != nil {
		t.Fatalf("write day: %v", err)
	}
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	reg := prometheus.NewRegistry()
	store := daystore.New(daystore.NewFSBackend(dir), nil, daystore.Options{LockTimeout: time.Second, Logger: logger})
	svc := review.NewService(store, nil, metrics.NewReviewMetrics(reg), logger)

	return New(&Config{
		Logger:             logger,
		ReviewHandler:      handlers.NewReviewHandler(store, svc, nil, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"*"},
		ReviewRateLimit:    rate,
		ReviewRateBurst:    1,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterReviewFlow(t *testing.T) {
	router := newTestRouter(t, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/meta", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "2026-01-13") {
		t.Fatalf("unexpected meta response %d %s", rr.Code, rr.Body.String())
	}

	body := `{"id": "42", "action": "submit_appeal", "date": "2026-01-13"}`
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/review", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions?date=2026-01-13", nil))
	if !strings.Contains(rr.Body.String(), `"review_status": "pending"`) {
		t.Fatalf("expected pending review in sessions, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `chatrisk_review_transitions_total{action="submit_appeal",result="success"} 1`) {
		t.Fatalf("expected transition metric, got %s", rr.Body.String())
	}
}

func TestRouterRateLimitsReviews(t *testing.T) {
	router := newTestRouter(t, 0.001)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/review", strings.NewReader(`{"id":"42","action":"submit_appeal","date":"2026-01-13"}`))
		req.RemoteAddr = "10.1.1.1:5555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/review", nil)
	req.Header.Set("Origin", "https://review.example.cn")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
}
