package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	const dashboard = "https://review.example.cn"

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantCalled  bool
		wantStatus  int
		wantOrigin  string
		wantMethods bool
	}{
		{name: "listed origin", allowed: []string{dashboard + "/"}, method: http.MethodGet, origin: dashboard, wantCalled: true, wantStatus: http.StatusOK, wantOrigin: dashboard},
		{name: "unknown origin", allowed: []string{dashboard}, method: http.MethodGet, origin: "https://unknown.example", wantCalled: true, wantStatus: http.StatusOK},
		{name: "wildcard", allowed: []string{"*"}, method: http.MethodGet, origin: "https://random.example", wantCalled: true, wantStatus: http.StatusOK, wantOrigin: "https://random.example"},
		{name: "preflight", allowed: []string{dashboard}, method: http.MethodOptions, origin: dashboard, preflight: true, wantStatus: http.StatusNoContent, wantOrigin: dashboard, wantMethods: true},
		{name: "preflight from unknown origin", allowed: []string{dashboard}, method: http.MethodOptions, origin: "https://unknown.example", preflight: true, wantStatus: http.StatusForbidden},
		{name: "no origin", allowed: []string{"*"}, method: http.MethodOptions, preflight: true, wantCalled: true, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/review", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, rec.Header().Get("Access-Control-Allow-Methods") != "")
			if tt.wantOrigin != "" {
				assert.Equal(t, "X-Request-ID", rec.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}
