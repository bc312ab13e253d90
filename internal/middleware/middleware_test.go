package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/logger"
)

type memCounter struct {
	counts map[string]int64
	err    error
}

func (c *memCounter) Incr(ctx context.Context, key string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *memCounter) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (c *memCounter) KeyTTL(ctx context.Context, key string) (time.Duration, error) {
	return 30 * time.Second, nil
}

func testMiddleware(cfg *config.Config, c counter) *Middleware {
	m := New(nil, logger.Nop(), cfg)
	m.counter = c
	return m
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.RateLimiting.Enabled = true
	m := testMiddleware(cfg, &memCounter{counts: map[string]int64{}})
	h := m.RateLimit(RateLimitConfig{Name: "dispatch", Limit: 2, Window: time.Minute, KeyFn: IPKey})(okHandler)

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		codes = append(codes, rec.Code)
		if i == 2 {
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
			assert.Equal(t, "30", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.RateLimiting.Enabled = true

	for name, m := range map[string]*Middleware{
		"no redis":    New(nil, logger.Nop(), cfg),
		"redis error": testMiddleware(cfg, &memCounter{err: errors.New("connection refused")}),
	} {
		t.Run(name, func(t *testing.T) {
			h := m.RateLimit(RateLimitConfig{Name: "dispatch", Limit: 1, Window: time.Minute, KeyFn: IPKey})(okHandler)
			for i := 0; i < 3; i++ {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.APIKey = "s3cret"
	h := New(nil, logger.Nop(), cfg).APIKey(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
		{"scheme case", "bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKey_DisabledWithoutKey(t *testing.T) {
	h := New(nil, logger.Nop(), &config.Config{}).APIKey(okHandler)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecover(t *testing.T) {
	m := New(nil, logger.Nop(), &config.Config{})
	h := m.RequestID(m.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"internal_error","message":"An unexpected error occurred"}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	m := New(nil, logger.Nop(), &config.Config{})
	var seen string
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	m := New(nil, logger.Nop(), &config.Config{})
	h := m.CORS([]string{"http://localhost:5173"})(m.SecurityHeaders(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/campaigns", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	m := New(nil, logger.Nop(), &config.Config{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()

	m.Metrics(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestLogger_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	m := New(nil, logger.NewWithWriter(&buf), &config.Config{})
	h := m.RequestID(m.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", nil)
	req.Header.Set("X-Request-ID", "req-7")

	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"request_id":"req-7"`)
	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"path":"/api/v1/campaigns"`)
}
