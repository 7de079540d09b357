package admission

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ytdl-proxy/internal/platform/logger"
	"ytdl-proxy/internal/platform/metrics"
)

func newGate(t *testing.T, limit int, stats StatsRecorder) (http.Handler, *int) {
	t.Helper()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	h := Middleware(Options{
		Limiter: NewLimiter(NewInMemoryStore(), limit, time.Minute),
		KeyFn:   DefaultKeyFunc(true),
		Stats:   stats,
		Log:     logger.Discard(),
		Metrics: metrics.New(),
	})(next)
	return h, &calls
}

func postFrom(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/download", nil)
	r.Header.Set("X-Forwarded-For", ip)
	return r
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	h, calls := newGate(t, 2, nil)

	for i := 1; i <= 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postFrom("203.0.113.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(2-i) {
			t.Errorf("call %d: remaining header %q", i, got)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postFrom("203.0.113.1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body struct {
		Error     string    `json:"error"`
		ResetTime time.Time `json:"resetTime"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body.ResetTime.IsZero() || body.Error == "" {
		t.Errorf("429 body missing fields: %+v", body)
	}
	if until := time.Until(body.ResetTime); until <= 0 || until > time.Minute {
		t.Errorf("resetTime %v should be within the next minute", body.ResetTime)
	}

	if *calls != 2 {
		t.Errorf("downstream should run twice, ran %d", *calls)
	}
}

func TestMiddleware_DifferentClients(t *testing.T) {
	h, calls := newGate(t, 1, nil)

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postFrom(ip))
		if rec.Code != http.StatusOK {
			t.Errorf("client %s: expected 200, got %d", ip, rec.Code)
		}
	}
	if *calls != 2 {
		t.Errorf("expected 2 downstream calls, got %d", *calls)
	}
}

func TestMiddleware_RecordsStats(t *testing.T) {
	stats := NewMemoryStats()
	h, _ := newGate(t, 1, stats)

	h.ServeHTTP(httptest.NewRecorder(), postFrom("203.0.113.9"))
	h.ServeHTTP(httptest.NewRecorder(), postFrom("203.0.113.9"))

	total := stats.Total()
	if total.Allowed != 1 || total.Denied != 1 {
		t.Errorf("total = %+v, want 1 allowed 1 denied", total)
	}
	if got := stats.ByKey()["203.0.113.9"]; got.Allowed != 1 || got.Denied != 1 {
		t.Errorf("by key = %+v", got)
	}
}

func TestMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	h := Middleware(Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), postFrom("1.2.3.4"))
	if !called {
		t.Error("nil limiter should not block")
	}
}
