package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	ok := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	bad := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	bad.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	body := scrape(t, m, nil)
	if !strings.Contains(body, "ytdl_requests_total 2") {
		t.Errorf("expected 2 requests:\n%s", body)
	}
	if !strings.Contains(body, "ytdl_errors_total 1") {
		t.Errorf("expected 1 error:\n%s", body)
	}
}

func TestMetrics_download_counters(t *testing.T) {
	m := New()
	m.IncDownloads("ok")
	m.IncDownloads("link_expired")
	m.IncFallback("direct")
	m.AddBytesStreamed(1024)
	m.AddBytesStreamed(-5)
	m.IncMetadataRetries()
	m.IncAdmissionRejected()

	body := scrape(t, m, func() { m.SetRateWindows(3) })
	for _, want := range []string{
		`ytdl_downloads_total{outcome="ok"} 1`,
		`ytdl_downloads_total{outcome="link_expired"} 1`,
		`ytdl_fallbacks_total{strategy="direct"} 1`,
		"ytdl_bytes_streamed_total 1024",
		"ytdl_metadata_retries_total 1",
		"ytdl_admission_rejected_total 1",
		"ytdl_rate_windows 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape:\n%s", want, body)
		}
	}
}
