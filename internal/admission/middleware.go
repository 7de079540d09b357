package admission

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"ytdl-proxy/internal/platform/metrics"
)

const rateLimitedMessage = "too many download requests, try again after the reset time"

// Options configures Middleware.
type Options struct {
	Limiter *Limiter
	KeyFn   KeyFunc
	Stats   StatsRecorder
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

type rejection struct {
	Error     string    `json:"error"`
	Kind      string    `json:"kind"`
	ResetTime time.Time `json:"resetTime"`
}

// Middleware gates requests through the limiter before any downstream work.
// Rejected callers get 429 with the window's reset time in the body and in Retry-After.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(false)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if opts.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			dec := opts.Limiter.CheckAndConsume(key)

			if opts.Stats != nil {
				ev := StatsEvent{Key: key, Allowed: dec.Allowed, Method: r.Method, Path: r.URL.Path, At: time.Now()}
				if err := opts.Stats.Record(r.Context(), ev); err != nil {
					opts.Log.Debug("admission stats not recorded", slog.String("error", err.Error()))
				}
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetTime.Unix(), 10))

			if !dec.Allowed {
				opts.Log.Info("download request rate limited",
					slog.String("client", string(key)),
					slog.Time("reset_time", dec.ResetTime))
				if opts.Metrics != nil {
					opts.Metrics.IncAdmissionRejected()
				}
				writeRejection(w, dec.ResetTime)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRejection(w http.ResponseWriter, reset time.Time) {
	secs := int(math.Ceil(time.Until(reset).Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rejection{
		Error:     rateLimitedMessage,
		Kind:      "rate_limited",
		ResetTime: reset.UTC(),
	})
}
