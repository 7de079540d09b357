package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ytdl-proxy/internal/admission"
	"ytdl-proxy/internal/downloader"
	"ytdl-proxy/internal/platform/config"
	"ytdl-proxy/internal/platform/logger"
	"ytdl-proxy/internal/platform/metrics"
	"ytdl-proxy/internal/youtube"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	// writeSlack keeps the server write deadline past the fetch ceiling.
	writeSlack = 15 * time.Second
)

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	env := config.Environment()
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	defaultLimit := admission.ProductionLimit
	if config.IsDevelopment() {
		defaultLimit = admission.DevelopmentLimit
	}
	rateLimit := config.GetEnvInt("RATE_LIMIT_MAX", defaultLimit)
	rateWindow := config.GetEnvDuration("RATE_LIMIT_WINDOW", admission.DefaultWindow)
	trustForwarded := config.GetEnvBool("TRUST_FORWARDED_FOR", true)
	concurrencyMax := config.GetEnvInt("DOWNLOAD_CONCURRENCY_MAX", 0)
	concurrencyTimeout := config.GetEnvDuration("DOWNLOAD_CONCURRENCY_TIMEOUT", 5*time.Second)

	fetchTimeout := config.GetEnvDuration("FETCH_TIMEOUT", downloader.DefaultFetchTimeout)
	maxAttempts := config.GetEnvInt("METADATA_MAX_ATTEMPTS", downloader.DefaultMaxAttempts)
	backoff := config.GetEnvDuration("METADATA_BACKOFF", downloader.DefaultBackoff)

	fingerprint := config.GetEnvBool("EXTRACTOR_TLS_FINGERPRINT", true)
	extractorRPS := config.GetEnvFloat("EXTRACTOR_RPS", 0)
	extractorBurst := config.GetEnvInt("EXTRACTOR_BURST", 1)

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	limiter := admission.NewLimiter(admission.NewInMemoryStore(), rateLimit, rateWindow)
	limiter.StartSweeper(ctx, func(removed int) {
		if removed > 0 {
			log.Debug("expired rate windows swept", "removed", removed)
		}
	})

	var stats admission.StatsRecorder = admission.NewMemoryStats()
	if addr := config.GetEnv("RATE_STATS_REDIS_ADDR", ""); addr != "" {
		rs, closeRedis, err := admission.DialRedisStats(ctx, addr,
			config.GetEnv("RATE_STATS_REDIS_PASSWORD", ""),
			config.GetEnvInt("RATE_STATS_REDIS_DB", 0),
			admission.WithStatsPrefix(config.GetEnv("RATE_STATS_PREFIX", "")),
			admission.WithStatsTTL(config.GetEnvDuration("RATE_STATS_TTL", 0)),
		)
		if err != nil {
			log.Warn("redis admission stats disabled", "addr", addr, "error", err)
		} else {
			defer closeRedis()
			stats = rs
			log.Info("recording admission stats in redis", "addr", addr)
		}
	}

	extractor := youtube.New(youtube.Options{
		Fingerprint: fingerprint,
		RPS:         extractorRPS,
		Burst:       extractorBurst,
		Log:         log,
	})
	svc := downloader.NewService(extractor, log,
		downloader.WithMaxAttempts(maxAttempts),
		downloader.WithBackoff(backoff),
		downloader.WithFetchTimeout(fetchTimeout),
		downloader.WithObserver(met),
	)
	h := downloader.NewHandler(svc, log, met)

	gate := admission.Middleware(admission.Options{
		Limiter: limiter,
		KeyFn:   admission.DefaultKeyFunc(trustForwarded),
		Stats:   stats,
		Log:     log,
		Metrics: met,
	})
	inflight := admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            concurrencyMax,
		AcquireTimeout: concurrencyTimeout,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetRateWindows(limiter.Len()) }).ServeHTTP(w, r)
	})
	r.Get("/healthz", h.Healthz)
	r.Get("/", h.Index)
	r.Options("/download", h.Preflight)
	r.With(gate, inflight).Post("/download", h.Download)

	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      fetchTimeout + writeSlack,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"env", env,
		"rate_limit", limiter.Limit(),
		"rate_window", limiter.Window().String(),
		"fetch_timeout", fetchTimeout.String(),
		"tls_fingerprint", fingerprint,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
