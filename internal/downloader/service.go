package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts bounds metadata fetches per request.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the unit of the linear wait between metadata attempts.
	DefaultBackoff = time.Second
	// DefaultFetchTimeout bounds the byte-fetch phase.
	DefaultFetchTimeout = 50 * time.Second

	peekBufferSize = 64 << 10
)

var errEmptyStream = errors.New("upstream returned an empty stream")

// Observer receives retry and fallback events. *metrics.Metrics satisfies it.
type Observer interface {
	IncMetadataRetries()
	IncFallback(strategy string)
}

type nopObserver struct{}

func (nopObserver) IncMetadataRetries() {}
func (nopObserver) IncFallback(string)  {}

// Service resolves a request to a stream and opens its bytes.
type Service struct {
	ext      Extractor
	log      *slog.Logger
	resolver *Resolver
	observer Observer

	maxAttempts  int
	backoff      time.Duration
	fetchTimeout time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxAttempts sets the metadata attempt count. Values below 1 are ignored.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the backoff unit; attempt n waits n*d before attempt n+1.
func WithBackoff(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

// WithFetchTimeout sets the wall-clock ceiling for the byte-fetch phase.
func WithFetchTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithResolver replaces the default tiered resolver.
func WithResolver(r *Resolver) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithObserver reports retries and fallbacks to o.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func withSleep(f func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) { s.sleep = f }
}

// NewService returns a Service backed by ext.
func NewService(ext Extractor, log *slog.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		ext:          ext,
		log:          log,
		resolver:     NewResolver(),
		observer:     nopObserver{},
		maxAttempts:  DefaultMaxAttempts,
		backoff:      DefaultBackoff,
		fetchTimeout: DefaultFetchTimeout,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTimeout is the ceiling callers put on Open plus the copy that follows.
func (s *Service) FetchTimeout() time.Duration {
	return s.fetchTimeout
}

// Lookup fetches video metadata, retrying with linear backoff. Kinds that
// cannot change between attempts are returned at once.
func (s *Service) Lookup(ctx context.Context, id string) (*Video, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		v, err := s.ext.Video(ctx, id)
		if err == nil && v != nil {
			return v, nil
		}
		if err == nil {
			err = E(KindNotFound, "fetch video", fmt.Errorf("no metadata returned for %s", id))
		}
		lastErr = err

		kind := KindOf(err)
		if !kind.Retryable() || attempt == s.maxAttempts || ctx.Err() != nil {
			break
		}

		wait := time.Duration(attempt) * s.backoff
		s.log.Warn("video metadata fetch failed, retrying",
			slog.String("video_id", id),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		s.observer.IncMetadataRetries()

		if err := s.sleep(ctx, wait); err != nil {
			return nil, contextError("wait for metadata retry", err)
		}
	}
	return nil, lastErr
}

// Prepare looks up the video and selects the stream to serve.
func (s *Service) Prepare(ctx context.Context, req QualityRequest) (*Download, error) {
	if req.Height <= 0 {
		req.Height = DefaultHeight
	}
	v, err := s.Lookup(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}

	sel, err := s.resolver.Select(v.Streams, req.Height)
	if err != nil {
		return nil, err
	}
	if sel.Tier == TierSplitVideo {
		attrs := []any{
			slog.String("video_id", v.ID),
			slog.Int("itag", sel.Stream.Itag),
			slog.Int("height", sel.Stream.Height),
		}
		if a, ok := sel.Audio.Get(); ok {
			attrs = append(attrs, slog.Int("audio_itag", a.Itag))
		}
		s.log.Warn("no combined format, serving video-only stream without audio", attrs...)
	}

	return &Download{
		Video:     v,
		Selection: sel,
		Height:    req.Height,
		Filename:  Filename(v.Title),
	}, nil
}

// Open returns a payload whose first byte is already buffered.
//
// The primary path is the extractor's Stream. Only a LinkExpired failure
// starts the fallback chain: a direct fetch of the same stream, then a direct
// fetch of the next-best combined stream. Each strategy runs once.
func (s *Service) Open(ctx context.Context, dl *Download) (*Payload, error) {
	chosen := dl.Selection.Stream

	rc, size, err := s.ext.Stream(ctx, dl.Video, chosen)
	p, err := prime(StrategyPrimary, chosen, rc, size, err)
	if err == nil {
		return p, nil
	}
	if KindOf(err) != KindLinkExpired {
		return nil, err
	}
	lastErr := err

	type step struct {
		strategy string
		stream   func() (MediaStream, bool)
	}
	steps := []step{
		{StrategyDirect, func() (MediaStream, bool) { return chosen, true }},
		{StrategyAlternative, func() (MediaStream, bool) {
			return s.resolver.Alternative(dl.Video.Streams, chosen, dl.Height).Get()
		}},
	}

	for _, st := range steps {
		if cerr := ctx.Err(); cerr != nil {
			return nil, contextError("fetch stream", cerr)
		}
		stream, ok := st.stream()
		if !ok {
			s.log.Info("no alternative stream left", slog.String("video_id", dl.Video.ID))
			break
		}

		s.log.Warn("stream fetch failed, falling back",
			slog.String("video_id", dl.Video.ID),
			slog.String("strategy", st.strategy),
			slog.Int("itag", stream.Itag),
			slog.String("error", lastErr.Error()))
		s.observer.IncFallback(st.strategy)

		rc, size, err := s.ext.Direct(ctx, dl.Video, stream)
		p, err := prime(st.strategy, stream, rc, size, err)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}

	if cerr := ctx.Err(); cerr != nil {
		return nil, contextError("fetch stream", cerr)
	}
	return nil, E(KindLinkExpired, "fetch stream", fmt.Errorf("%w: %w", ErrFallbackExhausted, lastErr))
}

// prime buffers the first byte so a dead upstream is detected before any
// response header is written.
func prime(strategy string, stream MediaStream, rc io.ReadCloser, size int64, err error) (*Payload, error) {
	if err != nil {
		return nil, wrapOpen(strategy, err)
	}
	br := bufio.NewReaderSize(rc, peekBufferSize)
	if _, err := br.Peek(1); err != nil {
		_ = rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, E(KindUnclassified, "read "+strategy+" stream", errEmptyStream)
		}
		return nil, wrapOpen(strategy, err)
	}
	return &Payload{r: br, closer: rc, Stream: stream, Size: size, Strategy: strategy}, nil
}

func wrapOpen(strategy string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return fmt.Errorf("open %s stream: %w", strategy, err)
}

func contextError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return E(KindTimeout, op, err)
	}
	return E(KindUnclassified, op, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
