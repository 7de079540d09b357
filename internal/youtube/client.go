package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"ytdl-proxy/internal/downloader"

	"github.com/kkdai/youtube/v2"
	"golang.org/x/time/rate"
)

// Options configures Client.
type Options struct {
	// Fingerprint presents a Chrome TLS fingerprint on outbound connections.
	Fingerprint bool
	// RPS throttles metadata calls; 0 disables the throttle.
	RPS   float64
	Burst int
	// HTTPClient overrides the outbound client.
	HTTPClient *http.Client
	Log        *slog.Logger
}

// Client implements downloader.Extractor over github.com/kkdai/youtube.
type Client struct {
	yt      *youtube.Client
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

var _ downloader.Extractor = (*Client)(nil)

// New returns a Client. No request is made until Video is called.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: NewTransport(opts.Fingerprint)}
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		yt:   &youtube.Client{HTTPClient: hc},
		http: hc,
		log:  log,
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c
}

// Video fetches metadata and the stream list for id.
func (c *Client) Video(ctx context.Context, id string) (*downloader.Video, error) {
	const op = "fetch video"

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classify(op, fmt.Errorf("wait for extractor throttle: %w", err))
		}
	}

	v, err := c.yt.GetVideoContext(ctx, id)
	if err != nil {
		return nil, classify(op, err)
	}
	c.log.Debug("video metadata fetched",
		slog.String("video_id", v.ID),
		slog.Int("formats", len(v.Formats)))
	return toVideo(v), nil
}

// Stream opens s through the library's chunked downloader.
func (c *Client) Stream(ctx context.Context, v *downloader.Video, s downloader.MediaStream) (io.ReadCloser, int64, error) {
	const op = "open stream"

	native, f, err := c.resolve(v, s)
	if err != nil {
		return nil, 0, classify(op, err)
	}
	rc, size, err := c.yt.GetStreamContext(ctx, native, f)
	if err != nil {
		return nil, 0, classify(op, err)
	}
	return &classifyingReader{rc: rc, op: "read stream"}, size, nil
}

// Direct opens s with a single GET of its deciphered url.
func (c *Client) Direct(ctx context.Context, v *downloader.Video, s downloader.MediaStream) (io.ReadCloser, int64, error) {
	const op = "direct fetch"

	native, f, err := c.resolve(v, s)
	if err != nil {
		return nil, 0, classify(op, err)
	}
	u, err := c.yt.GetStreamURLContext(ctx, native, f)
	if err != nil {
		return nil, 0, classify(op, err)
	}
	return c.fetch(ctx, u)
}

func (c *Client) resolve(v *downloader.Video, s downloader.MediaStream) (*youtube.Video, *youtube.Format, error) {
	native, err := sourceOf(v)
	if err != nil {
		return nil, nil, err
	}
	f, err := formatFor(native, s)
	if err != nil {
		return nil, nil, err
	}
	return native, f, nil
}

// fetch performs one GET and hands back the body.
func (c *Client) fetch(ctx context.Context, u string) (io.ReadCloser, int64, error) {
	const op = "direct fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, downloader.E(downloader.KindUnclassified, op, fmt.Errorf("build request: %w", err))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, classify(op, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, 0, classify(op, youtube.ErrUnexpectedStatusCode(resp.StatusCode))
	}
	return &classifyingReader{rc: resp.Body, op: "read direct stream"}, resp.ContentLength, nil
}
