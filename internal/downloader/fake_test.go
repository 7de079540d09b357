package downloader

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
)

type openFunc func(s MediaStream) (io.ReadCloser, int64, error)

// fakeExtractor is a scripted Extractor.
type fakeExtractor struct {
	mu sync.Mutex

	video *Video
	// videoErrs are returned by successive Video calls before video is.
	videoErrs  []error
	videoCalls int

	stream openFunc
	direct openFunc

	directItags []int
}

func (f *fakeExtractor) Video(ctx context.Context, id string) (*Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoCalls++
	if f.videoCalls <= len(f.videoErrs) {
		return nil, f.videoErrs[f.videoCalls-1]
	}
	return f.video, nil
}

func (f *fakeExtractor) Stream(ctx context.Context, v *Video, s MediaStream) (io.ReadCloser, int64, error) {
	if f.stream == nil {
		return body("primary"), 7, nil
	}
	return f.stream(s)
}

func (f *fakeExtractor) Direct(ctx context.Context, v *Video, s MediaStream) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	f.directItags = append(f.directItags, s.Itag)
	f.mu.Unlock()
	if f.direct == nil {
		return nil, 0, E(KindUnclassified, "direct", errors.New("direct not scripted"))
	}
	return f.direct(s)
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoCalls
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func body(s string) *closeRecorder {
	return &closeRecorder{Reader: strings.NewReader(s)}
}

// errReader fails on the first Read.
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
func (r errReader) Close() error             { return nil }

func expired() error {
	return E(KindLinkExpired, "stream", errors.New("unexpected status code: 410"))
}

func combinedStream(itag, height int) MediaStream {
	return MediaStream{Itag: itag, Height: height, HasAudio: true, HasVideo: true, URL: "https://example.test/" + strconv.Itoa(itag), MimeType: "video/mp4"}
}

func videoOnly(itag, height int) MediaStream {
	return MediaStream{Itag: itag, Height: height, HasVideo: true, URL: "https://example.test/" + strconv.Itoa(itag), MimeType: "video/mp4"}
}

func audioOnly(itag, bitrate int) MediaStream {
	return MediaStream{Itag: itag, HasAudio: true, Bitrate: bitrate, URL: "https://example.test/" + strconv.Itoa(itag), MimeType: "audio/mp4"}
}
