package downloader

import (
	"bufio"
	"io"
	"strings"

	"github.com/samber/mo"
)

// MediaStream is one downloadable representation of a video.
type MediaStream struct {
	Itag int `json:"itag"`
	// Height in pixels; 0 when the extractor does not report one.
	Height        int    `json:"height"`
	HasAudio      bool   `json:"hasAudio"`
	HasVideo      bool   `json:"hasVideo"`
	URL           string `json:"-"` // time-limited
	MimeType      string `json:"mimeType"`
	QualityLabel  string `json:"qualityLabel,omitempty"`
	Bitrate       int    `json:"bitrate"`
	ContentLength int64  `json:"contentLength"`
}

// Combined reports whether the stream carries both audio and video.
func (s MediaStream) Combined() bool { return s.HasAudio && s.HasVideo }

// VideoOnly reports whether the stream carries video without audio.
func (s MediaStream) VideoOnly() bool { return s.HasVideo && !s.HasAudio }

// AudioOnly reports whether the stream carries audio without video.
func (s MediaStream) AudioOnly() bool { return s.HasAudio && !s.HasVideo }

// Same reports whether s and o describe the same upstream representation.
func (s MediaStream) Same(o MediaStream) bool {
	return s.Itag == o.Itag && s.URL == o.URL
}

// Video is the extractor's view of one video for the duration of a request.
// Streams is treated as immutable once returned.
type Video struct {
	ID      string
	Title   string
	Author  string
	Streams []MediaStream
	// Source is the extractor's own handle, handed back when opening bytes.
	Source any
}

// DefaultHeight is used for unknown quality labels.
const DefaultHeight = 1080

var qualityHeights = map[string]int{
	"1080p": 1080,
	"1440p": 1440,
	"2160p": 2160,
	"4320p": 4320,
}

// ParseQuality maps a quality label such as "2160p" to a pixel height.
// Unrecognised labels yield DefaultHeight.
func ParseQuality(label string) int {
	if h, ok := qualityHeights[strings.ToLower(strings.TrimSpace(label))]; ok {
		return h
	}
	return DefaultHeight
}

// QualityRequest is what the caller asked for.
type QualityRequest struct {
	VideoID string
	Height  int
}

// Selection is the resolver's pick for one request.
type Selection struct {
	Stream MediaStream
	// Audio is the best audio-only stream when Stream has no audio.
	// It is reported, not merged.
	Audio mo.Option[MediaStream]
	Tier  string
}

// Download is a resolved request ready to be fetched.
type Download struct {
	Video     *Video
	Selection Selection
	Height    int
	Filename  string
}

// Fetch strategies, in the order they are tried.
const (
	StrategyPrimary     = "primary"
	StrategyDirect      = "direct"
	StrategyAlternative = "alternative"
)

// Payload is an open, already-primed byte stream.
type Payload struct {
	r      *bufio.Reader
	closer io.Closer

	Stream   MediaStream
	Size     int64 // -1 or 0 when unknown
	Strategy string
}

func (p *Payload) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

// Close tears down the upstream connection.
func (p *Payload) Close() error {
	return p.closer.Close()
}
