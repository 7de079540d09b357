package downloader

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var (
	errEmptyURL          = errors.New("url is required")
	errNotYouTube        = errors.New("not a YouTube url")
	errMissingID         = errors.New("no video identifier found in url")
	errMalformedURL      = errors.New("malformed url")
	errUnsupportedScheme = errors.New("unsupported url scheme")
)

// pathPrefixes are youtube.com paths whose next segment is the video id.
var pathPrefixes = map[string]bool{
	"shorts": true,
	"embed":  true,
	"live":   true,
	"v":      true,
}

// ExtractVideoID returns the 11-character id in a YouTube url.
// The scheme may be omitted.
func ExtractVideoID(raw string) (string, error) {
	const op = "parse url"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", E(KindInvalidInput, op, errEmptyURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", E(KindInvalidInput, op, errMalformedURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", E(KindInvalidInput, op, errUnsupportedScheme)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && pathPrefixes[segments[0]]:
			id = segments[1]
		}
	default:
		return "", E(KindInvalidInput, op, errNotYouTube)
	}

	if !videoIDPattern.MatchString(id) {
		return "", E(KindInvalidInput, op, errMissingID)
	}
	return id, nil
}
