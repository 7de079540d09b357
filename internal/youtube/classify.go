package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"ytdl-proxy/internal/downloader"

	"github.com/kkdai/youtube/v2"
)

// classify wraps a library error with its downloader kind. Errors that are
// already classified pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *downloader.Error
	if errors.As(err, &de) {
		return err
	}
	return downloader.E(kindOf(err), op, err)
}

func kindOf(err error) downloader.Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return downloader.KindTimeout
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return downloader.KindAccessRestricted
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return downloader.KindInvalidInput
	}

	var status youtube.ErrUnexpectedStatusCode
	if errors.As(err, &status) {
		if kind, ok := kindForStatus(int(status)); ok {
			return kind
		}
	}

	var playability *youtube.ErrPlayabiltyStatus
	if errors.As(err, &playability) {
		return kindForPlayability(playability.Status, playability.Reason)
	}

	return kindForMessage(err.Error())
}

func kindForStatus(code int) (downloader.Kind, bool) {
	switch code {
	case http.StatusGone:
		return downloader.KindLinkExpired, true
	case http.StatusUnauthorized, http.StatusForbidden:
		return downloader.KindAccessRestricted, true
	case http.StatusNotFound:
		return downloader.KindNotFound, true
	}
	return downloader.KindUnclassified, false
}

func kindForPlayability(status, reason string) downloader.Kind {
	if status == "LOGIN_REQUIRED" || status == "AGE_CHECK_REQUIRED" || status == "AGE_VERIFICATION_REQUIRED" {
		return downloader.KindAccessRestricted
	}
	if kind := kindForMessage(reason); kind != downloader.KindUnclassified {
		return kind
	}
	if status == "ERROR" {
		return downloader.KindNotFound
	}
	return downloader.KindAccessRestricted
}

var (
	restrictedPatterns = []string{
		"private", "sign in", "login required", "age-restricted", "age restricted",
		"confirm your age", "inappropriate", "country", "region", "members-only",
		"forbidden", "status code: 401", "status code: 403",
	}
	notFoundPatterns = []string{
		"unavailable", "not available", "not found", "removed", "does not exist",
		"status code: 404",
	}
	expiredPatterns = []string{"status code: 410", "410 gone", "expired"}
)

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// kindForMessage is the last resort for errors that carry no type.
// Restrictions are checked first so "not available in your country" is not
// reported as missing.
func kindForMessage(msg string) downloader.Kind {
	msg = strings.ToLower(msg)
	switch {
	case containsAny(msg, expiredPatterns):
		return downloader.KindLinkExpired
	case containsAny(msg, restrictedPatterns):
		return downloader.KindAccessRestricted
	case containsAny(msg, notFoundPatterns):
		return downloader.KindNotFound
	}
	return downloader.KindUnclassified
}

// classifyingReader classifies errors surfacing mid-stream. The library
// reports chunk failures through the reader, not the opening call.
type classifyingReader struct {
	rc io.ReadCloser
	op string
}

func (r *classifyingReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF {
		err = classify(r.op, err)
	}
	return n, err
}

func (r *classifyingReader) Close() error {
	return r.rc.Close()
}
