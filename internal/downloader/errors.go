package downloader

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies a failure so callers switch on it instead of parsing messages.
type Kind int

const (
	KindUnclassified Kind = iota
	KindInvalidInput
	KindAccessRestricted
	KindNotFound
	KindLinkExpired
	KindRateLimited
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAccessRestricted:
		return "access_restricted"
	case KindNotFound:
		return "not_found"
	case KindLinkExpired:
		return "link_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	default:
		return "unclassified"
	}
}

// Retryable reports whether a metadata fetch failing with k may be tried again.
// Input, access and existence failures will not change on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindInvalidInput, KindAccessRestricted, KindNotFound:
		return false
	default:
		return true
	}
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and the operation that failed.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var (
	// ErrNoSuitableFormat is returned when no resolver tier yields a stream.
	ErrNoSuitableFormat = errors.New("no suitable format available for this video")

	// ErrFallbackExhausted is wrapped when every byte-fetch strategy failed.
	ErrFallbackExhausted = errors.New("format link expired and no fallback succeeded")
)

// KindOf returns the kind carried by err. Unclassified errors that are
// context deadlines count as timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnclassified
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnclassified {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnclassified
}

// StatusFor maps a kind to the HTTP status returned to the browser.
// Timeouts surface as a generic failure.
func StatusFor(k Kind) int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindAccessRestricted:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindLinkExpired:
		return http.StatusGone
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
