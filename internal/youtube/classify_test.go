package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"ytdl-proxy/internal/downloader"

	"github.com/kkdai/youtube/v2"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want downloader.Kind
	}{
		{"private", youtube.ErrVideoPrivate, downloader.KindAccessRestricted},
		{"login required", youtube.ErrLoginRequired, downloader.KindAccessRestricted},
		{"embed only", youtube.ErrNotPlayableInEmbed, downloader.KindAccessRestricted},
		{"bad id chars", youtube.ErrInvalidCharactersInVideoID, downloader.KindInvalidInput},
		{"short id", youtube.ErrVideoIDMinLength, downloader.KindInvalidInput},
		{"410", youtube.ErrUnexpectedStatusCode(410), downloader.KindLinkExpired},
		{"wrapped 410", fmt.Errorf("chunk 3: %w", youtube.ErrUnexpectedStatusCode(410)), downloader.KindLinkExpired},
		{"401", youtube.ErrUnexpectedStatusCode(401), downloader.KindAccessRestricted},
		{"403", youtube.ErrUnexpectedStatusCode(403), downloader.KindAccessRestricted},
		{"404", youtube.ErrUnexpectedStatusCode(404), downloader.KindNotFound},
		{"500", youtube.ErrUnexpectedStatusCode(500), downloader.KindUnclassified},
		{"region lock", &youtube.ErrPlayabiltyStatus{Status: "UNPLAYABLE", Reason: "The uploader has not made this video available in your country"}, downloader.KindAccessRestricted},
		{"unavailable", &youtube.ErrPlayabiltyStatus{Status: "ERROR", Reason: "Video unavailable"}, downloader.KindNotFound},
		{"error without reason", &youtube.ErrPlayabiltyStatus{Status: "ERROR"}, downloader.KindNotFound},
		{"login status", &youtube.ErrPlayabiltyStatus{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm your age"}, downloader.KindAccessRestricted},
		{"unplayable", &youtube.ErrPlayabiltyStatus{Status: "UNPLAYABLE", Reason: "Playback on other websites has been disabled"}, downloader.KindAccessRestricted},
		{"age message", errors.New("This video is age-restricted"), downloader.KindAccessRestricted},
		{"removed message", errors.New("This video has been removed by the uploader"), downloader.KindNotFound},
		{"expired message", errors.New("signature expired"), downloader.KindLinkExpired},
		{"deadline", fmt.Errorf("get video: %w", context.DeadlineExceeded), downloader.KindTimeout},
		{"unknown", errors.New("cipher mismatch"), downloader.KindUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("fetch video", tt.err)
			if got := downloader.KindOf(err); got != tt.want {
				t.Errorf("kind = %v, want %v (err %v)", got, tt.want, err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}
}

func TestClassify_keeps_existing_kind(t *testing.T) {
	orig := downloader.E(downloader.KindNotFound, "lookup", errors.New("status code: 410"))
	if got := classify("fetch video", orig); got != orig {
		t.Errorf("classified error was rewrapped: %v", got)
	}
	if classify("fetch video", nil) != nil {
		t.Error("nil should stay nil")
	}
}

type failingBody struct {
	r   io.Reader
	err error
}

func (b *failingBody) Read(p []byte) (int, error) {
	if b.r != nil {
		n, err := b.r.Read(p)
		if err != io.EOF {
			return n, err
		}
		b.r = nil
		if n > 0 {
			return n, nil
		}
	}
	return 0, b.err
}

func (b *failingBody) Close() error { return nil }

func TestClassifyingReader(t *testing.T) {
	r := &classifyingReader{
		rc: &failingBody{r: strings.NewReader("abc"), err: youtube.ErrUnexpectedStatusCode(410)},
		op: "read stream",
	}
	b, err := io.ReadAll(r)
	if string(b) != "abc" {
		t.Errorf("read %q before the failure", b)
	}
	if downloader.KindOf(err) != downloader.KindLinkExpired {
		t.Errorf("kind = %v, want link_expired", downloader.KindOf(err))
	}

	eof := &classifyingReader{rc: io.NopCloser(strings.NewReader("")), op: "read stream"}
	if _, err := eof.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("EOF should pass through untouched, got %v", err)
	}
}
