package downloader

import (
	"context"
	"io"
)

// Extractor resolves video metadata and opens stream bytes.
// Returned errors carry a Kind (see Error).
type Extractor interface {
	// Video fetches the title and stream list for id.
	Video(ctx context.Context, id string) (*Video, error)
	// Stream opens s through the extractor's own chunked download path.
	Stream(ctx context.Context, v *Video, s MediaStream) (io.ReadCloser, int64, error)
	// Direct opens s with a single GET of its url.
	Direct(ctx context.Context, v *Video, s MediaStream) (io.ReadCloser, int64, error)
}
