package downloader

import "strings"

const (
	maxFilenameLen  = 100
	defaultFilename = "video"
)

// Filename turns a video title into a safe attachment name ending in ".mp4".
// Only ASCII letters, digits, spaces and hyphens survive.
func Filename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-':
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if len(name) > maxFilenameLen {
		name = strings.TrimSpace(name[:maxFilenameLen])
	}
	if name == "" {
		name = defaultFilename
	}
	return name + ".mp4"
}
