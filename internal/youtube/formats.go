package youtube

import (
	"errors"
	"fmt"
	"strings"

	"ytdl-proxy/internal/downloader"

	"github.com/kkdai/youtube/v2"
)

var errNoSource = errors.New("video was not produced by this extractor")

func toStream(f youtube.Format) downloader.MediaStream {
	return downloader.MediaStream{
		Itag:          f.ItagNo,
		Height:        f.Height,
		HasAudio:      f.AudioChannels > 0,
		HasVideo:      strings.HasPrefix(f.MimeType, "video/"),
		URL:           f.URL,
		MimeType:      f.MimeType,
		QualityLabel:  f.QualityLabel,
		Bitrate:       f.Bitrate,
		ContentLength: int64(f.ContentLength),
	}
}

func toStreams(formats youtube.FormatList) []downloader.MediaStream {
	out := make([]downloader.MediaStream, 0, len(formats))
	for _, f := range formats {
		out = append(out, toStream(f))
	}
	return out
}

func toVideo(v *youtube.Video) *downloader.Video {
	return &downloader.Video{
		ID:      v.ID,
		Title:   v.Title,
		Author:  v.Author,
		Streams: toStreams(v.Formats),
		Source:  v,
	}
}

func sourceOf(v *downloader.Video) (*youtube.Video, error) {
	if v == nil {
		return nil, errNoSource
	}
	native, ok := v.Source.(*youtube.Video)
	if !ok || native == nil {
		return nil, errNoSource
	}
	return native, nil
}

// formatFor finds the library format behind s. Itags repeat across audio
// tracks, so the url breaks ties.
func formatFor(v *youtube.Video, s downloader.MediaStream) (*youtube.Format, error) {
	var candidate *youtube.Format
	for i := range v.Formats {
		f := &v.Formats[i]
		if f.ItagNo != s.Itag {
			continue
		}
		if f.URL == s.URL {
			return f, nil
		}
		if candidate == nil {
			candidate = f
		}
	}
	if candidate == nil {
		return nil, fmt.Errorf("format %d not found for video %s", s.Itag, v.ID)
	}
	return candidate, nil
}
