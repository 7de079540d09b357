package downloader

import (
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// TierFunc picks at most one stream for the requested height. Tiers are pure.
type TierFunc func(streams []MediaStream, height int) mo.Option[MediaStream]

// Tier is a named TierFunc.
type Tier struct {
	Name string
	Pick TierFunc
}

// Tier names.
const (
	TierExactCombined   = "exact_combined"
	TierClosestCombined = "closest_combined"
	TierSplitVideo      = "split_video"
)

// DefaultTiers returns the selection policy: exact combined, closest combined,
// then video-only when no combined stream exists at all.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: TierExactCombined, Pick: ExactCombined},
		{Name: TierClosestCombined, Pick: ClosestCombined},
		{Name: TierSplitVideo, Pick: SplitVideo},
	}
}

func combined(streams []MediaStream) []MediaStream {
	return lo.Filter(streams, func(s MediaStream, _ int) bool { return s.Combined() })
}

// closestAbove returns the lowest stream at or above height, or the highest
// stream overall when none reaches it. Ties keep input order.
func closestAbove(candidates []MediaStream, height int) mo.Option[MediaStream] {
	if len(candidates) == 0 {
		return mo.None[MediaStream]()
	}
	above := lo.Filter(candidates, func(s MediaStream, _ int) bool { return s.Height >= height })
	if len(above) > 0 {
		return mo.Some(lo.MinBy(above, func(a, b MediaStream) bool { return a.Height < b.Height }))
	}
	return mo.Some(lo.MaxBy(candidates, func(a, b MediaStream) bool { return a.Height > b.Height }))
}

// ExactCombined picks the first combined stream whose height equals height.
func ExactCombined(streams []MediaStream, height int) mo.Option[MediaStream] {
	s, ok := lo.Find(combined(streams), func(s MediaStream) bool { return s.Height == height })
	if !ok {
		return mo.None[MediaStream]()
	}
	return mo.Some(s)
}

// ClosestCombined picks the closest combined stream at or above height and
// otherwise the highest combined stream. Quality is a preference, not a requirement.
func ClosestCombined(streams []MediaStream, height int) mo.Option[MediaStream] {
	return closestAbove(combined(streams), height)
}

// SplitVideo applies only when no combined stream exists. It returns a
// video-only stream chosen like ClosestCombined. The matching audio is not
// muxed in, so the file has no sound.
func SplitVideo(streams []MediaStream, height int) mo.Option[MediaStream] {
	if lo.SomeBy(streams, MediaStream.Combined) {
		return mo.None[MediaStream]()
	}
	return closestAbove(lo.Filter(streams, func(s MediaStream, _ int) bool { return s.VideoOnly() }), height)
}

// BestAudio returns the audio-only stream with the highest bitrate.
func BestAudio(streams []MediaStream) mo.Option[MediaStream] {
	audio := lo.Filter(streams, func(s MediaStream, _ int) bool { return s.AudioOnly() })
	if len(audio) == 0 {
		return mo.None[MediaStream]()
	}
	return mo.Some(lo.MaxBy(audio, func(a, b MediaStream) bool { return a.Bitrate > b.Bitrate }))
}

// Resolver applies an ordered list of tiers; the first non-empty result wins.
type Resolver struct {
	Tiers []Tier
}

// NewResolver returns a Resolver with DefaultTiers.
func NewResolver() *Resolver {
	return &Resolver{Tiers: DefaultTiers()}
}

// Select picks one stream for height, or fails with ErrNoSuitableFormat.
func (r *Resolver) Select(streams []MediaStream, height int) (Selection, error) {
	for _, t := range r.Tiers {
		s, ok := t.Pick(streams, height).Get()
		if !ok {
			continue
		}
		sel := Selection{Stream: s, Tier: t.Name, Audio: mo.None[MediaStream]()}
		if !s.HasAudio {
			sel.Audio = BestAudio(streams)
		}
		return sel, nil
	}
	return Selection{}, E(KindInvalidInput, "select format", ErrNoSuitableFormat)
}

// Alternative returns the next-best combined stream once chosen has failed.
func (r *Resolver) Alternative(streams []MediaStream, chosen MediaStream, height int) mo.Option[MediaStream] {
	rest := lo.Reject(streams, func(s MediaStream, _ int) bool { return s.Same(chosen) })
	if s, ok := ExactCombined(rest, height).Get(); ok {
		return mo.Some(s)
	}
	return ClosestCombined(rest, height)
}
