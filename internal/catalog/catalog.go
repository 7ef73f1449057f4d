package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates the extraction layer produced an inconsistent
// catalog. Fatal, never retried.
var ErrMalformed = errors.New("malformed catalog")

// VideoStream is one video-only rendition.
type VideoStream struct {
	// QualityLabel is the platform's display label for the rendition
	// ("1080p", "720p60"). Lowercased at the adapter boundary.
	QualityLabel string
	Height       int
	FPS          float64
	Bitrate      int64
	Codec        string
	StreamRef    string
	SourceURL    string
}

// AudioStream is one audio-only rendition. Language may be empty when the
// platform did not tag the track.
type AudioStream struct {
	Language  string
	Default   bool
	Bitrate   int64
	Codec     string
	StreamRef string
	SourceURL string
}

// SubtitleTrack is one subtitle rendition.
type SubtitleTrack struct {
	Language  string
	Format    string
	StreamRef string
	SourceURL string
}

// Catalog is an immutable snapshot of one media item's offerings, in the
// order the platform returned them.
type Catalog struct {
	Video     []VideoStream
	Audio     []AudioStream
	Subtitles []SubtitleTrack
}

// Validate checks the invariants downstream components rely on: at least
// one video rendition, unique stream refs across the whole catalog, and
// positive video heights.
func (c *Catalog) Validate() error {
	if c == nil || len(c.Video) == 0 {
		return fmt.Errorf("%w: no video renditions", ErrMalformed)
	}

	refs := make(map[string]struct{}, len(c.Video)+len(c.Audio)+len(c.Subtitles))
	checkRef := func(ref, kind string) error {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return fmt.Errorf("%w: %s rendition with empty stream ref", ErrMalformed, kind)
		}
		if _, dup := refs[ref]; dup {
			return fmt.Errorf("%w: duplicate stream ref %q", ErrMalformed, ref)
		}
		refs[ref] = struct{}{}
		return nil
	}

	for _, v := range c.Video {
		if err := checkRef(v.StreamRef, "video"); err != nil {
			return err
		}
		if v.Height <= 0 {
			return fmt.Errorf("%w: video %q has non-positive height %d", ErrMalformed, v.StreamRef, v.Height)
		}
	}
	for _, a := range c.Audio {
		if err := checkRef(a.StreamRef, "audio"); err != nil {
			return err
		}
	}
	for _, s := range c.Subtitles {
		if err := checkRef(s.StreamRef, "subtitle"); err != nil {
			return err
		}
	}
	return nil
}

// DefaultAudio returns the platform's default audio stream: the first
// stream flagged default, or the first audio stream when none is flagged.
// ok is false when the catalog has no audio at all.
func (c *Catalog) DefaultAudio() (AudioStream, bool) {
	for _, a := range c.Audio {
		if a.Default {
			return a, true
		}
	}
	if len(c.Audio) > 0 {
		return c.Audio[0], true
	}
	return AudioStream{}, false
}
