package resolver

import (
	"habla/internal/catalog"
	"habla/internal/language"
)

// Kind enumerates the possible resolution outcomes.
type Kind int

const (
	// AudioMatch means an audio stream in the preferred language exists.
	AudioMatch Kind = iota
	// SubtitleFallback means no matching audio exists but a subtitle
	// track in the preferred language does.
	SubtitleFallback
	// NoMatch means neither audio nor subtitles match. The caller decides
	// whether to abort or proceed with the original audio.
	NoMatch
)

func (k Kind) String() string {
	switch k {
	case AudioMatch:
		return "audio-match"
	case SubtitleFallback:
		return "subtitle-fallback"
	case NoMatch:
		return "no-match"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one resolution call. Exactly one of Audio or
// Subtitle is meaningful, depending on Kind.
type Decision struct {
	Kind     Kind
	Audio    catalog.AudioStream
	Subtitle catalog.SubtitleTrack
	// Inferred is set when the audio match came from title keywords
	// rather than stream metadata.
	Inferred bool
}

// Options tunes resolution behavior beyond the plain tag scan.
type Options struct {
	// Title is the media title, consulted only when InferFromTitle is set.
	Title string
	// InferFromTitle treats the default audio stream as a match when the
	// title spells out the preferred language and no stream is tagged.
	InferFromTitle bool
}

// Resolve scans the catalog for the preferred language. Audio is scanned
// before subtitles; each scan runs two passes, exact tag first (region
// included) and base language second, so "es-MX" beats "es" when the
// preference is "es-MX". Within a pass the earliest catalog entry wins:
// platforms order renditions by their own relevance and that ordering is
// preserved rather than re-ranked by bitrate.
func Resolve(c *catalog.Catalog, preferred string, opts Options) Decision {
	preferred = language.Normalize(preferred)

	if audio, ok := matchAudio(c.Audio, preferred); ok {
		return Decision{Kind: AudioMatch, Audio: audio}
	}

	if opts.InferFromTitle && language.TitleMentions(opts.Title, preferred) {
		if audio, ok := c.DefaultAudio(); ok {
			return Decision{Kind: AudioMatch, Audio: audio, Inferred: true}
		}
	}

	if sub, ok := matchSubtitle(c.Subtitles, preferred); ok {
		return Decision{Kind: SubtitleFallback, Subtitle: sub}
	}

	return Decision{Kind: NoMatch}
}

func matchAudio(streams []catalog.AudioStream, preferred string) (catalog.AudioStream, bool) {
	for _, a := range streams {
		if a.Language != "" && language.Normalize(a.Language) == preferred {
			return a, true
		}
	}
	for _, a := range streams {
		if a.Language != "" && language.SameBase(a.Language, preferred) {
			return a, true
		}
	}
	return catalog.AudioStream{}, false
}

func matchSubtitle(tracks []catalog.SubtitleTrack, preferred string) (catalog.SubtitleTrack, bool) {
	for _, s := range tracks {
		if s.Language != "" && language.Normalize(s.Language) == preferred {
			return s, true
		}
	}
	for _, s := range tracks {
		if s.Language != "" && language.SameBase(s.Language, preferred) {
			return s, true
		}
	}
	return catalog.SubtitleTrack{}, false
}
