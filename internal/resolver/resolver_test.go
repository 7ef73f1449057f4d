package resolver_test

import (
	"testing"

	"habla/internal/catalog"
	"habla/internal/resolver"
)

func baseCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Video: []catalog.VideoStream{
			{QualityLabel: "1080p", Height: 1080, StreamRef: "v1"},
		},
	}
}

func TestResolvePrefersTaggedAudioOverSubtitles(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "en", Default: true, StreamRef: "a1"},
		{Language: "es", StreamRef: "a2"},
	}
	c.Subtitles = []catalog.SubtitleTrack{
		{Language: "es", Format: "vtt", StreamRef: "s1"},
	}

	d := resolver.Resolve(c, "es", resolver.Options{})
	if d.Kind != resolver.AudioMatch {
		t.Fatalf("expected audio match, got %v", d.Kind)
	}
	if d.Audio.StreamRef != "a2" {
		t.Fatalf("expected a2, got %q", d.Audio.StreamRef)
	}
	if d.Inferred {
		t.Fatal("tagged match must not be marked inferred")
	}
}

func TestResolveExactRegionBeatsBaseTag(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "es-MX", StreamRef: "a1"},
		{Language: "es", StreamRef: "a2"},
	}

	d := resolver.Resolve(c, "es-MX", resolver.Options{})
	if d.Kind != resolver.AudioMatch || d.Audio.StreamRef != "a1" {
		t.Fatalf("expected exact-region a1, got %+v", d)
	}
}

func TestResolveBaseTagMatchesRegionalStream(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "en", StreamRef: "a1"},
		{Language: "es-419", StreamRef: "a2"},
	}

	d := resolver.Resolve(c, "es", resolver.Options{})
	if d.Kind != resolver.AudioMatch || d.Audio.StreamRef != "a2" {
		t.Fatalf("expected base-language match a2, got %+v", d)
	}
}

func TestResolveEarliestWinsAtEqualSpecificity(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "es", Bitrate: 64, StreamRef: "a1"},
		{Language: "es", Bitrate: 256, StreamRef: "a2"},
	}

	d := resolver.Resolve(c, "es", resolver.Options{})
	if d.Audio.StreamRef != "a1" {
		t.Fatalf("expected catalog order preserved, got %q", d.Audio.StreamRef)
	}
}

func TestResolveSubtitleFallback(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "en", Default: true, StreamRef: "a1"},
	}
	c.Subtitles = []catalog.SubtitleTrack{
		{Language: "de", Format: "vtt", StreamRef: "s1"},
		{Language: "es-419", Format: "vtt", StreamRef: "s2"},
	}

	d := resolver.Resolve(c, "es", resolver.Options{})
	if d.Kind != resolver.SubtitleFallback || d.Subtitle.StreamRef != "s2" {
		t.Fatalf("expected subtitle fallback s2, got %+v", d)
	}
}

func TestResolveNoMatch(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "en", Default: true, StreamRef: "a1"},
	}

	d := resolver.Resolve(c, "es", resolver.Options{})
	if d.Kind != resolver.NoMatch {
		t.Fatalf("expected no match, got %+v", d)
	}
}

func TestResolveTitleInferenceOptIn(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "", Default: true, StreamRef: "a1"},
	}
	c.Subtitles = []catalog.SubtitleTrack{
		{Language: "es", Format: "vtt", StreamRef: "s1"},
	}

	// Off by default: untagged audio falls through to subtitles.
	d := resolver.Resolve(c, "es", resolver.Options{Title: "Documental en español"})
	if d.Kind != resolver.SubtitleFallback {
		t.Fatalf("expected subtitle fallback without opt-in, got %+v", d)
	}

	d = resolver.Resolve(c, "es", resolver.Options{Title: "Documental en español", InferFromTitle: true})
	if d.Kind != resolver.AudioMatch || !d.Inferred || d.Audio.StreamRef != "a1" {
		t.Fatalf("expected inferred audio match, got %+v", d)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	c := baseCatalog()
	c.Audio = []catalog.AudioStream{
		{Language: "es-MX", StreamRef: "a1"},
		{Language: "es", StreamRef: "a2"},
	}

	first := resolver.Resolve(c, "es-MX", resolver.Options{})
	for i := 0; i < 5; i++ {
		if got := resolver.Resolve(c, "es-MX", resolver.Options{}); got != first {
			t.Fatalf("resolution changed between calls: %+v vs %+v", got, first)
		}
	}
}
