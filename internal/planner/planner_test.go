package planner_test

import (
	"errors"
	"reflect"
	"testing"

	"habla/internal/catalog"
	"habla/internal/planner"
	"habla/internal/resolver"
)

func twoQualityCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Video: []catalog.VideoStream{
			{QualityLabel: "720p", Height: 720, StreamRef: "v720"},
			{QualityLabel: "480p", Height: 480, StreamRef: "v480"},
		},
		Audio: []catalog.AudioStream{
			{Language: "en", Default: true, StreamRef: "a-en"},
			{Language: "es", StreamRef: "a-es"},
		},
		Subtitles: []catalog.SubtitleTrack{
			{Language: "es", Format: "vtt", StreamRef: "s-es"},
		},
	}
}

func TestBuildAudioMatchPlanHasThreeSteps(t *testing.T) {
	c := twoQualityCatalog()
	decision := resolver.Resolve(c, "es", resolver.Options{})

	plan, err := planner.Build(c, decision, "720p", planner.Options{PreferredLanguage: "es"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Name != "fetch-video" || plan.Steps[1].Name != "fetch-audio" || plan.Steps[2].Name != "mux" {
		t.Fatalf("unexpected step order: %+v", plan.Steps)
	}
	if plan.Steps[1].StreamRef != "a-es" {
		t.Fatalf("expected matched audio, got %q", plan.Steps[1].StreamRef)
	}
	if len(plan.Advisories) != 0 {
		t.Fatalf("unexpected advisories: %+v", plan.Advisories)
	}
	if !reflect.DeepEqual(plan.Steps[2].Inputs, []string{planner.SlotVideo, planner.SlotAudio}) {
		t.Fatalf("unexpected mux inputs: %v", plan.Steps[2].Inputs)
	}
}

func TestBuildQualityDowngradeNearestBelow(t *testing.T) {
	c := twoQualityCatalog()
	decision := resolver.Resolve(c, "es", resolver.Options{})

	plan, err := planner.Build(c, decision, "1080p", planner.Options{PreferredLanguage: "es"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Video.StreamRef != "v720" {
		t.Fatalf("expected nearest-below 720p, got %q", plan.Video.StreamRef)
	}
	if len(plan.Advisories) != 1 || plan.Advisories[0].Kind != planner.AdvisoryQualityDowngraded {
		t.Fatalf("expected quality-downgraded advisory, got %+v", plan.Advisories)
	}
}

func TestBuildQualityDowngradeLowestAvailable(t *testing.T) {
	c := twoQualityCatalog()
	decision := resolver.Resolve(c, "es", resolver.Options{})

	plan, err := planner.Build(c, decision, "240p", planner.Options{PreferredLanguage: "es"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Video.StreamRef != "v480" {
		t.Fatalf("expected lowest available 480p, got %q", plan.Video.StreamRef)
	}
	if len(plan.Advisories) != 1 || plan.Advisories[0].Kind != planner.AdvisoryQualityDowngraded {
		t.Fatalf("expected quality-downgraded advisory, got %+v", plan.Advisories)
	}
}

func TestBuildSubtitleFallbackSoft(t *testing.T) {
	c := twoQualityCatalog()
	c.Audio = []catalog.AudioStream{{Language: "en", Default: true, StreamRef: "a-en"}}
	decision := resolver.Resolve(c, "es", resolver.Options{})
	if decision.Kind != resolver.SubtitleFallback {
		t.Fatalf("test setup: expected subtitle fallback, got %v", decision.Kind)
	}

	plan, err := planner.Build(c, decision, "720p", planner.Options{PreferredLanguage: "es"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	names := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		names = append(names, s.Name)
	}
	want := []string{"fetch-video", "fetch-audio", "fetch-subtitle", "embed-subtitle", "mux"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected step order: %v", names)
	}

	embed := plan.Steps[3]
	if embed.Burn {
		t.Fatal("soft mode must not burn")
	}
	if embed.OutputSlot != planner.SlotSubtitle {
		t.Fatalf("unexpected embed output: %q", embed.OutputSlot)
	}

	mux := plan.Steps[4]
	want = []string{planner.SlotVideo, planner.SlotAudio, planner.SlotSubtitle}
	if !reflect.DeepEqual(mux.Inputs, want) {
		t.Fatalf("unexpected mux inputs: %v", mux.Inputs)
	}
	if mux.SubtitleLanguage != "es" {
		t.Fatalf("mux should carry subtitle language, got %q", mux.SubtitleLanguage)
	}
}

func TestBuildSubtitleFallbackBurned(t *testing.T) {
	c := twoQualityCatalog()
	c.Audio = []catalog.AudioStream{{Language: "en", Default: true, StreamRef: "a-en"}}
	decision := resolver.Resolve(c, "es", resolver.Options{})

	plan, err := planner.Build(c, decision, "720p", planner.Options{PreferredLanguage: "es", BurnSubtitles: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	embed := plan.Steps[3]
	if !embed.Burn {
		t.Fatal("expected burn flag")
	}
	if embed.OutputSlot != planner.SlotBurnedVideo {
		t.Fatalf("unexpected embed output: %q", embed.OutputSlot)
	}

	mux := plan.Steps[4]
	if !reflect.DeepEqual(mux.Inputs, []string{planner.SlotBurnedVideo, planner.SlotAudio}) {
		t.Fatalf("unexpected mux inputs: %v", mux.Inputs)
	}
}

func TestBuildNoMatchRequiresOptIn(t *testing.T) {
	c := twoQualityCatalog()
	c.Audio = []catalog.AudioStream{{Language: "en", Default: true, StreamRef: "a-en"}}
	c.Subtitles = nil
	decision := resolver.Resolve(c, "es", resolver.Options{})

	_, err := planner.Build(c, decision, "720p", planner.Options{PreferredLanguage: "es"})
	if !errors.Is(err, planner.ErrNoLanguageMatch) {
		t.Fatalf("expected ErrNoLanguageMatch, got %v", err)
	}

	plan, err := planner.Build(c, decision, "720p", planner.Options{PreferredLanguage: "es", AllowOriginalAudio: true})
	if err != nil {
		t.Fatalf("Build with opt-in: %v", err)
	}
	if plan.Audio.StreamRef != "a-en" {
		t.Fatalf("expected default audio, got %q", plan.Audio.StreamRef)
	}
	if len(plan.Advisories) != 1 || plan.Advisories[0].Kind != planner.AdvisoryOriginalAudio {
		t.Fatalf("expected original-audio advisory, got %+v", plan.Advisories)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	c := twoQualityCatalog()
	decision := resolver.Resolve(c, "es", resolver.Options{})

	first, err := planner.Build(c, decision, "1080p", planner.Options{PreferredLanguage: "es"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := planner.Build(c, decision, "1080p", planner.Options{PreferredLanguage: "es"})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("plan changed between builds")
		}
	}
}
