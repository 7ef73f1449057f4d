package planner

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"habla/internal/catalog"
	"habla/internal/language"
	"habla/internal/resolver"
)

// ErrNoLanguageMatch is returned when nothing in the catalog matches the
// preferred language and the caller has not opted into original audio.
var ErrNoLanguageMatch = errors.New("no content in preferred language")

// StepKind enumerates assembly step types.
type StepKind string

const (
	StepFetch         StepKind = "fetch"
	StepEmbedSubtitle StepKind = "embed-subtitle"
	StepMux           StepKind = "mux"
)

// Work-area slot names, assigned at plan build time. Each step writes to
// exactly one slot and no two steps share one.
const (
	SlotVideo       = "video.mp4"
	SlotAudio       = "audio.m4a"
	SlotSubtitle    = "subtitle.srt"
	SlotBurnedVideo = "video-subtitled.mp4"
	SlotOutput      = "output.mp4"
)

// Step is one unit of assembly work.
type Step struct {
	Kind StepKind
	// Name identifies the step in logs, progress events, and errors
	// ("fetch-video", "mux").
	Name string

	// Fetch fields.
	StreamRef string
	SourceURL string

	// Inputs are the slots a transform step consumes. Fetch steps have none.
	Inputs []string
	// OutputSlot is the work-area file this step produces.
	OutputSlot string

	// Subtitle handling, set on embed steps only.
	SubtitleFormat   string
	SubtitleLanguage string
	Burn             bool
}

// AdvisoryKind enumerates non-fatal notices a plan can carry.
type AdvisoryKind string

const (
	// AdvisoryQualityDowngraded means the requested quality was not
	// offered and a lower one was selected.
	AdvisoryQualityDowngraded AdvisoryKind = "quality-downgraded"
	// AdvisoryOriginalAudio means no language match existed and the run
	// proceeds with the platform's default audio by explicit opt-in.
	AdvisoryOriginalAudio AdvisoryKind = "original-audio"
)

// Advisory is a non-fatal notice surfaced alongside a successful plan.
// Advisories never travel as errors so callers cannot mistake a
// downgraded run for a failed one.
type Advisory struct {
	Kind    AdvisoryKind
	Message string
}

// Plan is the immutable, fully materialized list of assembly steps.
type Plan struct {
	Steps      []Step
	Video      catalog.VideoStream
	Audio      catalog.AudioStream
	Decision   resolver.Decision
	Advisories []Advisory
}

// Options tunes plan construction.
type Options struct {
	// PreferredLanguage is used in error messages and subtitle metadata.
	PreferredLanguage string
	// AllowOriginalAudio permits planning with the platform default audio
	// when the resolver found no language match.
	AllowOriginalAudio bool
	// BurnSubtitles renders the subtitle into video pixels instead of
	// adding a selectable track. Re-encodes; explicit opt-in.
	BurnSubtitles bool
}

// Build constructs the assembly plan for a decision. The returned plan is
// complete before execution begins; Build performs no I/O.
func Build(c *catalog.Catalog, decision resolver.Decision, requestedQuality string, opts Options) (*Plan, error) {
	video, advisory := selectVideo(c.Video, requestedQuality)

	plan := &Plan{Video: video, Decision: decision}
	if advisory != nil {
		plan.Advisories = append(plan.Advisories, *advisory)
	}

	fetchVideo := Step{
		Kind:       StepFetch,
		Name:       "fetch-video",
		StreamRef:  video.StreamRef,
		SourceURL:  video.SourceURL,
		OutputSlot: SlotVideo,
	}

	switch decision.Kind {
	case resolver.AudioMatch:
		plan.Audio = decision.Audio
		plan.Steps = []Step{
			fetchVideo,
			fetchAudio(decision.Audio),
			muxStep(SlotVideo, SlotAudio),
		}

	case resolver.SubtitleFallback:
		audio, ok := c.DefaultAudio()
		if !ok {
			return nil, fmt.Errorf("%w: catalog offers no audio streams", catalog.ErrMalformed)
		}
		plan.Audio = audio

		sub := decision.Subtitle
		embed := Step{
			Kind:             StepEmbedSubtitle,
			Name:             "embed-subtitle",
			SubtitleFormat:   sub.Format,
			SubtitleLanguage: sub.Language,
			Burn:             opts.BurnSubtitles,
		}
		fetchSub := Step{
			Kind:       StepFetch,
			Name:       "fetch-subtitle",
			StreamRef:  sub.StreamRef,
			SourceURL:  sub.SourceURL,
			OutputSlot: subtitleSlot(sub.Format),
		}
		if opts.BurnSubtitles {
			// Burning renders the track into the video before the final mux.
			embed.Inputs = []string{SlotVideo, fetchSub.OutputSlot}
			embed.OutputSlot = SlotBurnedVideo
			plan.Steps = []Step{
				fetchVideo,
				fetchAudio(audio),
				fetchSub,
				embed,
				muxStep(SlotBurnedVideo, SlotAudio),
			}
		} else {
			// Soft mode normalizes the subtitle into a container-ready
			// artifact; the mux carries it as a selectable track.
			embed.Inputs = []string{fetchSub.OutputSlot}
			embed.OutputSlot = SlotSubtitle
			mux := muxStep(SlotVideo, SlotAudio, SlotSubtitle)
			mux.SubtitleLanguage = sub.Language
			plan.Steps = []Step{
				fetchVideo,
				fetchAudio(audio),
				fetchSub,
				embed,
				mux,
			}
		}

	case resolver.NoMatch:
		if !opts.AllowOriginalAudio {
			return nil, fmt.Errorf("%w: no %s audio or subtitles offered (pass allow_original_audio to download anyway)",
				ErrNoLanguageMatch, language.DisplayName(opts.PreferredLanguage))
		}
		audio, ok := c.DefaultAudio()
		if !ok {
			return nil, fmt.Errorf("%w: catalog offers no audio streams", catalog.ErrMalformed)
		}
		plan.Audio = audio
		plan.Advisories = append(plan.Advisories, Advisory{
			Kind: AdvisoryOriginalAudio,
			Message: fmt.Sprintf("no %s content available; downloading original audio",
				language.DisplayName(opts.PreferredLanguage)),
		})
		plan.Steps = []Step{
			fetchVideo,
			fetchAudio(audio),
			muxStep(SlotVideo, SlotAudio),
		}

	default:
		return nil, fmt.Errorf("unknown decision kind %v", decision.Kind)
	}

	return plan, nil
}

func fetchAudio(a catalog.AudioStream) Step {
	return Step{
		Kind:       StepFetch,
		Name:       "fetch-audio",
		StreamRef:  a.StreamRef,
		SourceURL:  a.SourceURL,
		OutputSlot: SlotAudio,
	}
}

func muxStep(inputs ...string) Step {
	return Step{
		Kind:       StepMux,
		Name:       "mux",
		Inputs:     inputs,
		OutputSlot: SlotOutput,
	}
}

func subtitleSlot(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "vtt"
	}
	return "subtitle-source." + format
}

var qualityDigits = regexp.MustCompile(`\d+`)

// selectVideo picks the rendition for a requested quality label. Exact
// label match wins; otherwise the nearest quality strictly below the
// request, so the user is never silently upgraded past what they asked
// for; otherwise the lowest available. Both fallbacks carry a
// quality-downgraded advisory. An empty request means best available.
func selectVideo(videos []catalog.VideoStream, requested string) (catalog.VideoStream, *Advisory) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		return bestVideo(videos), nil
	}

	for _, v := range videos {
		if strings.ToLower(v.QualityLabel) == requested {
			return v, nil
		}
	}

	target := parseQualityHeight(requested)
	if target > 0 {
		var below *catalog.VideoStream
		for i := range videos {
			v := &videos[i]
			if v.Height >= target {
				continue
			}
			if below == nil || betterOf(*v, *below) {
				below = v
			}
		}
		if below != nil {
			return *below, &Advisory{
				Kind: AdvisoryQualityDowngraded,
				Message: fmt.Sprintf("requested quality %q not offered; using %s",
					requested, qualityName(*below)),
			}
		}
	}

	lowest := lowestVideo(videos)
	return lowest, &Advisory{
		Kind: AdvisoryQualityDowngraded,
		Message: fmt.Sprintf("requested quality %q not offered; using lowest available %s",
			requested, qualityName(lowest)),
	}
}

// betterOf reports whether a is the preferable rendition at a's height
// tier: higher resolution first, then frame rate, then bitrate.
func betterOf(a, b catalog.VideoStream) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.FPS != b.FPS {
		return a.FPS > b.FPS
	}
	return a.Bitrate > b.Bitrate
}

func bestVideo(videos []catalog.VideoStream) catalog.VideoStream {
	best := videos[0]
	for _, v := range videos[1:] {
		if betterOf(v, best) {
			best = v
		}
	}
	return best
}

func lowestVideo(videos []catalog.VideoStream) catalog.VideoStream {
	lowest := videos[0]
	for _, v := range videos[1:] {
		if v.Height < lowest.Height {
			lowest = v
		}
	}
	return lowest
}

func parseQualityHeight(label string) int {
	match := qualityDigits.FindString(label)
	if match == "" {
		return 0
	}
	height, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return height
}

func qualityName(v catalog.VideoStream) string {
	if v.QualityLabel != "" {
		return v.QualityLabel
	}
	return fmt.Sprintf("%dp", v.Height)
}
