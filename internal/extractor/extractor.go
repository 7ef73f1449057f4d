package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"habla/internal/catalog"
	"habla/internal/language"
	"habla/internal/logging"
	"habla/internal/services"
)

// Result holds everything a probe learned about one video.
type Result struct {
	ID       string
	Title    string
	Duration float64
	// CookieBrowser names the browser whose cookies unlocked the probe.
	// Empty when the anonymous probe succeeded.
	CookieBrowser string
	Catalog       *catalog.Catalog
}

// commandRunner abstracts process execution so tests can feed canned
// metadata dumps.
type commandRunner interface {
	run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// YtDlp probes URLs using the yt-dlp binary.
type YtDlp struct {
	binary          string
	cookieBrowsers  []string
	includeAutoSubs bool
	logger          *slog.Logger
	runner          commandRunner
}

// Option configures a YtDlp prober.
type Option func(*YtDlp)

// WithCookieBrowsers sets the browsers tried, in order, when the
// anonymous probe is rejected.
func WithCookieBrowsers(browsers []string) Option {
	return func(y *YtDlp) { y.cookieBrowsers = browsers }
}

// WithAutoCaptions includes machine-generated captions in the catalog.
func WithAutoCaptions(include bool) Option {
	return func(y *YtDlp) { y.includeAutoSubs = include }
}

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(y *YtDlp) {
		if logger != nil {
			y.logger = logger
		}
	}
}

func withRunner(r commandRunner) Option {
	return func(y *YtDlp) { y.runner = r }
}

// DefaultCookieBrowsers is the fallback chain tried when a platform
// rejects anonymous probes.
var DefaultCookieBrowsers = []string{"chrome", "firefox", "brave", "edge", "opera", "vivaldi", "safari"}

// NewYtDlp builds a prober around the given binary path.
func NewYtDlp(binary string, opts ...Option) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	y := &YtDlp{
		binary:         binary,
		cookieBrowsers: DefaultCookieBrowsers,
		logger:         logging.NewNop(),
		runner:         execRunner{},
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// ValidateURL rejects strings that cannot name a remote video.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return services.Wrap(services.ErrValidation, "probe", "validate-url", fmt.Sprintf("not a URL: %q", raw), err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrValidation, "probe", "validate-url",
			fmt.Sprintf("unsupported scheme %q (need http or https)", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "probe", "validate-url", fmt.Sprintf("missing host in %q", raw), nil)
	}
	return nil
}

// Probe fetches metadata for the URL and adapts it into a catalog.
func (y *YtDlp) Probe(ctx context.Context, rawURL string) (*Result, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	attempts := make([][]string, 0, len(y.cookieBrowsers)+1)
	attempts = append(attempts, nil)
	for _, browser := range y.cookieBrowsers {
		attempts = append(attempts, []string{"--cookies-from-browser", browser})
	}

	var lastErr error
	for i, extra := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		browser := ""
		if i > 0 {
			browser = y.cookieBrowsers[i-1]
		}

		args := append([]string{"--dump-json", "--no-playlist", "--no-warnings"}, extra...)
		args = append(args, rawURL)
		stdout, stderr, err := y.runner.run(ctx, y.binary, args...)
		if err == nil {
			result, adaptErr := adapt(stdout, y.includeAutoSubs)
			if adaptErr != nil {
				return nil, adaptErr
			}
			result.CookieBrowser = browser
			if browser != "" {
				y.logger.InfoContext(ctx, "probe succeeded with browser cookies",
					slog.String("browser", browser))
			}
			return result, nil
		}

		lastErr = services.Wrap(services.ErrExternalTool, "probe", "yt-dlp",
			trimToolError(stderr), err)
		if browser == "" {
			y.logger.DebugContext(ctx, "anonymous probe failed, trying browser cookies",
				logging.Error(lastErr))
		} else {
			y.logger.DebugContext(ctx, "cookie probe failed",
				slog.String("browser", browser), logging.Error(lastErr))
		}
	}
	return nil, lastErr
}

// trimToolError keeps the last meaningful stderr line so wrapped errors
// stay readable.
func trimToolError(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line
		}
	}
	return "yt-dlp failed"
}

// adapt converts a yt-dlp metadata dump into a validated catalog.
func adapt(dump []byte, includeAutoSubs bool) (*Result, error) {
	if !gjson.ValidBytes(dump) {
		return nil, fmt.Errorf("%w: yt-dlp returned invalid JSON", catalog.ErrMalformed)
	}
	doc := gjson.ParseBytes(dump)

	result := &Result{
		ID:       doc.Get("id").String(),
		Title:    doc.Get("title").String(),
		Duration: doc.Get("duration").Float(),
		Catalog:  &catalog.Catalog{},
	}
	originalLanguage := language.Normalize(doc.Get("language").String())

	doc.Get("formats").ForEach(func(_, f gjson.Result) bool {
		ref := f.Get("format_id").String()
		streamURL := f.Get("url").String()
		if ref == "" || streamURL == "" {
			return true
		}
		vcodec := f.Get("vcodec").String()
		acodec := f.Get("acodec").String()
		hasVideo := vcodec != "" && vcodec != "none"
		hasAudio := acodec != "" && acodec != "none"

		switch {
		case hasVideo:
			height := int(f.Get("height").Int())
			if height <= 0 {
				return true
			}
			result.Catalog.Video = append(result.Catalog.Video, catalog.VideoStream{
				QualityLabel: qualityLabel(f, height),
				Height:       height,
				FPS:          f.Get("fps").Float(),
				Bitrate:      int64(f.Get("tbr").Float() * 1000),
				Codec:        vcodec,
				StreamRef:    ref,
				SourceURL:    streamURL,
			})
		case hasAudio:
			lang := language.Normalize(f.Get("language").String())
			result.Catalog.Audio = append(result.Catalog.Audio, catalog.AudioStream{
				Language:  lang,
				Default:   isDefaultAudio(f, lang, originalLanguage),
				Bitrate:   int64(f.Get("abr").Float() * 1000),
				Codec:     acodec,
				StreamRef: ref,
				SourceURL: streamURL,
			})
		}
		return true
	})

	appendSubtitles(result.Catalog, doc.Get("subtitles"), "sub")
	if includeAutoSubs {
		appendSubtitles(result.Catalog, doc.Get("automatic_captions"), "autosub")
	}

	if err := result.Catalog.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// appendSubtitles folds one yt-dlp subtitle map into the catalog.
// Manual subtitles are appended before machine captions so they win
// catalog-order tie-breaks. Refs carry a running index because some
// sites list several tracks with the same language and extension.
func appendSubtitles(c *catalog.Catalog, subs gjson.Result, refPrefix string) {
	n := 0
	subs.ForEach(func(lang, tracks gjson.Result) bool {
		normalized := language.Normalize(lang.String())
		tracks.ForEach(func(_, track gjson.Result) bool {
			ext := track.Get("ext").String()
			trackURL := track.Get("url").String()
			if ext == "" || trackURL == "" {
				return true
			}
			c.Subtitles = append(c.Subtitles, catalog.SubtitleTrack{
				Language:  normalized,
				Format:    ext,
				StreamRef: fmt.Sprintf("%s-%s-%s-%d", refPrefix, normalized, ext, n),
				SourceURL: trackURL,
			})
			n++
			return true
		})
		return true
	})
}

func qualityLabel(f gjson.Result, height int) string {
	note := strings.TrimSpace(f.Get("format_note").String())
	if note != "" && strings.HasSuffix(note, "p") {
		return note
	}
	return fmt.Sprintf("%dp", height)
}

// isDefaultAudio flags the track a player would pick without a language
// preference. yt-dlp marks it in format_note; when it does not, the
// track matching the video's declared language wins.
func isDefaultAudio(f gjson.Result, lang, originalLanguage string) bool {
	note := strings.ToLower(f.Get("format_note").String())
	if strings.Contains(note, "original") || strings.Contains(note, "default") {
		return true
	}
	return originalLanguage != "" && lang == originalLanguage
}
