package mux

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"habla/internal/language"
	"habla/internal/logging"
	"habla/internal/services"
)

// commandRunner abstracts ffmpeg invocation for tests.
type commandRunner interface {
	run(ctx context.Context, name string, args ...string) (stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// FFmpeg shells out to the ffmpeg binary for all container work.
type FFmpeg struct {
	binary string
	runner commandRunner
	logger *slog.Logger
}

// Option configures an FFmpeg wrapper.
type Option func(*FFmpeg)

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func withRunner(r commandRunner) Option {
	return func(f *FFmpeg) { f.runner = r }
}

// New builds an FFmpeg wrapper around the given binary path.
func New(binary string, opts ...Option) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	f := &FFmpeg{binary: binary, runner: execRunner{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Spec describes one mux invocation. Subtitle is optional; when set it
// becomes a selectable track tagged with SubtitleLanguage.
type Spec struct {
	Video            string
	Audio            string
	Subtitle         string
	SubtitleLanguage string
	Output           string
}

// Mux combines the inputs into Output without re-encoding video or audio.
func (f *FFmpeg) Mux(ctx context.Context, spec Spec) error {
	if spec.Video == "" || spec.Audio == "" || spec.Output == "" {
		return services.Wrap(services.ErrValidation, "mux", "ffmpeg", "mux needs video, audio, and output paths", nil)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", spec.Video, "-i", spec.Audio}
	if spec.Subtitle != "" {
		args = append(args, "-i", spec.Subtitle)
	}
	args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	if spec.Subtitle != "" {
		args = append(args, "-map", "2:s:0")
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy")
	if spec.Subtitle != "" {
		// MP4 carries text subtitles as mov_text; the language tag is what
		// makes the track selectable by name in players.
		args = append(args, "-c:s", "mov_text")
		if tag := iso639_2(spec.SubtitleLanguage); tag != "" {
			args = append(args, "-metadata:s:s:0", "language="+tag)
			args = append(args, "-disposition:s:0", "default")
		}
	}
	args = append(args, "-movflags", "+faststart", spec.Output)

	return f.invoke(ctx, "mux", args)
}

// ConvertSubtitle rewrites a subtitle file into the format implied by
// the destination extension. The platforms serve VTT; mov_text muxing
// is happiest fed SRT.
func (f *FFmpeg) ConvertSubtitle(ctx context.Context, src, dst string) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", src, dst}
	return f.invoke(ctx, "convert-subtitle", args)
}

// Burn renders the subtitle into the video pixels. Re-encodes the video
// stream; audio is attached by the final mux.
func (f *FFmpeg) Burn(ctx context.Context, video, subtitle, output string) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", video,
		"-vf", "subtitles=" + escapeFilterPath(subtitle),
		"-c:v", "libx264", "-preset", "medium", "-crf", "18",
		"-an",
		output,
	}
	return f.invoke(ctx, "burn-subtitle", args)
}

func (f *FFmpeg) invoke(ctx context.Context, operation string, args []string) error {
	f.logger.DebugContext(ctx, "running ffmpeg",
		slog.String("operation", operation),
		slog.String("args", strings.Join(args, " ")))

	stderr, err := f.runner.run(ctx, f.binary, args...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return services.Wrap(services.ErrExternalTool, operation, "ffmpeg", lastStderrLine(stderr), err)
}

func lastStderrLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "ffmpeg failed"
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter
// expression, where ':' and '\' are syntax.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, `:`, `\:`)
	path = strings.ReplaceAll(path, `'`, `\'`)
	return "'" + path + "'"
}

// iso639_2 maps a normalized language tag to the three-letter code MP4
// metadata expects. Unknown languages fall back to an empty tag rather
// than a wrong one.
func iso639_2(tag string) string {
	codes := map[string]string{
		"es": "spa",
		"en": "eng",
		"fr": "fra",
		"de": "deu",
		"it": "ita",
		"pt": "por",
		"ja": "jpn",
		"ko": "kor",
		"zh": "zho",
		"ru": "rus",
		"ar": "ara",
		"hi": "hin",
	}
	return codes[language.Base(tag)]
}
