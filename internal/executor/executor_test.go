package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"habla/internal/catalog"
	"habla/internal/mux"
	"habla/internal/planner"
	"habla/internal/resolver"
	"habla/internal/services"
	"habla/internal/transport"
)

type fakeDownloader struct {
	mu sync.Mutex
	// failures maps a URL to how many transient failures to serve first.
	failures  map[string]int
	permanent map[string]error
	resumable bool
	calls     map[string]int
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string, onProgress func(transport.Progress)) (int64, bool, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	remaining := f.failures[url]
	if remaining > 0 {
		f.failures[url]--
	}
	permErr := f.permanent[url]
	f.mu.Unlock()

	if permErr != nil {
		return 0, f.resumable, permErr
	}
	if remaining > 0 {
		// Leave a partial behind so the retry path has to deal with it.
		_ = os.WriteFile(dest, []byte("partial"), 0o644)
		return 7, f.resumable, services.Wrap(services.ErrTransient, "download", "", "connection reset", nil)
	}
	body := []byte("stream:" + url)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return 0, f.resumable, err
	}
	if onProgress != nil {
		onProgress(transport.Progress{BytesDone: int64(len(body)), BytesTotal: int64(len(body))})
	}
	return int64(len(body)), f.resumable, nil
}

type fakeMuxer struct {
	mu    sync.Mutex
	calls []string
	specs []mux.Spec
	// muxErr makes Mux fail, standing in for a non-zero ffmpeg exit.
	muxErr error
}

func (f *fakeMuxer) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeMuxer) Mux(_ context.Context, spec mux.Spec) error {
	f.record("mux")
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.muxErr != nil {
		return f.muxErr
	}
	return os.WriteFile(spec.Output, []byte("muxed"), 0o644)
}

func (f *fakeMuxer) ConvertSubtitle(_ context.Context, src, dst string) error {
	f.record("convert")
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (f *fakeMuxer) Burn(_ context.Context, video, subtitle, output string) error {
	f.record("burn")
	return os.WriteFile(output, []byte("burned"), 0o644)
}

func testPlan(t *testing.T, soft bool) *planner.Plan {
	t.Helper()
	c := &catalog.Catalog{
		Video: []catalog.VideoStream{{QualityLabel: "720p", Height: 720, StreamRef: "v1", SourceURL: "https://cdn/video"}},
		Audio: []catalog.AudioStream{{Language: "en", Default: true, StreamRef: "a1", SourceURL: "https://cdn/audio"}},
	}
	if !soft {
		c.Audio = append(c.Audio, catalog.AudioStream{Language: "es", StreamRef: "a2", SourceURL: "https://cdn/audio-es"})
	} else {
		c.Subtitles = []catalog.SubtitleTrack{{Language: "es", Format: "vtt", StreamRef: "s1", SourceURL: "https://cdn/sub"}}
	}
	decision := resolver.Resolve(c, "es", resolver.Options{})
	plan, err := planner.Build(c, decision, "720p", planner.Options{PreferredLanguage: "es"})
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	return plan
}

func instantSleep(context.Context, time.Duration) error { return nil }

func TestExecutePublishesOutput(t *testing.T) {
	staging := t.TempDir()
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "movie.mp4")

	muxer := &fakeMuxer{}
	e := New(&fakeDownloader{resumable: true}, muxer)

	got, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir:  staging,
		OutputPath:  outPath,
		RetryBudget: 2,
		sleep:       instantSleep,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != outPath {
		t.Fatalf("expected %q, got %q", outPath, got)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "muxed" {
		t.Fatalf("unexpected output content %q", data)
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("work area not cleaned up: %v", entries)
	}
}

func TestExecuteSoftSubtitlePlanOrdersTransforms(t *testing.T) {
	muxer := &fakeMuxer{}
	e := New(&fakeDownloader{resumable: true}, muxer)

	_, err := e.Execute(t.Context(), testPlan(t, true), Options{
		StagingDir: t.TempDir(),
		OutputPath: filepath.Join(t.TempDir(), "movie.mp4"),
		sleep:      instantSleep,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(muxer.calls) != 2 || muxer.calls[0] != "convert" || muxer.calls[1] != "mux" {
		t.Fatalf("unexpected transform order: %v", muxer.calls)
	}
	spec := muxer.specs[0]
	if spec.Subtitle == "" || spec.SubtitleLanguage != "es" {
		t.Fatalf("mux spec missing subtitle track: %+v", spec)
	}
}

func TestExecuteRetriesTransientFetch(t *testing.T) {
	dl := &fakeDownloader{
		failures:  map[string]int{"https://cdn/audio-es": 2},
		resumable: false,
	}
	e := New(dl, &fakeMuxer{})

	_, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir:  t.TempDir(),
		OutputPath:  filepath.Join(t.TempDir(), "movie.mp4"),
		RetryBudget: 3,
		sleep:       instantSleep,
	})
	if err != nil {
		t.Fatalf("Execute should survive transient failures: %v", err)
	}
	if dl.calls["https://cdn/audio-es"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", dl.calls["https://cdn/audio-es"])
	}
}

func TestExecuteRetryBudgetExhausted(t *testing.T) {
	dl := &fakeDownloader{failures: map[string]int{"https://cdn/video": 100}}
	e := New(dl, &fakeMuxer{})

	_, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir:  t.TempDir(),
		OutputPath:  filepath.Join(t.TempDir(), "movie.mp4"),
		RetryBudget: 2,
		sleep:       instantSleep,
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "fetch-video") {
		t.Fatalf("error should name the failing step, got %v", err)
	}
	if dl.calls["https://cdn/video"] != 3 {
		t.Fatalf("expected first attempt plus 2 retries, got %d", dl.calls["https://cdn/video"])
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	dl := &fakeDownloader{
		permanent: map[string]error{
			"https://cdn/video": services.Wrap(services.ErrNotFound, "download", "", "HTTP 410", nil),
		},
	}
	e := New(dl, &fakeMuxer{})

	_, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir:  t.TempDir(),
		OutputPath:  filepath.Join(t.TempDir(), "movie.mp4"),
		RetryBudget: 5,
		sleep:       instantSleep,
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if dl.calls["https://cdn/video"] != 1 {
		t.Fatalf("permanent failure must not be retried, got %d attempts", dl.calls["https://cdn/video"])
	}
}

func TestExecuteNeverOverwritesExistingOutput(t *testing.T) {
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "movie.mp4")
	if err := os.WriteFile(outPath, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New(&fakeDownloader{}, &fakeMuxer{})
	got, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir: t.TempDir(),
		OutputPath: outPath,
		sleep:      instantSleep,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := filepath.Join(outDir, "movie (1).mp4")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	data, _ := os.ReadFile(outPath)
	if string(data) != "precious" {
		t.Fatal("existing output was overwritten")
	}
}

func TestExecuteRefusesContestedDestination(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "movie.mp4")
	other := flock.New(outPath + ".lock")
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("test setup lock: locked=%v err=%v", locked, err)
	}
	defer other.Unlock()

	e := New(&fakeDownloader{}, &fakeMuxer{})
	_, err = e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir: t.TempDir(),
		OutputPath: outPath,
		sleep:      instantSleep,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected contested-destination error, got %v", err)
	}
}

func TestExecuteMuxFailureLeavesNoOutput(t *testing.T) {
	staging := t.TempDir()
	outPath := filepath.Join(t.TempDir(), "movie.mp4")
	muxer := &fakeMuxer{
		muxErr: services.Wrap(services.ErrExternalTool, "mux", "ffmpeg", "Invalid data found when processing input", nil),
	}
	e := New(&fakeDownloader{}, muxer)

	_, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir: staging,
		OutputPath: outPath,
		sleep:      instantSleep,
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "mux") {
		t.Fatalf("error should name the mux step, got %v", err)
	}
	if _, statErr := os.Stat(outPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no destination file may exist after a mux failure: %v", statErr)
	}
	entries, readErr := os.ReadDir(staging)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("work area must be removed on failure: %v", entries)
	}
}

func TestExecuteCleansUpOnFailure(t *testing.T) {
	staging := t.TempDir()
	dl := &fakeDownloader{
		permanent: map[string]error{
			"https://cdn/audio-es": services.Wrap(services.ErrNotFound, "download", "", "HTTP 404", nil),
		},
	}
	e := New(dl, &fakeMuxer{})

	_, err := e.Execute(t.Context(), testPlan(t, false), Options{
		StagingDir: staging,
		OutputPath: filepath.Join(t.TempDir(), "movie.mp4"),
		sleep:      instantSleep,
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	entries, readErr := os.ReadDir(staging)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("work area must be removed on failure: %v", entries)
	}
}
