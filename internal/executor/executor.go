package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"habla/internal/fileutil"
	"habla/internal/logging"
	"habla/internal/mux"
	"habla/internal/planner"
	"habla/internal/services"
	"habla/internal/transport"
)

// Progress is one step-scoped progress event. Fetch steps report byte
// counts; transform steps report only start and completion.
type Progress struct {
	Step       string
	BytesDone  int64
	BytesTotal int64
	Done       bool
}

// Muxer is the slice of ffmpeg behavior the executor needs.
type Muxer interface {
	Mux(ctx context.Context, spec mux.Spec) error
	ConvertSubtitle(ctx context.Context, src, dst string) error
	Burn(ctx context.Context, video, subtitle, output string) error
}

// Options configures one plan execution.
type Options struct {
	// StagingDir is where the run's work area is created.
	StagingDir string
	// OutputPath is the desired destination. When a file already exists
	// there, a numbered variant is chosen instead of overwriting.
	OutputPath string
	// RetryBudget is the number of retries per fetch step after the
	// first attempt, spent only on transient failures.
	RetryBudget int
	Logger      *slog.Logger
	// OnProgress may be called from concurrent fetch goroutines and must
	// be safe for that.
	OnProgress func(Progress)

	// sleep is replaced in tests to skip real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Executor materializes plans into files on disk.
type Executor struct {
	downloader transport.Downloader
	muxer      Muxer
}

// New builds an executor from its two collaborators.
func New(downloader transport.Downloader, muxer Muxer) *Executor {
	return &Executor{downloader: downloader, muxer: muxer}
}

// Execute runs the plan and returns the path of the published file.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, opts Options) (string, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return "", services.Wrap(services.ErrValidation, "execute", "", "empty plan", nil)
	}
	if opts.StagingDir == "" || opts.OutputPath == "" {
		return "", services.Wrap(services.ErrConfiguration, "execute", "", "staging dir and output path are required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.sleep == nil {
		opts.sleep = sleepCtx
	}

	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	workArea := filepath.Join(opts.StagingDir, "habla-"+runID)
	if err := os.MkdirAll(workArea, 0o755); err != nil {
		return "", fmt.Errorf("create work area: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workArea); err != nil {
			logger.Warn("work area cleanup failed", logging.Error(err))
		}
	}()

	// One writer per destination. The lock file sits next to the output
	// so concurrent invocations for the same video serialize.
	lock := flock.New(opts.OutputPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return "", fmt.Errorf("destination lock: %w", err)
	}
	if !locked {
		return "", services.Wrap(services.ErrValidation, "execute", "lock",
			fmt.Sprintf("another download is already writing %s", filepath.Base(opts.OutputPath)), nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	var fetches []planner.Step
	var transforms []planner.Step
	for _, step := range plan.Steps {
		if step.Kind == planner.StepFetch {
			fetches = append(fetches, step)
		} else {
			transforms = append(transforms, step)
		}
	}

	// Fetch steps have no inter-dependencies; run them together.
	group, groupCtx := errgroup.WithContext(ctx)
	for _, step := range fetches {
		group.Go(func() error {
			return e.fetchWithRetry(groupCtx, step, workArea, opts, logger)
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	for _, step := range transforms {
		stepCtx := services.WithStep(ctx, step.Name)
		if err := e.runTransform(stepCtx, step, workArea, opts, logger); err != nil {
			return "", fmt.Errorf("%s: %w", step.Name, err)
		}
		report(opts, Progress{Step: step.Name, Done: true})
	}

	output := filepath.Join(workArea, planner.SlotOutput)
	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("plan produced no output artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	dest := fileutil.UniquePath(opts.OutputPath)
	if err := fileutil.MoveFile(output, dest); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	logger.InfoContext(ctx, "published output", logging.String("path", dest))
	return dest, nil
}

func (e *Executor) fetchWithRetry(ctx context.Context, step planner.Step, workArea string, opts Options, logger *slog.Logger) error {
	ctx = services.WithStep(ctx, step.Name)
	dest := filepath.Join(workArea, step.OutputSlot)

	onProgress := func(p transport.Progress) {
		report(opts, Progress{Step: step.Name, BytesDone: p.BytesDone, BytesTotal: p.BytesTotal})
	}

	var lastErr error
	for attempt := 0; attempt <= opts.RetryBudget; attempt++ {
		if attempt > 0 {
			if err := opts.sleep(ctx, transport.Backoff(attempt)); err != nil {
				return err
			}
			logger.InfoContext(ctx, "retrying fetch",
				logging.String(logging.FieldStep, step.Name),
				logging.Int("attempt", attempt+1),
				logging.Error(lastErr))
		}

		_, resumable, err := e.downloader.Download(ctx, step.SourceURL, dest, onProgress)
		if err == nil {
			report(opts, Progress{Step: step.Name, Done: true})
			return nil
		}
		if !services.IsTransient(err) {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		lastErr = err
		if !resumable {
			// The next attempt restarts from scratch; drop the partial so
			// a stale prefix cannot leak into the output.
			_ = os.Remove(dest)
		}
	}
	return fmt.Errorf("%s: retry budget exhausted: %w", step.Name, lastErr)
}

func (e *Executor) runTransform(ctx context.Context, step planner.Step, workArea string, opts Options, logger *slog.Logger) error {
	slot := func(name string) string { return filepath.Join(workArea, name) }

	switch step.Kind {
	case planner.StepEmbedSubtitle:
		if step.Burn {
			if len(step.Inputs) != 2 {
				return services.Wrap(services.ErrValidation, step.Name, "", "burn step needs video and subtitle inputs", nil)
			}
			return e.muxer.Burn(ctx, slot(step.Inputs[0]), slot(step.Inputs[1]), slot(step.OutputSlot))
		}
		if len(step.Inputs) != 1 {
			return services.Wrap(services.ErrValidation, step.Name, "", "embed step needs one subtitle input", nil)
		}
		return e.muxer.ConvertSubtitle(ctx, slot(step.Inputs[0]), slot(step.OutputSlot))

	case planner.StepMux:
		if len(step.Inputs) < 2 {
			return services.Wrap(services.ErrValidation, step.Name, "", "mux step needs video and audio inputs", nil)
		}
		spec := mux.Spec{
			Video:  slot(step.Inputs[0]),
			Audio:  slot(step.Inputs[1]),
			Output: slot(step.OutputSlot),
		}
		if len(step.Inputs) > 2 {
			spec.Subtitle = slot(step.Inputs[2])
			spec.SubtitleLanguage = step.SubtitleLanguage
		}
		return e.muxer.Mux(ctx, spec)

	default:
		return services.Wrap(services.ErrValidation, step.Name, "", fmt.Sprintf("unknown step kind %q", step.Kind), nil)
	}
}

func report(opts Options, p Progress) {
	if opts.OnProgress != nil {
		opts.OnProgress(p)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
