package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"habla/internal/config"
	"habla/internal/executor"
	"habla/internal/extractor"
	"habla/internal/fileutil"
	"habla/internal/history"
	"habla/internal/logging"
	"habla/internal/mux"
	"habla/internal/notifications"
	"habla/internal/planner"
	"habla/internal/resolver"
	"habla/internal/services"
	"habla/internal/transport"
)

// Prober is the metadata extraction collaborator.
type Prober interface {
	Probe(ctx context.Context, url string) (*extractor.Result, error)
}

// PlanExecutor materializes a plan into a published file.
type PlanExecutor interface {
	Execute(ctx context.Context, plan *planner.Plan, opts executor.Options) (string, error)
}

// Ledger records finished runs. Satisfied by *history.Store.
type Ledger interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Options tunes a single run. Zero values defer to the configuration.
type Options struct {
	Quality            string
	PreferredLanguage  string
	OutputDir          string
	AllowOriginalAudio bool
	OnProgress         func(executor.Progress)
	OnAdvisory         func(planner.Advisory)
}

// Result summarizes a completed run.
type Result struct {
	RunID      string
	Title      string
	OutputPath string
	Decision   resolver.Decision
	Plan       *planner.Plan
	Advisories []planner.Advisory

	decided bool
}

// Pipeline drives one URL from probe to published file.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	prober   Prober
	executor PlanExecutor
	ledger   Ledger
	notifier notifications.Service
}

// New assembles the production pipeline from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "", "nil configuration", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	prober := extractor.NewYtDlp(cfg.Tools.YtDlp,
		extractor.WithCookieBrowsers(cfg.Tools.CookieBrowsers),
		extractor.WithLogger(logging.NewComponentLogger(logger, "extractor")))
	ffmpeg := mux.New(cfg.Tools.FFmpeg,
		mux.WithLogger(logging.NewComponentLogger(logger, "mux")))
	exec := executor.New(transport.NewHTTP(), ffmpeg)

	var ledger Ledger
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history ledger: %w", err)
		}
		ledger = store
	}

	return &Pipeline{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		prober:   prober,
		executor: exec,
		ledger:   ledger,
		notifier: notifications.NewService(cfg),
	}, nil
}

// NewWith assembles a pipeline from explicit collaborators.
func NewWith(cfg *config.Config, logger *slog.Logger, prober Prober, exec PlanExecutor, ledger Ledger, notifier notifications.Service) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Pipeline{cfg: cfg, logger: logger, prober: prober, executor: exec, ledger: ledger, notifier: notifier}
}

// Run downloads one video. The returned result is non-nil only on
// success; failures are recorded in the ledger either way.
func (p *Pipeline) Run(ctx context.Context, url string, opts Options) (*Result, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := p.logger.With(logging.String(logging.FieldRunID, runID))

	preferred := opts.PreferredLanguage
	if preferred == "" {
		preferred = p.cfg.Download.PreferredLanguage
	}
	quality := opts.Quality
	if quality == "" {
		quality = p.cfg.Download.Quality
	}

	result, err := p.run(ctx, logger, url, runID, preferred, quality, opts)
	if err != nil {
		p.record(ctx, logger, history.Entry{
			RunID:             runID,
			URL:               url,
			Title:             titleOf(result),
			PreferredLanguage: preferred,
			Quality:           quality,
			Status:            history.StatusFailed,
			Error:             err.Error(),
			Decision:          decisionOf(result),
		})
		if notifyErr := p.notifier.NotifyDownloadFailed(ctx, titleOf(result), err); notifyErr != nil {
			logger.Warn("failure notification not delivered", logging.Error(notifyErr))
		}
		return nil, err
	}

	p.record(ctx, logger, history.Entry{
		RunID:             runID,
		URL:               url,
		Title:             result.Title,
		PreferredLanguage: preferred,
		Decision:          result.Decision.Kind.String(),
		Quality:           quality,
		OutputPath:        result.OutputPath,
		Status:            history.StatusCompleted,
		Advisories:        advisoryMessages(result.Advisories),
	})
	if notifyErr := p.notifier.NotifyDownloadCompleted(ctx, result.Title, result.OutputPath); notifyErr != nil {
		logger.Warn("completion notification not delivered", logging.Error(notifyErr))
	}
	return result, nil
}

// run carries the happy path; Run wraps it with ledger and notification
// bookkeeping. A partial Result comes back alongside errors so failure
// records still carry the title and decision when those were reached.
func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, url, runID, preferred, quality string, opts Options) (*Result, error) {
	ctx = services.WithStep(ctx, "probe")
	probed, err := p.prober.Probe(ctx, url)
	if err != nil {
		return nil, err
	}
	result := &Result{RunID: runID, Title: probed.Title}
	logger.InfoContext(ctx, "probed video",
		logging.String("title", probed.Title),
		logging.Int("video_streams", len(probed.Catalog.Video)),
		logging.Int("audio_streams", len(probed.Catalog.Audio)),
		logging.Int("subtitles", len(probed.Catalog.Subtitles)))

	if notifyErr := p.notifier.NotifyDownloadStarted(ctx, probed.Title); notifyErr != nil {
		logger.Warn("start notification not delivered", logging.Error(notifyErr))
	}

	ctx = services.WithStep(ctx, "resolve")
	decision := resolver.Resolve(probed.Catalog, preferred, resolver.Options{
		Title:          probed.Title,
		InferFromTitle: p.cfg.Download.InferFromTitle,
	})
	result.Decision = decision
	result.decided = true
	logger.InfoContext(ctx, "language decision",
		logging.String("decision", decision.Kind.String()),
		logging.Bool("inferred_from_title", decision.Inferred))

	ctx = services.WithStep(ctx, "plan")
	plan, err := planner.Build(probed.Catalog, decision, quality, planner.Options{
		PreferredLanguage:  preferred,
		AllowOriginalAudio: opts.AllowOriginalAudio || p.cfg.Download.AllowOriginalAudio,
		BurnSubtitles:      p.cfg.Download.SubtitleMode == config.SubtitleModeBurned,
	})
	if err != nil {
		return result, err
	}
	result.Plan = plan
	result.Advisories = plan.Advisories

	for _, advisory := range plan.Advisories {
		logger.WarnContext(ctx, advisory.Message, logging.String("advisory", string(advisory.Kind)))
		if opts.OnAdvisory != nil {
			opts.OnAdvisory(advisory)
		}
		if notifyErr := p.notifier.NotifyAdvisory(ctx, probed.Title, advisory.Message); notifyErr != nil {
			logger.Warn("advisory notification not delivered", logging.Error(notifyErr))
		}
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.Paths.OutputDir
	}
	name := fileutil.SanitizeName(probed.Title)
	if name == "" {
		name = "video-" + probed.ID
	}
	outputPath := filepath.Join(outputDir, name+".mp4")

	ctx = services.WithStep(ctx, "execute")
	published, err := p.executor.Execute(ctx, plan, executor.Options{
		StagingDir:  p.cfg.Paths.StagingDir,
		OutputPath:  outputPath,
		RetryBudget: p.cfg.Download.RetryBudget,
		Logger:      logger,
		OnProgress:  opts.OnProgress,
	})
	if err != nil {
		return result, err
	}
	result.OutputPath = published
	return result, nil
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, entry history.Entry) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Record(ctx, entry); err != nil {
		logger.Warn("history record not written", logging.Error(err))
	}
}

func titleOf(r *Result) string {
	if r == nil {
		return ""
	}
	return r.Title
}

func decisionOf(r *Result) string {
	if r == nil || !r.decided {
		return ""
	}
	return r.Decision.Kind.String()
}

func advisoryMessages(advisories []planner.Advisory) []string {
	messages := make([]string, 0, len(advisories))
	for _, a := range advisories {
		messages = append(messages, strings.TrimSpace(a.Message))
	}
	return messages
}
