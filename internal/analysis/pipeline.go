package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/metrics"
)

var tracer = otel.Tracer("github.com/JakeFAU/sitescope/internal/analysis")

// DefaultMaxTokens is the prompt budget for the site blob.
const DefaultMaxTokens = 16000

// Config tunes the pipeline.
type Config struct {
	MaxTokens       int
	ExcludePatterns []string
}

// Dependencies bundles the collaborators required by Pipeline.
type Dependencies struct {
	Store      crawler.DocumentStore
	Tokenizer  Tokenizer
	Summarizer Summarizer
	Sinks      []Sink
	IDs        crawler.IDGenerator
	Clock      crawler.Clock
	Hasher     crawler.Hasher
	Logger     *zap.Logger
}

// Report summarizes one pipeline run.
type Report struct {
	RunID    string
	Results  []Result
	Skipped  []string
	Failed   map[string]error
	Duration time.Duration
}

// Pipeline loads stored sites, summarizes them and writes the results.
type Pipeline struct {
	cfg  Config
	deps Dependencies
}

// NewPipeline validates the dependencies and applies defaults.
func NewPipeline(cfg Config, deps Dependencies) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("analysis requires a document store")
	case deps.Tokenizer == nil:
		return nil, errors.New("analysis requires a tokenizer")
	case deps.Summarizer == nil:
		return nil, errors.New("analysis requires a summarizer")
	case deps.IDs == nil || deps.Clock == nil || deps.Hasher == nil:
		return nil, errors.New("analysis requires id, clock and hash providers")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.ExcludePatterns == nil {
		cfg.ExcludePatterns = DefaultExcludePatterns
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Run analyzes every stored site in origin order. A failing site is logged
// and recorded in the report; the remaining sites still run. Sinks are
// closed before Run returns.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := p.deps.Clock.Now()
	runID, err := p.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := p.deps.Logger.With(zap.String("run_id", runID))
	report := Report{RunID: runID, Failed: make(map[string]error)}

	origins, err := p.deps.Store.List(ctx)
	if err != nil {
		return report, errors.Join(fmt.Errorf("list sites: %w", err), p.closeSinks(ctx))
	}
	logger.Info("analysis started", zap.Int("sites", len(origins)))

	for _, origin := range origins {
		if ctx.Err() != nil {
			logger.Warn("analysis interrupted", zap.Error(ctx.Err()))
			break
		}
		p.runSite(ctx, logger, origin, &report)
	}

	closeErr := p.closeSinks(context.WithoutCancel(ctx))
	report.Duration = p.deps.Clock.Now().Sub(start)
	logger.Info("analysis finished",
		zap.Int("analyzed", len(report.Results)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration),
	)
	return report, closeErr
}

func (p *Pipeline) runSite(ctx context.Context, logger *zap.Logger, origin string, report *Report) {
	ctx, span := tracer.Start(ctx, "analysis.site")
	defer span.End()
	span.SetAttributes(attribute.String("site", origin))

	res, err := p.AnalyzeSite(ctx, report.RunID, origin)
	switch {
	case errors.Is(err, ErrEmptyInput):
		metrics.ObserveAnalysis("skipped")
		logger.Info("skipping site", zap.String("site", origin), zap.Error(err))
		report.Skipped = append(report.Skipped, origin)
		return
	case err != nil:
		metrics.ObserveAnalysis("error")
		span.SetStatus(codes.Error, err.Error())
		logger.Error("analysis failed", zap.String("site", origin), zap.Error(err))
		report.Failed[origin] = err
		return
	}
	metrics.ObserveAnalysis("success")
	span.SetAttributes(attribute.Int("input_tokens", res.InputTokens))
	logger.Info("analysis", zap.String("site", origin), zap.String("content", res.Analysis))
	p.emit(ctx, logger, res)
	report.Results = append(report.Results, res)
}

// AnalyzeSite runs the summarizer over one stored site.
func (p *Pipeline) AnalyzeSite(ctx context.Context, runID, origin string) (Result, error) {
	docs, err := p.deps.Store.Get(ctx, origin)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", origin, err)
	}
	blob, included := BuildInput(docs, p.cfg.ExcludePatterns)
	if included == 0 {
		return Result{}, fmt.Errorf("%s: %w", origin, ErrEmptyInput)
	}

	truncated, tokens, err := p.deps.Tokenizer.Truncate(blob, p.cfg.MaxTokens)
	if err != nil {
		return Result{}, fmt.Errorf("truncate input: %w", err)
	}
	metrics.ObserveAnalysisTokens(tokens)
	digest, err := p.deps.Hasher.Hash([]byte(truncated))
	if err != nil {
		return Result{}, fmt.Errorf("hash input: %w", err)
	}

	started := time.Now()
	text, err := p.deps.Summarizer.Summarize(ctx, SystemPrompt, UserPrompt(truncated))
	metrics.ObserveSummarizer(time.Since(started))
	if err != nil {
		return Result{}, fmt.Errorf("summarize %s: %w", origin, err)
	}

	return Result{
		RunID:         runID,
		Site:          origin,
		Analysis:      text,
		Model:         p.deps.Summarizer.Model(),
		InputTokens:   tokens,
		InputHash:     digest,
		DocumentCount: included,
		CreatedAt:     p.deps.Clock.Now(),
	}, nil
}

func (p *Pipeline) emit(ctx context.Context, logger *zap.Logger, res Result) {
	for _, sink := range p.deps.Sinks {
		if err := sink.Write(ctx, res); err != nil {
			logger.Warn("sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("site", res.Site),
				zap.Error(err),
			)
		}
	}
}

func (p *Pipeline) closeSinks(ctx context.Context) error {
	var errs []error
	for _, sink := range p.deps.Sinks {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
