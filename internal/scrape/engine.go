// Package scrape refreshes the job catalog from every known company board.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/footprint"
	"github.com/JakeFAU/jobboard-harvester/internal/logging"
	"github.com/JakeFAU/jobboard-harvester/internal/metrics"
)

// JobExtractor turns a board page into jobs for one platform.
type JobExtractor interface {
	Supports(platform string) bool
	ExtractJobs(html []byte, company, platform string) ([]board.Job, error)
}

var errNoExtractor = errors.New("no extractor for platform")

// Sink receives the run's job batch and summary.
type Sink interface {
	SaveJobs(ctx context.Context, batch []board.Job) (int, error)
	Publish(ctx context.Context, summary board.RunSummary)
}

// SnapshotNamer names the blob object for a page body.
type SnapshotNamer interface {
	SnapshotPath(prefix, stage, runID, pageURL string) string
}

// Deps are the collaborators of an Engine. Blobs and Namer are optional and only
// used when Options.SnapshotEmptyPages is set. Platforms, when set, classifies
// companies whose source tag is missing or unknown by their career page URL.
type Deps struct {
	Companies  board.CompanyStore
	Platforms  *footprint.Registry
	Fetcher    board.Fetcher
	Extractors JobExtractor
	Sink       Sink
	Blobs      board.BlobStore
	Namer      SnapshotNamer
	IDs        board.IDGenerator
	Clock      board.Clock
	Logger     *zap.Logger
}

// Options tune a scrape run.
type Options struct {
	Concurrency        int
	SnapshotEmptyPages bool
	SnapshotPrefix     string
}

// Engine runs scrapes.
type Engine struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New validates deps and applies option defaults.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Companies == nil || deps.Fetcher == nil || deps.Extractors == nil || deps.Sink == nil {
		return nil, fmt.Errorf("scrape needs a company store, fetcher, extractors and sink: %w", board.ErrConfig)
	}
	if deps.IDs == nil || deps.Clock == nil {
		return nil, fmt.Errorf("scrape needs an id generator and clock: %w", board.ErrConfig)
	}
	if opts.SnapshotEmptyPages && (deps.Blobs == nil || deps.Namer == nil) {
		return nil, fmt.Errorf("snapshots need a blob store and namer: %w", board.ErrConfig)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{deps: deps, opts: opts, logger: logger.Named("scrape")}, nil
}

// Run scrapes every company once and writes the combined batch in one upsert.
// A company that fails contributes nothing; a catalog read or write failure aborts.
func (e *Engine) Run(ctx context.Context) (board.RunSummary, error) {
	runID, err := e.deps.IDs.NewID()
	if err != nil {
		return board.RunSummary{}, fmt.Errorf("new run id: %w", err)
	}
	summary := board.RunSummary{RunID: runID, Stage: board.StageScrape, StartedAt: e.deps.Clock.Now()}
	log := logging.ForRun(e.logger, string(board.StageScrape), runID)

	companies, err := e.deps.Companies.ListCompanies(ctx)
	if err != nil {
		return e.fail(summary, fmt.Errorf("list companies: %w", err))
	}
	summary.Candidates = len(companies)
	log.Info("scrape started", zap.Int("count", len(companies)))

	results := make([][]board.Job, len(companies))
	var failures, skipped atomic.Int32

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, company := range companies {
		g.Go(func() error {
			jobs, err := e.scrapeCompany(ctx, runID, company)
			if errors.Is(err, errNoExtractor) {
				skipped.Add(1)
				log.Info("company skipped",
					zap.String("company", company.Name),
					zap.String("url", company.CareerPageURL),
					zap.Error(err),
				)
				return nil
			}
			if err != nil {
				failures.Add(1)
				log.Warn("company skipped",
					zap.String("company", company.Name),
					zap.String("url", company.CareerPageURL),
					zap.Error(err),
				)
				return nil
			}
			log.Debug("company scraped",
				zap.String("company", company.Name),
				zap.String("platform", company.Source),
				zap.Int("count", len(jobs)),
			)
			results[i] = jobs
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return e.fail(summary, fmt.Errorf("scrape canceled: %w", err))
	}

	var batch []board.Job
	for _, jobs := range results {
		batch = append(batch, jobs...)
	}
	summary.Failures = int(failures.Load())
	summary.Skipped = int(skipped.Load())
	summary.Records = len(batch)

	written, err := e.deps.Sink.SaveJobs(ctx, batch)
	if err != nil {
		return e.fail(summary, err)
	}
	summary.Written = written
	summary.FinishedAt = e.deps.Clock.Now()
	metrics.ObserveRun(string(board.StageScrape), "success", summary.FinishedAt.Sub(summary.StartedAt))
	log.Info("scrape finished",
		zap.Int("count", summary.Records),
		zap.Int("written", summary.Written),
		zap.Int("failures", summary.Failures),
		zap.Int("skipped", summary.Skipped),
	)
	e.deps.Sink.Publish(ctx, summary)
	return summary, nil
}

func (e *Engine) scrapeCompany(ctx context.Context, runID string, company board.Company) ([]board.Job, error) {
	company.Source = e.platform(company)
	if !e.deps.Extractors.Supports(company.Source) {
		return nil, fmt.Errorf("%w %q", errNoExtractor, company.Source)
	}
	body, err := e.deps.Fetcher.Fetch(ctx, company.CareerPageURL)
	if err != nil {
		return nil, err
	}
	jobs, err := e.deps.Extractors.ExtractJobs(body, company.Name, company.Source)
	if err != nil {
		e.snapshot(ctx, runID, company, body)
		return nil, fmt.Errorf("extract %s: %w", company.CareerPageURL, err)
	}
	if len(jobs) == 0 {
		e.snapshot(ctx, runID, company, body)
		return nil, nil
	}
	now := e.deps.Clock.Now()
	for i := range jobs {
		jobs[i].CreatedAt = now
	}
	return jobs, nil
}

// platform returns the company's source tag when the registry knows it, otherwise the
// platform its career page URL belongs to.
func (e *Engine) platform(company board.Company) string {
	if e.deps.Platforms == nil {
		return company.Source
	}
	if fp, ok := e.deps.Platforms.Lookup(company.Source); ok {
		return fp.Platform
	}
	if classified := e.deps.Platforms.Classify(company.CareerPageURL); classified != "" {
		return classified
	}
	return company.Source
}

// snapshot keeps pages that yielded nothing so selector drift can be diagnosed.
func (e *Engine) snapshot(ctx context.Context, runID string, company board.Company, body []byte) {
	if !e.opts.SnapshotEmptyPages || len(body) == 0 {
		return
	}
	path := e.deps.Namer.SnapshotPath(e.opts.SnapshotPrefix, string(board.StageScrape), runID, company.CareerPageURL)
	uri, err := e.deps.Blobs.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("snapshot failed", zap.String("company", company.Name), zap.Error(err))
		return
	}
	e.logger.Info("empty board snapshotted",
		zap.String("company", company.Name),
		zap.String("platform", company.Source),
		zap.String("uri", uri),
	)
}

func (e *Engine) fail(summary board.RunSummary, err error) (board.RunSummary, error) {
	summary.FinishedAt = e.deps.Clock.Now()
	metrics.ObserveRun(string(board.StageScrape), "failure", summary.FinishedAt.Sub(summary.StartedAt))
	e.logger.Error("scrape failed", zap.String("run_id", summary.RunID), zap.Error(err))
	return summary, err
}
