// Package discovery finds companies hosting job boards on known ATS platforms.
//
// Two strategies feed one batch per run. The footprint strategy searches each
// platform domain directly and reads companies off the result anchors. The crawl
// strategy searches for hiring pages, visits each result and looks for a link to a
// known platform. All companies are deduplicated by career page URL and written once
// when the run ends.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/extract"
	"github.com/JakeFAU/jobboard-harvester/internal/footprint"
	"github.com/JakeFAU/jobboard-harvester/internal/logging"
	"github.com/JakeFAU/jobboard-harvester/internal/metrics"
	"github.com/JakeFAU/jobboard-harvester/internal/search"
	"github.com/JakeFAU/jobboard-harvester/internal/sink"
)

// Strategy names.
const (
	StrategyFootprint = "footprint"
	StrategyCrawl     = "crawl"
)

// Sink receives the run's company batch and summary.
type Sink interface {
	SaveCompanies(ctx context.Context, batch []board.Company) (int, error)
	Publish(ctx context.Context, summary board.RunSummary)
}

// Options tune a discovery run.
type Options struct {
	Strategies    []string
	Concurrency   int
	MaxCandidates int
	HiringQuery   string
	ExcludeSites  []string
}

// Deps are the collaborators of an Engine. Cache is optional.
type Deps struct {
	Fetcher  board.Fetcher
	Registry *footprint.Registry
	Search   *search.Engine
	Sink     Sink
	Cache    board.VisitCache
	IDs      board.IDGenerator
	Clock    board.Clock
	Logger   *zap.Logger
}

// Engine runs discovery.
type Engine struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New validates deps and applies option defaults.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Fetcher == nil || deps.Registry == nil || deps.Search == nil || deps.Sink == nil {
		return nil, fmt.Errorf("discovery needs a fetcher, registry, search engine and sink: %w", board.ErrConfig)
	}
	if deps.IDs == nil || deps.Clock == nil {
		return nil, fmt.Errorf("discovery needs an id generator and clock: %w", board.ErrConfig)
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = []string{StrategyFootprint, StrategyCrawl}
	}
	for _, s := range opts.Strategies {
		if s != StrategyFootprint && s != StrategyCrawl {
			return nil, fmt.Errorf("unknown discovery strategy %q: %w", s, board.ErrConfig)
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if strings.TrimSpace(opts.HiringQuery) == "" {
		opts.HiringQuery = search.DefaultHiringPhrase
		if opts.ExcludeSites == nil {
			opts.ExcludeSites = search.DefaultExcludeSites()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{deps: deps, opts: opts, logger: logger.Named("discovery")}, nil
}

func (e *Engine) enabled(strategy string) bool {
	for _, s := range e.opts.Strategies {
		if s == strategy {
			return true
		}
	}
	return false
}

// Run executes one discovery pass. An unreachable search page aborts the run before
// anything is written; candidate pages fail individually.
func (e *Engine) Run(ctx context.Context) (board.RunSummary, error) {
	runID, err := e.deps.IDs.NewID()
	if err != nil {
		return board.RunSummary{}, fmt.Errorf("new run id: %w", err)
	}
	summary := board.RunSummary{RunID: runID, Stage: board.StageDiscovery, StartedAt: e.deps.Clock.Now()}
	log := logging.ForRun(e.logger, string(board.StageDiscovery), runID)
	log.Info("discovery started", zap.Strings("strategies", e.opts.Strategies))

	var found []board.Company
	if e.enabled(StrategyFootprint) {
		companies, err := e.footprintSearch(ctx, log)
		if err != nil {
			return e.fail(summary, err)
		}
		found = append(found, companies...)
	}
	if e.enabled(StrategyCrawl) {
		companies, stats, err := e.crawlSearch(ctx, log)
		if err != nil {
			return e.fail(summary, err)
		}
		summary.Candidates += stats.candidates
		summary.Failures += stats.failures
		found = append(found, companies...)
	}

	batch := sink.DedupCompanies(found)
	summary.Records = len(batch)
	written, err := e.deps.Sink.SaveCompanies(ctx, batch)
	if err != nil {
		return e.fail(summary, err)
	}
	summary.Written = written
	summary.FinishedAt = e.deps.Clock.Now()
	metrics.ObserveRun(string(board.StageDiscovery), "success", summary.FinishedAt.Sub(summary.StartedAt))
	log.Info("discovery finished",
		zap.Int("count", summary.Records),
		zap.Int("candidates", summary.Candidates),
		zap.Int("failures", summary.Failures),
	)
	e.deps.Sink.Publish(ctx, summary)
	return summary, nil
}

func (e *Engine) fail(summary board.RunSummary, err error) (board.RunSummary, error) {
	summary.FinishedAt = e.deps.Clock.Now()
	metrics.ObserveRun(string(board.StageDiscovery), "failure", summary.FinishedAt.Sub(summary.StartedAt))
	e.logger.Error("discovery failed", zap.String("run_id", summary.RunID), zap.Error(err))
	return summary, err
}

// footprintSearch queries every platform concurrently. Any unreachable result page
// cancels the others and fails the step.
func (e *Engine) footprintSearch(ctx context.Context, log *zap.Logger) ([]board.Company, error) {
	entries := e.deps.Registry.Entries()
	results := make([][]board.Company, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, fp := range entries {
		g.Go(func() error {
			body, err := e.deps.Fetcher.Fetch(gctx, e.deps.Search.URL(search.FootprintQuery(fp)))
			if err != nil {
				return fmt.Errorf("footprint search for %s: %w", fp.Platform, err)
			}
			companies, err := extract.ExtractCompanyLinks(body, fp)
			if err != nil {
				log.Warn("unparsable search page", zap.String("platform", fp.Platform), zap.Error(err))
				return nil
			}
			for _, c := range companies {
				log.Info("company found",
					zap.String("platform", c.Source),
					zap.String("company", c.Name),
					zap.String("board_url", c.CareerPageURL),
				)
			}
			results[i] = companies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []board.Company
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

type crawlStats struct {
	candidates int
	failures   int
}

func (e *Engine) crawlSearch(ctx context.Context, log *zap.Logger) ([]board.Company, crawlStats, error) {
	query := search.HiringQuery(e.opts.HiringQuery, e.opts.ExcludeSites)
	body, err := e.deps.Fetcher.Fetch(ctx, e.deps.Search.URL(query))
	if err != nil {
		return nil, crawlStats{}, fmt.Errorf("hiring search: %w", err)
	}

	candidates := e.candidates(ctx, extract.ExtractResultURLs(body, e.deps.Search.Domain()), log)
	results := make([]*board.Company, len(candidates))
	var failures atomic.Int32

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			c, err := e.inspect(ctx, candidate)
			if err != nil {
				failures.Add(1)
				log.Warn("candidate skipped", zap.String("url", candidate), zap.Error(err))
				return nil
			}
			if c != nil {
				log.Info("company found",
					zap.String("platform", c.Source),
					zap.String("company", c.Name),
					zap.String("board_url", c.CareerPageURL),
				)
			}
			results[i] = c
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, crawlStats{}, fmt.Errorf("crawl canceled: %w", err)
	}

	out := make([]board.Company, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, crawlStats{candidates: len(candidates), failures: int(failures.Load())}, nil
}

// candidates drops footprint URLs, duplicates and recently visited pages, then caps
// the list at MaxCandidates.
func (e *Engine) candidates(ctx context.Context, urls []string, log *zap.Logger) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if e.deps.Registry.Contains(u) {
			continue
		}
		if normalized, err := board.NormalizeURL(u); err == nil {
			u = normalized
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if e.deps.Cache != nil {
			visited, err := e.deps.Cache.Seen(ctx, u)
			if err != nil {
				log.Warn("visit cache unavailable", zap.String("url", u), zap.Error(err))
			} else if visited {
				continue
			}
		}
		out = append(out, u)
		if e.opts.MaxCandidates > 0 && len(out) >= e.opts.MaxCandidates {
			break
		}
	}
	return out
}

// inspect fetches one candidate page. A nil company with a nil error means the page
// carries no known footprint.
func (e *Engine) inspect(ctx context.Context, candidate string) (*board.Company, error) {
	body, err := e.deps.Fetcher.Fetch(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if e.deps.Cache != nil {
		if err := e.deps.Cache.MarkSeen(ctx, candidate); err != nil {
			e.logger.Debug("mark visited failed", zap.String("url", candidate), zap.Error(err))
		}
	}

	fp, ok := e.deps.Registry.Match(string(body))
	if !ok {
		return nil, nil
	}
	name, err := board.DisplayNameFromURL(candidate)
	if err != nil {
		return nil, err
	}
	boardURL := candidate
	if link, ok := extract.FindBoardURL(body, fp.Domain); ok {
		boardURL = link
		if root, ok := extract.BoardRoot(link, fp); ok {
			boardURL = root
		}
	}
	return &board.Company{Name: name, CareerPageURL: boardURL, Source: fp.Platform}, nil
}
