// Package sink writes run batches to the catalog and announces finished runs.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/metrics"
)

// Sink deduplicates batches by natural key and hands each to its store in one call.
type Sink struct {
	companies board.CompanyStore
	jobs      board.JobStore
	policy    board.ConflictPolicy
	publisher board.Publisher
	topic     string
	logger    *zap.Logger
}

// Option customises a Sink.
type Option func(*Sink)

// WithConflictPolicy sets how re-seen job URLs are handled. Defaults to ignore.
func WithConflictPolicy(p board.ConflictPolicy) Option {
	return func(s *Sink) { s.policy = p }
}

// WithPublisher announces run summaries on topic.
func WithPublisher(p board.Publisher, topic string) Option {
	return func(s *Sink) {
		s.publisher = p
		s.topic = topic
	}
}

// WithLogger sets the sink logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Sink over the catalog stores.
func New(companies board.CompanyStore, jobs board.JobStore, opts ...Option) *Sink {
	s := &Sink{
		companies: companies,
		jobs:      jobs,
		policy:    board.ConflictIgnore,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("sink")
	return s
}

// Policy returns the configured job conflict policy.
func (s *Sink) Policy() board.ConflictPolicy { return s.policy }

// SaveCompanies upserts batch keyed on career page URL and returns rows written.
func (s *Sink) SaveCompanies(ctx context.Context, batch []board.Company) (int, error) {
	batch = DedupCompanies(batch)
	if len(batch) == 0 {
		return 0, nil
	}
	n, err := s.companies.UpsertCompanies(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("upsert %d companies: %w", len(batch), err)
	}
	metrics.AddRecords(string(board.StageDiscovery), n)
	s.logger.Info("companies saved", zap.Int("count", len(batch)), zap.Int("written", n))
	return n, nil
}

// SaveJobs upserts batch keyed on job URL under the configured policy.
func (s *Sink) SaveJobs(ctx context.Context, batch []board.Job) (int, error) {
	batch = DedupJobs(batch)
	if len(batch) == 0 {
		return 0, nil
	}
	n, err := s.jobs.UpsertJobs(ctx, batch, s.policy)
	if err != nil {
		return 0, fmt.Errorf("upsert %d jobs: %w", len(batch), err)
	}
	metrics.AddRecords(string(board.StageScrape), n)
	s.logger.Info("jobs saved",
		zap.Int("count", len(batch)),
		zap.Int("written", n),
		zap.String("policy", string(s.policy)),
	)
	return n, nil
}

// Publish announces a finished run. Failures are logged and never fail the run.
func (s *Sink) Publish(ctx context.Context, summary board.RunSummary) {
	if s.publisher == nil {
		return
	}
	id, err := s.publisher.Publish(ctx, s.topic, summary)
	if err != nil {
		s.logger.Warn("publish run summary failed",
			zap.String("run_id", summary.RunID),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("run summary published", zap.String("run_id", summary.RunID), zap.String("message_id", id))
}

// DedupCompanies keeps the first record per career page URL.
func DedupCompanies(batch []board.Company) []board.Company {
	out := make([]board.Company, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, c := range batch {
		if _, dup := seen[c.CareerPageURL]; dup {
			continue
		}
		seen[c.CareerPageURL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// DedupJobs keeps the first record per job URL.
func DedupJobs(batch []board.Job) []board.Job {
	out := make([]board.Job, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, j := range batch {
		if _, dup := seen[j.URL]; dup {
			continue
		}
		seen[j.URL] = struct{}{}
		out = append(out, j)
	}
	return out
}
