package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	memorypublisher "github.com/JakeFAU/jobboard-harvester/internal/publisher/memory"
	"github.com/JakeFAU/jobboard-harvester/internal/storage/memory"
)

type failingStore struct{ err error }

func (f failingStore) ListCompanies(context.Context) ([]board.Company, error) { return nil, f.err }

func (f failingStore) UpsertCompanies(context.Context, []board.Company) (int, error) {
	return 0, f.err
}

func (f failingStore) UpsertJobs(context.Context, []board.Job, board.ConflictPolicy) (int, error) {
	return 0, f.err
}

func (f failingStore) ListJobs(context.Context, int) ([]board.Job, error) { return nil, f.err }

// countingStore records every batch it is handed.
type countingStore struct {
	*memory.Catalog
	jobBatches [][]board.Job
}

func (c *countingStore) UpsertJobs(ctx context.Context, batch []board.Job, p board.ConflictPolicy) (int, error) {
	c.jobBatches = append(c.jobBatches, batch)
	return c.Catalog.UpsertJobs(ctx, batch, p)
}

func job(url, title string) board.Job {
	return board.Job{Title: title, Company: "Acme", URL: url, Source: "greenhouse"}
}

func TestSaveCompaniesDedupsBeforeUpsert(t *testing.T) {
	t.Parallel()

	catalog := memory.NewCatalog()
	s := New(catalog, catalog)

	n, err := s.SaveCompanies(context.Background(), []board.Company{
		{Name: "Acme", CareerPageURL: "https://boards.greenhouse.io/acme", Source: "greenhouse"},
		{Name: "Acme dup", CareerPageURL: "https://boards.greenhouse.io/acme", Source: "greenhouse"},
		{Name: "Beta", CareerPageURL: "https://jobs.lever.co/beta", Source: "lever"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	companies, err := catalog.ListCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Acme", companies[0].Name)
}

func TestSaveJobsSingleBatchUnderPolicy(t *testing.T) {
	t.Parallel()

	store := &countingStore{Catalog: memory.NewCatalog()}
	s := New(store, store, WithConflictPolicy(board.ConflictOverwrite))
	require.Equal(t, board.ConflictOverwrite, s.Policy())

	_, err := s.SaveJobs(context.Background(), []board.Job{job("https://a.example/1", "Old")})
	require.NoError(t, err)

	n, err := s.SaveJobs(context.Background(), []board.Job{
		job("https://a.example/1", "New"),
		job("https://a.example/1", "Newer"),
		job("https://a.example/2", "Other"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.jobBatches, 2)
	require.Len(t, store.jobBatches[1], 2)

	jobs, err := store.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	titles := map[string]string{}
	for _, j := range jobs {
		titles[j.URL] = j.Title
	}
	assert.Equal(t, "New", titles["https://a.example/1"])
}

func TestSaveEmptyBatchSkipsStore(t *testing.T) {
	t.Parallel()

	s := New(failingStore{err: errors.New("must not be called")}, failingStore{err: errors.New("must not be called")})

	n, err := s.SaveJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.SaveCompanies(context.Background(), []board.Company{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveWrapsStoreError(t *testing.T) {
	t.Parallel()

	store := failingStore{err: board.ErrConflict}
	s := New(store, store)

	_, err := s.SaveJobs(context.Background(), []board.Job{job("https://a.example/1", "A")})
	require.ErrorIs(t, err, board.ErrConflict)
	_, err = s.SaveCompanies(context.Background(), []board.Company{{Name: "A", CareerPageURL: "https://x"}})
	require.ErrorIs(t, err, board.ErrConflict)
}

func TestPublishSendsSummary(t *testing.T) {
	t.Parallel()

	pub := memorypublisher.New()
	catalog := memory.NewCatalog()
	s := New(catalog, catalog, WithPublisher(pub, "harvester-runs"))

	s.Publish(context.Background(), board.RunSummary{RunID: "run-1", Stage: board.StageScrape, Written: 4})

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "harvester-runs", msgs[0].Topic)
	summaries, err := pub.Summaries()
	require.NoError(t, err)
	assert.Equal(t, 4, summaries[0].Written)
}

func TestPublishFailureIsOnlyLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	pub := memorypublisher.New()
	pub.FailWith(errors.New("topic not found"))
	catalog := memory.NewCatalog()
	s := New(catalog, catalog, WithPublisher(pub, "runs"), WithLogger(zap.New(core)))

	s.Publish(context.Background(), board.RunSummary{RunID: "run-9"})

	entries := logs.FilterMessage("publish run summary failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "run-9", entries[0].ContextMap()["run_id"])
}

func TestPublishWithoutPublisherIsNoop(t *testing.T) {
	t.Parallel()

	catalog := memory.NewCatalog()
	New(catalog, catalog).Publish(context.Background(), board.RunSummary{RunID: "x"})
}

func TestDedupKeepsFirst(t *testing.T) {
	t.Parallel()

	out := DedupJobs([]board.Job{job("u1", "first"), job("u2", "b"), job("u1", "second")})
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
}
