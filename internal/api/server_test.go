package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/apply"
	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/config"
	"github.com/JakeFAU/jobboard-harvester/internal/storage/memory"
)

type fakeRunner struct {
	summary board.RunSummary
	err     error
	calls   int
}

func (f *fakeRunner) Run(context.Context) (board.RunSummary, error) {
	f.calls++
	return f.summary, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fixture struct {
	server    *Server
	catalog   *memory.Catalog
	apps      *memory.Applications
	discovery *fakeRunner
	scrape    *fakeRunner
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	catalog := memory.NewCatalog()
	apps := memory.NewApplications(catalog)
	discovery := &fakeRunner{summary: board.RunSummary{RunID: "run-d", Stage: board.StageDiscovery, Written: 3}}
	scrape := &fakeRunner{summary: board.RunSummary{RunID: "run-s", Stage: board.StageScrape, Written: 7, Failures: 1}}
	srv := NewServer(Deps{
		Discovery: discovery,
		Scrape:    scrape,
		Jobs:      catalog,
		Apply:     apply.NewService(apps, apps, zap.NewNop()),
		Readiness: map[string]Pinger{"postgres": fakePinger{}},
		Logger:    zap.NewNop(),
	}, opts)
	return fixture{server: srv, catalog: catalog, apps: apps, discovery: discovery, scrape: scrape}
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func seedJobs(t *testing.T, c *memory.Catalog, n int) []board.Job {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := make([]board.Job, 0, n)
	for i := range n {
		batch = append(batch, board.Job{
			Title:     fmt.Sprintf("Engineer %d", i),
			Company:   "Acme",
			URL:       fmt.Sprintf("https://boards.greenhouse.io/acme/jobs/%d", i),
			Source:    "greenhouse",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	_, err := c.UpsertJobs(context.Background(), batch, board.ConflictIgnore)
	require.NoError(t, err)
	jobs, err := c.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	return jobs
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec, body := do(t, f.server, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ReadyzReportsFailingDependency(t *testing.T) {
	t.Parallel()

	srv := NewServer(Deps{
		Readiness: map[string]Pinger{
			"postgres": fakePinger{},
			"redis":    fakePinger{err: errors.New("dial tcp: refused")},
		},
	}, Options{})
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}

func TestServer_RunDiscovery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec, body := do(t, f.server, httptest.NewRequest(http.MethodPost, "/v1/runs/discovery", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "run-d", body["run_id"])
	assert.EqualValues(t, 3, body["discovered"])
	assert.Equal(t, 1, f.discovery.calls)
}

func TestServer_RunScrape(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec, body := do(t, f.server, httptest.NewRequest(http.MethodPost, "/v1/runs/scrape", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, body["saved"])
	assert.EqualValues(t, 1, body["failures"])
}

func TestServer_RunFailureMapsStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"transport", fmt.Errorf("search page: %w", board.ErrTransport), http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Options{})
			f.discovery.err = tt.err
			rec, body := do(t, f.server, httptest.NewRequest(http.MethodPost, "/v1/runs/discovery", nil))
			require.Equal(t, tt.want, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServer_RunRequiresAPIKeyWhenEnabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}})

	rec, _ := do(t, f.server, httptest.NewRequest(http.MethodPost, "/v1/runs/scrape", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, f.scrape.calls)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/scrape", nil)
	req.Header.Set("X-API-Key", "secret")
	rec, _ = do(t, f.server, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, f.server, httptest.NewRequest(http.MethodPost, "/v1/runs/scrape?api_key=secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open.
	rec, _ = do(t, f.server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ListJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	seedJobs(t, f.catalog, 5)

	rec, body := do(t, f.server, httptest.NewRequest(http.MethodGet, "/v1/jobs?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	jobs, ok := body["jobs"].([]any)
	require.True(t, ok)
	first, ok := jobs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Engineer 4", first["title"])
}

func TestServer_ListJobsEmptyCatalog(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec, body := do(t, f.server, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["jobs"])
}

func TestServer_ListJobsBadLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	for _, raw := range []string{"abc", "0", "-3"} {
		rec, _ := do(t, f.server, httptest.NewRequest(http.MethodGet, "/v1/jobs?limit="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	got, err := parseLimit("")
	require.NoError(t, err)
	require.Equal(t, DefaultJobFeedLimit, got)

	got, err = parseLimit("100000")
	require.NoError(t, err)
	require.Equal(t, MaxJobFeedLimit, got)
}

func TestServer_SubmitApplication(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	jobs := seedJobs(t, f.catalog, 1)
	two := 2
	f.apps.SetCredits("user-1", &two)
	path := fmt.Sprintf("/v1/jobs/%d/applications", jobs[0].ID)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("X-User-ID", "user-1")
	rec, body := do(t, f.server, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, string(apply.OutcomeSubmitted), body["outcome"])
	assert.Equal(t, apply.MsgSubmitted, body["message"])
	assert.EqualValues(t, 1, body["credits_remaining"])
	require.Equal(t, 1, f.apps.Count())

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("X-User-ID", "user-1")
	rec, body = do(t, f.server, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apply.MsgAlreadyApplied, body["message"])
}

func TestServer_SubmitApplicationRejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	jobs := seedJobs(t, f.catalog, 1)
	zero := 0
	f.apps.SetCredits("broke", &zero)
	path := fmt.Sprintf("/v1/jobs/%d/applications", jobs[0].ID)

	tests := []struct {
		name    string
		userID  string
		path    string
		want    int
		message string
	}{
		{"anonymous", "", path, http.StatusUnauthorized, apply.MsgLoginRequired},
		{"no profile", "stranger", path, http.StatusForbidden, apply.MsgProfileRequired},
		{"no credits", "broke", path, http.StatusPaymentRequired, apply.MsgNoCredits},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.path, nil)
		if tt.userID != "" {
			req.Header.Set("X-User-ID", tt.userID)
		}
		rec, body := do(t, f.server, req)
		assert.Equal(t, tt.want, rec.Code, tt.name)
		assert.Equal(t, false, body["success"], tt.name)
		assert.Equal(t, tt.message, body["message"], tt.name)
	}
	require.Zero(t, f.apps.Count())
}

func TestServer_SubmitApplicationBadJobID(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/not-a-number/applications", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec, _ := do(t, f.server, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplicationStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusAccepted, applicationStatus(apply.OutcomePartial))
	assert.Equal(t, http.StatusInternalServerError, applicationStatus(apply.OutcomeFailed))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.server.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec, body := do(t, f.server, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", body["error"])
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "0190c8a2-5b7e-7d41-9a53-2f0c6e1d4b8a")
	rec, _ := do(t, f.server, req)
	require.Equal(t, "0190c8a2-5b7e-7d41-9a53-2f0c6e1d4b8a", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	rec, _ = do(t, f.server, req)
	require.NotEqual(t, "not-a-uuid", rec.Header().Get("X-Request-ID"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
