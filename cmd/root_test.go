package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

type fakeApp struct {
	discoveryErr error
	migrated     bool
	served       bool
	closed       bool
	creditUser   string
	credits      *int
}

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) RunDiscovery(context.Context) (board.RunSummary, error) {
	return board.RunSummary{RunID: "run-1", Stage: board.StageDiscovery, Written: 2}, f.discoveryErr
}

func (f *fakeApp) RunScrape(context.Context) (board.RunSummary, error) {
	return board.RunSummary{RunID: "run-2", Stage: board.StageScrape, Written: 9}, nil
}

func (f *fakeApp) Migrate(context.Context) error {
	f.migrated = true
	return nil
}

func (f *fakeApp) SetCredits(_ context.Context, userID string, credits *int) error {
	f.creditUser, f.credits = userID, credits
	return nil
}

func (f *fakeApp) Run(context.Context) error {
	f.served = true
	return nil
}

func (f *fakeApp) Close() { f.closed = true }

func withFakeApp(t *testing.T, app *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context, string) (App, error) { return app, nil }
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiscoverPrintsSummary(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	out, err := execute(t, "discover")
	require.NoError(t, err)
	require.Contains(t, out, `"run_id": "run-1"`)
	require.Contains(t, out, `"written": 2`)
	require.True(t, app.closed)
}

func TestScrapePrintsSummary(t *testing.T) {
	withFakeApp(t, &fakeApp{})

	out, err := execute(t, "scrape")
	require.NoError(t, err)
	require.Contains(t, out, `"stage": "scrape"`)
}

func TestDiscoverFailureIsReturned(t *testing.T) {
	withFakeApp(t, &fakeApp{discoveryErr: board.ErrTransport})

	_, err := execute(t, "discover")
	require.ErrorIs(t, err, board.ErrTransport)
}

func TestMigrateAndServe(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	_, err := execute(t, "migrate")
	require.NoError(t, err)
	require.True(t, app.migrated)

	_, err = execute(t, "serve")
	require.NoError(t, err)
	require.True(t, app.served)
}

func TestAppInitFailure(t *testing.T) {
	orig := newApp
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("no proxy key") }
	t.Cleanup(func() { newApp = orig })

	_, err := execute(t, "scrape")
	require.ErrorContains(t, err, "no proxy key")
}

func TestResolveAppWithoutApp(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := t.TempDir() + "/test.env"
	require.NoError(t, os.WriteFile(path, []byte("HARVESTER_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("HARVESTER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("HARVESTER_TEST_DOTENV"))

	require.NoError(t, loadEnvFile(path, true))
	require.Equal(t, "from-file", os.Getenv("HARVESTER_TEST_DOTENV"))

	require.NoError(t, loadEnvFile(t.TempDir()+"/missing.env", false))
	require.Error(t, loadEnvFile(t.TempDir()+"/missing.env", true))
}

func TestCreditsCommand(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	_, err := execute(t, "credits", "u1", "5")
	require.NoError(t, err)
	require.Equal(t, "u1", app.creditUser)
	require.NotNil(t, app.credits)
	require.Equal(t, 5, *app.credits)

	_, err = execute(t, "credits", "u2", "unlimited")
	require.NoError(t, err)
	require.Equal(t, "u2", app.creditUser)
	require.Nil(t, app.credits)

	_, err = execute(t, "credits", "u3", "-1")
	require.ErrorContains(t, err, "non-negative")
	require.Equal(t, "u2", app.creditUser)
}
