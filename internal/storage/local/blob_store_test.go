package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.ErrorIs(t, err, board.ErrConfig)
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "snapshots")
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "scrape/run-1/abc.html", "text/html", strings.NewReader("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "scrape/run-1/abc.html"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "scrape", "run-1", "abc.html"))
	require.NoError(t, err)
	require.Equal(t, "<html/>", string(data))
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside.html", "", strings.NewReader("x"))
	require.Error(t, err)
	_, err = store.PutObject(context.Background(), "", "", strings.NewReader("x"))
	require.Error(t, err)
}
