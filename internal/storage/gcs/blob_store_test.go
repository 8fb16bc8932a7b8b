package gcs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "snapshots"})
	require.ErrorIs(t, err, board.ErrConfig)
}
