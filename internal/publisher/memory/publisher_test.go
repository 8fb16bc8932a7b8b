package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

func TestPublisherRecordsSummaries(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "runs", board.RunSummary{RunID: "r1", Stage: board.StageScrape, Written: 3})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "runs", msgs[0].Topic)

	summaries, err := p.Summaries()
	require.NoError(t, err)
	require.Equal(t, "r1", summaries[0].RunID)
	require.Equal(t, 3, summaries[0].Written)
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	p := New()
	p.FailWith(errors.New("topic gone"))
	_, err := p.Publish(context.Background(), "runs", board.RunSummary{})
	require.Error(t, err)
	require.Empty(t, p.Messages())
}
