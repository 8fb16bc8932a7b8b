package footprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

func TestMatchFirstDeclaredWins(t *testing.T) {
	t.Parallel()

	page := `<a href="https://jobs.lever.co/acme">Lever</a> <a href="https://boards.greenhouse.io/acme">GH</a>`

	fp, ok := Default().Match(page)
	require.True(t, ok)
	require.Equal(t, "greenhouse", fp.Platform)

	reversed, err := New([]Footprint{
		{Platform: "lever", Domain: "jobs.lever.co"},
		{Platform: "greenhouse", Domain: "boards.greenhouse.io"},
	})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		fp, ok = reversed.Match(page)
		require.True(t, ok)
		require.Equal(t, "lever", fp.Platform)
	}
}

func TestClassifyAndLookup(t *testing.T) {
	t.Parallel()

	reg := Default()
	require.Equal(t, "workday", reg.Classify("https://acme.wd1.myworkdayjobs.com/External"))
	require.Equal(t, "bamboohr", reg.Classify("https://acme.bamboohr.com/jobs/"))
	require.Equal(t, "", reg.Classify("https://acme.com/careers"))
	require.False(t, reg.Contains("https://acme.com/careers"))

	fp, ok := reg.Lookup("Lever")
	require.True(t, ok)
	require.Equal(t, "jobs.lever.co", fp.Domain)
	_, ok = reg.Lookup("taleo")
	require.False(t, ok)
}

func TestNewRejectsBadEntries(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorIs(t, err, board.ErrConfig)

	_, err = New([]Footprint{{Platform: "lever"}})
	require.ErrorIs(t, err, board.ErrConfig)

	_, err = New([]Footprint{
		{Platform: "lever", Domain: "jobs.lever.co"},
		{Platform: "LEVER", Domain: "lever.co"},
	})
	require.ErrorIs(t, err, board.ErrConfig)
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	reg := Default()
	entries := reg.Entries()
	entries[0].Platform = "mutated"
	require.Equal(t, "greenhouse", reg.Entries()[0].Platform)
}
