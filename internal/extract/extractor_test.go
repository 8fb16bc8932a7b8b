package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

const greenhouseBoard = `<html><body>
<section class="level-0">
  <div class="opening"><a href="/jobs/1">Engineer</a><span class="location">Remote</span></div>
  <div class="opening"><a href="/jobs/2">Designer</a></div>
</section>
</body></html>`

func TestGreenhouseTwoOpenings(t *testing.T) {
	t.Parallel()

	jobs, err := DefaultRegistry().ExtractJobs([]byte(greenhouseBoard), "Acme", "greenhouse")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "Engineer", jobs[0].Title)
	assert.Equal(t, "https://boards.greenhouse.io/jobs/1", jobs[0].URL)
	require.NotNil(t, jobs[0].Location)
	assert.Equal(t, "Remote", *jobs[0].Location)
	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "greenhouse", jobs[0].Source)

	assert.Equal(t, "Designer", jobs[1].Title)
	assert.Equal(t, "https://boards.greenhouse.io/jobs/2", jobs[1].URL)
	assert.Nil(t, jobs[1].Location)
}

func TestGreenhouseKeepsAbsoluteLinksAndDedups(t *testing.T) {
	t.Parallel()

	page := `<div class="opening"><a href="https://boards.greenhouse.io/acme/jobs/9">  Staff
	Engineer </a></div>
<div class="opening"><a href="https://boards.greenhouse.io/acme/jobs/9">Staff Engineer</a></div>
<div class="opening"><a>No link</a></div>
<div class="opening"><a href="/jobs/10"></a></div>`

	jobs, err := DefaultRegistry().ExtractJobs([]byte(page), "Acme", "greenhouse")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Staff Engineer", jobs[0].Title)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/9", jobs[0].URL)
}

func TestGreenhouseResolvesLinkForms(t *testing.T) {
	t.Parallel()

	page := `<div class="opening"><a href="//boards.greenhouse.io/acme/jobs/1">Protocol relative</a></div>
<div class="opening"><a href="acme/jobs/2">Bare path</a></div>
<div class="opening"><a href="/acme/jobs/3?gh_jid=3">Rooted</a></div>`

	jobs, err := DefaultRegistry().ExtractJobs([]byte(page), "Acme", "greenhouse")
	require.NoError(t, err)
	urls := make([]string, 0, len(jobs))
	for _, j := range jobs {
		urls = append(urls, j.URL)
	}
	require.Equal(t, []string{
		"https://boards.greenhouse.io/acme/jobs/1",
		"https://boards.greenhouse.io/acme/jobs/2",
		"https://boards.greenhouse.io/acme/jobs/3?gh_jid=3",
	}, urls)
}

func TestLeverPostings(t *testing.T) {
	t.Parallel()

	page := `<div class="postings-group">
  <div class="posting">
    <a class="posting-btn-submit" href="https://jobs.lever.co/acme/abc/apply">Apply</a>
    <a class="posting-title" href="https://jobs.lever.co/acme/abc"><h5>Data Scientist</h5>
      <span class="sort-by-location">Berlin</span></a>
  </div>
  <div class="posting">
    <a class="posting-btn-submit" href="https://jobs.lever.co/acme/def/apply">Apply</a>
    <h5>Recruiter</h5>
  </div>
  <div class="posting"><h5>Missing apply link</h5></div>
</div>`

	jobs, err := DefaultRegistry().ExtractJobs([]byte(page), "Acme", "lever")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Data Scientist", jobs[0].Title)
	assert.Equal(t, "https://jobs.lever.co/acme/abc/apply", jobs[0].URL)
	require.NotNil(t, jobs[0].Location)
	assert.Equal(t, "Berlin", *jobs[0].Location)
	assert.Equal(t, "Recruiter", jobs[1].Title)
	assert.Nil(t, jobs[1].Location)
	assert.Equal(t, "lever", jobs[1].Source)
}

func TestUnknownPlatformIsSilent(t *testing.T) {
	t.Parallel()

	jobs, err := DefaultRegistry().ExtractJobs([]byte(greenhouseBoard), "Acme", "workday")
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestEmptyDocumentIsParseError(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry().ExtractJobs([]byte("  \n"), "Acme", "greenhouse")
	require.ErrorIs(t, err, board.ErrParse)
}

func TestRegistryPlatforms(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	require.Equal(t, []string{"greenhouse", "lever"}, r.Platforms())
	require.True(t, r.Supports("Greenhouse"))
	require.False(t, r.Supports("jobvite"))
}
