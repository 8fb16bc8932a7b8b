package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// GreenhouseBoardHost prefixes the relative links on Greenhouse boards.
const GreenhouseBoardHost = "https://boards.greenhouse.io"

// Greenhouse reads `div.opening` blocks: the anchor carries title and relative link.
type Greenhouse struct {
	BoardHost string
}

// NewGreenhouse returns a Greenhouse extractor for the public board host.
func NewGreenhouse() *Greenhouse {
	return &Greenhouse{BoardHost: GreenhouseBoardHost}
}

// Platform implements Extractor.
func (g *Greenhouse) Platform() string { return "greenhouse" }

// ExtractJobs implements Extractor.
func (g *Greenhouse) ExtractJobs(doc *goquery.Document, company string) []board.Job {
	var jobs []board.Job
	doc.Find("div.opening").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		href, ok := link.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		jobURL, ok := g.resolve(href)
		if !ok {
			return
		}
		jobs = append(jobs, board.Job{
			Title:    cleanText(link),
			Company:  company,
			Location: optionalText(s.Find(".location")),
			URL:      jobURL,
			Source:   g.Platform(),
		})
	})
	return jobs
}

// resolve makes href absolute against BoardHost. Paths without a leading slash resolve
// from the host root.
func (g *Greenhouse) resolve(href string) (string, bool) {
	base, err := url.Parse(strings.TrimSuffix(g.BoardHost, "/") + "/")
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() && ref.Host == "" && !strings.HasPrefix(ref.Path, "/") {
		ref.Path = "/" + ref.Path
	}
	return base.ResolveReference(ref).String(), true
}
