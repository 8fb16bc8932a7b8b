package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// Lever reads `div.posting` blocks. Apply links are already absolute.
type Lever struct{}

// NewLever returns a Lever extractor.
func NewLever() *Lever { return &Lever{} }

// Platform implements Extractor.
func (l *Lever) Platform() string { return "lever" }

// ExtractJobs implements Extractor.
func (l *Lever) ExtractJobs(doc *goquery.Document, company string) []board.Job {
	var jobs []board.Job
	doc.Find("div.posting").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a.posting-btn-submit").First().Attr("href")
		if !ok {
			return
		}
		location := optionalText(s.Find(".sort-by-location"))
		if location == nil {
			location = optionalText(s.Find(".location"))
		}
		jobs = append(jobs, board.Job{
			Title:    cleanText(s.Find("h5").First()),
			Company:  company,
			Location: location,
			URL:      strings.TrimSpace(href),
			Source:   l.Platform(),
		})
	})
	return jobs
}
