package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// Extractor pulls postings for one ATS platform out of a parsed board page.
type Extractor interface {
	Platform() string
	ExtractJobs(doc *goquery.Document, company string) []board.Job
}

// Registry dispatches job extraction by platform tag.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry registers the given extractors. A later extractor for the same platform wins.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor, len(extractors))}
	for _, e := range extractors {
		r.extractors[strings.ToLower(e.Platform())] = e
	}
	return r
}

// DefaultRegistry knows every platform with a dedicated extractor.
func DefaultRegistry() *Registry {
	return NewRegistry(NewGreenhouse(), NewLever())
}

// Platforms lists the registered platform tags, sorted.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.extractors))
	for p := range r.extractors {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether platform has an extractor.
func (r *Registry) Supports(platform string) bool {
	_, ok := r.extractors[strings.ToLower(platform)]
	return ok
}

// ExtractJobs parses html and runs the platform's extractor. Unknown platforms yield
// (nil, nil). Records failing validation are dropped and duplicates by URL collapse
// onto the first occurrence.
func (r *Registry) ExtractJobs(html []byte, company, platform string) ([]board.Job, error) {
	ex, ok := r.extractors[strings.ToLower(platform)]
	if !ok {
		return nil, nil
	}
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	raw := ex.ExtractJobs(doc, company)
	jobs := make([]board.Job, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, j := range raw {
		if j.Validate() != nil {
			continue
		}
		if _, dup := seen[j.URL]; dup {
			continue
		}
		seen[j.URL] = struct{}{}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func parse(html []byte) (*goquery.Document, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return nil, fmt.Errorf("empty document: %w", board.ErrParse)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w: %w", board.ErrParse, err)
	}
	return doc, nil
}

func optionalText(s *goquery.Selection) *string {
	text := strings.Join(strings.Fields(s.First().Text()), " ")
	if text == "" {
		return nil
	}
	return &text
}

func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
