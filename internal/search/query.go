// Package search builds the search-engine queries and result-page URLs used by discovery.
package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/footprint"
)

// DefaultHiringPhrase is the crawl strategy's hiring-intent query.
const DefaultHiringPhrase = `"we are hiring" careers`

// DefaultExcludeSites are job aggregators kept out of hiring results.
func DefaultExcludeSites() []string {
	return []string{"linkedin.com", "indeed.com"}
}

// Engine renders queries into result-page URLs for one search endpoint.
type Engine struct {
	endpoint *url.URL
}

// NewEngine parses endpoint, e.g. https://www.google.com/search.
func NewEngine(endpoint string) (*Engine, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("search endpoint %q is invalid: %w", endpoint, board.ErrConfig)
	}
	return &Engine{endpoint: u}, nil
}

// URL returns the result-page URL for query.
func (e *Engine) URL(query string) string {
	u := *e.endpoint
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String()
}

// Domain is the engine's registrable domain ("google.com" for www.google.com), used
// to drop the engine's own navigation links from result pages.
func (e *Engine) Domain() string {
	host := strings.ToLower(e.endpoint.Hostname())
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// FootprintQuery restricts results to one platform's domain.
func FootprintQuery(fp footprint.Footprint) string {
	return "site:" + fp.Domain
}

// HiringQuery appends -site: exclusions to the hiring-intent phrase.
func HiringQuery(phrase string, excludeSites []string) string {
	parts := []string{strings.TrimSpace(phrase)}
	for _, site := range excludeSites {
		site = strings.TrimSpace(site)
		if site == "" {
			continue
		}
		parts = append(parts, "-site:"+site)
	}
	return strings.Join(parts, " ")
}
