// Package footprint maps ATS platforms to the URL signatures that identify their boards.
package footprint

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// Footprint pairs a platform tag with the substring that identifies its boards.
type Footprint struct {
	Platform string `mapstructure:"name" json:"name"`
	Domain   string `mapstructure:"domain" json:"domain"`
}

// Registry is an ordered list of footprints. Lookups walk it in declared order.
type Registry struct {
	entries []Footprint
}

// Default returns the built-in registry.
func Default() *Registry {
	return &Registry{entries: []Footprint{
		{Platform: "greenhouse", Domain: "boards.greenhouse.io"},
		{Platform: "lever", Domain: "jobs.lever.co"},
		{Platform: "workday", Domain: "myworkdayjobs.com"},
		{Platform: "smartrecruiters", Domain: "smartrecruiters.com"},
		{Platform: "bamboohr", Domain: "bamboohr.com/jobs"},
		{Platform: "jobvite", Domain: "jobs.jobvite.com"},
	}}
}

// New builds a Registry from entries, keeping their order.
func New(entries []Footprint) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("footprint registry needs at least one platform: %w", board.ErrConfig)
	}
	seen := make(map[string]struct{}, len(entries))
	out := make([]Footprint, 0, len(entries))
	for _, e := range entries {
		platform := strings.ToLower(strings.TrimSpace(e.Platform))
		domain := strings.ToLower(strings.TrimSpace(e.Domain))
		if platform == "" || domain == "" {
			return nil, fmt.Errorf("footprint %+v needs a platform and domain: %w", e, board.ErrConfig)
		}
		if _, dup := seen[platform]; dup {
			return nil, fmt.Errorf("duplicate footprint platform %q: %w", platform, board.ErrConfig)
		}
		seen[platform] = struct{}{}
		out = append(out, Footprint{Platform: platform, Domain: domain})
	}
	return &Registry{entries: out}, nil
}

// Entries returns a copy of the registry in declared order.
func (r *Registry) Entries() []Footprint {
	out := make([]Footprint, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the footprint registered for platform.
func (r *Registry) Lookup(platform string) (Footprint, bool) {
	platform = strings.ToLower(platform)
	for _, e := range r.entries {
		if e.Platform == platform {
			return e, true
		}
	}
	return Footprint{}, false
}

// Match returns the first footprint, in declared order, whose domain occurs in text.
func (r *Registry) Match(text string) (Footprint, bool) {
	lowered := strings.ToLower(text)
	for _, e := range r.entries {
		if strings.Contains(lowered, e.Domain) {
			return e, true
		}
	}
	return Footprint{}, false
}

// Contains reports whether text carries any known footprint.
func (r *Registry) Contains(text string) bool {
	_, ok := r.Match(text)
	return ok
}

// Classify returns the platform tag for a career page URL, or "" when unknown.
func (r *Registry) Classify(careerPageURL string) string {
	fp, ok := r.Match(careerPageURL)
	if !ok {
		return ""
	}
	return fp.Platform
}
