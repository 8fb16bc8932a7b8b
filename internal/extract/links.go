package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/footprint"
)

// genericLabels are platform-owned subdomains that never name a company.
var genericLabels = map[string]struct{}{
	"boards": {},
	"jobs":   {},
}

var absoluteURLPattern = regexp.MustCompile(`https?://[^\s"'<>()\\]+`)

// ExtractCompanyLinks harvests companies from anchors pointing at fp's domain. The
// company name is the capitalised first DNS label; boards/jobs labels are skipped.
// Duplicates collapse onto the first occurrence.
func ExtractCompanyLinks(html []byte, fp footprint.Footprint) ([]board.Company, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	domainHost, domainPath, _ := strings.Cut(strings.ToLower(fp.Domain), "/")

	var out []board.Company
	seen := make(map[board.Company]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := parseHref(href)
		if !ok {
			return
		}
		host := strings.ToLower(u.Hostname())
		if !strings.HasSuffix(host, domainHost) {
			return
		}
		if domainPath != "" && !strings.HasPrefix(strings.TrimPrefix(u.Path, "/"), domainPath) {
			return
		}
		label := board.FirstLabel(host)
		if _, generic := genericLabels[label]; generic || label == "" {
			return
		}
		c := board.Company{
			Name:          board.Capitalize(label),
			CareerPageURL: "https://" + host,
			Source:        fp.Platform,
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	})
	return out, nil
}

// ExtractResultURLs lists the outbound result links of a search page in page order.
// Links whose host falls under any of ignoreDomains (the engine's own hosts) are dropped.
func ExtractResultURLs(html []byte, ignoreDomains ...string) []string {
	doc, err := parse(html)
	if err != nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := parseHref(href)
		if !ok {
			return
		}
		host := strings.ToLower(u.Hostname())
		for _, d := range ignoreDomains {
			if hostUnder(host, d) {
				return
			}
		}
		link := u.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, link)
	})
	return out
}

// FindBoardURL returns the first link on a page that points at domain. Anchors are
// checked first, then absolute URLs anywhere in the markup (embedded iframes, scripts).
func FindBoardURL(html []byte, domain string) (string, bool) {
	domain = strings.ToLower(domain)
	if domain == "" {
		return "", false
	}
	if doc, err := parse(html); err == nil {
		var found string
		doc.Find("a[href], iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			ref, ok := s.Attr("href")
			if !ok {
				ref, _ = s.Attr("src")
			}
			u, ok := parseHref(ref)
			if ok && strings.Contains(strings.ToLower(u.String()), domain) {
				found = u.String()
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	for _, m := range absoluteURLPattern.FindAllString(string(html), -1) {
		if strings.Contains(strings.ToLower(m), domain) {
			return m, true
		}
	}
	return "", false
}

// BoardRoot reduces a link into fp's platform to the company's board root, dropping
// posting paths and query strings. Boards hosted under a shared platform subdomain
// (boards.greenhouse.io/acme, jobs.lever.co/acme) keep their first path segment;
// footprints with a path (bamboohr.com/jobs) keep that path.
func BoardRoot(rawURL string, fp footprint.Footprint) (string, bool) {
	u, ok := parseHref(rawURL)
	if !ok {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	root := strings.ToLower(u.Scheme) + "://" + host

	if _, domainPath, hasPath := strings.Cut(strings.ToLower(fp.Domain), "/"); hasPath {
		return root + "/" + domainPath, true
	}
	if _, generic := genericLabels[board.FirstLabel(host)]; !generic {
		return root, true
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if segment == "embed" {
		// Greenhouse embeds name the board in ?for=.
		segment = u.Query().Get("for")
	}
	if segment == "" {
		return "", false
	}
	return root + "/" + segment, true
}

// parseHref resolves an anchor target to an absolute http(s) URL, unwrapping search
// engine redirect links of the form /url?q=<target>.
func parseHref(href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	if u.Host == "" && u.Path == "/url" {
		target := u.Query().Get("q")
		if target == "" {
			target = u.Query().Get("url")
		}
		if u, err = url.Parse(target); err != nil {
			return nil, false
		}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func hostUnder(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
