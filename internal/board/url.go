package board

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeURL lowercases the scheme and host, drops default ports and fragments and
// sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// DisplayNameFromURL derives a company display name from a page URL:
// "https://www.acme.io/careers" becomes "Acme".
func DisplayNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label := FirstLabel(host)
	if label == "" {
		return "", fmt.Errorf("url %q has no hostname: %w", rawURL, ErrParse)
	}
	return Capitalize(label), nil
}

// FirstLabel returns the left-most DNS label of host.
func FirstLabel(host string) string {
	label, _, _ := strings.Cut(host, ".")
	return label
}

// Capitalize upper-cases the first rune and leaves the rest untouched.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
