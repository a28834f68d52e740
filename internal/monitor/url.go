package monitor

import (
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are stripped before grouping: they never change the result
// set, only analytics attribution, and would otherwise split equivalent
// queries into separate fetches.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
	"reason":       {},
}

// NormalizeSearchURL canonicalizes a configured search URL into the
// fetch-equivalence key. It lowercases scheme and host, strips default
// ports, drops the fragment, removes tracking parameters, and sorts the
// remaining query parameters. Two tasks group together iff their canonical
// forms are byte-equal.
func NormalizeSearchURL(rawURL string) (SearchQuery, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return SearchQuery{}, fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme != "http" && u.Scheme != "https" {
		return SearchQuery{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return SearchQuery{}, fmt.Errorf("url %q has no host", rawURL)
	}

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if _, tracking := trackingParams[param]; tracking {
			q.Del(param)
		}
	}
	// url.Values.Encode sorts keys, which gives the canonical parameter order.
	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return SearchQuery{Canonical: u.String(), Host: u.Hostname()}, nil
}
