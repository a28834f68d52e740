package scrape

import (
	"strings"

	"github.com/flatwatch/scraper/internal/monitor"
)

// Pair bundles the two strategies for one source, in fallback order.
type Pair struct {
	Structured monitor.Strategy
	HTML       monitor.Strategy
}

// Registry is a static mapping from source host to its strategy pair,
// constructed once at startup and passed into the Resolver explicitly.
type Registry struct {
	pairs map[string]Pair
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pairs: make(map[string]Pair)}
}

// Register binds a strategy pair to one or more hosts. A host registered
// as "olx.pl" also serves its subdomains ("www.olx.pl").
func (r *Registry) Register(pair Pair, hosts ...string) {
	for _, host := range hosts {
		host = strings.TrimSpace(strings.ToLower(host))
		if host == "" {
			continue
		}
		r.pairs[host] = pair
	}
}

// Lookup resolves the strategy pair for a host, walking up the domain
// labels so "www.olx.pl" finds a pair registered for "olx.pl".
func (r *Registry) Lookup(host string) (Pair, bool) {
	host = strings.TrimSpace(strings.ToLower(host))
	for host != "" {
		if pair, ok := r.pairs[host]; ok {
			return pair, true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return Pair{}, false
}

// Hosts returns every registered host, for startup logging.
func (r *Registry) Hosts() []string {
	out := make([]string, 0, len(r.pairs))
	for host := range r.pairs {
		out = append(out, host)
	}
	return out
}
