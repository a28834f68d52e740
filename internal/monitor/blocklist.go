package monitor

import (
	"strings"
	"sync"
)

// Blocklist holds source hosts that operations has pulled out of rotation,
// typically because a site started rate-limiting aggressively. Blocked
// tasks are skipped at grouping and retried once the host is unblocked.
// Safe for concurrent use: the ops API mutates it while cycles read it.
type Blocklist struct {
	mu       sync.RWMutex
	exact    map[string]struct{}
	suffixes []string
}

// NewBlocklist builds a Blocklist from configured patterns. A pattern is an
// exact host ("www.olx.pl") or a suffix wildcard ("*.olx.pl" / ".olx.pl").
func NewBlocklist(patterns []string) *Blocklist {
	b := &Blocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		b.Add(raw)
	}
	return b
}

// Add inserts a pattern.
func (b *Blocklist) Add(pattern string) {
	value := strings.TrimSpace(strings.ToLower(pattern))
	if value == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case strings.HasPrefix(value, "*."):
		b.addSuffix(strings.TrimPrefix(value, "*."))
	case strings.HasPrefix(value, "."):
		b.addSuffix(strings.TrimPrefix(value, "."))
	default:
		b.exact[value] = struct{}{}
	}
}

// Remove deletes a pattern previously added in either form.
func (b *Blocklist) Remove(pattern string) {
	value := strings.TrimSpace(strings.ToLower(pattern))
	value = strings.TrimPrefix(strings.TrimPrefix(value, "*."), ".")
	if value == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.exact, value)
	kept := b.suffixes[:0]
	for _, s := range b.suffixes {
		if s != value {
			kept = append(kept, s)
		}
	}
	b.suffixes = kept
}

// Patterns returns the current patterns for the ops endpoint.
func (b *Blocklist) Patterns() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.exact)+len(b.suffixes))
	for host := range b.exact {
		out = append(out, host)
	}
	for _, s := range b.suffixes {
		out = append(out, "*."+s)
	}
	return out
}

// IsBlocked reports whether host matches any pattern.
func (b *Blocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func (b *Blocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}
