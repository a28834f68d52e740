package scrape

import (
	"bytes"

	"github.com/flatwatch/scraper/internal/monitor"
)

// jsShellMarkers flag client-side-rendered pages whose server response is an
// empty application shell. Seeing one means the listing cards only exist
// after JavaScript runs.
var jsShellMarkers = [][]byte{
	[]byte("__NEXT_DATA__"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("window.__APOLLO_STATE__"),
}

// ShellDetector decides whether a fetched page needs a headless render
// before HTML extraction. Rule-based: small bodies with high script density
// or known SPA markers get promoted.
type ShellDetector struct {
	MinHTMLBytes int
}

// NewShellDetector creates a detector; threshold <= 0 selects the default.
func NewShellDetector(minHTMLBytes int) *ShellDetector {
	if minHTMLBytes <= 0 {
		minHTMLBytes = 2048
	}
	return &ShellDetector{MinHTMLBytes: minHTMLBytes}
}

// NeedsRender reports whether the response looks like a JS shell.
func (d *ShellDetector) NeedsRender(resp monitor.FetchResponse) bool {
	if resp.Rendered || resp.StatusCode != 200 {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < d.MinHTMLBytes && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range jsShellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script tags dominate the markup.
func scriptDensityHigh(body []byte) bool {
	scripts := bytes.Count(body, []byte("<script"))
	if scripts == 0 {
		return false
	}
	tags := bytes.Count(body, []byte("<"))
	return tags > 0 && scripts*5 >= tags
}
