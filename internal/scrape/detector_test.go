package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatwatch/scraper/internal/monitor"
)

func TestShellDetector(t *testing.T) {
	t.Parallel()

	fullPage := "<html><body>" + strings.Repeat(`<div class="card">listing</div>`, 200) + "</body></html>"

	tests := []struct {
		name string
		resp monitor.FetchResponse
		want bool
	}{
		{
			name: "empty body needs render",
			resp: monitor.FetchResponse{StatusCode: 200},
			want: true,
		},
		{
			name: "react root marker needs render",
			resp: monitor.FetchResponse{StatusCode: 200, Body: []byte(fullPage + `<div id="root"></div>`)},
			want: true,
		},
		{
			name: "next data marker needs render",
			resp: monitor.FetchResponse{StatusCode: 200, Body: []byte(`<html><script id="__NEXT_DATA__">{}</script></html>`)},
			want: true,
		},
		{
			name: "small script-heavy shell needs render",
			resp: monitor.FetchResponse{StatusCode: 200, Body: []byte(`<html><head><script src="a.js"></script><script src="b.js"></script></head></html>`)},
			want: true,
		},
		{
			name: "server-rendered page does not",
			resp: monitor.FetchResponse{StatusCode: 200, Body: []byte(fullPage)},
			want: false,
		},
		{
			name: "already rendered response never re-renders",
			resp: monitor.FetchResponse{StatusCode: 200, Rendered: true},
			want: false,
		},
		{
			name: "non-200 is not worth rendering",
			resp: monitor.FetchResponse{StatusCode: 503},
			want: false,
		},
	}

	detector := NewShellDetector(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, detector.NeedsRender(tt.resp))
		})
	}
}
