package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSearchURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://WWW.OLX.PL/nieruchomosci/mieszkania/wynajem/warszawa/",
			want: "https://www.olx.pl/nieruchomosci/mieszkania/wynajem/warszawa",
		},
		{
			name: "strips default https port",
			in:   "https://www.olx.pl:443/d/oferty",
			want: "https://www.olx.pl/d/oferty",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/search",
			want: "http://example.com/search",
		},
		{
			name: "sorts query parameters",
			in:   "https://www.olx.pl/wynajem/warszawa/?search[filter_float_price:to]=3000&page=2",
			want: "https://www.olx.pl/wynajem/warszawa?page=2&search%5Bfilter_float_price%3Ato%5D=3000",
		},
		{
			name: "strips tracking parameters",
			in:   "https://www.olx.pl/wynajem/warszawa/?utm_source=share&fbclid=xyz&page=1",
			want: "https://www.olx.pl/wynajem/warszawa?page=1",
		},
		{
			name: "drops fragment",
			in:   "https://www.olx.pl/wynajem/warszawa/#listing",
			want: "https://www.olx.pl/wynajem/warszawa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeSearchURL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Canonical)
		})
	}
}

func TestNormalizeSearchURLEquivalence(t *testing.T) {
	t.Parallel()

	a, err := NormalizeSearchURL("https://WWW.olx.pl/wynajem/warszawa/?b=2&a=1&utm_source=tg")
	require.NoError(t, err)
	b, err := NormalizeSearchURL("https://www.olx.pl:443/wynajem/warszawa?a=1&b=2#top")
	require.NoError(t, err)
	require.Equal(t, a.Canonical, b.Canonical)
	require.Equal(t, "www.olx.pl", a.Host)
}

func TestNormalizeSearchURLRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://example.com/x", "not a url at all", "/relative/path"} {
		_, err := NormalizeSearchURL(raw)
		require.Error(t, err, "input %q", raw)
	}
}
