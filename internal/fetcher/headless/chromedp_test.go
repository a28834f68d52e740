package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flatwatch/scraper/internal/monitor"
)

func TestNewChromedpAppliesDefaults(t *testing.T) {
	t.Parallel()

	f, err := NewChromedp(Config{})
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, 20*time.Second, f.cfg.NavigationTimeout)
}

func TestNoopFetcherFails(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Fetch(context.Background(), monitor.FetchRequest{URL: "https://www.olx.pl/"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	in := http.Header{
		"Accept":          {"text/html"},
		"Accept-Language": {"pl", "en"},
		"Empty":           {},
	}
	out := toNetworkHeaders(in)

	require.Equal(t, "text/html", out["Accept"])
	require.Equal(t, []string{"pl", "en"}, out["Accept-Language"])
	require.NotContains(t, out, "Empty")
}

func TestResponseMetaFallbacks(t *testing.T) {
	t.Parallel()

	m := newResponseMeta()
	status, headers, url := m.snapshotWithFallbacks("https://req.example", "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, headers)
	require.Equal(t, "https://req.example", url)

	status, _, url = m.snapshotWithFallbacks("https://req.example", "https://final.example")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final.example", url)
}
