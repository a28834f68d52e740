package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flatwatch/scraper/internal/monitor"
)

func TestFetchReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>listings</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "flatwatch-test/1.0", Timeout: 5 * time.Second}, nil)
	resp, err := f.Fetch(context.Background(), monitor.FetchRequest{
		URL:     srv.URL,
		Headers: http.Header{"Accept": {"text/html"}},
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "listings")
	require.Equal(t, "text/html; charset=utf-8", resp.Headers.Get("Content-Type"))
	require.Equal(t, "flatwatch-test/1.0", gotUA)
	require.Equal(t, "text/html", gotAccept)
	require.Greater(t, resp.Duration, time.Duration(0))
}

func TestFetchSurfacesNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, nil)
	resp, err := f.Fetch(context.Background(), monitor.FetchRequest{URL: srv.URL})
	require.NoError(t, err, "non-2xx is a result, not a fetch error")
	require.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestFetchFailsOnUnreachableHost(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), monitor.FetchRequest{
		URL: "http://127.0.0.1:1/never",
	})
	require.Error(t, err)
}

type blockingWaiter struct{}

func (blockingWaiter) Wait(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestFetchHonorsLimiterCancellation(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second}, blockingWaiter{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, monitor.FetchRequest{URL: "https://www.olx.pl/"})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
