package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPSummarizer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Text)
		json.NewEncoder(w).Encode(map[string]string{"summary": "2-room flat, Mokotów, 2500 PLN"})
	}))
	t.Cleanup(server.Close)

	s := NewHTTPSummarizer(server.URL, time.Second, zap.NewNop())
	summary, err := s.Summarize(context.Background(), "Long rambling listing description with amenities...")
	require.NoError(t, err)
	require.Equal(t, "2-room flat, Mokotów, 2500 PLN", summary)
}

func TestHTTPSummarizerEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewHTTPSummarizer("http://127.0.0.1:1", time.Second, zap.NewNop())
	summary, err := s.Summarize(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, summary)
}

func TestHTTPSummarizerServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	s := NewHTTPSummarizer(server.URL, time.Second, zap.NewNop())
	_, err := s.Summarize(context.Background(), "text")
	require.Error(t, err)
}

func TestHTTPSummarizerEmptySummary(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"summary": ""})
	}))
	t.Cleanup(server.Close)

	s := NewHTTPSummarizer(server.URL, time.Second, zap.NewNop())
	_, err := s.Summarize(context.Background(), "text")
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	t.Parallel()

	summary, err := Noop{}.Summarize(context.Background(), "anything")
	require.NoError(t, err)
	require.Empty(t, summary)
}
