package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/metrics"
	"github.com/flatwatch/scraper/internal/monitor"
	"github.com/flatwatch/scraper/internal/progress"
	"github.com/flatwatch/scraper/internal/progress/sinks"
	"github.com/flatwatch/scraper/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *monitor.Blocklist, *sinks.StatusSink, *memory.Store) {
	t.Helper()
	blocklist := monitor.NewBlocklist(nil)
	status := sinks.NewStatusSink()
	store := memory.NewStore()
	server := NewServer(blocklist, status, store, metrics.NewRegistry(), zap.NewNop())
	server.SetReady(true)
	return server, blocklist, status, store
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	server, _, _, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/readyz", nil).Code)

	server.SetReady(false)
	require.Equal(t, http.StatusServiceUnavailable, doJSON(t, server, http.MethodGet, "/readyz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	server, _, _, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	server, _, status, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cycle":null`)

	evt := progress.Event{
		CycleID: progress.UUIDToBytes(uuid.New()),
		TS:      time.Now().UTC(),
		Stage:   progress.StageCycleStart,
	}
	require.NoError(t, status.Consume(context.Background(), []progress.Event{evt}))

	rec = doJSON(t, server, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), evt.CycleUUID().String())
}

func TestBlocklistEndpoints(t *testing.T) {
	t.Parallel()

	server, blocklist, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/blocklist", map[string]string{"pattern": "*.kufar.by"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, blocklist.IsBlocked("re.kufar.by"))

	rec = doJSON(t, server, http.MethodGet, "/v1/blocklist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "*.kufar.by")

	rec = doJSON(t, server, http.MethodDelete, "/v1/blocklist", map[string]string{"pattern": "*.kufar.by"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, blocklist.IsBlocked("re.kufar.by"))

	rec = doJSON(t, server, http.MethodPost, "/v1/blocklist", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	t.Parallel()

	server, _, _, store := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/cleanup", map[string]int{"older_than_days": 30})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int{30}, store.Cleanups())

	rec = doJSON(t, server, http.MethodPost, "/v1/cleanup", map[string]int{"older_than_days": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
