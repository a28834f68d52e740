package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, time.Second, zap.NewNop())
}

func TestListDueTasks(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/tasks/pending", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 7, "chat_id": "42", "name": "mokotow", "url": "https://www.olx.pl/nieruchomosci/?q=mokotow", "is_active": true},
		})
	}))

	tasks, err := client.ListDueTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.EqualValues(t, 7, tasks[0].ID)
	require.Equal(t, "mokotow", tasks[0].Name)
	require.True(t, tasks[0].Active)
}

func TestSeenPermalinks(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tasks/7/seen-permalinks", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"permalinks": []string{"https://olx.pl/d/1", "https://olx.pl/d/2"}})
	}))

	seen, err := client.SeenPermalinks(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.Contains(t, seen, "https://olx.pl/d/1")
}

func TestSubmitItems(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/items/batch", r.URL.Path)

		var req struct {
			TaskID int64             `json:"task_id"`
			Items  []monitor.Listing `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.EqualValues(t, 7, req.TaskID)
		require.Len(t, req.Items, 2)

		json.NewEncoder(w).Encode(map[string]int{"accepted_count": 2})
	}))

	accepted, err := client.SubmitItems(context.Background(), 7, []monitor.Listing{
		{Permalink: "https://olx.pl/d/1", Title: "Flat 1"},
		{Permalink: "https://olx.pl/d/2", Title: "Flat 2"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, accepted)
}

func TestUpdateCheckpoint(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/tasks/7/checkpoint", r.URL.Path)

		var req map[string]*time.Time
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req["last_checked"])
		require.True(t, now.Equal(*req["last_checked"]))
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.UpdateCheckpoint(context.Background(), 7, monitor.CheckpointUpdate{LastChecked: &now})
	require.NoError(t, err)
}

func TestCleanupOldItems(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/items/cleanup/older-than/30", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.CleanupOldItems(context.Background(), 30))
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"server error is retryable", http.StatusInternalServerError, true},
		{"throttling is retryable", http.StatusTooManyRequests, true},
		{"rejection is not", http.StatusUnprocessableEntity, false},
		{"missing task is not", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))

			_, err := client.ListDueTasks(context.Background())
			require.Error(t, err)

			var storeErr *monitor.StoreError
			require.ErrorAs(t, err, &storeErr)
			require.Equal(t, tt.status, storeErr.StatusCode)
			require.Equal(t, tt.wantRetryable, monitor.RetryableStoreError(err))
		})
	}
}

func TestNetworkFailureIsRetryable(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond, zap.NewNop())
	_, err := client.ListDueTasks(context.Background())
	require.Error(t, err)
	require.True(t, monitor.RetryableStoreError(err))
}
