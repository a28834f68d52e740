// Package api implements the TaskStore contract against the external
// storage service's HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

const defaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response we keep for logs.
const maxErrorBody = 4 << 10

// Client talks to the storage service. Every failure is returned as a
// *monitor.StoreError so callers can tell transient failures from
// rejections.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a storage client for baseURL, which must not have a
// trailing slash.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListDueTasks fetches the tasks due for a monitoring pass.
func (c *Client) ListDueTasks(ctx context.Context) ([]monitor.WatchTask, error) {
	var tasks []monitor.WatchTask
	if err := c.do(ctx, "list due tasks", http.MethodGet, "/api/v1/tasks/pending", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

type seenResponse struct {
	Permalinks []string `json:"permalinks"`
}

// SeenPermalinks fetches the permalinks already delivered for a task.
func (c *Client) SeenPermalinks(ctx context.Context, taskID int64) (map[string]struct{}, error) {
	var resp seenResponse
	path := fmt.Sprintf("/api/v1/tasks/%d/seen-permalinks", taskID)
	if err := c.do(ctx, "list seen permalinks", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(resp.Permalinks))
	for _, p := range resp.Permalinks {
		seen[p] = struct{}{}
	}
	return seen, nil
}

type batchRequest struct {
	TaskID int64             `json:"task_id"`
	Items  []monitor.Listing `json:"items"`
}

type batchResponse struct {
	AcceptedCount int `json:"accepted_count"`
}

// SubmitItems submits one batch of listings and returns how many the
// service accepted.
func (c *Client) SubmitItems(ctx context.Context, taskID int64, items []monitor.Listing) (int, error) {
	var resp batchResponse
	req := batchRequest{TaskID: taskID, Items: items}
	if err := c.do(ctx, "submit items", http.MethodPost, "/api/v1/items/batch", req, &resp); err != nil {
		return 0, err
	}
	return resp.AcceptedCount, nil
}

// UpdateCheckpoint writes the task's checkpoint timestamps.
func (c *Client) UpdateCheckpoint(ctx context.Context, taskID int64, update monitor.CheckpointUpdate) error {
	path := fmt.Sprintf("/api/v1/tasks/%d/checkpoint", taskID)
	return c.do(ctx, "update checkpoint", http.MethodPost, path, update, nil)
}

// CleanupOldItems asks the service to drop items older than the given age.
func (c *Client) CleanupOldItems(ctx context.Context, olderThanDays int) error {
	path := fmt.Sprintf("/api/v1/items/cleanup/older-than/%d", olderThanDays)
	return c.do(ctx, "cleanup old items", http.MethodDelete, path, nil, nil)
}

// do performs one request and decodes the response into out, converting
// every failure into a *monitor.StoreError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return &monitor.StoreError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &monitor.StoreError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &monitor.StoreError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("storage request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return &monitor.StoreError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &monitor.StoreError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
