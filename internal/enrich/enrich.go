// Package enrich implements the optional listing summarizer. Enrichment is
// strictly best effort: any failure leaves the original description in
// place and never blocks persistence.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// maxResponseBytes bounds what we read from the summarizer service.
const maxResponseBytes = 64 << 10

// HTTPSummarizer calls an external summarization endpoint with the listing
// description and returns the condensed text.
type HTTPSummarizer struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPSummarizer builds a summarizer against the given endpoint.
func NewHTTPSummarizer(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPSummarizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSummarizer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize sends text to the summarizer and returns the condensed form.
func (s *HTTPSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	body, err := json.Marshal(summarizeRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("encode summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call summarizer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}

	var decoded summarizeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode summarizer response: %w", err)
	}
	if decoded.Summary == "" {
		return "", errors.New("summarizer returned an empty summary")
	}
	return decoded.Summary, nil
}

// Noop is the enricher used when no endpoint is configured.
type Noop struct{}

// Summarize returns an empty summary without error.
func (Noop) Summarize(context.Context, string) (string, error) {
	return "", nil
}
