package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatwatch/scraper/internal/monitor"
)

// fakeFetcher returns a canned response keyed by URL, or err for all URLs.
type fakeFetcher struct {
	responses map[string]monitor.FetchResponse
	err       error
	requests  []monitor.FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, request monitor.FetchRequest) (monitor.FetchResponse, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return monitor.FetchResponse{}, f.err
	}
	resp, ok := f.responses[request.URL]
	if !ok {
		return monitor.FetchResponse{URL: request.URL, StatusCode: http.StatusNotFound}, nil
	}
	return resp, nil
}

func jsonCapture(body []byte) ([]monitor.RawItem, error) {
	var payload struct {
		Items []monitor.RawItem `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Items == nil {
		return nil, ErrStateMissing
	}
	return payload.Items, nil
}

func TestStructuredExtract(t *testing.T) {
	t.Parallel()

	query := testQuery(t, "https://www.olx.pl/nieruchomosci/?q=mokotow")

	tests := []struct {
		name      string
		response  monitor.FetchResponse
		fetchErr  error
		wantClass monitor.FailureClass
		wantItems int
	}{
		{
			name: "success",
			response: monitor.FetchResponse{
				StatusCode: http.StatusOK,
				Body:       []byte(`{"items":[{"permalink":"https://olx.pl/d/1","fields":{"title":"Flat"}}]}`),
			},
			wantItems: 1,
		},
		{
			name:      "endpoint gone maps to not available",
			response:  monitor.FetchResponse{StatusCode: http.StatusNotFound},
			wantClass: monitor.FailureNotAvailable,
		},
		{
			name:      "forbidden maps to not available",
			response:  monitor.FetchResponse{StatusCode: http.StatusForbidden},
			wantClass: monitor.FailureNotAvailable,
		},
		{
			name:      "server error maps to timeout class",
			response:  monitor.FetchResponse{StatusCode: http.StatusBadGateway},
			wantClass: monitor.FailureTimeout,
		},
		{
			name:      "garbage payload maps to parse error",
			response:  monitor.FetchResponse{StatusCode: http.StatusOK, Body: []byte("<html>not json</html>")},
			wantClass: monitor.FailureParseError,
		},
		{
			name:      "state missing maps to not available",
			response:  monitor.FetchResponse{StatusCode: http.StatusOK, Body: []byte(`{"other":true}`)},
			wantClass: monitor.FailureNotAvailable,
		},
		{
			name:      "transport failure maps to timeout class",
			fetchErr:  errors.New("connection reset"),
			wantClass: monitor.FailureTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &fakeFetcher{
				responses: map[string]monitor.FetchResponse{query.Canonical: tt.response},
				err:       tt.fetchErr,
			}
			strategy := NewStructured("olx", fetcher, CaptureSpec{Capture: jsonCapture}, 0)

			items, _, err := strategy.Extract(context.Background(), query)
			if tt.wantClass != "" {
				require.Error(t, err)
				class, ok := monitor.ClassOf(err)
				require.True(t, ok)
				require.Equal(t, tt.wantClass, class)
				return
			}
			require.NoError(t, err)
			require.Len(t, items, tt.wantItems)
		})
	}
}

func TestStructuredBuildURLRewritesTarget(t *testing.T) {
	t.Parallel()

	query := testQuery(t, "https://re.kufar.by/l/minsk?cur=BYR")
	api := "https://api.kufar.by/search-api/v2/search/rendered-paginated?cur=BYR"
	fetcher := &fakeFetcher{responses: map[string]monitor.FetchResponse{
		api: {StatusCode: http.StatusOK, Body: []byte(`{"items":[]}`)},
	}}
	strategy := NewStructured("kufar", fetcher, CaptureSpec{
		BuildURL: kufarSearchURL,
		Capture:  jsonCapture,
	}, 0)

	_, _, err := strategy.Extract(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, fetcher.requests, 1)
	require.Equal(t, api, fetcher.requests[0].URL)
}
