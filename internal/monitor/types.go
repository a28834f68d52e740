package monitor

import (
	"net/http"
	"time"
)

// WatchTask is a read-only snapshot of one user's monitoring intent.
// Tasks are created and deleted by the storage service; the pipeline only
// requests checkpoint updates through TaskStore.
type WatchTask struct {
	ID                 int64      `json:"id"`
	ChatID             string     `json:"chat_id"`
	Name               string     `json:"name"`
	URL                string     `json:"url"`
	CityID             *int64     `json:"city_id,omitempty"`
	AllowedDistrictIDs []int64    `json:"allowed_district_ids,omitempty"`
	LastChecked        *time.Time `json:"last_updated,omitempty"`
	LastGotItem        *time.Time `json:"last_got_item,omitempty"`
	Active             bool       `json:"is_active"`
}

// SearchQuery is the fetch-equivalence key: two tasks with equal canonical
// URLs produce the same fetched document and share a single fetch per cycle.
type SearchQuery struct {
	Canonical string
	Host      string
}

// Listing is the canonical representation of one extracted listing.
// Identity is the permalink; two listings with equal permalinks are the
// same listing regardless of field content.
type Listing struct {
	Permalink   string     `json:"permalink"`
	Title       string     `json:"title"`
	PriceAmount float64    `json:"price_amount"`
	Currency    string     `json:"currency"`
	City        string     `json:"city"`
	District    string     `json:"district"`
	DistrictID  *int64     `json:"district_id,omitempty"`
	ImageURLs   []string   `json:"image_urls,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	Description string     `json:"description,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

// RawItem is the untyped extraction result of a strategy before
// normalization. Fields hold raw text keyed by canonical field names
// (FieldTitle, FieldPrice, ...). Discarded after normalization.
type RawItem struct {
	Permalink string
	Fields    map[string]string
}

// Canonical RawItem field keys shared by both strategies.
const (
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldCurrency    = "currency"
	FieldCity        = "city"
	FieldDistrict    = "district"
	FieldDistrictID  = "district_id"
	FieldImages      = "images"
	FieldPostedAt    = "posted_at"
	FieldDescription = "description"
)

// CheckpointUpdate carries the per-task timestamps the pipeline is allowed
// to advance. Nil fields are left untouched by the store.
type CheckpointUpdate struct {
	LastChecked *time.Time `json:"last_checked,omitempty"`
	LastGotItem *time.Time `json:"last_got_item,omitempty"`
}

// StrategyKind names one extraction method.
type StrategyKind string

// Known strategy kinds, in fallback order.
const (
	StrategyStructured StrategyKind = "structured"
	StrategyHTML       StrategyKind = "html"
)

// GroupOutcome is the ephemeral per-group record of one fetch-cycle attempt.
type GroupOutcome struct {
	Query        SearchQuery
	Strategy     StrategyKind
	Attempts     int
	Items        []Listing
	SkippedItems int
	DocUnchanged bool
	Failure      *ScrapeError
	// FailureBody holds the offending raw document on a hard-fail so the
	// orchestrator can snapshot it for diagnosis.
	FailureBody []byte
}

// Succeeded reports whether the group produced a usable item list.
func (o GroupOutcome) Succeeded() bool {
	return o.Failure == nil
}

// FetchRequest captures everything needed for a single retrieval.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
	Render  bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}
