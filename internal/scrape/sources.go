package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

// StrategyDeps carries the shared plumbing every source strategy needs.
type StrategyDeps struct {
	Fetcher  monitor.Fetcher
	Renderer monitor.Fetcher
	Detector *ShellDetector
	Timeout  time.Duration
	Logger   *zap.Logger
}

// DefaultRegistry builds the registry of supported sources. Each source
// gets a structured strategy (embedded page state or a search API) and an
// HTML fallback over the same search page.
func DefaultRegistry(deps StrategyDeps) *Registry {
	reg := NewRegistry()

	reg.Register(Pair{
		Structured: NewStructured("olx", deps.Fetcher, CaptureSpec{
			Capture: captureOLXState,
		}, deps.Timeout),
		HTML: NewHTML("olx", deps.Fetcher, deps.Renderer, deps.Detector, HTMLSpec{
			CardSelector:     `div[data-cy="l-card"]`,
			LinkSelector:     "a",
			TitleSelector:    "h6",
			PriceSelector:    `p[data-testid="ad-price"]`,
			LocationSelector: `p[data-testid="location-date"]`,
			ImageSelector:    "img",
		}, deps.Timeout, deps.Logger),
	}, "olx.pl", "olx.ua")

	reg.Register(Pair{
		Structured: NewStructured("kufar", deps.Fetcher, CaptureSpec{
			BuildURL: kufarSearchURL,
			Capture:  captureKufarAds,
		}, deps.Timeout),
		HTML: NewHTML("kufar", deps.Fetcher, deps.Renderer, deps.Detector, HTMLSpec{
			CardSelector:     `div[data-name="listing-item"]`,
			LinkSelector:     `a[href*="/item/"]`,
			TitleSelector:    `h3`,
			PriceSelector:    `span[class*="styles_price"]`,
			LocationSelector: `div[class*="styles_region"]`,
			ImageSelector:    "img",
		}, deps.Timeout, deps.Logger),
	}, "kufar.by", "re.kufar.by")

	return reg
}

// olxState mirrors the slice of OLX's prerendered page state we consume.
type olxState struct {
	Listing struct {
		Listing struct {
			Ads []olxAd `json:"ads"`
		} `json:"listing"`
	} `json:"listing"`
}

type olxAd struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedTime string `json:"createdTime"`
	Price       struct {
		RegularPrice struct {
			Value        float64 `json:"value"`
			CurrencyCode string  `json:"currencyCode"`
		} `json:"regularPrice"`
	} `json:"price"`
	Location struct {
		CityName     string `json:"cityName"`
		DistrictName string `json:"districtName"`
		DistrictID   int64  `json:"districtId"`
	} `json:"location"`
	Photos []string `json:"photos"`
}

const olxStateMarker = `window.__PRERENDERED_STATE__`

// captureOLXState digs the prerendered JSON state out of the search page.
// OLX serializes it as a JS string literal, so the blob is decoded twice:
// once as a string, then as the state document.
func captureOLXState(body []byte) ([]monitor.RawItem, error) {
	idx := bytes.Index(body, []byte(olxStateMarker))
	if idx < 0 {
		return nil, ErrStateMissing
	}
	rest := body[idx+len(olxStateMarker):]
	eq := bytes.IndexByte(rest, '=')
	if eq < 0 {
		return nil, ErrStateMissing
	}

	var encoded string
	dec := json.NewDecoder(bytes.NewReader(rest[eq+1:]))
	if err := dec.Decode(&encoded); err != nil {
		return nil, fmt.Errorf("decode state literal: %w", err)
	}

	var state olxState
	if err := json.Unmarshal([]byte(encoded), &state); err != nil {
		return nil, fmt.Errorf("decode state document: %w", err)
	}

	ads := state.Listing.Listing.Ads
	items := make([]monitor.RawItem, 0, len(ads))
	for _, ad := range ads {
		fields := map[string]string{
			monitor.FieldTitle:       ad.Title,
			monitor.FieldDescription: ad.Description,
			monitor.FieldCity:        ad.Location.CityName,
			monitor.FieldDistrict:    ad.Location.DistrictName,
			monitor.FieldPostedAt:    ad.CreatedTime,
		}
		if ad.Price.RegularPrice.Value > 0 {
			fields[monitor.FieldPrice] = strconv.FormatFloat(ad.Price.RegularPrice.Value, 'f', -1, 64)
			fields[monitor.FieldCurrency] = ad.Price.RegularPrice.CurrencyCode
		}
		if ad.Location.DistrictID > 0 {
			fields[monitor.FieldDistrictID] = strconv.FormatInt(ad.Location.DistrictID, 10)
		}
		if len(ad.Photos) > 0 {
			fields[monitor.FieldImages] = strings.Join(ad.Photos, "|")
		}
		items = append(items, monitor.RawItem{Permalink: ad.URL, Fields: fields})
	}
	return items, nil
}

// kufarSearchURL rewrites a kufar search page URL onto the paginated
// search API, carrying the query filters over.
func kufarSearchURL(query monitor.SearchQuery) string {
	parsed, err := url.Parse(query.Canonical)
	if err != nil {
		return ""
	}
	api := url.URL{
		Scheme:   "https",
		Host:     "api.kufar.by",
		Path:     "/search-api/v2/search/rendered-paginated",
		RawQuery: parsed.RawQuery,
	}
	return api.String()
}

type kufarResponse struct {
	Ads []kufarAd `json:"ads"`
}

type kufarAd struct {
	AdLink   string `json:"ad_link"`
	Subject  string `json:"subject"`
	PriceBYN string `json:"price_byn"`
	ListTime string `json:"list_time"`
	Images   []struct {
		Path string `json:"path"`
	} `json:"images"`
	AccountParameters []struct {
		P string `json:"p"`
		V string `json:"v"`
	} `json:"account_parameters"`
}

// captureKufarAds decodes the search API response. Prices arrive in
// kopecks, permalinks are absolute.
func captureKufarAds(body []byte) ([]monitor.RawItem, error) {
	var resp kufarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if resp.Ads == nil {
		return nil, ErrStateMissing
	}

	items := make([]monitor.RawItem, 0, len(resp.Ads))
	for _, ad := range resp.Ads {
		fields := map[string]string{
			monitor.FieldTitle:    ad.Subject,
			monitor.FieldPostedAt: ad.ListTime,
		}
		if kopecks, err := strconv.ParseInt(ad.PriceBYN, 10, 64); err == nil && kopecks > 0 {
			fields[monitor.FieldPrice] = strconv.FormatFloat(float64(kopecks)/100, 'f', 2, 64)
			fields[monitor.FieldCurrency] = "BYN"
		}
		if len(ad.Images) > 0 {
			paths := make([]string, 0, len(ad.Images))
			for _, img := range ad.Images {
				if img.Path != "" {
					paths = append(paths, "https://rms.kufar.by/v1/gallery/"+img.Path)
				}
			}
			fields[monitor.FieldImages] = strings.Join(paths, "|")
		}
		items = append(items, monitor.RawItem{Permalink: ad.AdLink, Fields: fields})
	}
	return items, nil
}
