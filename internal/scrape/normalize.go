package scrape

import (
	"strconv"
	"strings"
	"time"

	"github.com/flatwatch/scraper/internal/monitor"
)

// currencyTokens maps source price suffixes onto ISO currency codes.
var currencyTokens = []struct {
	token string
	code  string
}{
	{"zł", "PLN"},
	{"pln", "PLN"},
	{"руб", "BYN"},
	{"р.", "BYN"},
	{"byn", "BYN"},
	{"грн", "UAH"},
	{"€", "EUR"},
	{"eur", "EUR"},
	{"$", "USD"},
	{"usd", "USD"},
}

var postedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts raw strategy output into canonical listings. A raw
// item missing its permalink or title, or carrying unparseable price text,
// is dropped and counted rather than failing the batch.
func Normalize(raw []monitor.RawItem) ([]monitor.Listing, int) {
	items := make([]monitor.Listing, 0, len(raw))
	skipped := 0

	for _, r := range raw {
		listing, ok := normalizeOne(r)
		if !ok {
			skipped++
			continue
		}
		items = append(items, listing)
	}
	return items, skipped
}

func normalizeOne(r monitor.RawItem) (monitor.Listing, bool) {
	permalink := strings.TrimSpace(r.Permalink)
	title := strings.TrimSpace(r.Fields[monitor.FieldTitle])
	if permalink == "" || title == "" {
		return monitor.Listing{}, false
	}

	listing := monitor.Listing{
		Permalink:   permalink,
		Title:       title,
		City:        strings.TrimSpace(r.Fields[monitor.FieldCity]),
		District:    strings.TrimSpace(r.Fields[monitor.FieldDistrict]),
		Description: strings.TrimSpace(r.Fields[monitor.FieldDescription]),
	}

	if priceText := strings.TrimSpace(r.Fields[monitor.FieldPrice]); priceText != "" {
		amount, currency, ok := ParsePrice(priceText)
		if !ok {
			return monitor.Listing{}, false
		}
		listing.PriceAmount = amount
		listing.Currency = currency
	}
	if currency := strings.TrimSpace(r.Fields[monitor.FieldCurrency]); currency != "" {
		listing.Currency = strings.ToUpper(currency)
	}

	if images := r.Fields[monitor.FieldImages]; images != "" {
		for _, img := range strings.Split(images, "|") {
			if img = strings.TrimSpace(img); img != "" {
				listing.ImageURLs = append(listing.ImageURLs, img)
			}
		}
	}

	// posted-at is source-dependent and optional; an unparseable value is
	// dropped, not a reason to lose the listing.
	if posted := strings.TrimSpace(r.Fields[monitor.FieldPostedAt]); posted != "" {
		if ts, ok := parsePostedAt(posted); ok {
			listing.PostedAt = &ts
		}
	}

	if rawID := strings.TrimSpace(r.Fields[monitor.FieldDistrictID]); rawID != "" {
		if id, err := strconv.ParseInt(rawID, 10, 64); err == nil {
			listing.DistrictID = &id
		}
	}

	return listing, true
}

// ParsePrice parses source price text like "1 200 zł", "2,500 PLN" or
// "550 $" into an amount and ISO currency code. Free-form text without a
// leading numeric part ("Zamienię") fails.
func ParsePrice(text string) (float64, string, bool) {
	lowered := strings.ToLower(text)
	currency := ""
	for _, c := range currencyTokens {
		if strings.Contains(lowered, c.token) {
			currency = c.code
			lowered = strings.ReplaceAll(lowered, c.token, "")
			break
		}
	}

	// Drop whitespace used as thousands separators, then take the leading
	// numeric run. Trailing qualifiers like "/mies." are ignored.
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(lowered))

	end := 0
	for end < len(compact) && (compact[end] >= '0' && compact[end] <= '9' || compact[end] == '.') {
		end++
	}
	numeric := strings.Trim(compact[:end], ".")
	if numeric == "" {
		return 0, "", false
	}

	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, "", false
	}
	return amount, currency, true
}

func parsePostedAt(text string) (time.Time, bool) {
	for _, layout := range postedAtLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
