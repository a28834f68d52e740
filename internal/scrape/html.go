package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

// HTMLSpec holds the selectors for one source's search-result markup.
// All item selectors are evaluated relative to a card.
type HTMLSpec struct {
	CardSelector     string
	LinkSelector     string
	TitleSelector    string
	PriceSelector    string
	LocationSelector string
	ImageSelector    string
	DateSelector     string
	Headers          http.Header
}

// HTMLStrategy is the last-resort extraction path: fetch the search page
// and walk its DOM. A single malformed card is skipped and counted, never
// allowed to abort the rest of the page.
type HTMLStrategy struct {
	source   string
	fetcher  monitor.Fetcher
	renderer monitor.Fetcher
	detector *ShellDetector
	spec     HTMLSpec
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHTML builds an HTMLStrategy. renderer and detector may be nil; without
// them JS-shell pages simply fail with ElementMissing.
func NewHTML(
	source string,
	fetcher monitor.Fetcher,
	renderer monitor.Fetcher,
	detector *ShellDetector,
	spec HTMLSpec,
	timeout time.Duration,
	logger *zap.Logger,
) *HTMLStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLStrategy{
		source:   source,
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		spec:     spec,
		timeout:  timeout,
		logger:   logger,
	}
}

// Kind identifies the strategy for outcomes and metrics.
func (s *HTMLStrategy) Kind() monitor.StrategyKind {
	return monitor.StrategyHTML
}

// Extract fetches the search page, escalating to a headless render when the
// response is a JS shell, and extracts one raw item per listing card.
// Returned errors are always *monitor.ScrapeError with one of the HTML
// failure classes.
func (s *HTMLStrategy) Extract(ctx context.Context, query monitor.SearchQuery) ([]monitor.RawItem, []byte, error) {
	resp, err := s.fetcher.Fetch(ctx, monitor.FetchRequest{
		URL:     query.Canonical,
		Headers: s.spec.Headers,
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, nil, monitor.NewScrapeError(
			monitor.FailureNetwork, monitor.StrategyHTML, query.Canonical, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Body, monitor.NewScrapeError(
			monitor.FailureNetwork, monitor.StrategyHTML, query.Canonical,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if s.detector != nil && s.renderer != nil && s.detector.NeedsRender(resp) {
		rendered, rerr := s.renderer.Fetch(ctx, monitor.FetchRequest{
			URL:     query.Canonical,
			Headers: s.spec.Headers,
		})
		if rerr != nil {
			s.logger.Warn("headless render failed, extracting from plain response",
				zap.String("query", query.Canonical),
				zap.Error(rerr),
			)
		} else {
			resp = rendered
		}
	}

	items, skipped, err := s.extractCards(query, resp.Body)
	if err != nil {
		return nil, resp.Body, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed listing cards",
			zap.String("query", query.Canonical),
			zap.Int("skipped", skipped),
			zap.Int("extracted", len(items)),
		)
	}
	return items, resp.Body, nil
}

func (s *HTMLStrategy) extractCards(query monitor.SearchQuery, body []byte) ([]monitor.RawItem, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, monitor.NewScrapeError(
			monitor.FailureElementMissing, monitor.StrategyHTML, query.Canonical,
			fmt.Errorf("parse document: %w", err))
	}

	cards := doc.Find(s.spec.CardSelector)
	if cards.Length() == 0 {
		return nil, 0, monitor.NewScrapeError(
			monitor.FailureElementMissing, monitor.StrategyHTML, query.Canonical,
			fmt.Errorf("no %q cards in document", s.spec.CardSelector))
	}

	base, _ := url.Parse(query.Canonical)

	var (
		items   []monitor.RawItem
		skipped int
	)
	cards.Each(func(_ int, card *goquery.Selection) {
		item, ok := s.extractCard(base, card)
		if !ok {
			skipped++
			return
		}
		items = append(items, item)
	})

	if len(items) == 0 {
		return nil, skipped, monitor.NewScrapeError(
			monitor.FailureFieldParse, monitor.StrategyHTML, query.Canonical,
			fmt.Errorf("all %d cards malformed", skipped))
	}
	return items, skipped, nil
}

// extractCard pulls one listing out of a card node. The permalink is the
// only hard requirement; everything else degrades to an empty field.
func (s *HTMLStrategy) extractCard(base *url.URL, card *goquery.Selection) (monitor.RawItem, bool) {
	href, ok := card.Find(s.spec.LinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return monitor.RawItem{}, false
	}
	permalink := resolveURL(base, href)

	fields := map[string]string{
		monitor.FieldTitle: text(card, s.spec.TitleSelector),
		monitor.FieldPrice: text(card, s.spec.PriceSelector),
	}

	if location := text(card, s.spec.LocationSelector); location != "" {
		city, district := splitLocation(location)
		fields[monitor.FieldCity] = city
		fields[monitor.FieldDistrict] = district
	}
	if date := text(card, s.spec.DateSelector); date != "" {
		fields[monitor.FieldPostedAt] = date
	}
	if s.spec.ImageSelector != "" {
		var images []string
		card.Find(s.spec.ImageSelector).Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			if src == "" {
				src, _ = img.Attr("data-src")
			}
			src = strings.TrimSpace(src)
			if src != "" {
				images = append(images, resolveURL(base, src))
			}
		})
		if len(images) > 0 {
			fields[monitor.FieldImages] = strings.Join(images, "|")
		}
	}

	return monitor.RawItem{Permalink: permalink, Fields: fields}, true
}

func text(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().Text())
}

// splitLocation splits "Warszawa, Mokotów - Odświeżono dnia..." style
// location lines into city and district.
func splitLocation(location string) (city, district string) {
	if dash := strings.Index(location, " - "); dash >= 0 {
		location = location[:dash]
	}
	parts := strings.SplitN(location, ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		district = strings.TrimSpace(parts[1])
	}
	return city, district
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
