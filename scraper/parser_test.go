package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newbuild_scrooper/document"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func fixturePages(t *testing.T, listing string, extra map[string]string) map[string]string {
	t.Helper()
	pages := map[string]string{
		"https://complex.test/":               string(loadFixture(t, "landing.html")),
		ListingURL(testListingTemplate, "42"): string(loadFixture(t, listing)),
	}
	for url, fixture := range extra {
		pages[url] = string(loadFixture(t, fixture))
	}
	return pages
}

func TestParseEndToEnd(t *testing.T) {
	b := document.NewStaticBrowser(fixturePages(t, "listing_single.html", nil))
	p := NewParser(testCrawlConfig())
	p.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	out, err := p.Parse(context.Background(), b)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	res := out.Result

	if res.Development.ID != "42" || res.Development.Name != "Complex" {
		t.Fatalf("unexpected development %s %s", res.Development.ID, res.Development.Name)
	}
	if res.UnitsCount != 1 || len(res.Units) != 1 {
		t.Fatalf("expected one unit, got %d", res.UnitsCount)
	}

	u := res.Units[0]
	if u.ID != "7" || u.Area != 45.6 || u.Price != 5000000 {
		t.Fatalf("unexpected unit %+v", u)
	}
	if u.Address == nil || *u.Address != "Street, 1к1" {
		t.Fatalf("expected layout address, got %v", u.Address)
	}
	if u.PricePerM2() != 109649 {
		t.Fatalf("expected price per m2 109649, got %d", u.PricePerM2())
	}
	if u.HouseStatus == nil || *u.HouseStatus != "Сдан" {
		t.Fatalf("expected status from layout, got %v", u.HouseStatus)
	}
	if len(u.Images) != 1 || u.Images[0] != "https://img.test/layouts/7.jpg" {
		t.Fatalf("expected layout image, got %v", u.Images)
	}

	// the detail page is missing, so enrichment fails without touching the unit
	if len(out.Enrichment.Failed) != 1 {
		t.Fatalf("expected one enrichment failure, got %+v", out.Enrichment)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, want := range []string{`"units_count":1`, `"price_per_m2":109649`, `"id":"42"`, `"address":"Street, 1к1"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in %s", want, data)
		}
	}
}

func TestParseEnrichesUnits(t *testing.T) {
	b := document.NewStaticBrowser(fixturePages(t, "listing_single.html", map[string]string{
		"https://www.cian.ru/sale/flat/7/": "detail_7.html",
	}))

	out, err := NewParser(testCrawlConfig()).Parse(context.Background(), b)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	u := out.Result.Units[0]
	if *u.Address != "Street, 2к3" {
		t.Fatalf("expected enriched address, got %s", *u.Address)
	}
	if len(u.Images) != 2 {
		t.Fatalf("expected detail photos, got %v", u.Images)
	}
	if out.Enrichment.Enriched != 1 {
		t.Fatalf("expected one enriched unit, got %+v", out.Enrichment)
	}
}

func TestParseLayoutOnlySkipsEnrichment(t *testing.T) {
	b := document.NewStaticBrowser(fixturePages(t, "listing_empty.html", nil))

	out, err := NewParser(testCrawlConfig()).Parse(context.Background(), b)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !out.Crawl.LayoutOnly || out.Result.UnitsCount != 2 {
		t.Fatalf("expected 2 layout units, got %+v", out.Crawl)
	}
	if got := len(b.Visits()); got != 2 {
		t.Fatalf("expected landing and listing visits only, got %v", b.Visits())
	}
	if reason := out.Degraded(); reason != "" {
		t.Fatalf("an empty listing is a complete result, got degraded: %s", reason)
	}
}

func TestParseListingUnavailableIsDegraded(t *testing.T) {
	pages := fixturePages(t, "listing_single.html", nil)
	delete(pages, ListingURL(testListingTemplate, "42"))

	out, err := NewParser(testCrawlConfig()).Parse(context.Background(), document.NewStaticBrowser(pages))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !out.Crawl.LayoutOnly || out.Degraded() == "" {
		t.Fatalf("expected a degraded layout-only result, got %+v", out.Crawl)
	}
}

func TestParseOutputDegraded(t *testing.T) {
	tests := []struct {
		name     string
		out      ParseOutput
		degraded bool
	}{
		{"full crawl", ParseOutput{Crawl: CrawlResult{Stop: StopNoNextPage, Pages: 3}}, false},
		{"page cap", ParseOutput{Crawl: CrawlResult{Stop: StopMaxPages, Pages: 50}}, false},
		{"no offers", ParseOutput{Crawl: CrawlResult{Stop: StopNoOffers, LayoutOnly: true}}, false},
		{"listing unavailable", ParseOutput{Crawl: CrawlResult{Stop: StopPageError, LayoutOnly: true}}, true},
		{"broke off mid crawl", ParseOutput{Crawl: CrawlResult{Stop: StopPageError, Pages: 4}}, true},
		{"interrupted", ParseOutput{Crawl: CrawlResult{Stop: StopNoNextPage}, Interrupted: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.Degraded() != ""; got != tt.degraded {
				t.Fatalf("Degraded() = %q, want degraded=%v", tt.out.Degraded(), tt.degraded)
			}
		})
	}
}

func TestParseFailsWithoutDevelopmentID(t *testing.T) {
	b := document.NewStaticBrowser(map[string]string{
		"https://complex.test/": "<html><body>Страница не найдена</body></html>",
	})

	_, err := NewParser(testCrawlConfig()).Parse(context.Background(), b)
	if !errors.Is(err, ErrIdentifierNotFound) {
		t.Fatalf("expected ErrIdentifierNotFound, got %v", err)
	}
	if got := len(b.Visits()); got != 1 {
		t.Fatalf("nothing should run after the landing page, visits: %v", b.Visits())
	}
}
