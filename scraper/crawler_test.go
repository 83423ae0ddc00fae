package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"newbuild_scrooper/config"
	"newbuild_scrooper/document"
	"newbuild_scrooper/models"
)

const testListingTemplate = "https://www.cian.ru/cat.php?newobject%5B0%5D={id}"

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		SiteID:      "complex",
		LandingURL:  "https://complex.test/",
		DisplayName: "Complex",
		ListingURL:  testListingTemplate,
		BaseURL:     "https://www.cian.ru",
		NavTimeout:  time.Second,
		MaxPages:    50,
	}
}

func pageURL(listingURL string, page int) string {
	if page == 1 {
		return listingURL
	}
	return fmt.Sprintf("https://www.cian.ru/cat.php?newobject%%5B0%%5D=42&p=%d", page)
}

// paginatedPages builds n listing pages with one card each. Every page but
// the last links to the next one.
func paginatedPages(n int, unitID func(page int) int) map[string]string {
	listingURL := ListingURL(testListingTemplate, "42")
	pages := make(map[string]string, n)
	for i := 1; i <= n; i++ {
		next := ""
		if i < n {
			next = fmt.Sprintf(`<nav data-name="Pagination"><a class="_93444fe79c--next" href="%s">Дальше</a></nav>`, pageURL(listingURL, i+1))
		}
		pages[pageURL(listingURL, i)] = fmt.Sprintf(`<html><body>
<div data-name="LinkArea"><a href="/sale/flat/%d/">1-комн. кв., 40 м², 3/17 этаж</a>
<span data-mark="MainPrice">4 000 000 ₽</span></div>
%s
</body></html>`, unitID(i), next)
	}
	return pages
}

func byPage(page int) int { return 1000 + page }

func runCrawler(t *testing.T, b document.Browser, layout []models.UnitCandidate) CrawlResult {
	t.Helper()
	dev := models.Development{ID: "42", Name: "Complex", Address: str("Street")}
	return NewCrawler(b, testCrawlConfig(), &dev, layout).Run(context.Background())
}

func TestCrawlerStopsWithoutNextControl(t *testing.T) {
	b := document.NewStaticBrowser(paginatedPages(3, byPage))
	res := runCrawler(t, b, nil)

	if got := len(b.Visits()); got != 3 {
		t.Fatalf("expected exactly 3 page visits, got %d: %v", got, b.Visits())
	}
	if res.Pages != 3 || res.Stop != StopNoNextPage {
		t.Fatalf("expected 3 pages and no_next_page, got %d %s", res.Pages, res.Stop)
	}
	if len(res.Units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(res.Units))
	}
	for i, u := range res.Units {
		if want := fmt.Sprint(byPage(i + 1)); u.ID != want {
			t.Fatalf("unit %d: expected id %s, got %s", i, want, u.ID)
		}
	}
}

func TestCrawlerPageCap(t *testing.T) {
	b := document.NewStaticBrowser(paginatedPages(60, byPage))
	res := runCrawler(t, b, nil)

	if got := len(b.Visits()); got != 50 {
		t.Fatalf("expected crawl to stop at 50 pages, visited %d", got)
	}
	if res.Stop != StopMaxPages || res.Pages != 50 || len(res.Units) != 50 {
		t.Fatalf("unexpected result: stop=%s pages=%d units=%d", res.Stop, res.Pages, len(res.Units))
	}
}

func TestCrawlerConfiguredCap(t *testing.T) {
	b := document.NewStaticBrowser(paginatedPages(10, byPage))
	cfg := testCrawlConfig()
	cfg.MaxPages = 4
	dev := models.Development{ID: "42"}

	res := NewCrawler(b, cfg, &dev, nil).Run(context.Background())
	if len(b.Visits()) != 4 || res.Stop != StopMaxPages {
		t.Fatalf("expected 4 visits and max_pages, got %d %s", len(b.Visits()), res.Stop)
	}
}

func TestCrawlerDeduplicatesAcrossPages(t *testing.T) {
	b := document.NewStaticBrowser(paginatedPages(3, func(int) int { return 7 }))
	res := runCrawler(t, b, nil)

	if len(res.Units) != 1 || res.Units[0].ID != "7" {
		t.Fatalf("expected a single unit 7, got %+v", res.Units)
	}
}

func TestCrawlerNoOffersFallsBackToLayout(t *testing.T) {
	listingURL := ListingURL(testListingTemplate, "42")
	b := document.NewStaticBrowser(map[string]string{
		listingURL: string(loadFixture(t, "listing_empty.html")),
	})
	layout := []models.UnitCandidate{
		{ID: "7", Area: 45.6, Price: 5000000, Status: str("Дом сдан")},
		{ID: "8", Area: 24, Price: 0},
		{ID: "9", Area: 38.2, Price: 4100000},
	}

	res := runCrawler(t, b, layout)
	if !res.LayoutOnly || res.Stop != StopNoOffers {
		t.Fatalf("expected layout fallback on no_offers, got %+v", res)
	}
	if len(res.Units) != 2 || res.Units[0].ID != "7" || res.Units[1].ID != "9" {
		t.Fatalf("expected layout units 7 and 9, got %+v", res.Units)
	}
	if s := res.Units[0].HouseStatus; s == nil || *s != "Сдан" {
		t.Fatalf("expected normalized status, got %v", s)
	}
}

func TestCrawlerNoOffersAfterFirstPageKeepsCards(t *testing.T) {
	pages := paginatedPages(2, byPage)
	pages[pageURL(ListingURL(testListingTemplate, "42"), 2)] = string(loadFixture(t, "listing_empty.html"))
	b := document.NewStaticBrowser(pages)

	res := runCrawler(t, b, []models.UnitCandidate{{ID: "9", Area: 38.2, Price: 4100000}})
	if res.LayoutOnly || res.Stop != StopNoOffers {
		t.Fatalf("expected card results to be kept, got %+v", res)
	}
	if len(res.Units) != 1 || res.Units[0].ID != "1001" {
		t.Fatalf("expected the page 1 unit only, got %+v", res.Units)
	}
}

func TestCrawlerListingUnavailable(t *testing.T) {
	b := document.NewStaticBrowser(map[string]string{})
	res := runCrawler(t, b, []models.UnitCandidate{{ID: "9", Area: 38.2, Price: 4100000}})

	if res.Stop != StopPageError || !res.LayoutOnly || len(res.Units) != 1 {
		t.Fatalf("expected layout fallback on navigation failure, got %+v", res)
	}
}

func TestCrawlerTalliesRejections(t *testing.T) {
	listingURL := ListingURL(testListingTemplate, "42")
	b := document.NewStaticBrowser(map[string]string{
		listingURL: string(loadFixture(t, "listing_mixed.html")),
	})
	res := runCrawler(t, b, nil)

	if len(res.Units) != 1 || res.Units[0].ID != "7" {
		t.Fatalf("expected only unit 7, got %+v", res.Units)
	}
	for _, reason := range []RejectReason{RejectForeign, RejectNoID, RejectZeroArea, RejectZeroPrice} {
		if res.Rejected[reason] != 1 {
			t.Errorf("expected one %s rejection, got %d", reason, res.Rejected[reason])
		}
	}
}

func TestNextStep(t *testing.T) {
	tests := []struct {
		page, max int
		hasNext   bool
		want      StopReason
	}{
		{1, 50, true, ""},
		{1, 50, false, StopNoNextPage},
		{49, 50, true, ""},
		{50, 50, true, StopMaxPages},
		{50, 50, false, StopNoNextPage},
	}
	for _, tt := range tests {
		if got := nextStep(tt.page, tt.max, tt.hasNext); got != tt.want {
			t.Errorf("nextStep(%d, %d, %v) = %q, want %q", tt.page, tt.max, tt.hasNext, got, tt.want)
		}
	}
}

// cancellingBrowser cancels the run context once it has navigated to url.
type cancellingBrowser struct {
	*document.StaticBrowser
	url    string
	cancel context.CancelFunc
}

func (b *cancellingBrowser) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	err := b.StaticBrowser.Navigate(ctx, url, timeout)
	if url == b.url {
		b.cancel()
	}
	return err
}

func TestCrawlerStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listingURL := ListingURL(testListingTemplate, "42")
	b := &cancellingBrowser{
		StaticBrowser: document.NewStaticBrowser(paginatedPages(5, byPage)),
		url:           listingURL,
		cancel:        cancel,
	}
	dev := models.Development{ID: "42", Name: "Complex", Address: str("Street")}

	res := NewCrawler(b, testCrawlConfig(), &dev, nil).Run(ctx)

	if res.Stop != StopPageError || res.Pages != 0 {
		t.Fatalf("expected page_error before page 1, got %s after %d pages", res.Stop, res.Pages)
	}
	if got := len(b.Visits()); got != 1 {
		t.Fatalf("expected only the listing visit, got %v", b.Visits())
	}
}
