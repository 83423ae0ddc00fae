package scraper

import (
	"context"
	"log"
	"strings"
	"time"

	"newbuild_scrooper/config"
	"newbuild_scrooper/document"
	"newbuild_scrooper/fields"
	"newbuild_scrooper/models"
)

const noOffersMarker = "Нет подходящих объявлений"

var nextPageSelectors = []string{
	`[data-name="Pagination"] [class*="next"]`,
	`a[rel="next"]`,
}

// StopReason tells why the crawl ended.
type StopReason string

const (
	StopNoNextPage StopReason = "no_next_page"
	StopMaxPages   StopReason = "max_pages"
	StopNoOffers   StopReason = "no_offers"
	StopPageError  StopReason = "page_error"
)

// CrawlResult is what a paginated crawl accumulated.
type CrawlResult struct {
	Units      []models.UnitRecord
	Pages      int
	Stop       StopReason
	LayoutOnly bool // units come from the layout catalogue, not from cards
	Rejected   map[RejectReason]int
}

// Crawler walks the listing pages of one development, one page at a time.
type Crawler struct {
	browser    document.Browser
	cards      CardExtractor
	dev        *models.Development
	layout     []models.UnitCandidate
	layoutByID map[string]models.UnitCandidate
	listingURL string
	timeout    time.Duration
	maxPages   int
}

func NewCrawler(b document.Browser, cfg config.CrawlConfig, dev *models.Development, layout []models.UnitCandidate) *Crawler {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Crawler{
		browser:    b,
		cards:      CardExtractor{DevelopmentID: dev.ID, BaseURL: cfg.BaseURL},
		dev:        dev,
		layout:     layout,
		layoutByID: indexLayout(layout),
		listingURL: ListingURL(cfg.ListingURL, dev.ID),
		timeout:    cfg.NavTimeout,
		maxPages:   maxPages,
	}
}

func (c *Crawler) Run(ctx context.Context) CrawlResult {
	acc := newUnitAccumulator()
	res := CrawlResult{Rejected: make(map[RejectReason]int)}

	finish := func(stop StopReason) CrawlResult {
		res.Stop = stop
		if acc.len() == 0 && (stop == StopNoOffers || stop == StopPageError) {
			res.Units = LayoutRecords(c.layout)
			res.LayoutOnly = true
			log.Printf("No cards collected, falling back to %d layout units", len(res.Units))
			return res
		}
		res.Units = acc.records()
		return res
	}

	log.Printf("Navigating to listing: %s", c.listingURL)
	if err := c.browser.Navigate(ctx, c.listingURL, c.timeout); err != nil {
		log.Printf("Listing navigation failed: %v", err)
		return finish(StopPageError)
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			log.Printf("Crawl cancelled before page %d: %v", page, err)
			return finish(StopPageError)
		}
		if err := c.browser.WaitForLoadSettled(); err != nil {
			log.Printf("Page %d did not settle (continuing): %v", page, err)
		}
		res.Pages = page

		html, err := c.browser.Content()
		if err != nil {
			log.Printf("Page %d: read failed: %v", page, err)
			return finish(StopPageError)
		}
		if strings.Contains(html, noOffersMarker) {
			log.Printf("Page %d: no matching offers", page)
			return finish(StopNoOffers)
		}

		outcomes, err := c.cards.ExtractPage(c.browser)
		if err != nil {
			log.Printf("Page %d: card extraction failed: %v", page, err)
			return finish(StopPageError)
		}

		added := 0
		pageRejects := make(map[RejectReason]int)
		for _, o := range outcomes {
			if !o.Accepted() {
				pageRejects[o.Reason]++
				res.Rejected[o.Reason]++
				continue
			}
			if acc.add(Merge(o.Unit, c.layoutByID, c.dev)) {
				added++
			}
		}
		log.Printf("Page %d: %d cards, %d new units (total: %d)", page, len(outcomes), added, acc.len())
		if added == 0 {
			log.Printf("Page %d yielded no units, rejects: %v", page, pageRejects)
		}

		next, hasNext := c.nextControl()
		if stop := nextStep(page, c.maxPages, hasNext); stop != "" {
			log.Printf("Crawl finished at page %d: %s", page, stop)
			return finish(stop)
		}
		if err := next.Activate(); err != nil {
			log.Printf("Next page control not interactable: %v", err)
			return finish(StopNoNextPage)
		}
	}
}

func (c *Crawler) nextControl() (document.Element, bool) {
	el, ok, err := document.First(c.browser, nextPageSelectors...)
	if err != nil || !ok || !el.IsVisible() {
		return nil, false
	}
	return el, true
}

// nextStep decides whether the crawl stops after processing page.
// An empty reason means move on to the next page.
func nextStep(page, maxPages int, hasNext bool) StopReason {
	switch {
	case !hasNext:
		return StopNoNextPage
	case page >= maxPages:
		return StopMaxPages
	}
	return ""
}

// LayoutRecords turns layout candidates into records, dropping those that
// fail the acceptance gate and repeated ids.
func LayoutRecords(layout []models.UnitCandidate) []models.UnitRecord {
	acc := newUnitAccumulator()
	for _, c := range layout {
		rec, ok := models.NewUnitRecord(c)
		if !ok {
			continue
		}
		rec.HouseStatus = fields.NormalizeStatus(rec.HouseStatus)
		acc.add(rec)
	}
	return acc.records()
}

// unitAccumulator keeps records in first-seen order, one per id.
type unitAccumulator struct {
	order []models.UnitRecord
	seen  map[string]struct{}
}

func newUnitAccumulator() *unitAccumulator {
	return &unitAccumulator{seen: make(map[string]struct{})}
}

func (a *unitAccumulator) add(rec models.UnitRecord) bool {
	if _, dup := a.seen[rec.ID]; dup {
		return false
	}
	a.seen[rec.ID] = struct{}{}
	a.order = append(a.order, rec)
	return true
}

func (a *unitAccumulator) len() int {
	return len(a.order)
}

func (a *unitAccumulator) records() []models.UnitRecord {
	out := make([]models.UnitRecord, len(a.order))
	copy(out, a.order)
	return out
}
