package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"newbuild_scrooper/config"
	"newbuild_scrooper/document"
	"newbuild_scrooper/models"
)

// ParseOutput is the result of one parse together with what happened on
// the way.
type ParseOutput struct {
	Result     models.ParseResult
	Crawl      CrawlResult
	Enrichment EnrichReport
	// Interrupted is set when the context was cancelled during the parse.
	Interrupted bool
}

// Degraded returns why the result does not reflect a full crawl of the
// listing, or "" when it does. A degraded result must not replace the
// previous view of the development.
func (o *ParseOutput) Degraded() string {
	switch {
	case o.Interrupted:
		return "parse interrupted"
	case o.Crawl.Stop == StopPageError && o.Crawl.LayoutOnly:
		return "listing unavailable, layout catalogue only"
	case o.Crawl.Stop == StopPageError:
		return fmt.Sprintf("listing crawl broke off after page %d", o.Crawl.Pages)
	}
	return ""
}

// Parser runs the full pipeline for one development: landing page,
// listing pages, then unit detail pages.
type Parser struct {
	cfg config.CrawlConfig
	now func() time.Time
}

func NewParser(cfg config.CrawlConfig) *Parser {
	return &Parser{cfg: cfg, now: time.Now}
}

// Parse only fails when the landing page cannot be read or does not expose
// the development id. Everything after that is best effort.
func (p *Parser) Parse(ctx context.Context, b document.Browser) (*ParseOutput, error) {
	log.Printf("Opening landing page: %s", p.cfg.LandingURL)
	if err := b.Navigate(ctx, p.cfg.LandingURL, p.cfg.NavTimeout); err != nil {
		return nil, fmt.Errorf("open landing page: %w", err)
	}
	if err := b.WaitForLoadSettled(); err != nil {
		log.Printf("Landing page did not settle (continuing): %v", err)
	}
	html, err := b.Content()
	if err != nil {
		return nil, fmt.Errorf("read landing page: %w", err)
	}

	devID, err := ExtractDevelopmentID(html)
	if err != nil {
		return nil, err
	}
	dev := ExtractDevelopment(html, devID, p.cfg.DisplayName, p.cfg.LandingURL)
	log.Printf("Development %s: %s", dev.ID, dev.Name)

	layout := ExtractLayout(html, &dev)
	log.Printf("Layout catalogue: %d entries", len(layout))

	crawl := NewCrawler(b, p.cfg, &dev, layout).Run(ctx)
	log.Printf("Crawl: %d units over %d pages (%s)", len(crawl.Units), crawl.Pages, crawl.Stop)

	units := crawl.Units
	var report EnrichReport
	if !crawl.LayoutOnly && len(units) > 0 {
		units, report = NewEnricher(b, &dev, p.cfg.NavTimeout).Enrich(ctx, units)
	}

	return &ParseOutput{
		Result:      Assemble(dev, units, p.now()),
		Crawl:       crawl,
		Enrichment:  report,
		Interrupted: ctx.Err() != nil,
	}, nil
}
