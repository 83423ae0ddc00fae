package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"newbuild_scrooper/document"
	"newbuild_scrooper/fields"
	"newbuild_scrooper/models"
)

// ErrNothingToEnrich means the detail page had neither a building code
// nor photos.
var ErrNothingToEnrich = errors.New("no building code or photos on detail page")

var (
	metaBuildingCodeRe  = regexp.MustCompile(`<meta[^>]*name="description"[^>]*content="[^"]*ул\.\s*[^,"<]+,\s*(\d+к\d+)`)
	titleBuildingCodeRe = regexp.MustCompile(`<title>[^<]*ул\.\s*[^,<]+,\s*(\d+к\d+)`)
	houseNameRegex      = regexp.MustCompile(`"house":\{"id":\d+,"name":"([^"]+)"`)
	photosBlockRegex    = regexp.MustCompile(`"photos":\[([^\]]+)\]`)
	photoFullURLRegex   = regexp.MustCompile(`"fullUrl":\s*"([^"]+)"`)
)

// DetailUpdate is what a unit's own page adds to the record.
type DetailUpdate struct {
	BuildingCode string
	Photos       []string
}

func (u DetailUpdate) Empty() bool {
	return u.BuildingCode == "" && len(u.Photos) == 0
}

// ParseDetail extracts the building code and the photo list from a unit
// detail page.
func ParseDetail(html string) DetailUpdate {
	var upd DetailUpdate

	if m := metaBuildingCodeRe.FindStringSubmatch(html); m != nil {
		upd.BuildingCode = m[1]
	} else if m := titleBuildingCodeRe.FindStringSubmatch(html); m != nil {
		upd.BuildingCode = m[1]
	} else if m := houseNameRegex.FindStringSubmatch(html); m != nil {
		if code, ok := fields.BuildingCode(m[1]); ok {
			upd.BuildingCode = code
		}
	}

	if block := photosBlockRegex.FindStringSubmatch(html); block != nil {
		for _, m := range photoFullURLRegex.FindAllStringSubmatch(block[1], -1) {
			upd.Photos = append(upd.Photos, fields.DecodeURL(m[1]))
		}
	}
	return upd
}

// Apply returns rec with the update applied. The address is only rewritten
// when the development address is known.
func (u DetailUpdate) Apply(rec models.UnitRecord, dev *models.Development) models.UnitRecord {
	if u.BuildingCode != "" {
		if addr := dev.BuildingAddress(u.BuildingCode); addr != nil {
			rec.Address = addr
		}
	}
	if len(u.Photos) > 0 {
		rec.Images = append([]string(nil), u.Photos...)
	}
	return rec
}

// EnrichFailure records one unit that kept its pre-enrichment values.
type EnrichFailure struct {
	UnitID string
	Err    error
}

type EnrichReport struct {
	Enriched int
	Failed   []EnrichFailure
}

// Enricher visits each unit's detail page in turn.
type Enricher struct {
	browser document.Browser
	dev     *models.Development
	timeout time.Duration
}

func NewEnricher(b document.Browser, dev *models.Development, timeout time.Duration) *Enricher {
	return &Enricher{browser: b, dev: dev, timeout: timeout}
}

// Enrich returns a new slice in the same order as units. A unit whose
// detail page fails is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, units []models.UnitRecord) ([]models.UnitRecord, EnrichReport) {
	var report EnrichReport
	out := make([]models.UnitRecord, len(units))

	for i, u := range units {
		enriched, err := e.enrichOne(ctx, u)
		if err != nil {
			log.Printf("[%d/%d] %s: %v", i+1, len(units), u.ID, err)
			report.Failed = append(report.Failed, EnrichFailure{UnitID: u.ID, Err: err})
			out[i] = u
			continue
		}
		report.Enriched++
		out[i] = enriched
	}

	log.Printf("Enrichment done: %d enriched, %d failed", report.Enriched, len(report.Failed))
	return out, report
}

func (e *Enricher) enrichOne(ctx context.Context, u models.UnitRecord) (models.UnitRecord, error) {
	if err := e.browser.Navigate(ctx, u.URL, e.timeout); err != nil {
		return u, fmt.Errorf("open detail page: %w", err)
	}
	if err := e.browser.WaitForLoadSettled(); err != nil {
		log.Printf("%s: detail page did not settle (continuing): %v", u.ID, err)
	}
	html, err := e.browser.Content()
	if err != nil {
		return u, fmt.Errorf("read detail page: %w", err)
	}

	upd := ParseDetail(html)
	if upd.Empty() {
		return u, ErrNothingToEnrich
	}
	return upd.Apply(u, e.dev), nil
}
