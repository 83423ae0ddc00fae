package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"newbuild_scrooper/config"
	"newbuild_scrooper/document"
	"newbuild_scrooper/identity"
	"newbuild_scrooper/models"
	"newbuild_scrooper/storage"
)

// BrowserOpener starts a browser for one run. The returned func releases it.
type BrowserOpener func(cfg config.CrawlConfig) (document.Browser, func(), error)

type Orchestrator struct {
	cfg         *config.Config
	store       *storage.SQLiteStore
	openBrowser BrowserOpener

	// Optional sinks
	pgStore  *storage.PostgresStore
	exporter *storage.S3Exporter
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, open BrowserOpener) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		openBrowser: open,
	}
}

func (o *Orchestrator) SetPostgres(pg *storage.PostgresStore) {
	o.pgStore = pg
}

func (o *Orchestrator) SetExporter(e *storage.S3Exporter) {
	o.exporter = e
}

// RunAll parses every configured site in id order. A failing site is logged
// and skipped; the results of the others are still returned.
func (o *Orchestrator) RunAll(ctx context.Context) []*models.ParseResult {
	var results []*models.ParseResult
	for _, siteID := range o.cfg.SiteIDs() {
		if ctx.Err() != nil {
			break
		}
		result, err := o.RunSite(ctx, siteID)
		if err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
			continue
		}
		results = append(results, result)
	}
	return results
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID string) (*models.ParseResult, error) {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}
	crawlCfg := siteCfg.Crawl(o.cfg)

	run := &models.ScrapeRun{
		RunUUID:   uuid.New(),
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		return nil, err
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting parse for %s (run %s)", siteCfg.Name, run.RunUUID), siteID)

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Failed to update run %d: %v", run.ID, err)
		}
		if err := o.store.UpdateSiteStats(siteID); err != nil {
			log.Printf("Failed to update stats for %s: %v", siteID, err)
		}
	}()

	fail := func(err error) (*models.ParseResult, error) {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		run.ErrorMessage = err.Error()
		o.log(run.ID, models.LogLevelError, err.Error(), siteID)
		return nil, err
	}

	b, release, err := o.openBrowser(crawlCfg)
	if err != nil {
		return fail(fmt.Errorf("open browser: %w", err))
	}
	defer release()

	out, err := NewParser(crawlCfg).Parse(ctx, b)
	if err != nil {
		return fail(err)
	}
	result := &out.Result

	run.PagesVisited = out.Crawl.Pages
	run.UnitsFound = result.UnitsCount
	run.EnrichFailed = len(out.Enrichment.Failed)
	for _, f := range out.Enrichment.Failed {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Enrichment failed for %s: %v", f.UnitID, f.Err), siteID)
	}
	if out.Crawl.LayoutOnly {
		o.log(run.ID, models.LogLevelWarn, "Listing pages gave no cards, using layout catalogue only", siteID)
	}

	if reason := out.Degraded(); reason != "" {
		// keep the last complete run as the baseline
		run.Status = models.RunStatusPartial
		run.ErrorMessage = reason
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Degraded run (%s): snapshots skipped, nothing deactivated", reason), siteID)
		o.publish(ctx, run, out, false)
		return result, nil
	}

	if err := o.recordSnapshots(run, result); err != nil {
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Snapshot error: %v", err), siteID)
	}
	o.publish(ctx, run, out, true)

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d units over %d pages, %d new, %d changed, %d gone, %d enrichment failures",
			run.UnitsFound, run.PagesVisited, run.UnitsNew, run.UnitsChanged, run.UnitsGone, run.EnrichFailed), siteID)

	return result, nil
}

// recordSnapshots compares the run with the previous completed one and
// stores the new snapshots.
func (o *Orchestrator) recordSnapshots(run *models.ScrapeRun, result *models.ParseResult) error {
	prev, err := o.store.LastFingerprints(run.SiteID)
	if err != nil {
		return fmt.Errorf("load previous fingerprints: %w", err)
	}
	changes := identity.Diff(prev, result.Units)
	run.UnitsNew = len(changes.New)
	run.UnitsChanged = len(changes.Changed)
	run.UnitsGone = len(changes.Gone)
	if len(prev) > 0 && len(changes.Gone) > 0 {
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Units gone since last run: %v", changes.Gone), run.SiteID)
	}

	snaps := make([]models.UnitSnapshot, 0, len(result.Units))
	for i := range result.Units {
		u := &result.Units[i]
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal unit %s: %w", u.ID, err)
		}
		snaps = append(snaps, models.UnitSnapshot{
			RunID:       run.ID,
			SiteID:      run.SiteID,
			UnitID:      u.ID,
			Fingerprint: identity.Fingerprint(u),
			Price:       u.Price,
			Data:        data,
			ScrapedAt:   result.GeneratedAt,
		})
	}
	return o.store.SaveSnapshots(snaps)
}

// publish pushes the result to the optional sinks. Failures are counted on
// the run but do not fail it. Unseen units are only deactivated after a
// complete crawl, and layout-only units of a degraded run are not written.
func (o *Orchestrator) publish(ctx context.Context, run *models.ScrapeRun, out *ParseOutput, complete bool) {
	result := &out.Result
	if o.pgStore != nil {
		err := o.pgStore.UpsertDevelopment(ctx, run.SiteID, &result.Development, run.RunUUID)
		if err == nil && (complete || !out.Crawl.LayoutOnly) {
			err = o.pgStore.SyncUnits(ctx, result.Development.ID, result.Units, run.RunUUID, result.GeneratedAt, complete)
		}
		if err != nil {
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Postgres sync error: %v", err), run.SiteID)
		}
	}

	if o.exporter != nil {
		key, err := o.exporter.Export(ctx, run.SiteID, result, run.RunUUID)
		if err != nil {
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("S3 export error: %v", err), run.SiteID)
			return
		}
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Exported result to %s", key), run.SiteID)
	}
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	o.store.Log(&runID, level, message, siteID)
}
