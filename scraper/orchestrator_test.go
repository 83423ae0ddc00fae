package scraper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"newbuild_scrooper/config"
	"newbuild_scrooper/document"
	"newbuild_scrooper/models"
	"newbuild_scrooper/storage"
)

func newTestOrchestrator(t *testing.T, pages map[string]string) (*Orchestrator, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Browser:  config.BrowserConfig{NavTimeout: time.Second},
		MaxPages: 50,
		Sites: map[string]*config.SiteConfig{
			"complex": {
				ID:         "complex",
				Name:       "Complex",
				LandingURL: "https://complex.test/",
				ListingURL: testListingTemplate,
				BaseURL:    "https://www.cian.ru",
			},
		},
	}
	open := func(config.CrawlConfig) (document.Browser, func(), error) {
		return document.NewStaticBrowser(pages), func() {}, nil
	}
	return NewOrchestrator(cfg, store, open), store
}

func TestRunSiteRecordsRunAndSnapshots(t *testing.T) {
	o, store := newTestOrchestrator(t, fixturePages(t, "listing_single.html", nil))
	ctx := context.Background()

	result, err := o.RunSite(ctx, "complex")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.UnitsCount != 1 {
		t.Fatalf("expected 1 unit, got %d", result.UnitsCount)
	}

	run, err := store.GetRun(1)
	if err != nil || run == nil {
		t.Fatalf("expected run 1, got %v (%v)", run, err)
	}
	if run.Status != models.RunStatusCompleted || run.FinishedAt == nil {
		t.Fatalf("expected completed run, got %+v", run)
	}
	if run.UnitsFound != 1 || run.UnitsNew != 1 || run.PagesVisited != 1 || run.EnrichFailed != 1 {
		t.Fatalf("unexpected run counters %+v", run)
	}

	logs, err := store.GetLogs(run.ID)
	if err != nil || len(logs) == 0 {
		t.Fatalf("expected run logs, got %d (%v)", len(logs), err)
	}

	// a second identical run sees no changes
	if _, err := o.RunSite(ctx, "complex"); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, _ := store.GetRun(2)
	if second.UnitsNew != 0 || second.UnitsChanged != 0 || second.UnitsGone != 0 {
		t.Fatalf("expected no changes on second run, got %+v", second)
	}

	snaps, err := store.GetSnapshotsForUnit("complex", "7")
	if err != nil || len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots for unit 7, got %d (%v)", len(snaps), err)
	}

	stats, err := store.GetSiteStats("complex")
	if err != nil || stats == nil {
		t.Fatalf("expected site stats, got %v (%v)", stats, err)
	}
	if stats.TotalRuns != 2 || stats.TotalUnits != 1 || stats.SuccessRate != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestDegradedRunKeepsBaseline(t *testing.T) {
	pages := fixturePages(t, "listing_single.html", nil)
	listingURL := ListingURL(testListingTemplate, "42")
	listing := pages[listingURL]
	o, store := newTestOrchestrator(t, pages)
	ctx := context.Background()

	if _, err := o.RunSite(ctx, "complex"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	delete(pages, listingURL)
	result, err := o.RunSite(ctx, "complex")
	if err != nil {
		t.Fatalf("degraded run should still return a result: %v", err)
	}
	if result.UnitsCount == 0 {
		t.Fatalf("expected layout units in the degraded result")
	}
	degraded, _ := store.GetRun(2)
	if degraded.Status != models.RunStatusPartial || degraded.ErrorMessage == "" {
		t.Fatalf("expected partial run with a reason, got %+v", degraded)
	}
	if degraded.UnitsNew != 0 || degraded.UnitsChanged != 0 || degraded.UnitsGone != 0 {
		t.Fatalf("degraded run must not report changes, got %+v", degraded)
	}
	if snaps, _ := store.GetSnapshotsForUnit("complex", "9"); len(snaps) != 0 {
		t.Fatalf("layout-only unit 9 must not be snapshotted, got %d", len(snaps))
	}

	pages[listingURL] = listing
	if _, err := o.RunSite(ctx, "complex"); err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	third, _ := store.GetRun(3)
	if third.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed run, got %+v", third)
	}
	if third.UnitsNew != 0 || third.UnitsChanged != 0 || third.UnitsGone != 0 {
		t.Fatalf("expected no changes against the first run, got %+v", third)
	}

	snaps, err := store.GetSnapshotsForUnit("complex", "7")
	if err != nil || len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots for unit 7, got %d (%v)", len(snaps), err)
	}
	stats, err := store.GetSiteStats("complex")
	if err != nil || stats == nil {
		t.Fatalf("expected site stats, got %v (%v)", stats, err)
	}
	if stats.TotalRuns != 3 || stats.TotalUnits != 1 || stats.SuccessRate >= 1 {
		t.Fatalf("degraded run must not count as a success, got %+v", stats)
	}
}

func TestInterruptedRunIsPartial(t *testing.T) {
	pages := fixturePages(t, "listing_single.html", nil)
	o, store := newTestOrchestrator(t, pages)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.openBrowser = func(config.CrawlConfig) (document.Browser, func(), error) {
		return &cancellingBrowser{
			StaticBrowser: document.NewStaticBrowser(pages),
			url:           ListingURL(testListingTemplate, "42"),
			cancel:        cancel,
		}, func() {}, nil
	}

	if _, err := o.RunSite(ctx, "complex"); err != nil {
		t.Fatalf("interrupted run should still return a result: %v", err)
	}
	run, _ := store.GetRun(1)
	if run.Status != models.RunStatusPartial {
		t.Fatalf("expected partial run, got %+v", run)
	}
	if prints, _ := store.LastFingerprints("complex"); len(prints) != 0 {
		t.Fatalf("interrupted run must not become the baseline, got %v", prints)
	}
}

func TestRunSiteMarksFailedRun(t *testing.T) {
	o, store := newTestOrchestrator(t, map[string]string{
		"https://complex.test/": "<html><body>maintenance</body></html>",
	})

	_, err := o.RunSite(context.Background(), "complex")
	if !errors.Is(err, ErrIdentifierNotFound) {
		t.Fatalf("expected ErrIdentifierNotFound, got %v", err)
	}

	run, _ := store.GetRun(1)
	if run == nil || run.Status != models.RunStatusFailed || run.ErrorMessage == "" {
		t.Fatalf("expected failed run with message, got %+v", run)
	}

	if results := o.RunAll(context.Background()); len(results) != 0 {
		t.Fatalf("expected no results from failing site, got %d", len(results))
	}
}

func TestRunSiteUnknown(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	if _, err := o.RunSite(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown site")
	}
}
