package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"newbuild_scrooper/browser"
	"newbuild_scrooper/config"
	"newbuild_scrooper/document"
	"newbuild_scrooper/logging"
	"newbuild_scrooper/scheduler"
	"newbuild_scrooper/scraper"
	"newbuild_scrooper/storage"
)

var (
	runOnce   = flag.Bool("once", false, "Parse every site once, print the results as JSON and exit")
	siteID    = flag.String("site", "", "Only parse this site (with -once)")
	replayDir = flag.String("replay", "", "Serve pages from a directory of saved pages instead of a live browser")
	status    = flag.Bool("status", false, "Print per-site run statistics from the local database and exit")
	history   = flag.String("history", "", "Print the Postgres price history of this unit id and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	os.Exit(run())
}

// run returns the process exit code so that deferred cleanup happens before
// main exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogMaxMB)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	// stdout carries the JSON result in -once mode
	if *runOnce {
		var out io.Writer = os.Stderr
		if logFile != nil {
			out = io.MultiWriter(os.Stderr, logFile)
		}
		log.SetOutput(out)
	}

	log.Println("Starting newbuild_scrooper...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for _, id := range cfg.SiteIDs() {
		log.Printf("  - %s (%s)", cfg.Sites[id].Name, id)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Printf("Failed to open SQLite: %v", err)
		return 1
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *status {
		return printStatus(cfg, sqliteStore)
	}

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, browserOpener(*replayDir))

	if cfg.Postgres.DBURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Postgres.DBURL)
		if err != nil {
			log.Printf("Failed to connect to Postgres: %v", err)
			return 1
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Printf("Failed to prepare Postgres schema: %v", err)
			return 1
		}
		orchestrator.SetPostgres(pgStore)
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))

		if *history != "" {
			return printHistory(ctx, pgStore, *history)
		}
	} else if *history != "" {
		log.Println("-history needs DATABASE_URL")
		return 1
	}

	if cfg.S3.Enabled() {
		exporter, err := storage.NewS3Exporter(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Printf("Failed to set up S3 export: %v", err)
			return 1
		}
		orchestrator.SetExporter(exporter)
		log.Printf("Exporting results to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	if *runOnce {
		return printOnce(ctx, orchestrator, *siteID)
	}

	sched := scheduler.New(cfg.Scheduler, orchestrator)
	if err := sched.Start(ctx); err != nil {
		log.Printf("Failed to start scheduler: %v", err)
		return 1
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
	return 0
}

func printOnce(ctx context.Context, o *scraper.Orchestrator, site string) int {
	var results any
	if site != "" {
		result, err := o.RunSite(ctx, site)
		if err != nil {
			log.Printf("Parse failed: %v", err)
			return 1
		}
		results = result
	} else {
		all := o.RunAll(ctx)
		if len(all) == 0 {
			log.Println("No site produced a result")
			return 1
		}
		results = all
	}

	data, err := storage.MarshalResult(results)
	if err != nil {
		log.Printf("Failed to encode results: %v", err)
		return 1
	}
	os.Stdout.Write(data)
	return 0
}

func printStatus(cfg *config.Config, store *storage.SQLiteStore) int {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tLAST RUN\tSTATUS\tUNITS\tRUNS\tSUCCESS")
	for _, id := range cfg.SiteIDs() {
		st, err := store.GetSiteStats(id)
		if err != nil {
			log.Printf("Failed to read stats for %s: %v", id, err)
			return 1
		}
		if st == nil {
			fmt.Fprintf(w, "%s\tnever\t-\t0\t0\t-\n", id)
			continue
		}
		lastRun := "never"
		if st.LastRunAt != nil {
			lastRun = st.LastRunAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.0f%%\n",
			id, lastRun, st.LastRunStatus, st.TotalUnits, st.TotalRuns, st.SuccessRate*100)
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

func printHistory(ctx context.Context, store *storage.PostgresStore, unitID string) int {
	points, err := store.GetPriceHistory(ctx, unitID)
	if err != nil {
		log.Printf("Failed to read price history: %v", err)
		return 1
	}
	if len(points) == 0 {
		fmt.Printf("No price history for unit %s\n", unitID)
		return 0
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EFFECTIVE\tPRICE\tPER M2\tRUN")
	for _, p := range points {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			p.EffectiveAt.Local().Format("2006-01-02 15:04"), p.Price, p.PricePerM2, p.RunID)
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

func browserOpener(replayDir string) scraper.BrowserOpener {
	if replayDir != "" {
		return func(config.CrawlConfig) (document.Browser, func(), error) {
			b, err := document.LoadReplay(replayDir)
			if err != nil {
				return nil, nil, err
			}
			return b, func() {}, nil
		}
	}
	return func(cfg config.CrawlConfig) (document.Browser, func(), error) {
		s, err := browser.Open(browser.Options{
			Headless:    cfg.Headless,
			UserAgent:   cfg.UserAgent,
			SettleState: cfg.SettleState,
			Timeout:     cfg.NavTimeout,
			ProxyURL:    cfg.ProxyURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
