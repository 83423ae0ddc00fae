package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"newbuild_scrooper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		run_uuid TEXT NOT NULL,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_visited INTEGER DEFAULT 0,
		units_found INTEGER DEFAULT 0,
		units_new INTEGER DEFAULT 0,
		units_changed INTEGER DEFAULT 0,
		units_gone INTEGER DEFAULT 0,
		enrich_failed INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS unit_snapshots (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		site_id TEXT NOT NULL,
		unit_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		price INTEGER,
		data JSON,
		scraped_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES scrape_runs(id)
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_units INTEGER,
		total_runs INTEGER,
		success_rate REAL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_site ON scrape_runs(site_id, status, started_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON unit_snapshots(run_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_unit ON unit_snapshots(site_id, unit_id, scraped_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	if run.RunUUID == uuid.Nil {
		run.RunUUID = uuid.New()
	}
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (run_uuid, site_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.RunUUID.String(), run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, pages_visited = ?, units_found = ?,
			units_new = ?, units_changed = ?, units_gone = ?, enrich_failed = ?,
			errors_count = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesVisited, run.UnitsFound,
		run.UnitsNew, run.UnitsChanged, run.UnitsGone, run.EnrichFailed,
		run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ScrapeRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_uuid, site_id, started_at, finished_at, status, pages_visited, units_found,
			units_new, units_changed, units_gone, enrich_failed, errors_count, error_message
		FROM scrape_runs WHERE id = ?`, id)

	var run models.ScrapeRun
	var runUUID string
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &runUUID, &run.SiteID, &run.StartedAt, &finishedAt, &run.Status,
		&run.PagesVisited, &run.UnitsFound, &run.UnitsNew, &run.UnitsChanged, &run.UnitsGone,
		&run.EnrichFailed, &run.ErrorsCount, &run.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.RunUUID, err = uuid.Parse(runUUID); err != nil {
		return nil, fmt.Errorf("run %d: bad uuid: %w", id, err)
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// =============================================================================
// Logs
// =============================================================================

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) GetLogs(runID int64) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, site_id
		FROM scrape_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		var rid sql.NullInt64
		if err := rows.Scan(&l.ID, &rid, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		if rid.Valid {
			l.RunID = &rid.Int64
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Unit snapshots
// =============================================================================

// SaveSnapshots stores every unit seen in a run in one transaction.
func (s *SQLiteStore) SaveSnapshots(snaps []models.UnitSnapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO unit_snapshots (run_id, site_id, unit_id, fingerprint, price, data, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snaps {
		if _, err := stmt.Exec(snap.RunID, snap.SiteID, snap.UnitID, snap.Fingerprint,
			snap.Price, string(snap.Data), snap.ScrapedAt); err != nil {
			return fmt.Errorf("snapshot %s: %w", snap.UnitID, err)
		}
	}
	return tx.Commit()
}

// LastFingerprints returns unit id -> fingerprint from the latest completed
// run of the site. It is empty when the site has never completed a run.
func (s *SQLiteStore) LastFingerprints(siteID string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT unit_id, fingerprint FROM unit_snapshots
		WHERE run_id = (
			SELECT id FROM scrape_runs
			WHERE site_id = ? AND status = 'completed'
			ORDER BY started_at DESC, id DESC LIMIT 1
		)`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prints := make(map[string]string)
	for rows.Next() {
		var unitID, fp string
		if err := rows.Scan(&unitID, &fp); err != nil {
			return nil, err
		}
		prints[unitID] = fp
	}
	return prints, rows.Err()
}

func (s *SQLiteStore) GetSnapshotsForUnit(siteID, unitID string) ([]models.UnitSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, site_id, unit_id, fingerprint, price, data, scraped_at
		FROM unit_snapshots WHERE site_id = ? AND unit_id = ? ORDER BY scraped_at, id`, siteID, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.UnitSnapshot
	for rows.Next() {
		var snap models.UnitSnapshot
		var data sql.NullString
		if err := rows.Scan(&snap.ID, &snap.RunID, &snap.SiteID, &snap.UnitID,
			&snap.Fingerprint, &snap.Price, &data, &snap.ScrapedAt); err != nil {
			return nil, err
		}
		snap.Data = []byte(data.String)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// =============================================================================
// Site stats
// =============================================================================

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_units, total_runs, success_rate)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC, id DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC, id DESC LIMIT 1),
			(SELECT COUNT(DISTINCT unit_id) FROM unit_snapshots WHERE site_id = ?),
			(SELECT COUNT(*) FROM scrape_runs WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scrape_runs WHERE site_id = ?)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_units = excluded.total_units,
			total_runs = excluded.total_runs,
			success_rate = excluded.success_rate`,
		siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetSiteStats(siteID string) (*models.SiteStats, error) {
	row := s.db.QueryRow(`
		SELECT site_id, last_run_at, last_run_status, total_units, total_runs, COALESCE(success_rate, 0)
		FROM site_stats WHERE site_id = ?`, siteID)

	var st models.SiteStats
	var lastRunAt sql.NullTime
	var lastStatus sql.NullString
	err := row.Scan(&st.SiteID, &lastRunAt, &lastStatus, &st.TotalUnits, &st.TotalRuns, &st.SuccessRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRunAt.Valid {
		st.LastRunAt = &lastRunAt.Time
	}
	st.LastRunStatus = lastStatus.String
	return &st, nil
}
