package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	// The parse finished but the listing was not fully crawled.
	RunStatusPartial RunStatus = "partial"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ScrapeRun tracks one parse of one development.
type ScrapeRun struct {
	ID           int64      `json:"id" db:"id"`
	RunUUID      uuid.UUID  `json:"run_uuid" db:"run_uuid"`
	SiteID       string     `json:"site_id" db:"site_id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	PagesVisited int        `json:"pages_visited" db:"pages_visited"`
	UnitsFound   int        `json:"units_found" db:"units_found"`
	UnitsNew     int        `json:"units_new" db:"units_new"`
	UnitsChanged int        `json:"units_changed" db:"units_changed"`
	UnitsGone    int        `json:"units_gone" db:"units_gone"`
	EnrichFailed int        `json:"enrich_failed" db:"enrich_failed"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

type ScrapeLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	SiteID    string    `json:"site_id" db:"site_id"`
}

// UnitSnapshot is a stored copy of a unit as seen in a given run.
type UnitSnapshot struct {
	ID          int64     `json:"id" db:"id"`
	RunID       int64     `json:"run_id" db:"run_id"`
	SiteID      string    `json:"site_id" db:"site_id"`
	UnitID      string    `json:"unit_id" db:"unit_id"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Price       int       `json:"price" db:"price"`
	Data        []byte    `json:"data" db:"data"`
	ScrapedAt   time.Time `json:"scraped_at" db:"scraped_at"`
}

// SiteStats summarizes the run history of one site.
type SiteStats struct {
	SiteID        string     `json:"site_id" db:"site_id"`
	LastRunAt     *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus string     `json:"last_run_status" db:"last_run_status"`
	TotalUnits    int        `json:"total_units" db:"total_units"`
	TotalRuns     int        `json:"total_runs" db:"total_runs"`
	SuccessRate   float64    `json:"success_rate" db:"success_rate"`
}

// PricePoint is one observed price of a unit.
type PricePoint struct {
	UnitID      string    `json:"unit_id" db:"unit_id"`
	Price       int       `json:"price" db:"price"`
	PricePerM2  int       `json:"price_per_m2" db:"price_per_m2"`
	RunID       uuid.UUID `json:"run_id" db:"run_id"`
	EffectiveAt time.Time `json:"effective_at" db:"effective_at"`
}
