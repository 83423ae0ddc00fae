package models

import "time"

// ParseResult is the output of one run for one development.
type ParseResult struct {
	Development Development  `json:"development"`
	Units       []UnitRecord `json:"units"`
	UnitsCount  int          `json:"units_count"`
	GeneratedAt time.Time    `json:"generated_at"`
}
