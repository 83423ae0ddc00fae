package scraper

import (
	"time"

	"newbuild_scrooper/models"
)

// Assemble packages the development and its units into the run output.
func Assemble(dev models.Development, units []models.UnitRecord, now time.Time) models.ParseResult {
	out := make([]models.UnitRecord, len(units))
	copy(out, units)
	return models.ParseResult{
		Development: dev,
		Units:       out,
		UnitsCount:  len(out),
		GeneratedAt: now,
	}
}
