package models

import (
	"encoding/json"

	"newbuild_scrooper/fields"
)

// CandidateSource tells where a UnitCandidate was read from.
type CandidateSource string

const (
	SourceLayout CandidateSource = "layout"
	SourceCard   CandidateSource = "card"
)

// UnitCandidate is an unvalidated, per-source partial view of a unit.
type UnitCandidate struct {
	Source      CandidateSource
	ID          string
	URL         string
	Rooms       int // 0 = studio
	Area        float64
	Floor       int
	FloorsTotal int
	Price       int
	Address     *string
	YearBuilt   *int
	Status      *string
	Images      []string
}

// Acceptable reports whether the candidate passes the zero area/price gate.
func (c *UnitCandidate) Acceptable() bool {
	return c.Area > 0 && c.Price > 0
}

// UnitRecord is the reconciled view of one unit. PricePerM2 is derived and
// only exposed in the serialized form.
type UnitRecord struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Rooms       int      `json:"rooms"`
	Area        float64  `json:"area"`
	Floor       int      `json:"floor"`
	FloorsTotal int      `json:"floors_total"`
	Price       int      `json:"price"`
	Address     *string  `json:"address"`
	YearBuilt   *int     `json:"year_built"`
	HouseStatus *string  `json:"house_status"`
	Images      []string `json:"images"`
}

func (u UnitRecord) PricePerM2() int {
	return fields.PricePerM2(u.Price, u.Area)
}

func (u UnitRecord) MarshalJSON() ([]byte, error) {
	type plain UnitRecord
	images := u.Images
	if images == nil {
		images = []string{}
	}
	p := plain(u)
	p.Images = images
	return json.Marshal(struct {
		plain
		PricePerM2 int `json:"price_per_m2"`
	}{p, u.PricePerM2()})
}

// NewUnitRecord materializes a record from a candidate. It returns false
// when the candidate fails the acceptance gate.
func NewUnitRecord(c UnitCandidate) (UnitRecord, bool) {
	if !c.Acceptable() {
		return UnitRecord{}, false
	}
	return UnitRecord{
		ID:          c.ID,
		URL:         c.URL,
		Rooms:       c.Rooms,
		Area:        c.Area,
		Floor:       c.Floor,
		FloorsTotal: c.FloorsTotal,
		Price:       c.Price,
		Address:     c.Address,
		YearBuilt:   c.YearBuilt,
		HouseStatus: c.Status,
		Images:      append([]string(nil), c.Images...),
	}, true
}
