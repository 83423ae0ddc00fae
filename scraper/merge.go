package scraper

import (
	"newbuild_scrooper/fields"
	"newbuild_scrooper/models"
)

// Merge reconciles an accepted card with the layout entry of the same id
// and the development defaults. For each optional field the card wins over
// the layout, and the layout wins over the development.
func Merge(card models.UnitCandidate, layoutByID map[string]models.UnitCandidate, dev *models.Development) models.UnitRecord {
	layout, hasLayout := layoutByID[card.ID]

	var (
		layoutAddress *string
		layoutStatus  *string
		layoutYear    *int
		images        []string
	)
	if hasLayout {
		layoutAddress = layout.Address
		layoutStatus = layout.Status
		layoutYear = layout.YearBuilt
		images = append([]string(nil), layout.Images...)
	}

	return models.UnitRecord{
		ID:          card.ID,
		URL:         card.URL,
		Rooms:       card.Rooms,
		Area:        card.Area,
		Floor:       card.Floor,
		FloorsTotal: card.FloorsTotal,
		Price:       card.Price,
		Address:     firstPresent(card.Address, layoutAddress, dev.Address),
		HouseStatus: fields.NormalizeStatus(firstPresent(card.Status, layoutStatus, dev.Status)),
		YearBuilt:   firstPresent(layoutYear, dev.YearBuilt),
		Images:      images,
	}
}

// firstPresent returns a copy of the first value that is set and not the
// zero value, or nil.
func firstPresent[T comparable](vals ...*T) *T {
	var zero T
	for _, v := range vals {
		if v != nil && *v != zero {
			out := *v
			return &out
		}
	}
	return nil
}
