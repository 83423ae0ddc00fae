package scraper

import (
	"regexp"

	"newbuild_scrooper/fields"
	"newbuild_scrooper/models"
)

// layoutRegex matches one entry of the layout catalogue embedded in the
// landing page. Capture order: rooms, offer url, house name, finish date,
// total area, price, offer id, layout image url.
var layoutRegex = regexp.MustCompile(`\{"roomCount":"([^"]+)","offerUrl":"([^"]+)","houseName":"([^"]+)","finishDate":"([^"]+)","totalArea":"([^"]+)","priceDisplay":"[^"]+","price":(\d+),[^}]*"offerId":(\d+),"layoutImageUrl":"([^"]+)"\}`)

// ExtractLayout reads the layout catalogue. Entries come back in document
// order and are not validated; the caller applies the acceptance gate.
func ExtractLayout(html string, dev *models.Development) []models.UnitCandidate {
	matches := layoutRegex.FindAllStringSubmatch(html, -1)
	candidates := make([]models.UnitCandidate, 0, len(matches))

	for _, m := range matches {
		roomCount, offerURL, houseName, finishDate := m[1], m[2], m[3], m[4]
		totalArea, price, offerID, imageURL := m[5], m[6], m[7], m[8]

		address := dev.Address
		if code, ok := fields.BuildingCode(houseName); ok {
			address = dev.BuildingAddress(code)
		}

		candidates = append(candidates, models.UnitCandidate{
			Source:    models.SourceLayout,
			ID:        offerID,
			URL:       fields.DecodeURL(offerURL),
			Rooms:     fields.Rooms(roomCount),
			Area:      fields.Area(totalArea),
			Price:     fields.SafeInt(price, 0),
			Address:   address,
			YearBuilt: dev.YearBuilt,
			Status:    strPtr(finishDate),
			Images:    []string{fields.DecodeURL(imageURL)},
		})
	}
	return candidates
}

// indexLayout keys candidates by id. The first entry for an id wins.
func indexLayout(candidates []models.UnitCandidate) map[string]models.UnitCandidate {
	byID := make(map[string]models.UnitCandidate, len(candidates))
	for _, c := range candidates {
		if _, seen := byID[c.ID]; !seen {
			byID[c.ID] = c
		}
	}
	return byID
}
