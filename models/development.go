package models

// Development is the residential complex the units belong to. It is built
// once from the landing page and not modified afterwards.
type Development struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Status        *string  `json:"status"`
	Address       *string  `json:"address"`
	Developer     *string  `json:"developer"`
	PriceMin      *int     `json:"price_min"`
	PriceMax      *int     `json:"price_max"`
	PricePerM2Min *int     `json:"price_per_m2_min"`
	PricePerM2Max *int     `json:"price_per_m2_max"`
	BuildingClass *string  `json:"building_class"`
	Floors        *string  `json:"floors"`
	BuildingCount *int     `json:"buildings_count"`
	BuildingType  *string  `json:"building_type"`
	CeilingHeight *float64 `json:"ceiling_height"`
	Finishing     *string  `json:"finishing"`
	Parking       *string  `json:"parking"`
	YearBuilt     *int     `json:"year_built"`
}

// BuildingAddress is the development address qualified by a building code.
func (d *Development) BuildingAddress(code string) *string {
	if d.Address == nil {
		return nil
	}
	addr := *d.Address + ", " + code
	return &addr
}
