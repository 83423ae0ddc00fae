package scraper

import (
	"errors"
	"testing"
)

func TestExtractDevelopmentID(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"listing link", `<a href="/cat.php?newobject%5B0%5D=42&p=1">`, "42"},
		{"json array", `{"newobject":[314],"region":1}`, "314"},
		{"quoted key", `var cfg = {'newobject_id': 77};`, "77"},
		{"typed object", `{"id":5150,"name":"x","type":"newobject"}`, "5150"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDevelopmentID(tt.html)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestExtractDevelopmentIDMissing(t *testing.T) {
	_, err := ExtractDevelopmentID(`<html><body>Страница не найдена</body></html>`)
	if !errors.Is(err, ErrIdentifierNotFound) {
		t.Fatalf("expected ErrIdentifierNotFound, got %v", err)
	}
}

func TestListingURL(t *testing.T) {
	got := ListingURL("https://www.cian.ru/cat.php?offer_type=flat&newobject%5B0%5D={id}", "42")
	want := "https://www.cian.ru/cat.php?offer_type=flat&newobject%5B0%5D=42"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestExtractDevelopment(t *testing.T) {
	html := string(loadFixture(t, "landing.html"))
	dev := ExtractDevelopment(html, "42", "Fallback name", "https://complex.test/")

	if dev.ID != "42" || dev.URL != "https://complex.test/" {
		t.Fatalf("unexpected id/url %s %s", dev.ID, dev.URL)
	}
	if dev.Name != "Complex" {
		t.Fatalf("expected display name Complex, got %s", dev.Name)
	}

	strs := map[string]*string{
		"status":         dev.Status,
		"address":        dev.Address,
		"developer":      dev.Developer,
		"building_class": dev.BuildingClass,
		"building_type":  dev.BuildingType,
		"floors":         dev.Floors,
		"finishing":      dev.Finishing,
		"parking":        dev.Parking,
	}
	wantStrs := map[string]string{
		"status":         "Строится",
		"address":        "Street",
		"developer":      "DevCo",
		"building_class": "Комфорт",
		"building_type":  "Монолитно-кирпичный",
		"floors":         "9-17",
		"finishing":      "Чистовая",
		"parking":        "Подземный паркинг",
	}
	for field, want := range wantStrs {
		got := strs[field]
		if got == nil || *got != want {
			t.Errorf("%s: expected %q, got %v", field, want, got)
		}
	}

	ints := map[string]*int{
		"price_min":        dev.PriceMin,
		"price_max":        dev.PriceMax,
		"price_per_m2_min": dev.PricePerM2Min,
		"price_per_m2_max": dev.PricePerM2Max,
		"year_built":       dev.YearBuilt,
		"buildings_count":  dev.BuildingCount,
	}
	wantInts := map[string]int{
		"price_min":        4500000,
		"price_max":        12000000,
		"price_per_m2_min": 95000,
		"price_per_m2_max": 180000,
		"year_built":       2026,
		"buildings_count":  3,
	}
	for field, want := range wantInts {
		got := ints[field]
		if got == nil || *got != want {
			t.Errorf("%s: expected %d, got %v", field, want, got)
		}
	}

	if dev.CeilingHeight == nil || *dev.CeilingHeight != 2.85 {
		t.Errorf("expected ceiling height 2.85, got %v", dev.CeilingHeight)
	}
}

func TestExtractDevelopmentSparse(t *testing.T) {
	html := `<script>{"displayName":"\u00abБристоль\u00bb","floor":{"minFloors":12,"maxFloors":12},"minPrice":"3900000.0"}</script>`
	dev := ExtractDevelopment(html, "1", "ЖК", "u")

	if dev.Name != "«Бристоль»" {
		t.Fatalf("expected unescaped name, got %s", dev.Name)
	}
	if dev.Floors == nil || *dev.Floors != "12" {
		t.Fatalf("expected single floors value, got %v", dev.Floors)
	}
	if dev.PriceMin == nil || *dev.PriceMin != 3900000 {
		t.Fatalf("expected fallback min price, got %v", dev.PriceMin)
	}
	if dev.Address != nil || dev.Status != nil || dev.PriceMax != nil || dev.CeilingHeight != nil {
		t.Fatalf("expected absent fields to stay nil: %+v", dev)
	}
}
