package scraper

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"newbuild_scrooper/fields"
	"newbuild_scrooper/models"
)

// ErrIdentifierNotFound means the landing page does not expose the
// development id. Nothing downstream can run without it.
var ErrIdentifierNotFound = errors.New("development id not found on landing page")

var developmentIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`newobject%5B0%5D=(\d+)`),
	regexp.MustCompile(`"newobject":\[(\d+)\]`),
	regexp.MustCompile(`newobject_id["']?:\s*(\d+)`),
	regexp.MustCompile(`"id":(\d+).*?"type":"newobject"`),
}

var (
	displayNameRegex   = regexp.MustCompile(`"displayName":"([^"]+)"`)
	buildingStatusRe   = regexp.MustCompile(`"buildingStatusInfo":\{[^}]*"name":"([^"]+)"`)
	streetAddressRegex = regexp.MustCompile(`class="street-address">([^<]+)<`)
	developerRegex     = regexp.MustCompile(`"builders":\[\{"[^}]*"name":"([^"]+)"`)
	devMinPriceRegex   = regexp.MustCompile(`"fromDeveloperMinPrice":(\d+)`)
	minPriceRegex      = regexp.MustCompile(`"minPrice":"([\d.]+)"`)
	devMaxPriceRegex   = regexp.MustCompile(`"fromDeveloperMaxPrice":(\d+)`)
	maxPriceRegex      = regexp.MustCompile(`"maxPrice":"([\d.]+)"`)
	minPerMeterRegex   = regexp.MustCompile(`"minPriceForMeterFromDeveloperValue":(\d+)`)
	perMeterDisplayRe  = regexp.MustCompile(`"priceForMeterFromDeveloperDisplay":"([^"]*)"`)
	rubleAmountRegex   = regexp.MustCompile(`(\d[\d\s]*\d)\s*₽`)
	completionYearRe   = regexp.MustCompile(`"completionYear":(\d{4})`)
	buildingClassRegex = regexp.MustCompile(`"newbuildingClass":"([^"]+)"`)
	materialsRegex     = regexp.MustCompile(`"materials":\["([^"]+)"`)
	floorsRangeRegex   = regexp.MustCompile(`"floor":\{"minFloors":(\d+),"maxFloors":(\d+)\}`)
	specsRegex         = regexp.MustCompile(`"shortSpecifications":\[(.+?)\]`)
	specBuildingsRegex = regexp.MustCompile(`"title":"Корпуса","value":"(\d+)"`)
	specFinishingRegex = regexp.MustCompile(`"title":"Отделка","value":"([^"]+)"`)
	specCeilingRegex   = regexp.MustCompile(`"title":"Потолки","value":"([^"]+)"`)
	parkingRegex       = regexp.MustCompile(`"parking":\[\{"[^}]*"title":"([^"]+)"`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)

	jsonTextReplacer = strings.NewReplacer(
		`\u00ab`, "«",
		`\u00bb`, "»",
		`\u00a0`, " ",
		`\u20bd`, "₽",
		"\u00a0", " ",
	)
)

// ExtractDevelopmentID finds the development id in the landing page.
func ExtractDevelopmentID(html string) (string, error) {
	for _, re := range developmentIDPatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			return m[1], nil
		}
	}
	return "", ErrIdentifierNotFound
}

// ListingURL fills the development id into a listing url template.
func ListingURL(template, developmentID string) string {
	return strings.ReplaceAll(template, "{id}", developmentID)
}

// ExtractDevelopment reads the development attributes embedded in the
// landing page. Attributes that are not found stay nil.
func ExtractDevelopment(html, id, name, url string) models.Development {
	dev := models.Development{ID: id, Name: name, URL: url}

	if m := displayNameRegex.FindStringSubmatch(html); m != nil {
		dev.Name = jsonTextReplacer.Replace(m[1])
	}
	if m := buildingStatusRe.FindStringSubmatch(html); m != nil {
		dev.Status = fields.NormalizeStatus(&m[1])
	}
	if m := streetAddressRegex.FindStringSubmatch(html); m != nil {
		dev.Address = strPtr(strings.TrimSpace(m[1]))
	}
	if m := developerRegex.FindStringSubmatch(html); m != nil {
		dev.Developer = strPtr(m[1])
	}

	if m := devMinPriceRegex.FindStringSubmatch(html); m != nil {
		dev.PriceMin = intPtr(fields.SafeInt(m[1], 0))
	} else if m := minPriceRegex.FindStringSubmatch(html); m != nil {
		dev.PriceMin = intPtr(fields.SafeInt(m[1], 0))
	}
	if m := devMaxPriceRegex.FindStringSubmatch(html); m != nil {
		dev.PriceMax = intPtr(fields.SafeInt(m[1], 0))
	} else if m := maxPriceRegex.FindStringSubmatch(html); m != nil {
		dev.PriceMax = intPtr(fields.SafeInt(m[1], 0))
	}

	if m := minPerMeterRegex.FindStringSubmatch(html); m != nil {
		dev.PricePerM2Min = intPtr(fields.SafeInt(m[1], 0))
	}
	if m := perMeterDisplayRe.FindStringSubmatch(html); m != nil {
		display := jsonTextReplacer.Replace(m[1])
		if amount := rubleAmountRegex.FindStringSubmatch(display); amount != nil {
			digits := whitespaceRegex.ReplaceAllString(amount[1], "")
			dev.PricePerM2Max = intPtr(fields.SafeInt(digits, 0))
		}
	}

	if m := completionYearRe.FindStringSubmatch(html); m != nil {
		dev.YearBuilt = intPtr(fields.SafeInt(m[1], 0))
	}
	if m := buildingClassRegex.FindStringSubmatch(html); m != nil {
		dev.BuildingClass = strPtr(m[1])
	}
	if m := materialsRegex.FindStringSubmatch(html); m != nil {
		dev.BuildingType = strPtr(capitalize(m[1]))
	}
	if m := floorsRangeRegex.FindStringSubmatch(html); m != nil {
		floors := m[1]
		if m[1] != m[2] {
			floors = m[1] + "-" + m[2]
		}
		dev.Floors = &floors
	}

	if specs := specsRegex.FindStringSubmatch(html); specs != nil {
		if m := specBuildingsRegex.FindStringSubmatch(specs[1]); m != nil {
			dev.BuildingCount = intPtr(fields.SafeInt(m[1], 0))
		}
		if m := specFinishingRegex.FindStringSubmatch(specs[1]); m != nil {
			dev.Finishing = strPtr(m[1])
		}
		if m := specCeilingRegex.FindStringSubmatch(specs[1]); m != nil {
			h := fields.SafeFloat(m[1], 0)
			dev.CeilingHeight = &h
		}
	}

	if m := parkingRegex.FindStringSubmatch(html); m != nil {
		dev.Parking = strPtr(m[1])
	}

	return dev
}

// capitalize upper-cases the first letter and lower-cases the rest,
// using Russian casing rules.
func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	head := cases.Upper(language.Russian).String(string(runes[:1]))
	tail := cases.Lower(language.Russian).String(string(runes[1:]))
	return head + tail
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(i int) *int {
	return &i
}
