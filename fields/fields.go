// Package fields turns the localized text fragments found on listing pages
// into typed values. Every function is total: missing or malformed input
// yields a zero value (or the caller's default), never an error.
package fields

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	StatusCompleted = "Сдан"
	StatusBuilding  = "Строится"

	studioMarker = "студия"
)

var (
	digitsRegex     = regexp.MustCompile(`(\d+)`)
	numberRegex     = regexp.MustCompile(`\d+(?:[,.]\d+)?`)
	cardAreaRegex   = regexp.MustCompile(`(\d+[,.]?\d*)\s*м²`)
	floorPairRegex  = regexp.MustCompile(`(\d+)\s*[/из]+\s*(\d+)\s*эт`)
	rublePriceRegex = regexp.MustCompile(`(\d[\d\s]*)\s*₽`)
	bareDigitsRegex = regexp.MustCompile(`\d[\d\s]*`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	trailingParens  = regexp.MustCompile(`\s*\([^)]+\)\s*$`)

	spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ")
)

// Rooms returns 0 for studios, otherwise the first digit run in text.
func Rooms(text string) int {
	if strings.Contains(strings.ToLower(text), studioMarker) {
		return 0
	}
	m := digitsRegex.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return SafeInt(m[1], 0)
}

// Area returns the first number in text, accepting a decimal comma.
func Area(text string) float64 {
	m := numberRegex.FindString(text)
	if m == "" {
		return 0
	}
	return SafeFloat(m, 0)
}

// CardArea looks for a number followed by the square-metre unit, which is
// how listing cards render the total area next to other numbers.
func CardArea(text string) float64 {
	m := cardAreaRegex.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return SafeFloat(m[1], 0)
}

// FloorPair parses "5/17 эт." or "5 из 17 этаж" into (5, 17).
func FloorPair(text string) (floor, total int) {
	m := floorPairRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, 0
	}
	return SafeInt(m[1], 0), SafeInt(m[2], 0)
}

// Price prefers a ruble-marked amount in text and falls back to the text of
// the dedicated price element. 0 means no price could be read.
func Price(text, priceElementText string) int {
	text = spaceReplacer.Replace(text)
	if m := rublePriceRegex.FindStringSubmatch(text); m != nil {
		if p, ok := digitsOnly(m[1]); ok {
			return p
		}
	}

	priceElementText = spaceReplacer.Replace(priceElementText)
	if m := bareDigitsRegex.FindString(priceElementText); m != "" {
		if p, ok := digitsOnly(m); ok {
			return p
		}
	}
	return 0
}

func digitsOnly(s string) (int, bool) {
	s = whitespaceRegex.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeStatus maps free-form house status text onto the two canonical
// values. Unknown text is passed through untouched; nil or empty gives nil.
func NormalizeStatus(raw *string) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	lower := strings.ToLower(strings.TrimSpace(*raw))
	switch {
	case strings.Contains(lower, "сдан"):
		s := StatusCompleted
		return &s
	case strings.Contains(lower, "строит"):
		s := StatusBuilding
		return &s
	}
	s := *raw
	return &s
}

// SafeInt parses s as a (possibly fractional) number and truncates it.
func SafeInt(s string, def int) int {
	f, err := parseLocalFloat(s)
	if err != nil {
		return def
	}
	return int(f)
}

func SafeFloat(s string, def float64) float64 {
	f, err := parseLocalFloat(s)
	if err != nil {
		return def
	}
	return f
}

func parseLocalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " м")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}

// DecodeURL undoes the forward-slash escaping used inside embedded JSON.
func DecodeURL(s string) string {
	return strings.ReplaceAll(s, `\u002F`, "/")
}

// BuildingCode extracts the building from a house name:
// "Шекспира, 1к1 (510к2)" -> "1к1". Names without a comma have no code.
func BuildingCode(houseName string) (string, bool) {
	_, rest, found := strings.Cut(houseName, ",")
	if !found {
		return "", false
	}
	code := trailingParens.ReplaceAllString(strings.TrimSpace(rest), "")
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	return code, true
}

// PricePerM2 is floor(price / area), or 0 when area is not positive.
func PricePerM2(price int, area float64) int {
	if area <= 0 {
		return 0
	}
	return int(math.Floor(float64(price) / area))
}
