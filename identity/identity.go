// Package identity decides which unit identifiers belong to a development
// and fingerprints reconciled units for change detection between runs.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"newbuild_scrooper/models"
)

var (
	parentPairRegex = regexp.MustCompile(`"cianId":(\d+)[^}]*?"parentId":(\d+)`)
	multiSpaceRegex = regexp.MustCompile(`\s+`)
)

// Pair links a unit identifier to the development it is listed under.
type Pair struct {
	ChildID  string
	ParentID string
}

// ParentPairs scans raw page content for (unit id, parent id) pairs.
func ParentPairs(html string) []Pair {
	var pairs []Pair
	for _, m := range parentPairRegex.FindAllStringSubmatch(html, -1) {
		pairs = append(pairs, Pair{ChildID: m[1], ParentID: m[2]})
	}
	return pairs
}

// Set is the identity filter for one results page. An empty set accepts
// everything because the page simply did not expose the pairs.
type Set map[string]struct{}

// Filter keeps the child ids whose parent is developmentID.
func Filter(pairs []Pair, developmentID string) Set {
	set := make(Set)
	for _, p := range pairs {
		if p.ParentID == developmentID {
			set[p.ChildID] = struct{}{}
		}
	}
	return set
}

func (s Set) Allows(id string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[id]
	return ok
}

// Fingerprint hashes the fields whose change is worth reporting between
// runs (price, area, floor, status, address).
func Fingerprint(u *models.UnitRecord) string {
	input := fmt.Sprintf("%s|%d|%.2f|%d/%d|%s|%s",
		u.ID,
		u.Price,
		u.Area,
		u.Floor,
		u.FloorsTotal,
		normalize(u.HouseStatus),
		normalize(u.Address),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

func normalize(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	return multiSpaceRegex.ReplaceAllString(v, " ")
}
