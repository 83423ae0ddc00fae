package identity

import (
	"sort"

	"newbuild_scrooper/models"
)

// Changes compares the units of a run against the fingerprints stored for
// the previous run.
type Changes struct {
	New     []string
	Changed []string
	Gone    []string
}

// Diff classifies units against prev (unit id -> fingerprint). Gone ids are
// sorted; New and Changed follow the order of units.
func Diff(prev map[string]string, units []models.UnitRecord) Changes {
	var ch Changes
	seen := make(map[string]struct{}, len(units))

	for i := range units {
		u := &units[i]
		seen[u.ID] = struct{}{}
		old, ok := prev[u.ID]
		switch {
		case !ok:
			ch.New = append(ch.New, u.ID)
		case old != Fingerprint(u):
			ch.Changed = append(ch.Changed, u.ID)
		}
	}

	for id := range prev {
		if _, ok := seen[id]; !ok {
			ch.Gone = append(ch.Gone, id)
		}
	}
	sort.Strings(ch.Gone)
	return ch
}
