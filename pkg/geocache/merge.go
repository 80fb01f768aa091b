package geocache

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"friendgeo/internal/jsonl"
	"friendgeo/pkg/models"

	"github.com/agnivade/levenshtein"
)

// MergeStats reports what a merge changed
type MergeStats struct {
	Read    int `json:"read"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Kept    int `json:"kept"`
}

// Merge folds other cache files into this one by key union, in argument
// order. On a conflicting key the incoming entry wins unless it is strictly
// older than the existing one; when either side has no timestamp, or both
// carry the same one, the later file wins. Files ending in .json are read as
// legacy flat maps of raw text to place (see FromLegacy).
func (c *Cache) Merge(paths ...string) (MergeStats, error) {
	var st MergeStats
	for _, p := range paths {
		var err error
		if strings.EqualFold(filepath.Ext(p), ".json") {
			err = c.mergeLegacy(p, &st)
		} else {
			_, err = jsonl.Read(p, func(e Entry) error {
				return c.mergeEntry(e, &st)
			})
		}
		if err != nil {
			return st, fmt.Errorf("failed to merge %s: %w", p, err)
		}
	}

	c.logger.InfoWithFields("Geocode caches merged", map[string]interface{}{
		"files":   len(paths),
		"read":    st.Read,
		"added":   st.Added,
		"updated": st.Updated,
	})
	return st, nil
}

func (c *Cache) mergeEntry(e Entry, st *MergeStats) error {
	st.Read++
	if e.Key == "" {
		e.Key = Normalize(e.Query)
	}
	if e.Key == "" {
		return nil
	}

	existing, ok := c.GetKey(e.Key)
	switch {
	case !ok:
		st.Added++
	case supersedes(e, existing):
		if sameOutcome(e, existing) {
			st.Kept++
			return nil
		}
		st.Updated++
	default:
		st.Kept++
		return nil
	}
	// stored as read: a legacy entry keeps its zero timestamp so a later
	// legacy file can still replace it
	return c.store(e)
}

func supersedes(incoming, existing Entry) bool {
	if incoming.UpdatedAt.IsZero() || existing.UpdatedAt.IsZero() {
		return true
	}
	return !incoming.UpdatedAt.Before(existing.UpdatedAt)
}

func sameOutcome(a, b Entry) bool {
	return a.NotFound == b.NotFound && a.Place == b.Place && a.Level == b.Level &&
		a.Lat == b.Lat && a.Lon == b.Lon && a.Confidence == b.Confidence
}

// legacyNonLocation marks strings a previous geocoder judged not to be places
const legacyNonLocation = "non-location"

func (c *Cache) mergeLegacy(path string, st *MergeStats) error {
	var flat map[string]string
	found, err := jsonl.ReadJSON(path, &flat)
	if err != nil || !found {
		return err
	}

	raws := make([]string, 0, len(flat))
	for raw := range flat {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	for _, raw := range raws {
		if err := c.mergeEntry(FromLegacy(raw, flat[raw]), st); err != nil {
			return err
		}
	}
	return nil
}

// FromLegacy converts one entry of a flat "raw text -> place" cache.
// Places look like "City, ST", "City, Country" or "Country". Such entries
// carry no timestamp, so on a merge conflict the file order decides.
func FromLegacy(raw, place string) Entry {
	e := Entry{Key: Normalize(raw), Query: raw}
	place = strings.TrimSpace(place)
	if place == "" || strings.EqualFold(place, legacyNonLocation) {
		e.NotFound = true
		return e
	}
	e.Place = place
	if strings.Contains(place, ",") {
		e.Level = models.PlaceLevelCity
	} else {
		e.Level = models.PlaceLevelCountry
	}
	return e
}

// NearDuplicate is a pair of keys within a small edit distance
type NearDuplicate struct {
	A        string `json:"a"`
	B        string `json:"b"`
	Distance int    `json:"distance"`
	Agree    bool   `json:"agree"`
}

// NearDuplicates lists key pairs at most maxDistance edits apart, e.g.
// "portland or" and "portlnd or". Agree tells whether both resolved to the same
// place. Keys shorter than minLen are ignored.
func (c *Cache) NearDuplicates(maxDistance, minLen int) []NearDuplicate {
	entries := c.Entries()
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].Key) != len(entries[j].Key) {
			return len(entries[i].Key) < len(entries[j].Key)
		}
		return entries[i].Key < entries[j].Key
	})

	var out []NearDuplicate
	for i := range entries {
		a := entries[i]
		if len(a.Key) < minLen {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			b := entries[j]
			if len(b.Key)-len(a.Key) > maxDistance {
				break
			}
			d := levenshtein.ComputeDistance(a.Key, b.Key)
			if d == 0 || d > maxDistance {
				continue
			}
			out = append(out, NearDuplicate{
				A:        a.Key,
				B:        b.Key,
				Distance: d,
				Agree:    a.NotFound == b.NotFound && a.Place == b.Place,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
