package aggregate

import (
	"sort"
	"strings"
	"time"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/geocache"
	"friendgeo/pkg/models"

	"github.com/golang/geo/s2"
)

// Granularity decides which friend locations count as the same place
type Granularity string

const (
	GranularityPlace Granularity = "place"
	GranularityState Granularity = "state"
	GranularityCell  Granularity = "cell"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", GranularityPlace:
		return GranularityPlace, nil
	case GranularityState, GranularityCell:
		return Granularity(s), nil
	}
	return "", errs.Validation("unknown granularity %q (want place, state or cell)", s)
}

type Options struct {
	Granularity Granularity
	// CellLevel is the S2 level used by GranularityCell
	CellLevel           int
	IncludeCountryLevel bool
	// StateFallback regroups scattered place votes by state: when no place
	// has more than one friend and more than scatteredMin remain, the state
	// shared by at least two friends wins. Without such a state the target
	// stays unresolved.
	StateFallback bool
}

// scatteredMin is the number of single-vote places above which a target
// counts as scattered
const scatteredMin = 3

type group struct {
	key        string
	count      int
	confSum    float64
	confKnown  bool
	latSum     float64
	lonSum     float64
	located    int
	places     map[string]int
	cellCenter *s2.LatLng
}

func (g *group) label() string {
	best, bestN := "", 0
	for p, n := range g.places {
		if n > bestN || (n == bestN && p < best) {
			best, bestN = p, n
		}
	}
	return best
}

func (g *group) meanConfidence() float64 {
	return g.confSum / float64(g.count)
}

// Infer picks one location for a target from its friends' cache entries.
// NotFound entries are ignored, and so are country-level places unless the
// options include them. It reports false when no friend location remains.
//
// The winner has the most supporting friends. Ties go to the higher mean
// geocoder confidence when every tied group carries confidence, and then to
// the lexically smallest label, so the result never depends on input order.
func Infer(userID, city string, entries []geocache.Entry, opts Options) (models.InferredLocation, bool) {
	groups := make(map[string]*group)
	total := 0
	for _, e := range entries {
		if e.NotFound || e.Place == "" {
			continue
		}
		if e.Level == models.PlaceLevelCountry && !opts.IncludeCountryLevel {
			continue
		}
		key, place, center := groupKey(e, opts)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, places: make(map[string]int), confKnown: true, cellCenter: center}
			groups[key] = g
		}
		g.count++
		g.places[place]++
		g.confSum += e.Confidence
		if e.Confidence <= 0 {
			g.confKnown = false
		}
		if e.Lat != 0 || e.Lon != 0 {
			g.latSum += e.Lat
			g.lonSum += e.Lon
			g.located++
		}
		total++
	}
	if total == 0 {
		return models.InferredLocation{}, false
	}

	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if la, lb := a.label(), b.label(); la != lb {
			return la < lb
		}
		// distinct cells can share a label
		return a.key < b.key
	})

	winner := ranked[0]
	if opts.StateFallback && opts.granularity() == GranularityPlace && winner.count == 1 && total > scatteredMin {
		return stateFallback(userID, city, entries, opts)
	}
	tied := []*group{winner}
	for _, g := range ranked[1:] {
		if g.count != winner.count {
			break
		}
		tied = append(tied, g)
	}
	if len(tied) > 1 && allConfident(tied) {
		sort.SliceStable(tied, func(i, j int) bool {
			return tied[i].meanConfidence() > tied[j].meanConfidence()
		})
		winner = tied[0]
	}

	loc := models.InferredLocation{
		UserID:                userID,
		City:                  city,
		Place:                 winner.label(),
		Confidence:            float64(winner.count) / float64(total),
		SupportingFriendCount: winner.count,
		TotalGeocodedFriends:  total,
		Granularity:           string(opts.granularity()),
		InferredAt:            time.Now().UTC(),
	}
	switch {
	case winner.cellCenter != nil:
		loc.Lat = winner.cellCenter.Lat.Degrees()
		loc.Lon = winner.cellCenter.Lng.Degrees()
	case winner.located > 0:
		loc.Lat = winner.latSum / float64(winner.located)
		loc.Lon = winner.lonSum / float64(winner.located)
	}
	return loc, true
}

func stateFallback(userID, city string, entries []geocache.Entry, opts Options) (models.InferredLocation, bool) {
	opts.Granularity = GranularityState
	opts.StateFallback = false
	// every place had a single vote, so only a state group can reach two
	loc, ok := Infer(userID, city, entries, opts)
	if !ok || loc.SupportingFriendCount < 2 {
		return models.InferredLocation{}, false
	}
	return loc, true
}

func allConfident(groups []*group) bool {
	for _, g := range groups {
		if !g.confKnown {
			return false
		}
	}
	return true
}

func (o Options) granularity() Granularity {
	if o.Granularity == "" {
		return GranularityPlace
	}
	return o.Granularity
}

// groupKey returns the grouping key of e and the place label it votes for
func groupKey(e geocache.Entry, opts Options) (string, string, *s2.LatLng) {
	switch opts.granularity() {
	case GranularityState:
		if st, ok := StateOf(e.Place); ok {
			return "state:" + st, st, nil
		}
	case GranularityCell:
		if e.Lat != 0 || e.Lon != 0 {
			cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(e.Lat, e.Lon)).Parent(opts.CellLevel)
			center := cell.LatLng()
			return "cell:" + cell.ToToken(), e.Place, &center
		}
	}
	return "place:" + e.Place, e.Place, nil
}

// StateOf extracts the US state code from a "City, ST" place
func StateOf(place string) (string, bool) {
	i := strings.LastIndex(place, ",")
	if i < 0 {
		return "", false
	}
	st := strings.TrimSpace(place[i+1:])
	if len(st) != 2 || !isUpper(st[0]) || !isUpper(st[1]) {
		return "", false
	}
	return st, true
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
