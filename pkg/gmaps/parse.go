package gmaps

import (
	"strings"

	"friendgeo/pkg/geocode"
	"friendgeo/pkg/models"
)

// location_type to confidence
var precision = map[string]float64{
	"ROOFTOP":            1.0,
	"RANGE_INTERPOLATED": 0.9,
	"GEOMETRIC_CENTER":   0.8,
	"APPROXIMATE":        0.6,
}

const partialMatchPenalty = 0.8

// Parse reduces a geocoder result to a display place.
//
// US cities render as "City, ST" (or "City, USA" without a state), other
// cities as "City, Country". A result without a city resolves to its country.
// A second-level administrative area stands in for a missing locality.
func Parse(r geocodeResult) geocode.Result {
	var city, state, stateCode, country, countryCode string
	for _, comp := range r.AddressComponents {
		switch {
		case hasType(comp, "locality"):
			city = comp.LongName
		case hasType(comp, "administrative_area_level_2") && city == "":
			city = comp.LongName
		case hasType(comp, "administrative_area_level_1"):
			state = comp.LongName
			stateCode = comp.ShortName
		case hasType(comp, "country"):
			country = comp.LongName
			countryCode = comp.ShortName
		}
	}

	out := geocode.Result{
		Found:      true,
		Lat:        r.Geometry.Location.Lat,
		Lon:        r.Geometry.Location.Lng,
		Confidence: precision[r.Geometry.LocationType],
	}
	if out.Confidence == 0 {
		out.Confidence = precision["APPROXIMATE"]
	}
	if r.PartialMatch {
		out.Confidence *= partialMatchPenalty
	}

	switch {
	case city != "" && countryCode == "US":
		out.Level = models.PlaceLevelCity
		if abbrev := StateAbbrev(state, stateCode); abbrev != "" {
			out.Place = city + ", " + abbrev
		} else {
			out.Place = city + ", USA"
		}
	case city != "" && country != "":
		out.Level = models.PlaceLevelCity
		out.Place = city + ", " + country
	case country != "":
		out.Level = models.PlaceLevelCountry
		out.Place = country
	default:
		return geocode.Result{}
	}
	return out
}

func hasType(c addressComponent, t string) bool {
	for _, have := range c.Types {
		if have == t {
			return true
		}
	}
	return false
}

// StateAbbrev returns the two-letter code of a US state. The provider's short
// name is used when it already is one; otherwise the long name is looked up.
func StateAbbrev(longName, shortName string) string {
	if len(shortName) == 2 && strings.ToUpper(shortName) == shortName {
		return shortName
	}
	return stateCodes[strings.ToLower(strings.TrimSpace(longName))]
}

var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"district of columbia": "DC", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT", "nebraska": "NE",
	"nevada": "NV", "new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI",
	"south carolina": "SC", "south dakota": "SD", "tennessee": "TN", "texas": "TX",
	"utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}
