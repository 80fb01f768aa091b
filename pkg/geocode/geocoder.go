package geocode

import (
	"context"

	"friendgeo/pkg/models"
)

// Result is a geocoder's answer for one location string. Found is false
// when the provider had no match; that is an answer, not an error.
type Result struct {
	Found      bool
	Place      string
	Level      models.PlaceLevel
	Lat        float64
	Lon        float64
	Confidence float64
}

// Geocoder resolves normalized free-text locations to places
type Geocoder interface {
	Geocode(ctx context.Context, text string) (Result, error)
}
