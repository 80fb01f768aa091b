// Package gmaps resolves free-text locations with the Google Geocoding API.
// Client satisfies geocode.Geocoder.
package gmaps
