// Package geocode resolves the friend locations of a scope to places.
//
// Every distinct normalized string is looked up in the global geocode cache
// first; only misses reach the Geocoder. Provider answers, including "no
// match", are cached durably before the worker takes the next string, so an
// interrupted run never pays for the same lookup twice.
package geocode
