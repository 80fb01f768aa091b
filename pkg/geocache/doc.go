// Package geocache memoizes geocoder answers across every city and run.
//
// Keys are normalized location strings, so "Portland, OR", "portland or" and
// "PORTLAND,  OR!" share one entry. Lookups that the geocoder answered with no
// match are stored as NotFound tombstones and are never re-queried.
//
// The backing file is JSON lines with later lines winning, which makes it safe
// to concatenate or Merge cache files produced on different machines.
package geocache
