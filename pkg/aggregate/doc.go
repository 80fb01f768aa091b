// Package aggregate turns the geocoded locations of a target's friends into
// one inferred location per target.
package aggregate
