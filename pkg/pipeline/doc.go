// Package pipeline wires the friend analysis substeps together.
//
// A request names cities, a cohort, optionally one chunk of that cohort, and
// the substeps to run. Everything the operator can get wrong (unknown city,
// bad chunk, missing cohort, starred chunk) is rejected before any work
// starts. Substeps then run per city in a fixed order:
//
//	fetch-graph -> extract-profiles -> geocode -> aggregate
//
// Independent processes may run different chunks of the same cohort at the
// same time. They share nothing but files: each appends to its own journal
// segments and reads the union of all segments.
package pipeline
