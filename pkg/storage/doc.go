// Package storage owns the on-disk layout of a friendgeo data directory.
//
// All state is plain JSON or JSON lines so it can be inspected, copied between
// machines and merged by hand. Writers go through internal/jsonl, which makes
// appends durable and whole-file rewrites atomic.
package storage
