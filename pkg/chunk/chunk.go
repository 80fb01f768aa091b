// Package chunk splits a sorted user list into contiguous, deterministic
// pieces that independent processes can work through without coordination.
package chunk

import (
	"strconv"
	"strings"

	errs "friendgeo/pkg/errors"
)

// Chunk is a contiguous slice of the input list. Index is 1-based.
type Chunk struct {
	Index   int
	Count   int
	Start   int
	UserIDs []string
}

// Summary describes a chunk without carrying its IDs
type Summary struct {
	Index   int    `json:"index"`
	Size    int    `json:"size"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	FirstID string `json:"first_id,omitempty"`
	LastID  string `json:"last_id,omitempty"`
}

// bounds returns the half-open range of chunk index (1-based) among count
// chunks over n items. The first n%count chunks get one extra item.
func bounds(n, count, index int) (int, int) {
	size := n / count
	rem := n % count
	i := index - 1
	start := i*size + min(i, rem)
	end := start + size
	if i < rem {
		end++
	}
	return start, end
}

func validateCount(count int) error {
	if count < 1 {
		return errs.Validation("chunk count must be at least 1, got %d", count)
	}
	return nil
}

// Partition splits ids into count chunks. Concatenating the result reproduces
// ids; sizes differ by at most one with larger chunks first. When count
// exceeds len(ids) the trailing chunks are empty.
func Partition(ids []string, count int) ([]Chunk, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}
	chunks := make([]Chunk, count)
	for i := 1; i <= count; i++ {
		start, end := bounds(len(ids), count, i)
		chunks[i-1] = Chunk{Index: i, Count: count, Start: start, UserIDs: ids[start:end:end]}
	}
	return chunks, nil
}

// Select returns chunk index of count over ids
func Select(ids []string, index, count int) (Chunk, error) {
	if err := validateCount(count); err != nil {
		return Chunk{}, err
	}
	if index < 1 || index > count {
		return Chunk{}, errs.Validation("chunk %d out of range 1-%d", index, count)
	}
	start, end := bounds(len(ids), count, index)
	return Chunk{Index: index, Count: count, Start: start, UserIDs: ids[start:end:end]}, nil
}

// Preview summarizes every chunk. It is read only.
func Preview(ids []string, count int) ([]Summary, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}
	out := make([]Summary, count)
	for i := 1; i <= count; i++ {
		start, end := bounds(len(ids), count, i)
		s := Summary{Index: i, Size: end - start, Start: start, End: end}
		if end > start {
			s.FirstID = ids[start]
			s.LastID = ids[end-1]
		}
		out[i-1] = s
	}
	return out, nil
}

// ParseSpec parses the operator form "i/m"
func ParseSpec(spec string) (index, count int, err error) {
	parts := strings.Split(strings.TrimSpace(spec), "/")
	if len(parts) != 2 {
		return 0, 0, errs.Validation("invalid chunk %q: expected N/M, e.g. 1/20", spec)
	}
	index, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errs.Validation("invalid chunk number in %q", spec)
	}
	count, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errs.Validation("invalid chunk total in %q", spec)
	}
	if count < 1 {
		return 0, 0, errs.Validation("chunk total must be at least 1, got %d", count)
	}
	if index < 1 || index > count {
		return 0, 0, errs.Validation("chunk %d out of range 1-%d", index, count)
	}
	return index, count, nil
}
