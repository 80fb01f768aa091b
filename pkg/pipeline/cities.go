package pipeline

import (
	"strconv"
	"strings"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/storage"
)

// SelectCities resolves the operator's city selector against the configured,
// ordered city list. names and rng are mutually exclusive; with neither,
// every configured city is selected. rng is a 1-based inclusive range such
// as "1-5" or a single position such as "3".
func SelectCities(configured []string, names []string, rng string) ([]string, error) {
	if len(configured) == 0 {
		return nil, errs.Validation("no cities configured")
	}
	if len(names) > 0 && rng != "" {
		return nil, errs.Validation("select cities by name or by range, not both")
	}

	if rng != "" {
		lo, hi, err := parseRange(rng)
		if err != nil {
			return nil, err
		}
		if lo < 1 || hi > len(configured) || lo > hi {
			return nil, errs.Validation("city range %q outside 1-%d", rng, len(configured))
		}
		return append([]string(nil), configured[lo-1:hi]...), nil
	}

	if len(names) == 0 {
		return append([]string(nil), configured...), nil
	}

	byKey := make(map[string]string, len(configured))
	for _, c := range configured {
		byKey[storage.CityKey(c)] = c
	}
	var out []string
	seen := make(map[string]struct{})
	for _, n := range names {
		key := storage.CityKey(n)
		if key == "" {
			continue
		}
		c, ok := byKey[key]
		if !ok {
			return nil, errs.Validation("unknown city %q", n)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errs.Validation("no city selected")
	}
	return out, nil
}

func parseRange(rng string) (int, int, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(rng), "-")
	a, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, errs.Validation("invalid city range %q", rng)
	}
	if !found {
		return a, a, nil
	}
	b, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, errs.Validation("invalid city range %q", rng)
	}
	return a, b, nil
}
