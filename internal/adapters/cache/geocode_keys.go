package cache

import (
	"fmt"
	"slices"
	"visit-scheduling-service/internal/domain"
)

// lookupKeys normalizes, de-duplicates and drops empty addresses.
func lookupKeys(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	keys := make([]string, 0, len(addresses))
	for _, a := range addresses {
		k := domain.NormalizeAddress(a)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// checkEntries rejects keys that are not normalized addresses and
// coordinates out of range. Keys are returned sorted.
func checkEntries(results map[string]domain.Coordinate) ([]string, error) {
	keys := make([]string, 0, len(results))
	for k, c := range results {
		if k == "" || k != domain.NormalizeAddress(k) {
			return nil, fmt.Errorf("%w: address key %q is not normalized", domain.ErrInvalidInput, k)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("address key %q: %w", k, err)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
