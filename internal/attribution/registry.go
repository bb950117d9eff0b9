// Package attribution maps listing titles to known signer names.
//
// Resolution is exact substring match against the signer registry first, then
// a cached external entity-search lookup. The cache file is the package's only
// persisted side effect.
package attribution

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// UnknownSigner is the sentinel stored in the cache (and returned with
// confidence 0) when a title cannot be attributed. Listings resolved to it
// are never persisted to the catalog.
const UnknownSigner = "Unknown"

// Registry holds the set of known signer names for exact matching.
//
// Names are lower-cased and kept sorted so first-match behavior is
// reproducible across runs.
type Registry struct {
	names []string
}

// LoadRegistry reads a JSON array of signer names from path.
//
// A missing or unreadable file degrades to an empty registry, which pushes
// every title onto the lookup fallback; the condition is logged because it
// hurts attribution accuracy.
func LoadRegistry(path string, logger *slog.Logger) *Registry {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("signer registry unavailable, exact matching disabled",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return &Registry{}
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("signer registry unreadable, exact matching disabled",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return &Registry{}
	}

	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	logger.Info("signer registry loaded",
		slog.String("path", path),
		slog.Int("names", len(names)))
	return &Registry{names: names}
}

// Match returns the first registry name occurring as a substring of the
// lower-cased title. Iteration order is the sorted name order.
func (r *Registry) Match(titleLower string) (string, bool) {
	for _, name := range r.names {
		if strings.Contains(titleLower, name) {
			return name, true
		}
	}
	return "", false
}

// Len reports the number of known names.
func (r *Registry) Len() int {
	return len(r.names)
}
