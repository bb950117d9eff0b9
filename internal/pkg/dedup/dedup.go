// Package dedup implements the page-level skip gate over the catalog store.
package dedup

import (
	"context"
	"fmt"
)

// URLCounter reports how many of the given listing URLs are already stored.
// *store.Store satisfies it.
type URLCounter interface {
	CountKnownURLs(ctx context.Context, urls []string) (int64, error)
}

type Gate struct {
	counter URLCounter
}

func NewGate(counter URLCounter) *Gate {
	return &Gate{counter: counter}
}

// PageKnown reports whether every candidate URL on a page already exists in
// the catalog, i.e. the page contributes nothing new. An empty URL list is
// never considered known. Partially known pages are not skipped; the
// idempotent upsert keeps re-processing them harmless.
func (g *Gate) PageKnown(ctx context.Context, urls []string) (bool, error) {
	filtered := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) == 0 {
		return false, nil
	}

	known, err := g.counter.CountKnownURLs(ctx, filtered)
	if err != nil {
		return false, fmt.Errorf("dedup count: %w", err)
	}
	return known == int64(len(filtered)), nil
}
