package attribution

import (
	"context"
	"log/slog"
	"strings"

	"github.com/StevenVC-P/autographreader/internal/pkg/metrics"
)

// Confidence levels produced by Resolve. No other values exist.
const (
	ConfidenceExact  = 1.0
	ConfidenceLookup = 0.75
	ConfidenceNone   = 0.0
)

// Searcher abstracts the external entity-search endpoint.
type Searcher interface {
	Search(ctx context.Context, query string) (label string, found bool, err error)
}

// Resolver attributes listing titles to signer names.
type Resolver struct {
	registry *Registry
	cache    *Cache
	searcher Searcher
	logger   *slog.Logger
}

// NewResolver wires the registry, cache and lookup client together. All three
// are constructed at pipeline start and live for one run.
func NewResolver(registry *Registry, cache *Cache, searcher Searcher, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		cache:    cache,
		searcher: searcher,
		logger:   logger,
	}
}

// Resolve maps a listing title to a (signer name, confidence) pair.
//
// Exact registry matches win with confidence 1.0. Otherwise the normalized
// title is answered from the cache, and only a cache miss reaches the external
// endpoint. Lookup failures are logged and recorded as the unknown sentinel so
// the same title never triggers a second futile request; they are never
// propagated to the caller.
func (r *Resolver) Resolve(ctx context.Context, title string) (string, float64) {
	titleLower := strings.ToLower(title)
	if name, ok := r.registry.Match(titleLower); ok {
		return name, ConfidenceExact
	}

	normalized := NormalizePhrase(title)
	if cached, ok := r.cache.Get(normalized); ok {
		metrics.AttributionCacheHitsTotal.Inc()
		if cached == UnknownSigner {
			return UnknownSigner, ConfidenceNone
		}
		return cached, ConfidenceLookup
	}

	label, found, err := r.searcher.Search(ctx, title)
	if err != nil {
		metrics.LookupRequestsTotal.WithLabelValues("error").Inc()
		r.logger.Warn("entity lookup failed, treating as unknown",
			slog.String("title", title),
			slog.String("error", err.Error()))
		r.remember(normalized, UnknownSigner)
		return UnknownSigner, ConfidenceNone
	}
	if !found {
		metrics.LookupRequestsTotal.WithLabelValues("miss").Inc()
		r.remember(normalized, UnknownSigner)
		return UnknownSigner, ConfidenceNone
	}

	metrics.LookupRequestsTotal.WithLabelValues("hit").Inc()
	r.logger.Debug("entity lookup resolved",
		slog.String("title", title),
		slog.String("canonical", label))
	r.remember(normalized, label)
	return label, ConfidenceLookup
}

// remember writes a cache entry and flushes immediately so a killed process
// loses at most the lookup in flight.
func (r *Resolver) remember(normalized, name string) {
	r.cache.Put(normalized, name)
	if err := r.cache.Flush(); err != nil {
		r.logger.Warn("attribution cache flush failed", slog.String("error", err.Error()))
	}
}

// FlushCache persists any unsaved cache entries. Called once more at end of
// run as a backstop.
func (r *Resolver) FlushCache() error {
	return r.cache.Flush()
}
