package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scrape pipeline metrics. Registered on the default registry and served by
// the promhttp handler in cmd/scraper.
var (
	PagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_pages_fetched_total",
		Help: "Result pages fetched, by category and status (ok/empty/failed).",
	}, []string{"category", "status"})

	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_fetch_attempts_total",
		Help: "Browser fetch attempts, by outcome error type.",
	}, []string{"error_type"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scraper_fetch_duration_seconds",
		Help:    "Duration of a single page fetch attempt.",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})

	PagesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_skipped_total",
		Help: "Pages skipped because every listing URL was already stored.",
	})

	ListingsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_listings_stored_total",
		Help: "Listings written to the catalog, by kind (inserted/updated/discarded).",
	}, []string{"kind"})

	LookupRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_lookup_requests_total",
		Help: "External entity-search lookups, by status (hit/miss/error).",
	}, []string{"status"})

	AttributionCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_attribution_cache_hits_total",
		Help: "Resolutions served from the attribution cache without a lookup.",
	})

	ActiveRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_active_run_id",
		Help: "Identifier of the scrape run currently in progress (0 when idle).",
	})
)
