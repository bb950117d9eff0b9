// Package pipeline drives the category/page scrape loop and owns the
// ScrapeRun lifecycle: one run per invocation, its id tagging every write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/StevenVC-P/autographreader/internal/config"
	"github.com/StevenVC-P/autographreader/internal/pkg/metrics"
	"github.com/StevenVC-P/autographreader/internal/pkg/notify"
	"github.com/StevenVC-P/autographreader/internal/scraper"
	"github.com/StevenVC-P/autographreader/internal/store"
)

// PageFetcher renders one search-results page. *scraper.Fetcher satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, query, categoryName, categoryID string, page int) ([]scraper.Listing, error)
}

// CatalogStore is the subset of the store the orchestrator drives.
type CatalogStore interface {
	CreateRun(ctx context.Context, note string) (uint, error)
	UpsertListing(ctx context.Context, rec store.ListingRecord, runID uint) (store.Outcome, error)
}

// PageGate is the page-level dedup short-circuit.
type PageGate interface {
	PageKnown(ctx context.Context, urls []string) (bool, error)
}

// CacheFlusher persists the attribution cache; called once at end of run as a
// backstop on top of the resolver's per-lookup flushes.
type CacheFlusher interface {
	FlushCache() error
}

// errCapReached stops all categories once the global result cap is hit.
var errCapReached = errors.New("global result cap reached")

// Pipeline walks every configured category page by page, pushing fetched
// listings through the dedup gate into the catalog store.
//
// Execution is strictly sequential: one category, one page, one listing at a
// time, with a fixed politeness delay between page fetches.
type Pipeline struct {
	cfg      *config.Config
	fetcher  PageFetcher
	catalog  CatalogStore
	gate     PageGate
	flusher  CacheFlusher
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(cfg *config.Config, fetcher PageFetcher, catalog CatalogStore, gate PageGate, flusher CacheFlusher, notifier notify.Notifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		catalog:  catalog,
		gate:     gate,
		flusher:  flusher,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one full pipeline invocation and returns its summary.
//
// Only storage failures abort the run; fetch and lookup trouble degrade into
// the normal stopping conditions.
func (p *Pipeline) Run(ctx context.Context) (notify.RunSummary, error) {
	start := time.Now()
	summary := notify.RunSummary{Query: p.cfg.App.Query}

	runID, err := p.catalog.CreateRun(ctx, p.cfg.App.RunNote)
	if err != nil {
		return summary, fmt.Errorf("create run: %w", err)
	}
	summary.RunID = runID
	metrics.ActiveRun.Set(float64(runID))
	defer metrics.ActiveRun.Set(0)

	p.logger.Info("scrape run started",
		slog.Uint64("run_id", uint64(runID)),
		slog.String("query", p.cfg.App.Query),
		slog.Int("categories", len(p.cfg.Categories)))

	total := 0
	for _, category := range sortedCategories(p.cfg.Categories) {
		if err := p.runCategory(ctx, category, p.cfg.Categories[category], runID, &total, &summary); err != nil {
			if errors.Is(err, errCapReached) {
				p.logger.Info("global result cap reached, stopping all categories",
					slog.Int("cap", p.cfg.App.MaxResults))
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Info("run interrupted", slog.String("category", category))
				break
			}
			return summary, err
		}
	}

	if err := p.flusher.FlushCache(); err != nil {
		p.logger.Warn("final attribution cache flush failed", slog.String("error", err.Error()))
	}

	summary.Duration = time.Since(start)
	p.logger.Info("scrape run finished",
		slog.Uint64("run_id", uint64(runID)),
		slog.Int("pages_fetched", summary.PagesFetched),
		slog.Int("pages_skipped", summary.PagesSkipped),
		slog.Int("new_listings", summary.NewListings),
		slog.Int("updated_listings", summary.UpdatedListings),
		slog.Int("discarded", summary.Discarded),
		slog.Duration("duration", summary.Duration))

	if p.notifier != nil {
		if err := p.notifier.Send(ctx, summary); err != nil {
			p.logger.Warn("run summary notification failed", slog.String("error", err.Error()))
		}
	}
	return summary, nil
}

// runCategory pages through one category until its stopping condition fires.
// Empty results and fetch failures are indistinguishable here; both feed the
// same consecutive-failure counter.
func (p *Pipeline) runCategory(ctx context.Context, name, categoryID string, runID uint, total *int, summary *notify.RunSummary) error {
	page := 1
	consecutiveFailures := 0

	p.logger.Info("starting category", slog.String("category", name))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if *total >= p.cfg.App.MaxResults {
			return errCapReached
		}

		listings, err := p.fetcher.FetchPage(ctx, p.cfg.App.Query, name, categoryID, page)
		if err != nil || len(listings) == 0 {
			consecutiveFailures++
			status := "empty"
			if err != nil {
				status = "failed"
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
			}
			metrics.PagesFetchedTotal.WithLabelValues(name, status).Inc()
			p.logger.Info("no listings on page",
				slog.String("category", name),
				slog.Int("page", page),
				slog.Int("consecutive_failures", consecutiveFailures))
			if consecutiveFailures >= p.cfg.App.MaxConsecutiveFailures {
				p.logger.Info("no more results for category",
					slog.String("category", name),
					slog.Int("last_page", page))
				return nil
			}
		} else {
			consecutiveFailures = 0
			metrics.PagesFetchedTotal.WithLabelValues(name, "ok").Inc()
			summary.PagesFetched++

			if p.pageFullyKnown(ctx, listings) {
				metrics.PagesSkippedTotal.Inc()
				summary.PagesSkipped++
				p.logger.Info("skipping page, all listings already known",
					slog.String("category", name),
					slog.Int("page", page))
			} else {
				if err := p.storePage(ctx, listings, runID, summary); err != nil {
					return err
				}
				*total += len(listings)
			}
		}

		page++
		select {
		case <-time.After(p.cfg.App.PageDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pageFullyKnown asks the dedup gate; a gate error degrades to "not known"
// since re-upserting known rows is harmless.
func (p *Pipeline) pageFullyKnown(ctx context.Context, listings []scraper.Listing) bool {
	urls := make([]string, 0, len(listings))
	for _, l := range listings {
		urls = append(urls, l.ListingURL)
	}
	known, err := p.gate.PageKnown(ctx, urls)
	if err != nil {
		p.logger.Warn("dedup check failed, processing page anyway", slog.String("error", err.Error()))
		return false
	}
	return known
}

func (p *Pipeline) storePage(ctx context.Context, listings []scraper.Listing, runID uint, summary *notify.RunSummary) error {
	for _, l := range listings {
		outcome, err := p.catalog.UpsertListing(ctx, store.ListingRecord{
			Title:      l.Title,
			Price:      l.Price,
			ImgURL:     l.ImgURL,
			ListingURL: l.ListingURL,
			Category:   l.Category,
			SignerName: l.Signer,
			Confidence: l.Confidence,
		}, runID)
		if err != nil {
			// Storage failures are the one fatal class: aborting beats
			// silently losing data.
			return fmt.Errorf("store listing %q: %w", l.ListingURL, err)
		}
		switch outcome {
		case store.OutcomeInserted:
			metrics.ListingsStoredTotal.WithLabelValues("inserted").Inc()
			summary.NewListings++
		case store.OutcomeUpdated:
			metrics.ListingsStoredTotal.WithLabelValues("updated").Inc()
			summary.UpdatedListings++
		case store.OutcomeDiscarded:
			metrics.ListingsStoredTotal.WithLabelValues("discarded").Inc()
			summary.Discarded++
		}
	}
	return nil
}

// sortedCategories keeps category iteration order stable across runs.
func sortedCategories(categories map[string]string) []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
