package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/StevenVC-P/autographreader/internal/attribution"
	"github.com/StevenVC-P/autographreader/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(url string) ListingRecord {
	return ListingRecord{
		Title:      "John Public signed 8x10 photo",
		Price:      "$24.99",
		ImgURL:     "https://i.ebayimg.com/images/g/abc/s-l500.jpg",
		ListingURL: url,
		Category:   "sports_mem",
		SignerName: "John Public",
		Confidence: 0.75,
	}
}

func TestUpsertListingInsertThenUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run1, err := s.CreateRun(ctx, "first pass")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	rec := testRecord("https://www.ebay.com/itm/123")

	outcome, err := s.UpsertListing(ctx, rec, run1)
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Fatalf("first upsert outcome = %v, want OutcomeInserted", outcome)
	}

	var first model.Autograph
	if err := s.db.Where("listing_url = ?", rec.ListingURL).First(&first).Error; err != nil {
		t.Fatalf("load inserted row: %v", err)
	}

	// Second sighting carries different content; only last_seen and run_id
	// may change.
	run2, err := s.CreateRun(ctx, "second pass")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	changed := rec
	changed.Title = "totally different title"
	changed.Price = "$999.00"

	time.Sleep(10 * time.Millisecond)
	outcome, err = s.UpsertListing(ctx, changed, run2)
	if err != nil {
		t.Fatalf("second UpsertListing: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("second upsert outcome = %v, want OutcomeUpdated", outcome)
	}

	count, err := s.CountListings(ctx)
	if err != nil {
		t.Fatalf("CountListings: %v", err)
	}
	if count != 1 {
		t.Fatalf("listings = %d, want 1", count)
	}

	var second model.Autograph
	if err := s.db.Where("listing_url = ?", rec.ListingURL).First(&second).Error; err != nil {
		t.Fatalf("load updated row: %v", err)
	}
	if second.Title != first.Title || second.Price != first.Price {
		t.Errorf("content changed on re-sighting: %q/%q", second.Title, second.Price)
	}
	if second.RunID != run2 {
		t.Errorf("run_id = %d, want %d", second.RunID, run2)
	}
	if !second.LastSeen.After(first.LastSeen) {
		t.Errorf("last_seen not advanced: %v -> %v", first.LastSeen, second.LastSeen)
	}
}

func TestUpsertListingDiscardsUnknownSigner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	rec := testRecord("https://www.ebay.com/itm/456")
	rec.SignerName = attribution.UnknownSigner

	outcome, err := s.UpsertListing(ctx, rec, runID)
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if outcome != OutcomeDiscarded {
		t.Fatalf("outcome = %v, want OutcomeDiscarded", outcome)
	}
	count, err := s.CountListings(ctx)
	if err != nil {
		t.Fatalf("CountListings: %v", err)
	}
	if count != 0 {
		t.Fatalf("listings = %d, want 0", count)
	}
}

func TestGetOrCreateSigner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.GetOrCreateSigner(ctx, "John Public", "sports_mem")
	if err != nil {
		t.Fatalf("GetOrCreateSigner: %v", err)
	}
	id2, err := s.GetOrCreateSigner(ctx, "John Public", "sports_mem")
	if err != nil {
		t.Fatalf("GetOrCreateSigner again: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same (name, category) yielded ids %d and %d", id1, id2)
	}

	// Same name in another category is a distinct signer.
	id3, err := s.GetOrCreateSigner(ctx, "John Public", "entertainment_mem")
	if err != nil {
		t.Fatalf("GetOrCreateSigner other category: %v", err)
	}
	if id3 == id1 {
		t.Errorf("distinct categories shared signer id %d", id1)
	}
}

func TestUpsertListingSharesSignerRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	for _, url := range []string{"https://www.ebay.com/itm/1", "https://www.ebay.com/itm/2"} {
		if _, err := s.UpsertListing(ctx, testRecord(url), runID); err != nil {
			t.Fatalf("UpsertListing %s: %v", url, err)
		}
	}

	var signers int64
	if err := s.db.Model(&model.Signer{}).Count(&signers).Error; err != nil {
		t.Fatalf("count signers: %v", err)
	}
	if signers != 1 {
		t.Errorf("signers = %d, want 1", signers)
	}
}

func TestCountKnownURLs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := s.UpsertListing(ctx, testRecord("https://www.ebay.com/itm/10"), runID); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}

	count, err := s.CountKnownURLs(ctx, []string{
		"https://www.ebay.com/itm/10",
		"https://www.ebay.com/itm/11",
	})
	if err != nil {
		t.Fatalf("CountKnownURLs: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	count, err = s.CountKnownURLs(ctx, nil)
	if err != nil {
		t.Fatalf("CountKnownURLs(nil): %v", err)
	}
	if count != 0 {
		t.Errorf("count for empty input = %d, want 0", count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s1, err := Open(path, logger)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	runID, err := s1.CreateRun(context.Background(), "keep me")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := s1.UpsertListing(context.Background(), testRecord("https://www.ebay.com/itm/77"), runID); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening migrates over the existing schema without losing rows.
	s2, err := Open(path, logger)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	count, err := s2.CountListings(context.Background())
	if err != nil {
		t.Fatalf("CountListings: %v", err)
	}
	if count != 1 {
		t.Errorf("listings after reopen = %d, want 1", count)
	}
}
