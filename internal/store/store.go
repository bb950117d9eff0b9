package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/StevenVC-P/autographreader/internal/attribution"
	"github.com/StevenVC-P/autographreader/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// ListingRecord is one attributed candidate listing handed to the store.
type ListingRecord struct {
	Title      string
	Price      string
	ImgURL     string
	ListingURL string
	Category   string
	SignerName string
	Confidence float64
}

// Outcome reports what UpsertListing did with a candidate.
type Outcome int

const (
	OutcomeDiscarded Outcome = iota // unattributed, never persisted
	OutcomeInserted
	OutcomeUpdated
)

// Store is the file-backed catalog of signers, listings and scrape runs.
//
// Every exported operation commits before returning; no call leaves the
// database in a partially written state.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the SQLite catalog at path and ensures the schema exists.
// Schema creation is idempotent and never destructive.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.EnsureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the signer/autograph/run relations if absent.
func (s *Store) EnsureSchema() error {
	if err := s.db.AutoMigrate(&model.Signer{}, &model.Autograph{}, &model.ScrapeRun{}); err != nil {
		return fmt.Errorf("migrate catalog schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new scrape run row and returns its identifier.
func (s *Store) CreateRun(ctx context.Context, note string) (uint, error) {
	run := model.ScrapeRun{Notes: note}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, fmt.Errorf("create scrape run: %w", err)
	}
	return run.ID, nil
}

// GetOrCreateSigner looks a signer up by (name, category) and inserts it on a
// miss. A uniqueness race with a concurrent equivalent insert is recovered by
// re-querying; it is never surfaced as a failure.
func (s *Store) GetOrCreateSigner(ctx context.Context, name, category string) (uint, error) {
	return getOrCreateSigner(s.db.WithContext(ctx), name, category)
}

func getOrCreateSigner(tx *gorm.DB, name, category string) (uint, error) {
	var signer model.Signer
	err := tx.Select("id").
		Where("full_name = ? AND category = ?", name, category).
		First(&signer).Error
	if err == nil {
		return signer.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("lookup signer: %w", err)
	}

	signer = model.Signer{FullName: name, Category: category}
	if createErr := tx.Create(&signer).Error; createErr != nil {
		// Concurrent equivalent insert: treat like a cache hit.
		var existing model.Signer
		if err := tx.Select("id").
			Where("full_name = ? AND category = ?", name, category).
			First(&existing).Error; err != nil {
			return 0, fmt.Errorf("create signer: %w", createErr)
		}
		return existing.ID, nil
	}
	return signer.ID, nil
}

// UpsertListing writes one candidate under the given run id.
//
// Candidates attributed to the unknown sentinel are discarded, never stored.
// If the listing URL already exists only last_seen and run_id are touched;
// otherwise a full new row is inserted. The whole call is one transaction.
func (s *Store) UpsertListing(ctx context.Context, rec ListingRecord, runID uint) (Outcome, error) {
	if rec.SignerName == attribution.UnknownSigner {
		return OutcomeDiscarded, nil
	}

	now := time.Now().UTC()
	outcome := OutcomeInserted

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Autograph
		err := tx.Select("id").Where("listing_url = ?", rec.ListingURL).First(&existing).Error
		if err == nil {
			outcome = OutcomeUpdated
			return tx.Model(&model.Autograph{}).Where("id = ?", existing.ID).
				Updates(map[string]any{"last_seen": now, "run_id": runID}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup listing: %w", err)
		}

		signerID, err := getOrCreateSigner(tx, rec.SignerName, rec.Category)
		if err != nil {
			return err
		}

		// OnConflict keeps the insert idempotent even if an equivalent row
		// lands between the lookup above and this statement.
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "listing_url"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_seen": now,
				"run_id":    runID,
			}),
		}).Create(&model.Autograph{
			Title:      rec.Title,
			Price:      rec.Price,
			ImgURL:     rec.ImgURL,
			ListingURL: rec.ListingURL,
			Category:   rec.Category,
			SignerID:   signerID,
			Confidence: rec.Confidence,
			LastSeen:   now,
			RunID:      runID,
		}).Error
	})
	if err != nil {
		return outcome, fmt.Errorf("upsert listing: %w", err)
	}
	return outcome, nil
}

// CountKnownURLs reports how many of the given listing URLs already exist.
func (s *Store) CountKnownURLs(ctx context.Context, urls []string) (int64, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Autograph{}).
		Where("listing_url IN ?", urls).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count known urls: %w", err)
	}
	return count, nil
}

// CountListings returns the total number of stored listings.
func (s *Store) CountListings(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Autograph{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
