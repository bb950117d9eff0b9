package model

import (
	"time"
)

// Signer is a public figure whose autograph is being cataloged.
//
// Identity is the (FullName, Category) pair; a signer row is created the first
// time an attributed listing references that pair and is never deleted or
// renamed. The enrichment columns stay NULL until a later pass fills them in,
// the scrape pipeline itself never writes them.
type Signer struct {
	ID       uint   `gorm:"primaryKey"`
	FullName string `gorm:"not null;uniqueIndex:idx_signer_identity"`
	Category string `gorm:"not null;uniqueIndex:idx_signer_identity"`

	BirthYear    *int
	ActiveYears  *string // e.g. "1962-1989"
	Nationality  *string
	NotableWorks *string
	Deceased     *bool
}

// Autograph is one scraped marketplace listing, keyed by its source URL.
//
// A second sighting of the same ListingURL updates LastSeen and RunID only;
// all other columns keep their first-seen values.
type Autograph struct {
	ID         uint `gorm:"primaryKey"`
	Title      string
	Price      string // free text as shown on the listing, "N/A" when absent
	ImgURL     string
	ListingURL string `gorm:"uniqueIndex;not null"`
	Category   string

	SignerID   uint   `gorm:"not null"`
	Signer     Signer `gorm:"foreignKey:SignerID"`
	Confidence float64

	LastSeen time.Time
	RunID    uint      `gorm:"not null"`
	Run      ScrapeRun `gorm:"foreignKey:RunID"`
}

// ScrapeRun tags every listing written during one pipeline invocation.
// Rows are immutable after creation.
type ScrapeRun struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"autoCreateTime"`
	Notes     string
}
