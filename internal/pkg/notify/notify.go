package notify

import (
	"context"
	"time"
)

// RunSummary is the end-of-run report sent to the operator.
type RunSummary struct {
	RunID           uint
	Query           string
	Duration        time.Duration
	PagesFetched    int
	PagesSkipped    int
	NewListings     int
	UpdatedListings int
	Discarded       int
}

// Notifier delivers a run summary.
type Notifier interface {
	Send(ctx context.Context, summary RunSummary) error
}
