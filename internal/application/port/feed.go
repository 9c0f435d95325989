package port

import (
	"context"

	"kangaroo/internal/domain/model"
)

// MarketFeed is the scraping adapter the ingestion loop polls.
//
// Fetch must return the full universe or nothing: a partial batch would make
// the snapshot diff look changed while leaving the missing tickers stale.
// It returns an empty slice, not an error, when the source has no data.
type MarketFeed interface {
	Name() string
	// Start is idempotent setup; safe to call once before the first Fetch.
	Start(ctx context.Context) error
	Fetch(ctx context.Context) ([]model.StockRow, error)
	// Stop releases feed resources. Safe to call even if Start partially failed.
	Stop(ctx context.Context) error
}
