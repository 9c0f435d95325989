package port

import (
	"context"

	"kangaroo/internal/domain/model"
)

// QuoteCache is an optional hot-path cache of the last committed batch.
// Misses are never errors; callers fall back to the repository.
type QuoteCache interface {
	SetBatch(ctx context.Context, stocks []model.Stock) error
	Get(ctx context.Context, ticker string) (*model.Stock, bool, error)
	List(ctx context.Context) ([]model.Stock, error)
}

// Publisher receives every committed batch for fan-out to live consumers.
type Publisher interface {
	PublishStocks(stocks []model.Stock)
}
