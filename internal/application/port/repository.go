package port

import (
	"context"
	"time"

	"kangaroo/internal/domain/model"
)

// MarketRepository persists the scraped stock universe. UpsertStocks applies
// the whole batch inside one transaction; a rollback leaves no partial write.
type MarketRepository interface {
	UpsertStocks(ctx context.Context, stocks []model.Stock) error
	GetStock(ctx context.Context, ticker string) (*model.Stock, error)
	ListStocks(ctx context.Context) ([]model.Stock, error)
}

// TradeRequest is one ledger mutation. Execution is a single transaction:
// the account row is seeded if missing, the trade rules are applied, and a
// transaction log row is appended, or none of it happens.
type TradeRequest struct {
	SessionID   string
	Ticker      string
	Shares      int64
	Price       float64
	Type        model.TradeType
	SeedBalance float64
	Now         time.Time
}

// LedgerRepository owns all writes to the session-scoped tables.
type LedgerRepository interface {
	SeedAccount(ctx context.Context, sessionID string, balance float64) error
	ExecuteTrade(ctx context.Context, req TradeRequest) error
	GetAccount(ctx context.Context, sessionID string) (*model.SessionAccount, error)
	ListHoldings(ctx context.Context, sessionID string) ([]model.SessionHolding, error)
	ListTransactions(ctx context.Context, sessionID string) ([]model.SessionTransaction, error)
	PurgeSession(ctx context.Context, sessionID string) error
}

// Store bundles the two repositories a single backend provides.
type Store interface {
	MarketRepository
	LedgerRepository
	Close() error
}
