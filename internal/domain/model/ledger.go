package model

import "time"

// TradeType is the direction of a ledger trade.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// Valid reports whether t is one of the two known directions.
func (t TradeType) Valid() bool { return t == TradeBuy || t == TradeSell }

// SessionAccount is the cash balance of one paper-trading session.
// Balance never goes negative; it is mutated only inside a trade transaction.
type SessionAccount struct {
	SessionID string  `json:"session_id"`
	Balance   float64 `json:"balance"`
}

// SessionHolding is one open position, keyed by (session_id, ticker).
// A holding with zero shares is deleted, never persisted.
type SessionHolding struct {
	SessionID string  `json:"session_id"`
	Ticker    string  `json:"ticker"`
	Shares    int64   `json:"shares"`
	AvgCost   float64 `json:"avg_cost"` // volume-weighted purchase price
}

// SessionTransaction is one append-only trade log row. Rows are never
// updated; they disappear only when the owning session expires.
type SessionTransaction struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Ticker    string    `json:"ticker"`
	Type      TradeType `json:"type"`
	Shares    int64     `json:"shares"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
