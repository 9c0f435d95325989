package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

// DefaultSeedBalance is the paper-cash every new session starts with.
const DefaultSeedBalance = 100000.0

// LedgerService executes paper trades against a session ledger. The rules
// themselves run inside the repository transaction; this layer validates
// input and normalizes it.
type LedgerService struct {
	repo        port.LedgerRepository
	seedBalance float64
	clock       func() time.Time
}

func NewLedgerService(repo port.LedgerRepository, seedBalance float64, clock func() time.Time) *LedgerService {
	if seedBalance <= 0 {
		seedBalance = DefaultSeedBalance
	}
	if clock == nil {
		clock = time.Now
	}
	return &LedgerService{repo: repo, seedBalance: seedBalance, clock: clock}
}

// ExecuteTrade applies one BUY or SELL atomically. It returns
// model.ErrInsufficientFunds / model.ErrInsufficientShares on rule
// violations; those are caller errors, nothing is retried.
func (s *LedgerService) ExecuteTrade(ctx context.Context, sessionID, ticker string, shares int64, price float64, typ model.TradeType) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown trade type %q", typ)
	}
	if shares <= 0 {
		return fmt.Errorf("shares must be positive, got %d", shares)
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %v", price)
	}

	err := s.repo.ExecuteTrade(ctx, port.TradeRequest{
		SessionID:   sessionID,
		Ticker:      strings.ToUpper(strings.TrimSpace(ticker)),
		Shares:      shares,
		Price:       price,
		Type:        typ,
		SeedBalance: s.seedBalance,
		Now:         s.clock(),
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("session", sessionID).
		Str("ticker", ticker).
		Str("type", string(typ)).
		Int64("shares", shares).
		Float64("price", price).
		Msg("trade executed")
	return nil
}

func (s *LedgerService) Account(ctx context.Context, sessionID string) (*model.SessionAccount, error) {
	return s.repo.GetAccount(ctx, sessionID)
}

func (s *LedgerService) Holdings(ctx context.Context, sessionID string) ([]model.SessionHolding, error) {
	return s.repo.ListHoldings(ctx, sessionID)
}

func (s *LedgerService) Transactions(ctx context.Context, sessionID string) ([]model.SessionTransaction, error) {
	return s.repo.ListTransactions(ctx, sessionID)
}
