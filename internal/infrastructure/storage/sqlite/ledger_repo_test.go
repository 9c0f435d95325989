package sqlite

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

const seedBalance = 100000.0

func trade(session, ticker string, shares int64, price float64, typ model.TradeType) port.TradeRequest {
	return port.TradeRequest{
		SessionID:   session,
		Ticker:      ticker,
		Shares:      shares,
		Price:       price,
		Type:        typ,
		SeedBalance: seedBalance,
		Now:         time.Now(),
	}
}

func mustBalance(t *testing.T, s *Store, session string) float64 {
	t.Helper()
	acc, err := s.GetAccount(context.Background(), session)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if acc == nil {
		t.Fatalf("no account for %s", session)
	}
	return acc.Balance
}

func TestTradeSelfSeedsAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// no SeedAccount call; the trade must create the account first
	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 45.0, model.TradeBuy)); err != nil {
		t.Fatalf("trade failed: %v", err)
	}
	if got := mustBalance(t, s, "s1"); got != seedBalance-450 {
		t.Errorf("balance = %v, want %v", got, seedBalance-450)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// cost 120000 against the 100000 seed
	err := s.ExecuteTrade(ctx, trade("s1", "BHP", 2000, 60.0, model.TradeBuy))
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := mustBalance(t, s, "s1"); got != seedBalance {
		t.Errorf("balance changed on rejected trade: %v", got)
	}
	holdings, _ := s.ListHoldings(ctx, "s1")
	if len(holdings) != 0 {
		t.Errorf("rejected trade left a holding: %v", holdings)
	}
	txs, _ := s.ListTransactions(ctx, "s1")
	if len(txs) != 0 {
		t.Errorf("rejected trade logged: %v", txs)
	}
}

func TestBuyAveragesCost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 100.0, model.TradeBuy)); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 200.0, model.TradeBuy)); err != nil {
		t.Fatalf("second buy failed: %v", err)
	}

	holdings, err := s.ListHoldings(ctx, "s1")
	if err != nil || len(holdings) != 1 {
		t.Fatalf("expected one holding, got %v (%v)", holdings, err)
	}
	h := holdings[0]
	if h.Shares != 20 {
		t.Errorf("shares = %d, want 20", h.Shares)
	}
	if h.AvgCost != 150.0 {
		t.Errorf("avg_cost = %v, want 150", h.AvgCost)
	}
}

func TestSellInsufficientShares(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ExecuteTrade(ctx, trade("s1", "BHP", 5, 45.0, model.TradeSell))
	if !errors.Is(err, model.ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares with no holding, got %v", err)
	}

	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 5, 45.0, model.TradeBuy)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	err = s.ExecuteTrade(ctx, trade("s1", "BHP", 6, 45.0, model.TradeSell))
	if !errors.Is(err, model.ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares on oversell, got %v", err)
	}
}

func TestFullLiquidationRemovesHolding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 5, 10.0, model.TradeBuy)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 5, 12.0, model.TradeSell)); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	holdings, _ := s.ListHoldings(ctx, "s1")
	if len(holdings) != 0 {
		t.Errorf("fully liquidated holding persisted: %v", holdings)
	}
	// spent 50, received 60
	if got := mustBalance(t, s, "s1"); got != seedBalance+10 {
		t.Errorf("balance = %v, want %v", got, seedBalance+10)
	}
}

func TestPartialSellKeepsAvgCost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 100.0, model.TradeBuy)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 4, 150.0, model.TradeSell)); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	holdings, _ := s.ListHoldings(ctx, "s1")
	if len(holdings) != 1 {
		t.Fatalf("expected holding to remain, got %v", holdings)
	}
	if holdings[0].Shares != 6 {
		t.Errorf("shares = %d, want 6", holdings[0].Shares)
	}
	if holdings[0].AvgCost != 100.0 {
		t.Errorf("avg_cost changed by sell: %v", holdings[0].AvgCost)
	}
}

func TestTradeConservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	steps := []port.TradeRequest{
		trade("s1", "BHP", 100, 45.0, model.TradeBuy),
		trade("s1", "CBA", 50, 110.0, model.TradeBuy),
		trade("s1", "BHP", 40, 47.0, model.TradeSell),
		trade("s1", "BHP", 20, 44.0, model.TradeBuy),
		trade("s1", "CBA", 50, 112.0, model.TradeSell),
	}
	realized := 0.0
	for _, req := range steps {
		if err := s.ExecuteTrade(ctx, req); err != nil {
			t.Fatalf("trade %+v failed: %v", req, err)
		}
		amount := float64(req.Shares) * req.Price
		if req.Type == model.TradeBuy {
			realized -= amount
		} else {
			realized += amount
		}
	}

	balance := mustBalance(t, s, "s1")
	if math.Abs(balance-(seedBalance+realized)) > 1e-6 {
		t.Errorf("cash not conserved: balance %v, want %v", balance, seedBalance+realized)
	}
	holdings, _ := s.ListHoldings(ctx, "s1")
	for _, h := range holdings {
		if h.Shares <= 0 {
			t.Errorf("holding %s has non-positive shares: %d", h.Ticker, h.Shares)
		}
	}
	txs, _ := s.ListTransactions(ctx, "s1")
	if len(txs) != len(steps) {
		t.Errorf("transaction log has %d rows, want %d", len(txs), len(steps))
	}
}

func TestPurgeSessionCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 45.0, model.TradeBuy)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	// second session must survive the purge of the first
	if err := s.ExecuteTrade(ctx, trade("s2", "CBA", 5, 110.0, model.TradeBuy)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if err := s.PurgeSession(ctx, "s1"); err != nil {
		t.Fatalf("purge failed: %v", err)
	}

	acc, _ := s.GetAccount(ctx, "s1")
	if acc != nil {
		t.Error("purged account still present")
	}
	holdings, _ := s.ListHoldings(ctx, "s1")
	if len(holdings) != 0 {
		t.Error("purged holdings still present")
	}
	txs, _ := s.ListTransactions(ctx, "s1")
	if len(txs) != 0 {
		t.Error("purged transactions still present")
	}

	if got := mustBalance(t, s, "s2"); got != seedBalance-550 {
		t.Errorf("unrelated session touched by purge: %v", got)
	}
}

func TestSeedAccountIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedAccount(ctx, "s1", seedBalance); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 45.0, model.TradeBuy)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	// re-seeding must not reset the balance
	if err := s.SeedAccount(ctx, "s1", seedBalance); err != nil {
		t.Fatalf("re-seed failed: %v", err)
	}
	if got := mustBalance(t, s, "s1"); got != seedBalance-450 {
		t.Errorf("re-seed reset the balance: %v", got)
	}
}

func TestTradeRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ExecuteTrade(ctx, trade("s1", "BHP", 10, 45.0, model.TradeType("HOLD")))
	if err == nil {
		t.Fatal("expected error for unknown trade type")
	}

	// nothing committed: no account, no log row
	acc, err := s.GetAccount(ctx, "s1")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if acc != nil {
		t.Errorf("rejected trade left an account behind: %+v", acc)
	}
	txs, err := s.ListTransactions(ctx, "s1")
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("rejected trade was logged: %+v", txs)
	}
}
