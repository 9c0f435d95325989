package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kangaroo/internal/domain/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stock(ticker string, price, mcap float64) model.Stock {
	return model.Stock{
		Ticker:       ticker,
		Name:         ticker + " Ltd",
		Price:        price,
		MarketCapVal: mcap,
		LastUpdated:  time.Now(),
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := stock("BHP", 45.00, 231e9)
	first.LastUpdated = time.UnixMilli(1000)
	if err := s.UpsertStocks(ctx, []model.Stock{first}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	second := stock("BHP", 45.10, 232e9)
	second.LastUpdated = time.UnixMilli(2000)
	if err := s.UpsertStocks(ctx, []model.Stock{second}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.GetStock(ctx, "BHP")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Price != 45.10 {
		t.Errorf("price not updated: %v", got.Price)
	}
	if got.LastUpdated.UnixMilli() != 2000 {
		t.Errorf("last_updated not advanced: %v", got.LastUpdated.UnixMilli())
	}

	all, err := s.ListStocks(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ticker duplicated: %d rows", len(all))
	}
}

func TestGetStockNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetStock(context.Background(), "XYZ")
	if !errors.Is(err, model.ErrStockNotFound) {
		t.Errorf("expected ErrStockNotFound, got %v", err)
	}
}

func TestListStocksOrdersByMarketCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// display strings would sort "99B" above "200B"; the raw value must win
	batch := []model.Stock{
		stock("SML", 5.00, 99e9),
		stock("BIG", 45.00, 200e9),
		stock("MID", 20.00, 150e9),
	}
	if err := s.UpsertStocks(ctx, batch); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	all, err := s.ListStocks(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"BIG", "MID", "SML"}
	for i, w := range want {
		if all[i].Ticker != w {
			t.Errorf("position %d = %s, want %s", i, all[i].Ticker, w)
		}
	}
}

func TestUpsertBatchIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertStocks(ctx, []model.Stock{stock("BHP", 45, 1), stock("CBA", 110, 2)}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	all, _ := s.ListStocks(ctx)
	if len(all) != 2 {
		t.Errorf("expected both rows committed together, got %d", len(all))
	}
}
