package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"kangaroo/internal/domain/model"
)

// scriptFeed replays a fixed sequence of fetch results, then repeats the
// last one.
type scriptFeed struct {
	batches  [][]model.StockRow
	errs     []error
	i        int
	started  bool
	stopped  bool
	startErr error
}

func (f *scriptFeed) Name() string { return "script" }

func (f *scriptFeed) Start(ctx context.Context) error {
	f.started = true
	return f.startErr
}

func (f *scriptFeed) Fetch(ctx context.Context) ([]model.StockRow, error) {
	i := f.i
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	f.i++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.batches[i], err
}

func (f *scriptFeed) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

type mockMarketRepo struct {
	upserts  int
	failNext bool
	last     []model.Stock
}

func (m *mockMarketRepo) UpsertStocks(ctx context.Context, stocks []model.Stock) error {
	m.upserts++
	if m.failNext {
		m.failNext = false
		return errors.New("db locked")
	}
	m.last = stocks
	return nil
}

func (m *mockMarketRepo) GetStock(ctx context.Context, ticker string) (*model.Stock, error) {
	return nil, model.ErrStockNotFound
}

func (m *mockMarketRepo) ListStocks(ctx context.Context) ([]model.Stock, error) {
	return m.last, nil
}

func row(ticker, price string) model.StockRow {
	return model.StockRow{Ticker: ticker, Name: ticker + " Ltd", Price: price, ChangePercent: "+0.00%"}
}

func TestIngestorWritesOncePerChange(t *testing.T) {
	// batches 0..5; only positions 2 and 5 differ from their predecessor
	same := []model.StockRow{row("BHP", "$45.00"), row("CBA", "$110.00")}
	changed := []model.StockRow{row("BHP", "$45.10"), row("CBA", "$110.00")}
	changedAgain := []model.StockRow{row("BHP", "$45.10"), row("CBA", "$110.55")}

	feed := &scriptFeed{batches: [][]model.StockRow{same, same, changed, changed, changed, changedAgain}}
	repo := &mockMarketRepo{}
	ing := NewIngestor(IngestorDeps{Feed: feed, Repo: repo})

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		ing.cycle(ctx)
	}

	// first batch + two changes = 3 writes
	if repo.upserts != 3 {
		t.Errorf("expected 3 writes, got %d", repo.upserts)
	}
	if ing.LiveTicks() != 3 {
		t.Errorf("expected 3 unchanged ticks, got %d", ing.LiveTicks())
	}
}

func TestIngestorSkipsEmptyAndFailedFetches(t *testing.T) {
	batch := []model.StockRow{row("BHP", "$45.00")}
	feed := &scriptFeed{
		batches: [][]model.StockRow{nil, nil, batch},
		errs:    []error{nil, errors.New("scraper down"), nil},
	}
	repo := &mockMarketRepo{}
	ing := NewIngestor(IngestorDeps{Feed: feed, Repo: repo})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ing.cycle(ctx)
	}

	if repo.upserts != 1 {
		t.Errorf("expected 1 write, got %d", repo.upserts)
	}
}

func TestIngestorRetriesAfterWriteFailure(t *testing.T) {
	batch := []model.StockRow{row("BHP", "$45.00")}
	feed := &scriptFeed{batches: [][]model.StockRow{batch}}
	repo := &mockMarketRepo{failNext: true}
	ing := NewIngestor(IngestorDeps{Feed: feed, Repo: repo})

	ctx := context.Background()
	ing.cycle(ctx) // write fails, marker must not advance
	ing.cycle(ctx) // same batch retried

	if repo.upserts != 2 {
		t.Errorf("expected a retry write, got %d upserts", repo.upserts)
	}
	if len(repo.last) != 1 {
		t.Errorf("retry did not land the batch")
	}
}

func TestIngestorTearsDownFeedOnCancel(t *testing.T) {
	feed := &scriptFeed{batches: [][]model.StockRow{{row("BHP", "$45.00")}}}
	repo := &mockMarketRepo{}
	ing := NewIngestor(IngestorDeps{Feed: feed, Repo: repo, Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if !feed.started {
		t.Error("feed was never started")
	}
	if !feed.stopped {
		t.Error("feed was not stopped during teardown")
	}
}

func TestIngestorSurvivesStartFailure(t *testing.T) {
	feed := &scriptFeed{
		batches:  [][]model.StockRow{{row("BHP", "$45.00")}},
		startErr: errors.New("browser failed to launch"),
	}
	repo := &mockMarketRepo{}
	ing := NewIngestor(IngestorDeps{Feed: feed, Repo: repo, Interval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = ing.Run(ctx)

	if repo.upserts == 0 {
		t.Error("loop did not keep polling after a failed start")
	}
	if !feed.stopped {
		t.Error("feed not stopped even though start failed")
	}
}
