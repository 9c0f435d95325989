package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer connection; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS stocks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ticker TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  sector TEXT NOT NULL DEFAULT '',
  price REAL NOT NULL DEFAULT 0,
  change_amount REAL NOT NULL DEFAULT 0,
  change_percent TEXT NOT NULL DEFAULT '0%',
  market_cap TEXT NOT NULL DEFAULT '',
  market_cap_value REAL NOT NULL DEFAULT 0,
  volume TEXT NOT NULL DEFAULT '',
  volume_value REAL NOT NULL DEFAULT 0,
  last_updated INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stocks_mcap ON stocks(market_cap_value);

CREATE TABLE IF NOT EXISTS session_accounts (
  session_id TEXT PRIMARY KEY,
  balance REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS session_holdings (
  session_id TEXT NOT NULL,
  ticker TEXT NOT NULL,
  shares INTEGER NOT NULL,
  avg_cost REAL NOT NULL,
  PRIMARY KEY(session_id, ticker)
);

CREATE TABLE IF NOT EXISTS session_transactions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  ticker TEXT NOT NULL,
  type TEXT NOT NULL,
  shares INTEGER NOT NULL,
  price REAL NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_tx ON session_transactions(session_id);
`)
	return err
}

// UpsertStocks applies the whole batch in one transaction. Any failure rolls
// everything back; partial batches are never visible to readers.
func (s *Store) UpsertStocks(ctx context.Context, stocks []model.Stock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stocks(ticker, name, sector, price, change_amount, change_percent,
		                   market_cap, market_cap_value, volume, volume_value, last_updated)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
		name=excluded.name, sector=excluded.sector, price=excluded.price, change_amount=excluded.change_amount,
		change_percent=excluded.change_percent, market_cap=excluded.market_cap,
		market_cap_value=excluded.market_cap_value, volume=excluded.volume,
		volume_value=excluded.volume_value, last_updated=excluded.last_updated
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range stocks {
		if _, err := stmt.ExecContext(ctx,
			st.Ticker, st.Name, st.Sector, st.Price, st.ChangeAmount, st.ChangePercent,
			st.MarketCap, st.MarketCapVal, st.Volume, st.VolumeVal, st.LastUpdated.UnixMilli(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const stockCols = `ticker, name, sector, price, change_amount, change_percent,
	market_cap, market_cap_value, volume, volume_value, last_updated`

func scanStock(row interface{ Scan(...any) error }) (model.Stock, error) {
	var st model.Stock
	var ts int64
	err := row.Scan(&st.Ticker, &st.Name, &st.Sector, &st.Price, &st.ChangeAmount,
		&st.ChangePercent, &st.MarketCap, &st.MarketCapVal, &st.Volume, &st.VolumeVal, &ts)
	if err != nil {
		return st, err
	}
	st.LastUpdated = time.UnixMilli(ts)
	return st, nil
}

func (s *Store) GetStock(ctx context.Context, ticker string) (*model.Stock, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stockCols+` FROM stocks WHERE ticker=?`, ticker)
	st, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrStockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStocks returns the universe ordered by raw market cap, largest first.
func (s *Store) ListStocks(ctx context.Context) ([]model.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stockCols+` FROM stocks ORDER BY market_cap_value DESC, ticker ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

var _ port.Store = (*Store)(nil)
