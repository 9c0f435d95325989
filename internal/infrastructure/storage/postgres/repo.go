package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

// Store is the postgres variant of the sqlite store, selected by config.
// Trade transactions lock the account and holding rows with FOR UPDATE so
// concurrent trades on one session serialize on the row scope.
type Store struct {
	db *sql.DB
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  id BIGSERIAL PRIMARY KEY,
  ticker TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  sector TEXT NOT NULL DEFAULT '',
  price DOUBLE PRECISION NOT NULL DEFAULT 0,
  change_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
  change_percent TEXT NOT NULL DEFAULT '0%',
  market_cap TEXT NOT NULL DEFAULT '',
  market_cap_value DOUBLE PRECISION NOT NULL DEFAULT 0,
  volume TEXT NOT NULL DEFAULT '',
  volume_value DOUBLE PRECISION NOT NULL DEFAULT 0,
  last_updated BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stocks_mcap ON stocks(market_cap_value);

CREATE TABLE IF NOT EXISTS session_accounts (
  session_id TEXT PRIMARY KEY,
  balance DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS session_holdings (
  session_id TEXT NOT NULL,
  ticker TEXT NOT NULL,
  shares BIGINT NOT NULL,
  avg_cost DOUBLE PRECISION NOT NULL,
  PRIMARY KEY(session_id, ticker)
);

CREATE TABLE IF NOT EXISTS session_transactions (
  id BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL,
  ticker TEXT NOT NULL,
  type TEXT NOT NULL,
  shares BIGINT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_tx ON session_transactions(session_id);
`)
	return err
}

func (s *Store) UpsertStocks(ctx context.Context, stocks []model.Stock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stocks(ticker, name, sector, price, change_amount, change_percent,
		                   market_cap, market_cap_value, volume, volume_value, last_updated)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+stockCols+` FROM stocks WHERE ticker=$1`, ticker)
	st, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrStockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

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

func (s *Store) SeedAccount(ctx context.Context, sessionID string, balance float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_accounts(session_id, balance) VALUES($1, $2)
		ON CONFLICT(session_id) DO NOTHING
	`, sessionID, balance)
	return err
}

func (s *Store) ExecuteTrade(ctx context.Context, req port.TradeRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance float64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM session_accounts WHERE session_id=$1 FOR UPDATE`, req.SessionID).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		balance = req.SeedBalance
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_accounts(session_id, balance) VALUES($1, $2)`, req.SessionID, balance); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	total := float64(req.Shares) * req.Price

	var shares int64
	var avgCost float64
	holdErr := tx.QueryRowContext(ctx, `SELECT shares, avg_cost FROM session_holdings WHERE session_id=$1 AND ticker=$2 FOR UPDATE`,
		req.SessionID, req.Ticker).Scan(&shares, &avgCost)
	if holdErr != nil && !errors.Is(holdErr, sql.ErrNoRows) {
		return holdErr
	}
	held := holdErr == nil

	switch req.Type {
	case model.TradeBuy:
		if total > balance {
			return model.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx, `UPDATE session_accounts SET balance=balance-$1 WHERE session_id=$2`, total, req.SessionID); err != nil {
			return err
		}
		if held {
			newShares := shares + req.Shares
			newAvg := (float64(shares)*avgCost + total) / float64(newShares)
			if _, err := tx.ExecContext(ctx, `UPDATE session_holdings SET shares=$1, avg_cost=$2 WHERE session_id=$3 AND ticker=$4`,
				newShares, newAvg, req.SessionID, req.Ticker); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `INSERT INTO session_holdings(session_id, ticker, shares, avg_cost) VALUES($1, $2, $3, $4)`,
				req.SessionID, req.Ticker, req.Shares, req.Price); err != nil {
				return err
			}
		}

	case model.TradeSell:
		if !held || shares < req.Shares {
			return model.ErrInsufficientShares
		}
		if _, err := tx.ExecContext(ctx, `UPDATE session_accounts SET balance=balance+$1 WHERE session_id=$2`, total, req.SessionID); err != nil {
			return err
		}
		remaining := shares - req.Shares
		if remaining == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_holdings WHERE session_id=$1 AND ticker=$2`, req.SessionID, req.Ticker); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `UPDATE session_holdings SET shares=$1 WHERE session_id=$2 AND ticker=$3`,
				remaining, req.SessionID, req.Ticker); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown trade type %q", req.Type)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_transactions(session_id, ticker, type, shares, price, created_at)
		VALUES($1, $2, $3, $4, $5, $6)
	`, req.SessionID, req.Ticker, string(req.Type), req.Shares, req.Price, req.Now.UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, sessionID string) (*model.SessionAccount, error) {
	acc := model.SessionAccount{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM session_accounts WHERE session_id=$1`, sessionID).Scan(&acc.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Store) ListHoldings(ctx context.Context, sessionID string) ([]model.SessionHolding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, shares, avg_cost FROM session_holdings WHERE session_id=$1 ORDER BY ticker`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.SessionHolding
	for rows.Next() {
		h := model.SessionHolding{SessionID: sessionID}
		if err := rows.Scan(&h.Ticker, &h.Shares, &h.AvgCost); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, sessionID string) ([]model.SessionTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, type, shares, price, created_at
		FROM session_transactions WHERE session_id=$1 ORDER BY id DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.SessionTransaction
	for rows.Next() {
		t := model.SessionTransaction{SessionID: sessionID}
		var typ string
		var ts int64
		if err := rows.Scan(&t.ID, &t.Ticker, &typ, &t.Shares, &t.Price, &ts); err != nil {
			return nil, err
		}
		t.Type = model.TradeType(typ)
		t.CreatedAt = time.UnixMilli(ts)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *Store) PurgeSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM session_holdings WHERE session_id=$1`,
		`DELETE FROM session_transactions WHERE session_id=$1`,
		`DELETE FROM session_accounts WHERE session_id=$1`,
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var _ port.Store = (*Store)(nil)
