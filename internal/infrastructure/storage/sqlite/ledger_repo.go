package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

func (s *Store) SeedAccount(ctx context.Context, sessionID string, balance float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_accounts(session_id, balance) VALUES(?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, sessionID, balance)
	return err
}

// ExecuteTrade runs the whole trade state machine in one transaction: seed
// the account if missing, apply the BUY/SELL rules, append the log row.
// Rule violations surface as typed errors and roll everything back.
func (s *Store) ExecuteTrade(ctx context.Context, req port.TradeRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance float64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM session_accounts WHERE session_id=?`, req.SessionID).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// self-healing against a missing seed
		balance = req.SeedBalance
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_accounts(session_id, balance) VALUES(?, ?)`, req.SessionID, balance); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	total := float64(req.Shares) * req.Price

	var shares int64
	var avgCost float64
	holdErr := tx.QueryRowContext(ctx, `SELECT shares, avg_cost FROM session_holdings WHERE session_id=? AND ticker=?`,
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
		if _, err := tx.ExecContext(ctx, `UPDATE session_accounts SET balance=balance-? WHERE session_id=?`, total, req.SessionID); err != nil {
			return err
		}
		if held {
			newShares := shares + req.Shares
			newAvg := (float64(shares)*avgCost + total) / float64(newShares)
			if _, err := tx.ExecContext(ctx, `UPDATE session_holdings SET shares=?, avg_cost=? WHERE session_id=? AND ticker=?`,
				newShares, newAvg, req.SessionID, req.Ticker); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `INSERT INTO session_holdings(session_id, ticker, shares, avg_cost) VALUES(?, ?, ?, ?)`,
				req.SessionID, req.Ticker, req.Shares, req.Price); err != nil {
				return err
			}
		}

	case model.TradeSell:
		if !held || shares < req.Shares {
			return model.ErrInsufficientShares
		}
		if _, err := tx.ExecContext(ctx, `UPDATE session_accounts SET balance=balance+? WHERE session_id=?`, total, req.SessionID); err != nil {
			return err
		}
		remaining := shares - req.Shares
		if remaining == 0 {
			// holdings never persist at zero shares
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_holdings WHERE session_id=? AND ticker=?`, req.SessionID, req.Ticker); err != nil {
				return err
			}
		} else {
			// avg_cost unchanged: it is the cost basis of the remaining shares
			if _, err := tx.ExecContext(ctx, `UPDATE session_holdings SET shares=? WHERE session_id=? AND ticker=?`,
				remaining, req.SessionID, req.Ticker); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown trade type %q", req.Type)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_transactions(session_id, ticker, type, shares, price, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, req.SessionID, req.Ticker, string(req.Type), req.Shares, req.Price, req.Now.UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, sessionID string) (*model.SessionAccount, error) {
	acc := model.SessionAccount{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM session_accounts WHERE session_id=?`, sessionID).Scan(&acc.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Store) ListHoldings(ctx context.Context, sessionID string) ([]model.SessionHolding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, shares, avg_cost FROM session_holdings WHERE session_id=? ORDER BY ticker`, sessionID)
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
		FROM session_transactions WHERE session_id=? ORDER BY id DESC
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

// PurgeSession cascades the delete of every session-scoped row.
func (s *Store) PurgeSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM session_holdings WHERE session_id=?`,
		`DELETE FROM session_transactions WHERE session_id=?`,
		`DELETE FROM session_accounts WHERE session_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
