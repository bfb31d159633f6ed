package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const walletColumns = `id, user_id, balance, points, currency, created_at, updated_at`

func scanWallet(row *sql.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Points, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// WalletByUserID returns the user's wallet, or nil when absent.
func (s *Store) WalletByUserID(ctx context.Context, userID int64) (*Wallet, error) {
	const q = `
SELECT ` + walletColumns + `
FROM wallets
WHERE user_id = ?
LIMIT 1;
`
	w, err := scanWallet(s.db.QueryRowContext(ctx, q, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by user: %w", err)
	}
	return w, nil
}

// CreateWallet inserts a wallet and returns its id. A second wallet for
// the same user surfaces as ErrConstraint.
func (s *Store) CreateWallet(ctx context.Context, nw NewWallet) (int64, error) {
	if err := s.checkInput("create wallet", nw); err != nil {
		return 0, err
	}
	if nw.Currency == "" {
		nw.Currency = defaultCurrency
	}
	const q = `
INSERT INTO wallets (user_id, balance, points, currency)
VALUES (?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, q, nw.UserID, nw.Balance, nw.Points, nw.Currency)
	if err != nil {
		return 0, wrapErr("insert wallet", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert wallet id: %w", err)
	}
	s.publish(tableWallets)
	return id, nil
}

// SetWalletBalance overwrites the wallet balance and reports whether a
// row changed. Negative balances are rejected before any SQL runs.
func (s *Store) SetWalletBalance(ctx context.Context, walletID int64, newBalance float64) (bool, error) {
	if newBalance < 0 {
		return false, fmt.Errorf("set wallet balance: %w: balance must not be negative", ErrInvalidInput)
	}
	const q = `
UPDATE wallets
SET balance = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?;
`
	res, err := s.db.ExecContext(ctx, q, newBalance, walletID)
	if err != nil {
		return false, wrapErr("set wallet balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set wallet balance rows: %w", err)
	}
	if n > 0 {
		s.publish(tableWallets)
	}
	return n > 0, nil
}

// AddWalletPoints adjusts the loyalty points counter.
func (s *Store) AddWalletPoints(ctx context.Context, walletID int64, delta int64) (bool, error) {
	const q = `
UPDATE wallets
SET points = MAX(points + ?, 0),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?;
`
	res, err := s.db.ExecContext(ctx, q, delta, walletID)
	if err != nil {
		return false, wrapErr("add wallet points", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add wallet points rows: %w", err)
	}
	if n > 0 {
		s.publish(tableWallets)
	}
	return n > 0, nil
}

// DebitWalletTx subtracts amount from the wallet inside an open
// transaction, but only if the balance covers it. Returns false when the
// conditional update matched no row, leaving the balance untouched.
func (s *Store) DebitWalletTx(ctx context.Context, tx *Tx, walletID int64, amount float64) (bool, error) {
	const q = `
UPDATE wallets
SET balance = balance - ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND balance >= ?;
`
	res, err := tx.tx.ExecContext(ctx, q, amount, walletID, amount)
	if err != nil {
		return false, wrapErr("debit wallet", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit wallet rows: %w", err)
	}
	if n > 0 {
		tx.touch(tableWallets)
	}
	return n > 0, nil
}

// WatchWalletByUserID emits the user's wallet immediately and again
// after every committed wallet write. Cancel via the returned func.
func (s *Store) WatchWalletByUserID(ctx context.Context, userID int64) (<-chan *Wallet, func()) {
	return watchQuery(ctx, s, []string{tableWallets}, func(ctx context.Context) (*Wallet, error) {
		return s.WalletByUserID(ctx, userID)
	}, nil)
}
