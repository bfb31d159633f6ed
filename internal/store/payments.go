package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const paymentColumns = `id, user_id, amount, type, status, description, reference, transacted_at, created_at`

// PaymentsByUserID returns all payments for the user, newest first.
func (s *Store) PaymentsByUserID(ctx context.Context, userID int64) ([]Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE user_id = ?
ORDER BY transacted_at DESC;
`
	return s.queryPayments(ctx, q, userID)
}

// RecentPayments returns the latest payments for the user, capped at limit.
func (s *Store) RecentPayments(ctx context.Context, userID int64, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE user_id = ?
ORDER BY transacted_at DESC
LIMIT ?;
`
	return s.queryPayments(ctx, q, userID, limit)
}

// PaymentByReference returns the payment with the given reference id,
// or nil when absent.
func (s *Store) PaymentByReference(ctx context.Context, reference string) (*Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE reference = ?
LIMIT 1;
`
	var p Payment
	err := s.db.QueryRowContext(ctx, q, reference).Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Type, &p.Status, &p.Description, &p.Reference, &p.TransactedAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment by reference: %w", err)
	}
	return &p, nil
}

func (s *Store) queryPayments(ctx context.Context, q string, args ...any) ([]Payment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Type, &p.Status, &p.Description, &p.Reference, &p.TransactedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

// CreatePayment records a payment and returns its store-assigned id.
// A duplicate reference surfaces as ErrConstraint.
func (s *Store) CreatePayment(ctx context.Context, rec PaymentRecord) (int64, error) {
	id, err := s.createPayment(ctx, s.db, rec)
	if err != nil {
		return 0, err
	}
	s.publish(tablePayments)
	return id, nil
}

// CreatePaymentTx records a payment inside an open transaction.
func (s *Store) CreatePaymentTx(ctx context.Context, tx *Tx, rec PaymentRecord) (int64, error) {
	id, err := s.createPayment(ctx, tx.tx, rec)
	if err != nil {
		return 0, err
	}
	tx.touch(tablePayments)
	return id, nil
}

func (s *Store) createPayment(ctx context.Context, q dbtx, rec PaymentRecord) (int64, error) {
	if err := s.checkInput("create payment", rec); err != nil {
		return 0, err
	}
	if rec.TransactedAt.IsZero() {
		rec.TransactedAt = time.Now()
	}
	const stmt = `
INSERT INTO payments (user_id, amount, type, status, description, reference, transacted_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	res, err := q.ExecContext(ctx, stmt,
		rec.UserID,
		rec.Amount,
		rec.Type,
		rec.Status,
		rec.Description,
		rec.Reference,
		rec.TransactedAt,
	)
	if err != nil {
		return 0, wrapErr("insert payment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert payment id: %w", err)
	}
	return id, nil
}

// CountPaymentsByUserID reports how many payments the user has recorded.
func (s *Store) CountPaymentsByUserID(ctx context.Context, userID int64) (int64, error) {
	const q = `SELECT COUNT(1) FROM payments WHERE user_id = ?;`
	var n int64
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}
