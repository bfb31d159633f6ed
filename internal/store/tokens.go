package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TokenByUserID returns the user's auth token, or nil when absent.
func (s *Store) TokenByUserID(ctx context.Context, userID int64) (*AuthToken, error) {
	const q = `
SELECT id, user_id, access_token, refresh_token, expires_at, created_at
FROM auth_tokens
WHERE user_id = ?
LIMIT 1;
`
	var t AuthToken
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&t.ID, &t.UserID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token by user: %w", err)
	}
	return &t, nil
}

// UpsertToken stores or replaces the user's token; at most one token per
// user exists at any time.
func (s *Store) UpsertToken(ctx context.Context, rec TokenRecord) error {
	if err := s.checkInput("upsert token", rec); err != nil {
		return err
	}
	const q = `
INSERT INTO auth_tokens (user_id, access_token, refresh_token, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    access_token = excluded.access_token,
    refresh_token = excluded.refresh_token,
    expires_at = excluded.expires_at,
    created_at = CURRENT_TIMESTAMP;
`
	if _, err := s.db.ExecContext(ctx, q, rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt); err != nil {
		return wrapErr("upsert token", err)
	}
	s.publish(tableAuthTokens)
	return nil
}

// DeleteTokenByUserID removes the user's token and returns the number of
// rows deleted (0 when no token existed).
func (s *Store) DeleteTokenByUserID(ctx context.Context, userID int64) (int64, error) {
	const q = `DELETE FROM auth_tokens WHERE user_id = ?;`
	res, err := s.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, wrapErr("delete token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete token rows: %w", err)
	}
	if n > 0 {
		s.publish(tableAuthTokens)
	}
	return n, nil
}

// TokenValid reports whether the user holds a token whose expiry is
// strictly after now. The expiry comparison happens here, not in SQL,
// so validity is a pure function of the stored timestamp.
func (s *Store) TokenValid(ctx context.Context, userID int64) (bool, error) {
	t, err := s.TokenByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	return t.ExpiresAt.After(time.Now()), nil
}
