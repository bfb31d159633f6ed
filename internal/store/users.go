package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userColumns = `id, email, full_name, phone, profile_image, password_hash, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.ProfileImage, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByEmail returns the user with the given email, or nil when absent.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE email = ?
LIMIT 1;
`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UserByID returns the user with the given id, or nil when absent.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = ?
LIMIT 1;
`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new user and returns its store-assigned id.
// A duplicate email surfaces as ErrConstraint.
func (s *Store) CreateUser(ctx context.Context, nu NewUser) (int64, error) {
	if err := s.checkInput("create user", nu); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO users (email, full_name, phone, profile_image, password_hash)
VALUES (?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, q, nu.Email, nu.FullName, nu.Phone, nu.ProfileImage, nu.PasswordHash)
	if err != nil {
		return 0, wrapErr("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user id: %w", err)
	}
	s.publish(tableUsers)
	return id, nil
}

// UpdateUserProfile patches the profile fields that are set and reports
// whether a row changed.
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, patch ProfilePatch) (bool, error) {
	const q = `
UPDATE users
SET full_name = COALESCE(?, full_name),
    phone = COALESCE(?, phone),
    profile_image = COALESCE(?, profile_image),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?;
`
	res, err := s.db.ExecContext(ctx, q, patch.FullName, patch.Phone, patch.ProfileImage, id)
	if err != nil {
		return false, wrapErr("update user profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update user profile rows: %w", err)
	}
	if n > 0 {
		s.publish(tableUsers)
	}
	return n > 0, nil
}
