package store

import (
	"context"
	"fmt"
	"time"
)

const tripColumns = `id, user_id, route_name, from_location, to_location, fare, status, trip_at, created_at`

// TripsByUserID returns all trips for the user, newest first.
func (s *Store) TripsByUserID(ctx context.Context, userID int64) ([]Trip, error) {
	const q = `
SELECT ` + tripColumns + `
FROM trips
WHERE user_id = ?
ORDER BY trip_at DESC;
`
	return s.queryTrips(ctx, q, userID)
}

// RecentTrips returns the latest trips for the user, capped at limit.
func (s *Store) RecentTrips(ctx context.Context, userID int64, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT ` + tripColumns + `
FROM trips
WHERE user_id = ?
ORDER BY trip_at DESC
LIMIT ?;
`
	return s.queryTrips(ctx, q, userID, limit)
}

func (s *Store) queryTrips(ctx context.Context, q string, args ...any) ([]Trip, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		if err := rows.Scan(&t.ID, &t.UserID, &t.RouteName, &t.FromLocation, &t.ToLocation, &t.Fare, &t.Status, &t.TripAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}
	return trips, nil
}

// CreateTrip records a trip and returns its store-assigned id.
func (s *Store) CreateTrip(ctx context.Context, rec TripRecord) (int64, error) {
	id, err := s.createTrip(ctx, s.db, rec)
	if err != nil {
		return 0, err
	}
	s.publish(tableTrips)
	return id, nil
}

// CreateTripTx records a trip inside an open transaction.
func (s *Store) CreateTripTx(ctx context.Context, tx *Tx, rec TripRecord) (int64, error) {
	id, err := s.createTrip(ctx, tx.tx, rec)
	if err != nil {
		return 0, err
	}
	tx.touch(tableTrips)
	return id, nil
}

func (s *Store) createTrip(ctx context.Context, q dbtx, rec TripRecord) (int64, error) {
	if err := s.checkInput("create trip", rec); err != nil {
		return 0, err
	}
	if rec.TripAt.IsZero() {
		rec.TripAt = time.Now()
	}
	const stmt = `
INSERT INTO trips (user_id, route_name, from_location, to_location, fare, status, trip_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	res, err := q.ExecContext(ctx, stmt,
		rec.UserID,
		rec.RouteName,
		rec.FromLocation,
		rec.ToLocation,
		rec.Fare,
		rec.Status,
		rec.TripAt,
	)
	if err != nil {
		return 0, wrapErr("insert trip", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert trip id: %w", err)
	}
	return id, nil
}

// CountTripsByUserID reports how many trips the user has recorded.
func (s *Store) CountTripsByUserID(ctx context.Context, userID int64) (int64, error) {
	const q = `SELECT COUNT(1) FROM trips WHERE user_id = ?;`
	var n int64
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return n, nil
}
