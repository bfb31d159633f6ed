package store

import (
	"context"
	"fmt"
)

// FavoriteRoutesForUser returns the routes the user has favorited,
// most recently added first.
func (s *Store) FavoriteRoutesForUser(ctx context.Context, userID int64) ([]Route, error) {
	const q = `
SELECT r.id, r.name, r.start_point, r.end_point, r.stop_count, r.duration, r.base_fare, r.fare_per_stop, r.currency, r.stops, r.active, r.created_at
FROM routes r
JOIN favorite_routes f ON f.route_id = r.id
WHERE f.user_id = ?
ORDER BY f.created_at DESC, f.id DESC;
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorite routes: %w", err)
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		r, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan favorite route: %w", err)
		}
		routes = append(routes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorite routes: %w", err)
	}
	return routes, nil
}

// IsFavorite reports whether the user has favorited the route.
func (s *Store) IsFavorite(ctx context.Context, userID, routeID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM favorite_routes WHERE user_id = ? AND route_id = ?);`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, userID, routeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

// AddFavorite marks the route as a favorite for the user and returns the
// new row id. Adding an existing pair surfaces as ErrConstraint.
func (s *Store) AddFavorite(ctx context.Context, userID, routeID int64) (int64, error) {
	const q = `INSERT INTO favorite_routes (user_id, route_id) VALUES (?, ?);`
	res, err := s.db.ExecContext(ctx, q, userID, routeID)
	if err != nil {
		return 0, wrapErr("insert favorite", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert favorite id: %w", err)
	}
	s.publish(tableFavoriteRoutes)
	return id, nil
}

// RemoveFavorite unmarks the route and returns the number of rows
// removed (0 when the pair was not favorited).
func (s *Store) RemoveFavorite(ctx context.Context, userID, routeID int64) (int64, error) {
	const q = `DELETE FROM favorite_routes WHERE user_id = ? AND route_id = ?;`
	res, err := s.db.ExecContext(ctx, q, userID, routeID)
	if err != nil {
		return 0, wrapErr("delete favorite", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete favorite rows: %w", err)
	}
	if n > 0 {
		s.publish(tableFavoriteRoutes)
	}
	return n, nil
}

// WatchFavorite emits the favorite status immediately and then on every
// add/remove that flips it. Unchanged recomputes are not re-delivered.
func (s *Store) WatchFavorite(ctx context.Context, userID, routeID int64) (<-chan bool, func()) {
	return watchQuery(ctx, s, []string{tableFavoriteRoutes}, func(ctx context.Context) (bool, error) {
		return s.IsFavorite(ctx, userID, routeID)
	}, func(prev, next bool) bool { return prev == next })
}
