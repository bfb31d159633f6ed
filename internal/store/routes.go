package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const routeColumns = `id, name, start_point, end_point, stop_count, duration, base_fare, fare_per_stop, currency, stops, active, created_at`

func scanRoute(scan func(dest ...any) error) (*Route, error) {
	var r Route
	var stopsJSON []byte
	err := scan(&r.ID, &r.Name, &r.StartPoint, &r.EndPoint, &r.StopCount, &r.Duration, &r.BaseFare, &r.FarePerStop, &r.Currency, &stopsJSON, &r.Active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stopsJSON, &r.Stops); err != nil {
		return nil, fmt.Errorf("decode stops: %w", err)
	}
	return &r, nil
}

// RouteByID returns the route with the given id, or nil when absent.
func (s *Store) RouteByID(ctx context.Context, id int64) (*Route, error) {
	const q = `
SELECT ` + routeColumns + `
FROM routes
WHERE id = ?
LIMIT 1;
`
	row := s.db.QueryRowContext(ctx, q, id)
	r, err := scanRoute(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get route by id: %w", err)
	}
	return r, nil
}

// ActiveRoutes returns all active routes ordered by name.
func (s *Store) ActiveRoutes(ctx context.Context) ([]Route, error) {
	const q = `
SELECT ` + routeColumns + `
FROM routes
WHERE active = 1
ORDER BY name ASC;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active routes: %w", err)
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		r, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}
	return routes, nil
}

// HasAnyRoutes reports whether any active route exists, without
// materializing rows.
func (s *Store) HasAnyRoutes(ctx context.Context) (bool, error) {
	const q = `SELECT COUNT(1) FROM routes WHERE active = 1;`
	var n int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return false, fmt.Errorf("count active routes: %w", err)
	}
	return n > 0, nil
}

// CreateRoute inserts a route and returns its store-assigned id. The
// stop list is serialized as JSON and round-trips exactly. A duplicate
// name surfaces as ErrConstraint.
func (s *Store) CreateRoute(ctx context.Context, nr NewRoute) (int64, error) {
	if err := s.checkInput("create route", nr); err != nil {
		return 0, err
	}
	if nr.Currency == "" {
		nr.Currency = defaultCurrency
	}
	if nr.FarePerStop == 0 {
		nr.FarePerStop = 5.0
	}

	stopsJSON, err := json.Marshal(nr.Stops)
	if err != nil {
		return 0, fmt.Errorf("encode stops: %w", err)
	}

	const q = `
INSERT INTO routes (name, start_point, end_point, stop_count, duration, base_fare, fare_per_stop, currency, stops, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, q,
		nr.Name,
		nr.StartPoint,
		nr.EndPoint,
		nr.StopCount,
		nr.Duration,
		nr.BaseFare,
		nr.FarePerStop,
		nr.Currency,
		string(stopsJSON),
		nr.Active,
	)
	if err != nil {
		return 0, wrapErr("insert route", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert route id: %w", err)
	}
	s.publish(tableRoutes)
	return id, nil
}
