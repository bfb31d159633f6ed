package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"safiri-store/internal/logging"
	"safiri-store/internal/metrics"
	"safiri-store/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := openTestStore(t)
	if err := st.RunMigrations(context.Background(), migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return st
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "safiri.db")
	st, err := Open(context.Background(), path, logging.NewLogger("error"), metrics.Registry("safiri_test"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func createTestUser(t *testing.T, st *Store, email string) int64 {
	t.Helper()
	id, err := st.CreateUser(context.Background(), NewUser{
		Email:        email,
		FullName:     "Test Commuter",
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func createTestRoute(t *testing.T, st *Store, name string) int64 {
	t.Helper()
	id, err := st.CreateRoute(context.Background(), NewRoute{
		Name:       name,
		StartPoint: "CBD",
		EndPoint:   "Westlands",
		StopCount:  4,
		Duration:   "30 min",
		BaseFare:   30.0,
		Stops:      []string{"A", "B", "C", "D"},
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	return id
}

func TestProviderReturnsSameHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "safiri.db")
	provider := NewProvider(path, logging.NewLogger("error"), metrics.Registry("safiri_test"))
	t.Cleanup(provider.Close)

	first, err := provider.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := provider.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire again: %v", err)
	}
	if first != second {
		t.Fatal("expected the same store instance on second acquire")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	v, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != 5 {
		t.Fatalf("expected schema version 5, got %d", v)
	}

	if err := st.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	if v, _ = st.SchemaVersion(ctx); v != 5 {
		t.Fatalf("expected schema version to stay 5, got %d", v)
	}
}

func TestMigrationReplayMatchesFreshSchema(t *testing.T) {
	ctx := context.Background()

	staged := openTestStore(t)
	// Stop at version 1 first, then replay the remaining steps later,
	// as an upgraded install would.
	if err := staged.migrateTo(ctx, migrations.Files, 1); err != nil {
		t.Fatalf("migrate to v1: %v", err)
	}
	if err := staged.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("replay to latest: %v", err)
	}

	fresh := newTestStore(t)

	for _, table := range []string{"users", "wallets", "trips", "payments", "auth_tokens", "routes", "favorite_routes"} {
		a := tableColumns(t, staged, table)
		b := tableColumns(t, fresh, table)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("schema mismatch for %s:\nreplayed: %v\nfresh:    %v", table, a, b)
		}
	}
}

func tableColumns(t *testing.T, st *Store, table string) []string {
	t.Helper()
	rows, err := st.db.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		t.Fatalf("table_info %s: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("scan table_info: %v", err)
		}
		cols = append(cols, fmt.Sprintf("%s %s notnull=%d default=%s pk=%d", name, typ, notNull, dflt.String, pk))
	}
	return cols
}

func TestUserLookupAndProfilePatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	id := createTestUser(t, st, "amina@example.com")

	u, err := st.UserByEmail(ctx, "amina@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}
	if u.Phone != nil || u.ProfileImage != nil {
		t.Fatalf("expected empty optional fields, got %+v", u)
	}

	missing, err := st.UserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("lookup missing user: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing user, got %+v", missing)
	}

	if _, err := st.CreateUser(ctx, NewUser{Email: "amina@example.com", FullName: "Dup", PasswordHash: "x"}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint for duplicate email, got %v", err)
	}

	phone := "+254700000001"
	changed, err := st.UpdateUserProfile(ctx, id, ProfilePatch{Phone: &phone})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if !changed {
		t.Fatal("expected profile update to report a change")
	}

	u, _ = st.UserByID(ctx, id)
	if u.Phone == nil || *u.Phone != phone {
		t.Fatalf("expected phone %s, got %+v", phone, u.Phone)
	}
	if u.FullName != "Test Commuter" {
		t.Fatalf("unset patch field must keep prior value, got %s", u.FullName)
	}

	changed, err = st.UpdateUserProfile(ctx, 9999, ProfilePatch{Phone: &phone})
	if err != nil {
		t.Fatalf("update missing profile: %v", err)
	}
	if changed {
		t.Fatal("expected no change for missing user id")
	}
}

func TestWalletUniquePerUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "wallet@example.com")

	if _, err := st.CreateWallet(ctx, NewWallet{UserID: userID, Balance: 100}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := st.CreateWallet(ctx, NewWallet{UserID: userID, Balance: 50}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint for second wallet, got %v", err)
	}

	w, err := st.WalletByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w == nil || w.Balance != 100 || w.Currency != "KES" {
		t.Fatalf("unexpected wallet %+v", w)
	}
}

func TestSetWalletBalanceRejectsNegative(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "neg@example.com")
	walletID, err := st.CreateWallet(ctx, NewWallet{UserID: userID, Balance: 10})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	if _, err := st.SetWalletBalance(ctx, walletID, -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	changed, err := st.SetWalletBalance(ctx, walletID, 25.5)
	if err != nil || !changed {
		t.Fatalf("set balance: changed=%v err=%v", changed, err)
	}
	w, _ := st.WalletByUserID(ctx, userID)
	if w.Balance != 25.5 {
		t.Fatalf("expected balance 25.5, got %v", w.Balance)
	}

	if _, err := st.AddWalletPoints(ctx, walletID, 30); err != nil {
		t.Fatalf("add points: %v", err)
	}
	// clamps at zero rather than going negative
	if _, err := st.AddWalletPoints(ctx, walletID, -100); err != nil {
		t.Fatalf("subtract points: %v", err)
	}
	w, _ = st.WalletByUserID(ctx, userID)
	if w.Points != 0 {
		t.Fatalf("expected points clamped to 0, got %d", w.Points)
	}
}

func TestWatchWalletEmitsInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "watch@example.com")
	walletID, err := st.CreateWallet(ctx, NewWallet{UserID: userID, Balance: 200})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	ch, cancel := st.WatchWalletByUserID(ctx, userID)
	defer cancel()

	first := recvWallet(t, ch)
	if first == nil || first.Balance != 200 {
		t.Fatalf("expected initial balance 200, got %+v", first)
	}

	if _, err := st.SetWalletBalance(ctx, walletID, 155); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	next := recvWallet(t, ch)
	if next == nil || next.Balance != 155 {
		t.Fatalf("expected updated balance 155, got %+v", next)
	}

	cancel()
	select {
	case _, open := <-ch:
		if open {
			// one in-flight value may still be buffered; the next read
			// must observe the close
			if _, open := <-ch; open {
				t.Fatal("expected channel to close after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func recvWallet(t *testing.T, ch <-chan *Wallet) *Wallet {
	t.Helper()
	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wallet emission")
		return nil
	}
}

func TestRouteStopsRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	stops := []string{"Railways", "Kenyatta Hospital", "Adams Arcade", "Ngong Town"}
	id, err := st.CreateRoute(ctx, NewRoute{
		Name:       "Route 111",
		StartPoint: "CBD",
		EndPoint:   "Ngong",
		StopCount:  len(stops),
		Duration:   "55 min",
		BaseFare:   30.0,
		Stops:      stops,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create route: %v", err)
	}

	r, err := st.RouteByID(ctx, id)
	if err != nil {
		t.Fatalf("get route: %v", err)
	}
	if !reflect.DeepEqual(r.Stops, stops) {
		t.Fatalf("stops did not round-trip: %v", r.Stops)
	}
	if r.FarePerStop != 5.0 {
		t.Fatalf("expected default fare per stop 5.0, got %v", r.FarePerStop)
	}
	if r.Currency != "KES" {
		t.Fatalf("expected default currency KES, got %s", r.Currency)
	}
}

func TestActiveRoutesAndHasAny(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	has, err := st.HasAnyRoutes(ctx)
	if err != nil {
		t.Fatalf("has any routes: %v", err)
	}
	if has {
		t.Fatal("expected no routes in a fresh store")
	}

	createTestRoute(t, st, "Route 23")
	if _, err := st.CreateRoute(ctx, NewRoute{
		Name:       "Retired Route",
		StartPoint: "A",
		EndPoint:   "B",
		StopCount:  3,
		Duration:   "20 min",
		BaseFare:   20.0,
		Stops:      []string{"A", "M", "B"},
		Active:     false,
	}); err != nil {
		t.Fatalf("create inactive route: %v", err)
	}

	routes, err := st.ActiveRoutes(ctx)
	if err != nil {
		t.Fatalf("list active routes: %v", err)
	}
	if len(routes) != 1 || routes[0].Name != "Route 23" {
		t.Fatalf("expected only the active route, got %+v", routes)
	}

	if has, _ = st.HasAnyRoutes(ctx); !has {
		t.Fatal("expected HasAnyRoutes true after insert")
	}
}

func TestFavoriteAddRemoveIdempotence(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "fav@example.com")
	routeID := createTestRoute(t, st, "Route 46")

	if _, err := st.AddFavorite(ctx, userID, routeID); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if _, err := st.AddFavorite(ctx, userID, routeID); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint on duplicate favorite, got %v", err)
	}

	fav, err := st.IsFavorite(ctx, userID, routeID)
	if err != nil || !fav {
		t.Fatalf("expected favorite, got fav=%v err=%v", fav, err)
	}

	list, err := st.FavoriteRoutesForUser(ctx, userID)
	if err != nil {
		t.Fatalf("list favorites: %v", err)
	}
	if len(list) != 1 || list[0].ID != routeID {
		t.Fatalf("expected route %d exactly once, got %+v", routeID, list)
	}

	n, err := st.RemoveFavorite(ctx, userID, routeID)
	if err != nil || n != 1 {
		t.Fatalf("remove favorite: n=%d err=%v", n, err)
	}
	if n, _ = st.RemoveFavorite(ctx, userID, routeID); n != 0 {
		t.Fatalf("expected second remove to affect 0 rows, got %d", n)
	}
	if fav, _ = st.IsFavorite(ctx, userID, routeID); fav {
		t.Fatal("expected not favorite after remove")
	}
}

func TestWatchFavoriteEmitsTransitions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "favwatch@example.com")
	routeID := createTestRoute(t, st, "Route 58")

	ch, cancel := st.WatchFavorite(ctx, userID, routeID)
	defer cancel()

	if got := recvBool(t, ch); got {
		t.Fatal("expected initial favorite status false")
	}

	if _, err := st.AddFavorite(ctx, userID, routeID); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if got := recvBool(t, ch); !got {
		t.Fatal("expected true after add")
	}

	if _, err := st.RemoveFavorite(ctx, userID, routeID); err != nil {
		t.Fatalf("remove favorite: %v", err)
	}
	if got := recvBool(t, ch); got {
		t.Fatal("expected false after remove")
	}
}

func recvBool(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for favorite emission")
		return false
	}
}

func TestTokenValidity(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "token@example.com")

	valid, err := st.TokenValid(ctx, userID)
	if err != nil {
		t.Fatalf("token valid: %v", err)
	}
	if valid {
		t.Fatal("expected invalid when no token exists")
	}

	if err := st.UpsertToken(ctx, TokenRecord{
		UserID:      userID,
		AccessToken: "tok-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("upsert token: %v", err)
	}
	if valid, _ = st.TokenValid(ctx, userID); !valid {
		t.Fatal("expected valid unexpired token")
	}

	// Replaced on login: same user, new token, already expired.
	if err := st.UpsertToken(ctx, TokenRecord{
		UserID:      userID,
		AccessToken: "tok-2",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("replace token: %v", err)
	}
	tok, _ := st.TokenByUserID(ctx, userID)
	if tok == nil || tok.AccessToken != "tok-2" {
		t.Fatalf("expected replaced token, got %+v", tok)
	}
	if valid, _ = st.TokenValid(ctx, userID); valid {
		t.Fatal("expected expired token to be invalid")
	}

	n, err := st.DeleteTokenByUserID(ctx, userID)
	if err != nil || n != 1 {
		t.Fatalf("delete token: n=%d err=%v", n, err)
	}
	if valid, _ = st.TokenValid(ctx, userID); valid {
		t.Fatal("expected invalid immediately after delete")
	}
}

func TestTripAndPaymentOrdering(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "trips@example.com")

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := st.CreateTrip(ctx, TripRecord{
			UserID:       userID,
			RouteName:    "Route 23",
			FromLocation: "CBD",
			ToLocation:   "Westlands",
			Fare:         45.0,
			Status:       TripCompleted,
			TripAt:       base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create trip %d: %v", i, err)
		}
		_, err = st.CreatePayment(ctx, PaymentRecord{
			UserID:       userID,
			Amount:       45.0,
			Type:         PaymentTypeTrip,
			Status:       PaymentCompleted,
			Reference:    fmt.Sprintf("TKT-%d", i),
			TransactedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create payment %d: %v", i, err)
		}
	}

	trips, err := st.TripsByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("list trips: %v", err)
	}
	if len(trips) != 3 {
		t.Fatalf("expected 3 trips, got %d", len(trips))
	}
	for i := 1; i < len(trips); i++ {
		if trips[i].TripAt.After(trips[i-1].TripAt) {
			t.Fatal("trips not ordered newest first")
		}
	}

	recent, err := st.RecentTrips(ctx, userID, 2)
	if err != nil {
		t.Fatalf("recent trips: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent trips, got %d", len(recent))
	}

	if _, err := st.CreatePayment(ctx, PaymentRecord{
		UserID:       userID,
		Amount:       10,
		Type:         PaymentTypeTopUp,
		Status:       PaymentCompleted,
		Reference:    "TKT-1",
		TransactedAt: base,
	}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint for duplicate reference, got %v", err)
	}
}

func TestCascadeDeleteUserRemovesOwnedRows(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := createTestUser(t, st, "cascade@example.com")
	routeID := createTestRoute(t, st, "Route 105")

	if _, err := st.CreateWallet(ctx, NewWallet{UserID: userID, Balance: 10}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := st.AddFavorite(ctx, userID, routeID); err != nil {
		t.Fatalf("add favorite: %v", err)
	}

	if _, err := st.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, userID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	w, err := st.WalletByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("wallet after cascade: %v", err)
	}
	if w != nil {
		t.Fatalf("expected wallet removed by cascade, got %+v", w)
	}
	if fav, _ := st.IsFavorite(ctx, userID, routeID); fav {
		t.Fatal("expected favorite removed by cascade")
	}
}
