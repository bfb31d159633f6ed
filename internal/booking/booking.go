// Package booking converts a confirmed stop-to-stop selection into a
// committed trip, payment, and wallet debit as one atomic unit.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"safiri-store/internal/fare"
	"safiri-store/internal/metrics"
	"safiri-store/internal/store"
)

// Recoverable booking failures. Each carries a human-readable reason;
// callers surface them to the user and take no further action.
var (
	ErrWalletNotFound      = errors.New("no wallet found for this account")
	ErrInsufficientBalance = errors.New("wallet balance does not cover the fare")
	ErrInvalidSelection    = errors.New("boarding and alighting stops do not form a valid journey")
)

// ticketValidity is the client-side validity window; the store does not
// enforce expiry.
const ticketValidity = 2 * time.Hour

// Ticket is the value object returned for a successful booking.
type Ticket struct {
	Reference  string
	RouteName  string
	FromStop   string
	ToStop     string
	Fare       float64
	Currency   string
	BookedAt   time.Time
	ValidUntil time.Time
	TripID     int64
	PaymentID  int64
}

// Valid reports whether the ticket is still within its validity window.
func (t *Ticket) Valid(now time.Time) bool {
	return now.Before(t.ValidUntil)
}

// Service orchestrates fare calculation, the wallet balance check, and
// the three-way write for a booking.
type Service struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New constructs a booking service backed by the given store.
func New(st *store.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		logger:  logger.With("component", "booking"),
		metrics: m,
		now:     time.Now,
	}
}

// Book charges the user's wallet for a journey on the route between the
// two stop indices and records the trip and payment. The trip insert,
// payment insert, and debit land in a single transaction; the debit
// re-checks the balance so a concurrent booking can never drive the
// wallet negative.
func (s *Service) Book(ctx context.Context, userID int64, route *store.Route, fromIdx, toIdx int) (*Ticket, error) {
	if route == nil {
		return nil, fmt.Errorf("%w: route is missing", ErrInvalidSelection)
	}
	if !fare.ValidSelection(route.StopCount, fromIdx, toIdx) {
		s.metrics.BookingsTotal.WithLabelValues("invalid_selection").Inc()
		return nil, fmt.Errorf("%w: stops %d and %d on a %d-stop route", ErrInvalidSelection, fromIdx, toIdx, route.StopCount)
	}

	wallet, err := s.store.WalletByUserID(ctx, userID)
	if err != nil {
		s.metrics.BookingsTotal.WithLabelValues("storage_error").Inc()
		return nil, s.storageFailure("look up wallet", err)
	}
	if wallet == nil {
		s.metrics.BookingsTotal.WithLabelValues("wallet_not_found").Inc()
		return nil, fmt.Errorf("%w (user %d)", ErrWalletNotFound, userID)
	}

	amount := fare.Amount(route.BaseFare, route.FarePerStop, fromIdx, toIdx)
	if wallet.Balance < amount {
		s.metrics.BookingsTotal.WithLabelValues("insufficient_balance").Inc()
		return nil, fmt.Errorf("%w: have %.2f, need %.2f %s", ErrInsufficientBalance, wallet.Balance, amount, wallet.Currency)
	}

	bookedAt := s.now()
	ticket := &Ticket{
		Reference:  ticketReference(bookedAt),
		RouteName:  route.Name,
		FromStop:   stopName(route, fromIdx),
		ToStop:     stopName(route, toIdx),
		Fare:       amount,
		Currency:   wallet.Currency,
		BookedAt:   bookedAt,
		ValidUntil: bookedAt.Add(ticketValidity),
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		tripID, err := s.store.CreateTripTx(ctx, tx, store.TripRecord{
			UserID:       userID,
			RouteName:    route.Name,
			FromLocation: ticket.FromStop,
			ToLocation:   ticket.ToStop,
			Fare:         amount,
			Status:       store.TripCompleted,
			TripAt:       bookedAt,
		})
		if err != nil {
			return fmt.Errorf("record trip: %w", err)
		}

		description := fmt.Sprintf("Trip on %s from %s to %s", route.Name, ticket.FromStop, ticket.ToStop)
		paymentID, err := s.store.CreatePaymentTx(ctx, tx, store.PaymentRecord{
			UserID:       userID,
			Amount:       amount,
			Type:         store.PaymentTypeTrip,
			Status:       store.PaymentCompleted,
			Description:  &description,
			Reference:    ticket.Reference,
			TransactedAt: bookedAt,
		})
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		// Conditional debit: zero rows means the balance no longer covers
		// the fare, and the trip/payment inserts above roll back with us.
		debited, err := s.store.DebitWalletTx(ctx, tx, wallet.ID, amount)
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		if !debited {
			return ErrInsufficientBalance
		}

		ticket.TripID = tripID
		ticket.PaymentID = paymentID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.metrics.BookingsTotal.WithLabelValues("insufficient_balance").Inc()
			return nil, fmt.Errorf("%w: balance changed while booking", ErrInsufficientBalance)
		}
		s.metrics.BookingsTotal.WithLabelValues("storage_error").Inc()
		return nil, s.storageFailure("commit booking", err)
	}

	s.metrics.BookingsTotal.WithLabelValues("success").Inc()
	s.metrics.BookingFare.Observe(amount)
	s.logger.Info("booking committed",
		"user_id", userID,
		"route", route.Name,
		"fare", amount,
		"reference", ticket.Reference,
	)
	return ticket, nil
}

// storageFailure logs the underlying cause and returns a generic error
// so raw storage-engine types never cross the service boundary.
func (s *Service) storageFailure(op string, err error) error {
	s.logger.Error("booking storage failure", "op", op, "error", err)
	s.metrics.Errors.WithLabelValues("booking").Inc()
	return fmt.Errorf("booking failed: %s: %v", op, err)
}

// ticketReference builds a unique ticket id from the booking time and a
// random suffix. Collisions are negligible for a single-device app.
func ticketReference(t time.Time) string {
	return fmt.Sprintf("TKT-%s-%s", t.Format("20060102150405"), uuid.NewString()[:8])
}

func stopName(route *store.Route, idx int) string {
	if idx >= 0 && idx < len(route.Stops) {
		return route.Stops[idx]
	}
	return fmt.Sprintf("Stop %d", idx+1)
}
