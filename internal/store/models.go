package store

import "time"

// Trip statuses. Trips are immutable once written.
const (
	TripCompleted = "completed"
	TripFailed    = "failed"
)

// Payment types and statuses.
const (
	PaymentTypeTopUp  = "top-up"
	PaymentTypeTrip   = "trip"
	PaymentTypeRefund = "refund"

	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentPending   = "pending"
)

const defaultCurrency = "KES"

// User represents the users table row.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Phone        *string
	ProfileImage *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser carries data used to create a user.
type NewUser struct {
	Email        string `validate:"required,email"`
	FullName     string `validate:"required"`
	Phone        *string
	ProfileImage *string
	PasswordHash string `validate:"required"`
}

// ProfilePatch updates only the fields that are set; nil means keep.
type ProfilePatch struct {
	FullName     *string
	Phone        *string
	ProfileImage *string
}

// Wallet represents the wallets table row.
type Wallet struct {
	ID        int64
	UserID    int64
	Balance   float64
	Points    int64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWallet carries data used to create a wallet.
type NewWallet struct {
	UserID   int64   `validate:"required"`
	Balance  float64 `validate:"gte=0"`
	Points   int64   `validate:"gte=0"`
	Currency string
}

// Trip represents the trips table row.
type Trip struct {
	ID           int64
	UserID       int64
	RouteName    string
	FromLocation string
	ToLocation   string
	Fare         float64
	Status       string
	TripAt       time.Time
	CreatedAt    time.Time
}

// TripRecord carries data used to record a trip.
type TripRecord struct {
	UserID       int64   `validate:"required"`
	RouteName    string  `validate:"required"`
	FromLocation string  `validate:"required"`
	ToLocation   string  `validate:"required"`
	Fare         float64 `validate:"gte=0"`
	Status       string  `validate:"required,oneof=completed failed"`
	TripAt       time.Time
}

// Payment represents the payments table row.
type Payment struct {
	ID           int64
	UserID       int64
	Amount       float64
	Type         string
	Status       string
	Description  *string
	Reference    string
	TransactedAt time.Time
	CreatedAt    time.Time
}

// PaymentRecord carries data used to record a payment. The reference is
// caller-generated and must be unique; it doubles as the audit id.
type PaymentRecord struct {
	UserID       int64   `validate:"required"`
	Amount       float64 `validate:"gte=0"`
	Type         string  `validate:"required,oneof=top-up trip refund"`
	Status       string  `validate:"required,oneof=completed failed pending"`
	Description  *string
	Reference    string `validate:"required"`
	TransactedAt time.Time
}

// AuthToken represents the auth_tokens table row.
type AuthToken struct {
	ID           int64
	UserID       int64
	AccessToken  string
	RefreshToken *string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// TokenRecord carries data used to store or replace a user's token.
type TokenRecord struct {
	UserID       int64  `validate:"required"`
	AccessToken  string `validate:"required"`
	RefreshToken *string
	ExpiresAt    time.Time `validate:"required"`
}

// Route represents the routes table row. Stops are kept in boarding
// order and round-trip exactly through their serialized form.
type Route struct {
	ID          int64
	Name        string
	StartPoint  string
	EndPoint    string
	StopCount   int
	Duration    string
	BaseFare    float64
	FarePerStop float64
	Currency    string
	Stops       []string
	Active      bool
	CreatedAt   time.Time
}

// NewRoute carries data used to create a route.
type NewRoute struct {
	Name        string   `validate:"required"`
	StartPoint  string   `validate:"required"`
	EndPoint    string   `validate:"required"`
	StopCount   int      `validate:"gte=2"`
	Duration    string   `validate:"required"`
	BaseFare    float64  `validate:"gte=0"`
	FarePerStop float64  `validate:"gte=0"`
	Currency    string
	Stops       []string `validate:"required,min=2"`
	Active      bool
}

// FavoriteRoute represents the favorite_routes table row.
type FavoriteRoute struct {
	ID        int64
	UserID    int64
	RouteID   int64
	CreatedAt time.Time
}
