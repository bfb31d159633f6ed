// Package seed bootstraps demo data for local development builds.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"safiri-store/internal/store"
)

const (
	demoEmail    = "demo@safiri.app"
	demoPassword = "safiri-demo"
)

// Run inserts demo routes plus a demo user and wallet. It is idempotent:
// when any active route already exists the store is considered seeded
// and nothing is written.
func Run(ctx context.Context, st *store.Store, logger *slog.Logger) error {
	logger = logger.With("component", "seed")

	seeded, err := st.HasAnyRoutes(ctx)
	if err != nil {
		return fmt.Errorf("check existing routes: %w", err)
	}
	if seeded {
		logger.Debug("routes already present, skipping seed")
		return nil
	}

	for _, nr := range demoRoutes() {
		if _, err := st.CreateRoute(ctx, nr); err != nil {
			return fmt.Errorf("seed route %s: %w", nr.Name, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	userID, err := st.CreateUser(ctx, store.NewUser{
		Email:        demoEmail,
		FullName:     "Demo Commuter",
		PasswordHash: string(hash),
	})
	if err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}

	if _, err := st.CreateWallet(ctx, store.NewWallet{
		UserID:  userID,
		Balance: 2450.50,
		Points:  120,
	}); err != nil {
		return fmt.Errorf("seed demo wallet: %w", err)
	}

	logger.Info("demo data seeded", "user_id", userID)
	return nil
}

func demoRoutes() []store.NewRoute {
	return []store.NewRoute{
		{
			Name:       "Route 111 Ngong",
			StartPoint: "Nairobi CBD",
			EndPoint:   "Ngong Town",
			StopCount:  8,
			Duration:   "55 min",
			BaseFare:   30.0,
			Stops: []string{
				"Railways", "Kenyatta Hospital", "Adams Arcade", "Prestige Plaza",
				"Dagoretti Corner", "Karen", "Bulbul", "Ngong Town",
			},
			Active: true,
		},
		{
			Name:       "Route 23 Westlands",
			StartPoint: "Nairobi CBD",
			EndPoint:   "Westlands",
			StopCount:  6,
			Duration:   "35 min",
			BaseFare:   30.0,
			Stops: []string{
				"Ambassadeur", "Globe Roundabout", "Museum Hill", "Westlands Roundabout",
				"Sarit Centre", "Westlands Stage",
			},
			Active: true,
		},
		{
			Name:       "Route 33 Embakasi",
			StartPoint: "Nairobi CBD",
			EndPoint:   "Embakasi",
			StopCount:  7,
			Duration:   "50 min",
			BaseFare:   40.0,
			Stops: []string{
				"Bus Station", "Muthurwa", "Donholm", "Pipeline",
				"Fedha Estate", "Tassia", "Embakasi Village",
			},
			Active: true,
		},
	}
}
