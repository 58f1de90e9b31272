package memory

import (
	"explostock/internal/app"
	"explostock/internal/core/clock"
	"explostock/internal/core/numerator"
	"explostock/internal/domain"
)

// Repositories exposes the store as an app.Repositories bundle.
func (s *Store) Repositories() app.Repositories {
	return app.Repositories{
		Batches:  s.Batches(),
		Requests: s.Requests(),
		Stocks:   s.Stocks(),
		Ledger:   s.Ledger(),
	}
}

// NewServices builds the domain services over a fresh in-memory store.
// The store doubles as transaction manager and event publisher.
func NewServices(clk clock.Clock) (*app.Services, *Store) {
	s := New()
	svc := app.New(s.Repositories(), numerator.NewSequence(), domain.ServiceDeps{
		TxManager: s,
		Clock:     clk,
		Events:    s,
	})
	return svc, s
}
