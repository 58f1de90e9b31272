// Package app wires the domain services over a storage backend. The server,
// the worker and the tests all build the same graph through New.
package app

import (
	"explostock/internal/core/numerator"
	"explostock/internal/domain"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transactions"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
)

// Repositories is the storage backend seen by the domain.
type Repositories struct {
	Batches  warehouse.Repository
	Requests transfer.Repository
	Stocks   storestock.Repository
	Ledger   ledger.Repository
}

// Services is the full set of domain services.
type Services struct {
	Batches      *warehouse.Service
	Transfers    *transfer.Service
	Stocks       *storestock.Service
	Ledger       *ledger.Service
	Transactions *transactions.Service
}

// New builds the services over repos.
func New(repos Repositories, num numerator.Generator, deps domain.ServiceDeps) *Services {
	deps = deps.WithDefaults()

	ledgerSvc := ledger.NewService(repos.Ledger, deps)
	stocks := storestock.NewService(repos.Stocks, deps)
	batches := warehouse.NewService(repos.Batches, deps)

	return &Services{
		Batches:      batches,
		Transfers:    transfer.NewService(repos.Requests, batches, stocks, ledgerSvc, num, deps),
		Stocks:       stocks,
		Ledger:       ledgerSvc,
		Transactions: transactions.NewService(stocks, ledgerSvc, deps),
	}
}
