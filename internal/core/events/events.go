// Package events defines domain events emitted by state-changing commands.
// Publishers write them inside the command's transaction so that an event
// exists if and only if the change it describes was committed.
package events

import (
	"context"

	"explostock/internal/core/id"
)

// Aggregate types.
const (
	AggregateWarehouseBatch  = "WarehouseBatch"
	AggregateTransferRequest = "TransferRequest"
	AggregateStoreStock      = "StoreStock"
	AggregateLedgerEntry     = "StockLedgerEntry"
)

// Event represents an event to be published via outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher records events. Publish MUST be called inside a transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
