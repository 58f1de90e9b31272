package domain

import (
	"context"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/clock"
	"explostock/internal/core/events"
	"explostock/internal/core/id"
	"explostock/internal/core/tx"
)

// ServiceDeps bundles the collaborators every domain service needs:
// the transaction boundary, the clock and the event publisher.
type ServiceDeps struct {
	TxManager tx.Manager
	Clock     clock.Clock
	Events    events.Publisher
}

// WithDefaults fills optional collaborators. TxManager is mandatory.
func (d ServiceDeps) WithDefaults() ServiceDeps {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	return d
}

// Now returns the current time from the configured clock.
func (d ServiceDeps) Now() time.Time {
	return d.Clock.Now()
}

// InTx runs fn in a transaction. A missing manager is a wiring bug.
func (d ServiceDeps) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.TxManager == nil {
		return apperror.NewInternal(nil).WithDetail("missing", "tx_manager")
	}
	return d.TxManager.RunInTransaction(ctx, fn)
}

// Emit publishes a domain event. Must be called inside InTx.
func (d ServiceDeps) Emit(ctx context.Context, aggregate string, aggregateID id.ID, eventType string, payload any) error {
	return d.Events.Publish(ctx, events.Event{
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	})
}

// NormalizeGetErr maps a bare not-found from a repository to the entity name
// used in API responses and leaves every other error untouched.
func NormalizeGetErr(err error, entityName string, key any) error {
	if err == nil {
		return nil
	}
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(entityName, key)
	}
	return err
}
