package driven

import (
	"context"
	"errors"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// Sentinel errors returned by EventStore implementations.
var (
	// ErrDuplicateDelivery indicates the delivery ID has already been
	// admitted. This is the designed idempotency outcome, not a failure.
	ErrDuplicateDelivery = errors.New("delivery already admitted")

	// ErrEventNotFound indicates the requested webhook event does not exist.
	ErrEventNotFound = errors.New("webhook event not found")
)

// EventFilter narrows List results. Zero values mean "no filter".
type EventFilter struct {
	RepositoryID int64
	EventType    string
	Processed    *bool
}

// EventStore defines the driven port for raw webhook event persistence.
// The unique constraint on delivery ID doubles as the delivery ledger:
// under concurrent duplicate deliveries exactly one Insert succeeds and
// all others return ErrDuplicateDelivery.
type EventStore interface {
	// Insert persists the raw event and returns its row ID, or
	// ErrDuplicateDelivery if the delivery ID has been seen before.
	Insert(ctx context.Context, event model.WebhookEvent) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.WebhookEvent, error)
	// MarkProcessed sets processed=true, stamps processed_at, and clears
	// any previous error annotation.
	MarkProcessed(ctx context.Context, id int64) error
	// RecordError annotates the event with an extraction failure, leaving
	// processed=false so the event remains eligible for reprocessing.
	RecordError(ctx context.Context, id int64, msg string) error
	// List returns events ordered by most recently received.
	List(ctx context.Context, filter EventFilter, limit, offset int) ([]model.WebhookEvent, error)
}
