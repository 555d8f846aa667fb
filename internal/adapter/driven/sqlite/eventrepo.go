package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the EventStore port interface.
// The UNIQUE index on delivery_id is the delivery ledger: Insert is the
// admit-or-detect-conflict operation the ingestion pipeline keys on.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Insert persists a raw webhook event and returns its row ID. A delivery ID
// that has already been admitted returns driven.ErrDuplicateDelivery without
// writing a second row. The conflict target makes this atomic under
// concurrent duplicate deliveries: exactly one caller gets a row ID.
func (r *EventRepo) Insert(ctx context.Context, event model.WebhookEvent) (int64, error) {
	const query = `
		INSERT INTO webhook_events (repository_id, event_type, event_action, delivery_id, payload, signature, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(delivery_id) DO NOTHING
		RETURNING id
	`

	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	var action any
	if event.EventAction != "" {
		action = event.EventAction
	}

	var repositoryID any
	if event.RepositoryID != nil {
		repositoryID = *event.RepositoryID
	}

	var id int64
	err := r.db.Writer.QueryRowContext(ctx, query,
		repositoryID, event.EventType, action, event.DeliveryID,
		string(event.Payload), event.Signature, receivedAt.UTC(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("insert event %s: %w", event.DeliveryID, driven.ErrDuplicateDelivery)
	}
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", event.DeliveryID, err)
	}

	return id, nil
}

// GetByID retrieves a webhook event. Returns driven.ErrEventNotFound if no
// row exists.
func (r *EventRepo) GetByID(ctx context.Context, id int64) (*model.WebhookEvent, error) {
	const query = selectEvent + ` WHERE id = ?`

	event, err := scanEvent(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get event %d: %w", id, driven.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}

	return event, nil
}

// MarkProcessed records successful extraction: processed=true, processed_at
// stamped, and any previous error annotation cleared.
func (r *EventRepo) MarkProcessed(ctx context.Context, id int64) error {
	const query = `UPDATE webhook_events SET processed = 1, processed_at = ?, last_error = NULL WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark event %d processed: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark event %d processed: %w", id, driven.ErrEventNotFound)
	}

	return nil
}

// RecordError annotates the event with an extraction failure. processed
// stays false so the event remains visible to reprocessing tooling.
func (r *EventRepo) RecordError(ctx context.Context, id int64, msg string) error {
	const query = `UPDATE webhook_events SET last_error = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, msg, id)
	if err != nil {
		return fmt.Errorf("record error on event %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record error on event %d: %w", id, driven.ErrEventNotFound)
	}

	return nil
}

// List returns events matching the filter, most recently received first.
func (r *EventRepo) List(ctx context.Context, filter driven.EventFilter, limit, offset int) ([]model.WebhookEvent, error) {
	var conds []string
	var args []any

	if filter.RepositoryID != 0 {
		conds = append(conds, "repository_id = ?")
		args = append(args, filter.RepositoryID)
	}
	if filter.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Processed != nil {
		processed := 0
		if *filter.Processed {
			processed = 1
		}
		conds = append(conds, "processed = ?")
		args = append(args, processed)
	}

	query := selectEvent
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.WebhookEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

const selectEvent = `
	SELECT id, repository_id, event_type, event_action, delivery_id, payload, signature,
	       received_at, processed, processed_at, last_error
	FROM webhook_events`

func scanEvent(s scanner) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	var repositoryID sql.NullInt64
	var action, lastError sql.NullString
	var payload string
	var receivedAt string
	var processed int
	var processedAt sql.NullString

	err := s.Scan(
		&event.ID, &repositoryID, &event.EventType, &action, &event.DeliveryID,
		&payload, &event.Signature, &receivedAt, &processed, &processedAt, &lastError,
	)
	if err != nil {
		return nil, err
	}

	if repositoryID.Valid {
		event.RepositoryID = &repositoryID.Int64
	}
	event.EventAction = action.String
	event.Payload = []byte(payload)
	event.Processed = processed != 0
	event.LastError = lastError.String

	event.ReceivedAt, err = parseTime(receivedAt)
	if err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}

	event.ProcessedAt, err = parseNullTime(processedAt)
	if err != nil {
		return nil, fmt.Errorf("parse processed_at: %w", err)
	}

	return &event, nil
}
