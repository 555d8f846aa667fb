// Package application contains use-case orchestration services.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// ErrMalformedEnvelope indicates the delivery body is not a JSON object with
// the expected webhook envelope shape. Nothing is persisted in this case.
var ErrMalformedEnvelope = errors.New("malformed event envelope")

// IngestService runs the webhook ingestion pipeline: envelope decode,
// repository upsert, raw event admission, and typed extraction. Signature
// verification happens in the HTTP adapter before Ingest is called.
type IngestService struct {
	repoStore  driven.RepositoryStore
	eventStore driven.EventStore
	extractor  *Extractor
}

// NewIngestService creates an IngestService with all required dependencies.
func NewIngestService(
	repoStore driven.RepositoryStore,
	eventStore driven.EventStore,
	extractor *Extractor,
) *IngestService {
	return &IngestService{
		repoStore:  repoStore,
		eventStore: eventStore,
		extractor:  extractor,
	}
}

// IngestResult reports what the pipeline did with a delivery.
type IngestResult struct {
	EventID   int64
	Duplicate bool
	Processed bool
	// ExtractionError is set when extraction failed; the raw event is stored
	// and annotated, and the delivery is still acknowledged.
	ExtractionError string
}

// eventEnvelope is the common outer shape of webhook payloads. Only the
// fields the pipeline needs are decoded; the full payload is stored verbatim.
type eventEnvelope struct {
	Action     string        `json:"action"`
	Repository *envelopeRepo `json:"repository"`
}

type envelopeRepo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Private     bool   `json:"private"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Ingest runs one delivery through the pipeline. A duplicate delivery ID
// short-circuits after the ledger check with no writes and no extraction.
// Extraction failures do not surface as errors: the raw event is kept,
// annotated, and left unprocessed for later reprocessing. A returned error
// means the raw event could not be persisted and the sender should redeliver.
func (s *IngestService) Ingest(ctx context.Context, eventType, deliveryID, signature string, payload []byte) (IngestResult, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	event := model.WebhookEvent{
		EventType:   eventType,
		EventAction: env.Action,
		DeliveryID:  deliveryID,
		Payload:     payload,
		Signature:   signature,
		ReceivedAt:  time.Now().UTC(),
	}

	if env.Repository != nil && env.Repository.ID != 0 && env.Repository.FullName != "" {
		repoID, err := s.repoStore.Upsert(ctx, envelopeToRepository(env.Repository))
		if err != nil {
			return IngestResult{}, fmt.Errorf("upsert repository %s: %w", env.Repository.FullName, err)
		}
		event.RepositoryID = &repoID
	}

	eventID, err := s.eventStore.Insert(ctx, event)
	if errors.Is(err, driven.ErrDuplicateDelivery) {
		slog.Info("duplicate delivery ignored", "delivery_id", deliveryID, "event_type", eventType)
		return IngestResult{Duplicate: true}, nil
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("persist event: %w", err)
	}
	event.ID = eventID

	result := IngestResult{EventID: eventID}

	if err := s.extractor.Extract(ctx, event); err != nil {
		slog.Warn("extraction failed",
			"delivery_id", deliveryID,
			"event_type", eventType,
			"event_id", eventID,
			"error", err,
		)
		if recordErr := s.eventStore.RecordError(ctx, eventID, err.Error()); recordErr != nil {
			slog.Error("record extraction error failed", "event_id", eventID, "error", recordErr)
		}
		result.ExtractionError = err.Error()
		return result, nil
	}

	if err := s.eventStore.MarkProcessed(ctx, eventID); err != nil {
		// The upserts already applied; the event just stays eligible for a
		// harmless reprocess.
		slog.Error("mark processed failed", "event_id", eventID, "error", err)
		return result, nil
	}

	result.Processed = true
	return result, nil
}

// Reprocess re-runs extraction for a stored event. Upserts are idempotent,
// so reprocessing an already-processed event is safe.
func (s *IngestService) Reprocess(ctx context.Context, eventID int64) (*model.WebhookEvent, error) {
	event, err := s.eventStore.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.extractor.Extract(ctx, *event); err != nil {
		if recordErr := s.eventStore.RecordError(ctx, eventID, err.Error()); recordErr != nil {
			slog.Error("record extraction error failed", "event_id", eventID, "error", recordErr)
		}
	} else if err := s.eventStore.MarkProcessed(ctx, eventID); err != nil {
		slog.Error("mark processed failed", "event_id", eventID, "error", err)
	}

	return s.eventStore.GetByID(ctx, eventID)
}

// envelopeToRepository maps the envelope's repository object to the domain
// model. Owner falls back to the full name's prefix when the payload omits
// the owner object.
func envelopeToRepository(r *envelopeRepo) model.Repository {
	owner := r.Owner.Login
	name := r.Name
	if owner == "" || name == "" {
		if parts := strings.SplitN(r.FullName, "/", 2); len(parts) == 2 {
			if owner == "" {
				owner = parts[0]
			}
			if name == "" {
				name = parts[1]
			}
		}
	}

	return model.Repository{
		GitHubID:    r.ID,
		Name:        name,
		FullName:    r.FullName,
		Owner:       owner,
		Description: r.Description,
		URL:         r.HTMLURL,
		IsPrivate:   r.Private,
	}
}
