package model

import (
	"encoding/json"
	"time"
)

// WebhookEvent is a raw webhook delivery, stored verbatim before any typed
// extraction so the original payload survives extraction failures and can be
// reprocessed later. RepositoryID is nil when the delivery carried no usable
// repository envelope. LastError holds the most recent extraction failure;
// it is cleared once the event is successfully processed.
type WebhookEvent struct {
	ID           int64
	RepositoryID *int64
	EventType    string
	EventAction  string
	DeliveryID   string
	Payload      json.RawMessage
	Signature    string
	ReceivedAt   time.Time
	Processed    bool
	ProcessedAt  *time.Time
	LastError    string
}
