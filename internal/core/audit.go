package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit actions emitted by the core.
const (
	AuditDocumentCreated = "document_created"
	AuditDocumentUpdated = "document_updated"
	AuditDocumentDeleted = "document_deleted"
	AuditStatusChanged   = "status_changed"
	AuditSequenceReset   = "sequence_reset"
	AuditPriceRecorded   = "price_recorded"
)

// AuditEvent is handed to the audit sink. Persisting it is the sink's job.
type AuditEvent struct {
	ID        uuid.UUID      `json:"id"`
	Action    string         `json:"action"`
	Table     string         `json:"table"`
	RecordID  string         `json:"record_id"`
	ActorID   int            `json:"actor_id"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditSink accepts events fire-and-forget. Emit must not block on slow
// storage and never reports failure to the caller.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NewAuditEvent stamps an event with a fresh id and the current time.
func NewAuditEvent(action, table, recordID string, actor Actor, details map[string]any) AuditEvent {
	return AuditEvent{
		ID:        uuid.New(),
		Action:    action,
		Table:     table,
		RecordID:  recordID,
		ActorID:   actor.UserID,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
}

type nopAuditSink struct{}

func (nopAuditSink) Emit(context.Context, AuditEvent) {}

// NopAuditSink discards every event.
var NopAuditSink AuditSink = nopAuditSink{}
