package core

import (
	"context"
	"strconv"
)

// transitions lists the statuses reachable from each status. ARCHIVED is left
// only through Unarchive, which restores the stored pre-archive status.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusApproved, StatusRejected, StatusArchived},
	StatusApproved: {StatusSent, StatusArchived},
	StatusRejected: {StatusSent, StatusArchived},
}

// CanTransition reports whether a document may move from one status to another
// with Transition.
func CanTransition(from, to DocumentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from from. The returned
// slice must not be modified.
func AllowedTransitions(from DocumentStatus) []DocumentStatus {
	return transitions[from]
}

// StatusLifecycle applies status changes through the repository. Items are
// never touched.
type StatusLifecycle interface {
	Transition(ctx context.Context, docType DocumentType, id int, target DocumentStatus, actor Actor) (*Document, error)
	Archive(ctx context.Context, docType DocumentType, id int, actor Actor) (*Document, error)
	Unarchive(ctx context.Context, docType DocumentType, id int, actor Actor) (*Document, error)
}

type statusLifecycle struct {
	repo  DocumentRepository
	audit AuditSink
}

func NewStatusLifecycle(repo DocumentRepository, audit AuditSink) StatusLifecycle {
	if audit == nil {
		audit = NopAuditSink
	}
	return &statusLifecycle{repo: repo, audit: audit}
}

func (l *statusLifecycle) Transition(ctx context.Context, docType DocumentType, id int, target DocumentStatus, actor Actor) (*Document, error) {
	return l.apply(ctx, docType, id, actor, func(cur Document) (StatusChange, error) {
		return decideTransition(cur, target)
	})
}

func (l *statusLifecycle) Archive(ctx context.Context, docType DocumentType, id int, actor Actor) (*Document, error) {
	return l.Transition(ctx, docType, id, StatusArchived, actor)
}

func (l *statusLifecycle) Unarchive(ctx context.Context, docType DocumentType, id int, actor Actor) (*Document, error) {
	return l.apply(ctx, docType, id, actor, decideUnarchive)
}

func (l *statusLifecycle) apply(ctx context.Context, docType DocumentType, id int, actor Actor, decide StatusDecider) (*Document, error) {
	var from DocumentStatus
	doc, err := l.repo.SetStatus(ctx, docType, id, func(cur Document) (StatusChange, error) {
		from = cur.Status
		return decide(cur)
	})
	if err != nil {
		return nil, err
	}
	l.audit.Emit(ctx, NewAuditEvent(AuditStatusChanged, "documents", strconv.Itoa(id), actor, map[string]any{
		"type": docType,
		"from": from,
		"to":   doc.Status,
	}))
	return doc, nil
}

// decideTransition validates a move to target. Archiving records the status
// being left so Unarchive can restore it.
func decideTransition(cur Document, target DocumentStatus) (StatusChange, error) {
	if !CanTransition(cur.Status, target) {
		return StatusChange{}, &InvalidTransitionError{From: cur.Status, To: target}
	}
	if cur.Status == StatusDraft && len(cur.Items) == 0 {
		return StatusChange{}, &ValidationError{Fields: map[string]string{
			"items": "a document needs at least one line item to leave DRAFT",
		}}
	}
	change := StatusChange{Status: target}
	if target == StatusArchived {
		prev := cur.Status
		change.ArchivedFrom = &prev
	}
	return change, nil
}

func decideUnarchive(cur Document) (StatusChange, error) {
	if cur.Status != StatusArchived || cur.ArchivedFromStatus == nil {
		to := StatusSent
		if cur.ArchivedFromStatus != nil {
			to = *cur.ArchivedFromStatus
		}
		return StatusChange{}, &InvalidTransitionError{From: cur.Status, To: to}
	}
	return StatusChange{Status: *cur.ArchivedFromStatus}, nil
}
