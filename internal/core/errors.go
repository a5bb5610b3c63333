package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinels for errors.Is. Every structured error below unwraps to one of them.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPartialWrite        = errors.New("partial write")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
)

// ValidationError is returned before any write happens. Fields maps a field
// path ("items[1].quantity") to a message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// orNil returns nil when no field failed, so callers can `return v.orNil()`.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type InvalidTransitionError struct {
	From DocumentStatus
	To   DocumentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move document from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PartialWriteError names the sub-operation that failed after the header was
// written. Stage "commit" is the only stage whose outcome is unknown; callers
// recover with Delete. Stages "read back" and "record prices" follow a
// successful commit, so DocumentID always names a stored document.
type PartialWriteError struct {
	Op         string // create, update
	Stage      string // insert header, insert items, delete items, commit, read back, record prices
	DocumentID int
	Sequence   int64
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write during %s (document %d, stage %q): %v", e.Op, e.DocumentID, e.Stage, e.Err)
}

func (e *PartialWriteError) Unwrap() []error { return []error{ErrPartialWrite, e.Err} }

// ConcurrencyConflictError is returned when a sequence number collides with
// an existing document, which can only happen after a reset to a lower floor.
type ConcurrencyConflictError struct {
	Type     DocumentType
	Sequence int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("sequence number %d already used for %s", e.Sequence, e.Type)
}

func (e *ConcurrencyConflictError) Unwrap() error { return ErrConcurrencyConflict }

type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// IsClientError reports errors caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnauthorized)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	sequenceUniqueIndex   = "documents_doc_type_sequence_number_key"
	serviceOrderLinkKey   = "documents_service_order_id_fkey"
	pgClassConnException  = "08"
)

// classifyStorageError turns connectivity failures into StorageUnavailableError
// and wraps everything else with op.
func classifyStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var connErr *pgconn.ConnectError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &connErr),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err):
		return &StorageUnavailableError{Op: op, Err: err}
	case errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, pgClassConnException):
		return &StorageUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isSequenceCollision reports a unique violation on (doc_type, sequence_number).
func isSequenceCollision(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == sequenceUniqueIndex
}

// isServiceOrderReferenced reports a delete blocked by a purchase order that
// still links to the service order.
func isServiceOrderReferenced(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == serviceOrderLinkKey
}

// readBackError reports a committed write whose result could not be loaded.
func readBackError(op string, docID int, seq int64, err error) error {
	return &PartialWriteError{Op: op, Stage: "read back", DocumentID: docID, Sequence: seq, Err: err}
}
