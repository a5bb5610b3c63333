package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// SequenceAllocator issues document sequence numbers per document type.
// Numbers are never handed out twice; numbers burnt by failed creations are
// not reissued.
type SequenceAllocator interface {
	// Next atomically increments the counter and returns the number it held.
	Next(ctx context.Context, docType DocumentType) (int64, error)

	// Peek returns the number the next call to Next would issue.
	Peek(ctx context.Context, docType DocumentType) (int64, error)

	// Reset makes startNumber the next number issued, whether that moves the
	// counter back or forward. authToken must match the configured secret.
	Reset(ctx context.Context, docType DocumentType, startNumber int64, authToken string) error
}

type sequenceService struct {
	pool       *pgxpool.Pool
	secretHash []byte
}

// NewSequenceAllocator constructs a SequenceAllocator backed by the
// document_sequences table. An empty secretHash disables Reset.
func NewSequenceAllocator(pool *pgxpool.Pool, secretHash []byte) SequenceAllocator {
	return &sequenceService{pool: pool, secretHash: secretHash}
}

// Next runs in its own implicit transaction so that the increment survives a
// rollback of the document it was allocated for.
func (s *sequenceService) Next(ctx context.Context, docType DocumentType) (int64, error) {
	if !docType.Valid() {
		return 0, &ValidationError{Fields: map[string]string{"type": fmt.Sprintf("unknown document type %q", docType)}}
	}
	// The row lock taken by ON CONFLICT DO UPDATE serializes concurrent callers.
	var n int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (type_code, next_value)
		VALUES ($1, 2)
		ON CONFLICT (type_code)
		DO UPDATE SET next_value = document_sequences.next_value + 1, updated_at = NOW()
		RETURNING next_value - 1
	`, string(docType)).Scan(&n)
	if err != nil {
		return 0, classifyStorageError(fmt.Sprintf("allocate %s sequence", docType), err)
	}
	return n, nil
}

func (s *sequenceService) Peek(ctx context.Context, docType DocumentType) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT next_value FROM document_sequences WHERE type_code = $1",
		string(docType),
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, classifyStorageError(fmt.Sprintf("read %s sequence", docType), err)
	}
	return n, nil
}

func (s *sequenceService) Reset(ctx context.Context, docType DocumentType, startNumber int64, authToken string) error {
	if err := checkReset(s.secretHash, docType, startNumber, authToken); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_sequences (type_code, next_value)
		VALUES ($1, $2)
		ON CONFLICT (type_code)
		DO UPDATE SET next_value = EXCLUDED.next_value, updated_at = NOW()
	`, string(docType), startNumber)
	if err != nil {
		return classifyStorageError(fmt.Sprintf("reset %s sequence", docType), err)
	}
	return nil
}

func checkReset(secretHash []byte, docType DocumentType, startNumber int64, authToken string) error {
	if len(secretHash) == 0 || authToken == "" {
		return fmt.Errorf("reset %s sequence: %w", docType, ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(secretHash, []byte(authToken)); err != nil {
		return fmt.Errorf("reset %s sequence: %w", docType, ErrUnauthorized)
	}
	v := &ValidationError{}
	if !docType.Valid() {
		v.add("type", fmt.Sprintf("unknown document type %q", docType))
	}
	if startNumber < 1 {
		v.add("start_number", "must be at least 1")
	}
	return v.orNil()
}

// memorySequences is a mutex-guarded allocator for single-writer deployments
// and tests.
type memorySequences struct {
	mu         sync.Mutex
	next       map[DocumentType]int64
	secretHash []byte
}

func NewMemorySequenceAllocator(secretHash []byte) SequenceAllocator {
	return &memorySequences{next: make(map[DocumentType]int64), secretHash: secretHash}
}

func (m *memorySequences) Next(_ context.Context, docType DocumentType) (int64, error) {
	if !docType.Valid() {
		return 0, &ValidationError{Fields: map[string]string{"type": fmt.Sprintf("unknown document type %q", docType)}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.peekLocked(docType)
	m.next[docType] = n + 1
	return n, nil
}

func (m *memorySequences) Peek(_ context.Context, docType DocumentType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peekLocked(docType), nil
}

func (m *memorySequences) peekLocked(docType DocumentType) int64 {
	if n, ok := m.next[docType]; ok {
		return n
	}
	return 1
}

func (m *memorySequences) Reset(_ context.Context, docType DocumentType, startNumber int64, authToken string) error {
	if err := checkReset(m.secretHash, docType, startNumber, authToken); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[docType] = startNumber
	return nil
}
