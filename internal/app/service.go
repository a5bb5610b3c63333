package app

import (
	"context"

	"procurement/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from the core. Implementations must contain no
// display logic of any kind.
type ApplicationService interface {
	// AllocateSequence consumes and returns the next sequence number for a type.
	AllocateSequence(ctx context.Context, docType core.DocumentType) (int64, error)

	// PeekSequence returns the next sequence number without consuming it.
	PeekSequence(ctx context.Context, docType core.DocumentType) (int64, error)

	// ResetSequence makes startNumber the next number issued. authToken is the
	// plaintext reset secret.
	ResetSequence(ctx context.Context, req ResetSequenceRequest) error

	// CreateDocument persists a new DRAFT document. For purchase and service
	// orders the realized prices are appended to the price history.
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*DocumentResult, error)

	// UpdateDocument patches the header and, when Items is non-nil, replaces
	// the item list.
	UpdateDocument(ctx context.Context, req UpdateDocumentRequest) (*DocumentResult, error)

	GetDocument(ctx context.Context, docType core.DocumentType, id int) (*DocumentResult, error)

	// ListDocuments returns headers newest first. filter is "", "active",
	// "history" or a status name.
	ListDocuments(ctx context.Context, docType core.DocumentType, filter string) (*DocumentListResult, error)

	DeleteDocument(ctx context.Context, docType core.DocumentType, id int, actor core.Actor) error

	TransitionStatus(ctx context.Context, docType core.DocumentType, id int, target core.DocumentStatus, actor core.Actor) (*DocumentResult, error)
	ArchiveDocument(ctx context.Context, docType core.DocumentType, id int, actor core.Actor) (*DocumentResult, error)
	UnarchiveDocument(ctx context.Context, docType core.DocumentType, id int, actor core.Actor) (*DocumentResult, error)

	// AppendPriceHistory records a price manually or on behalf of a document.
	AppendPriceHistory(ctx context.Context, req AppendPriceRequest) (*core.PriceHistoryEntry, error)

	// GetPriceHistory returns the reconciled history of one material.
	GetPriceHistory(ctx context.Context, materialID int) (*PriceHistoryResult, error)

	// ExportPriceHistory renders the reconciled history as an XLSX workbook.
	ExportPriceHistory(ctx context.Context, materialID int) ([]byte, error)

	// DraftDocumentFromText asks the AI agent for a draft. Nothing is persisted.
	DraftDocumentFromText(ctx context.Context, docType core.DocumentType, text string) (*DraftResult, error)
}
