package app

import (
	"procurement/internal/core"

	"github.com/shopspring/decimal"
)

// ResetSequenceRequest is the input for an administrative sequence reset.
type ResetSequenceRequest struct {
	Type        core.DocumentType
	StartNumber int64
	AuthToken   string
	Actor       core.Actor
}

// CreateDocumentRequest is the input for creating a new document.
type CreateDocumentRequest struct {
	Type   core.DocumentType
	Header core.HeaderInput
	Items  []core.LineItemInput
	Actor  core.Actor
}

// UpdateDocumentRequest is the input for updating a document. A nil Items
// leaves the current items untouched.
type UpdateDocumentRequest struct {
	Type  core.DocumentType
	ID    int
	Patch core.HeaderPatch
	Items []core.LineItemInput
	Actor core.Actor
}

// AppendPriceRequest is the input for recording one price.
type AppendPriceRequest struct {
	MaterialID      int
	SupplierID      int
	UnitPrice       decimal.Decimal
	Currency        core.Currency
	ExchangeRate    *decimal.Decimal
	PurchaseOrderID *int
	ServiceOrderID  *int
	Actor           core.Actor
}
