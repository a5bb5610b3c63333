package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType identifies one of the three procurement document kinds.
type DocumentType string

const (
	QuoteRequest  DocumentType = "QUOTE_REQUEST"
	PurchaseOrder DocumentType = "PURCHASE_ORDER"
	ServiceOrder  DocumentType = "SERVICE_ORDER"
)

// DocumentTypes lists every supported type in a stable order.
var DocumentTypes = []DocumentType{QuoteRequest, PurchaseOrder, ServiceOrder}

// ParseDocumentType accepts the canonical code, the number prefix, or the
// kebab-case plural used in URLs ("purchase-orders").
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quote_request", "qr", "quote-requests", "quote-request":
		return QuoteRequest, nil
	case "purchase_order", "po", "purchase-orders", "purchase-order":
		return PurchaseOrder, nil
	case "service_order", "so", "service-orders", "service-order":
		return ServiceOrder, nil
	}
	return "", &ValidationError{Fields: map[string]string{"type": fmt.Sprintf("unknown document type %q", s)}}
}

func (t DocumentType) Valid() bool {
	switch t {
	case QuoteRequest, PurchaseOrder, ServiceOrder:
		return true
	}
	return false
}

// Prefix is the short code printed in front of the sequence number.
func (t DocumentType) Prefix() string {
	switch t {
	case QuoteRequest:
		return "QR"
	case PurchaseOrder:
		return "PO"
	case ServiceOrder:
		return "SO"
	}
	return "DOC"
}

// CarriesPricing reports whether line items of this type hold prices.
// Quote requests only ask for quantities.
func (t DocumentType) CarriesPricing() bool {
	return t == PurchaseOrder || t == ServiceOrder
}

// ActiveStatuses is the status set behind the "active" list filter.
func (t DocumentType) ActiveStatuses() []DocumentStatus {
	return []DocumentStatus{StatusDraft, StatusSent}
}

type DocumentStatus string

const (
	StatusDraft    DocumentStatus = "DRAFT"
	StatusSent     DocumentStatus = "SENT"
	StatusApproved DocumentStatus = "APPROVED"
	StatusRejected DocumentStatus = "REJECTED"
	StatusArchived DocumentStatus = "ARCHIVED"
)

// HistoryStatuses is the status set behind the "history" list filter.
var HistoryStatuses = []DocumentStatus{StatusApproved, StatusRejected, StatusArchived}

func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusDraft, StatusSent, StatusApproved, StatusRejected, StatusArchived:
		return st, nil
	}
	return "", &ValidationError{Fields: map[string]string{"status": fmt.Sprintf("unknown status %q", s)}}
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyVES Currency = "VES"
)

// Actor is the identity responsible for a mutation. It is always passed in
// explicitly by the caller.
type Actor struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
}

// Document is a procurement document header with its line items.
type Document struct {
	ID                 int              `json:"id"`
	Type               DocumentType     `json:"type"`
	SequenceNumber     int64            `json:"sequence_number"`
	Status             DocumentStatus   `json:"status"`
	ArchivedFromStatus *DocumentStatus  `json:"archived_from_status,omitempty"`
	CompanyID          int              `json:"company_id"`
	SupplierID         int              `json:"supplier_id"`
	Currency           Currency         `json:"currency"`
	ExchangeRate       *decimal.Decimal `json:"exchange_rate,omitempty"`
	ServiceOrderID     *int             `json:"service_order_id,omitempty"`
	Notes              *string          `json:"notes,omitempty"`
	CreatedBy          string           `json:"created_by"`
	UserID             int              `json:"user_id"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Items              []LineItem       `json:"items,omitempty"`
}

// Number is the human-facing document number, e.g. PO-00042.
func (d Document) Number() string {
	return fmt.Sprintf("%s-%05d", d.Type.Prefix(), d.SequenceNumber)
}

// Total sums the line totals. Zero for quote requests.
func (d Document) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Total())
	}
	return total
}

// LineItem is one row of a document. Item IDs are reassigned whenever the
// owning document's item list is replaced.
type LineItem struct {
	ID                 int             `json:"id"`
	DocumentID         int             `json:"document_id"`
	Position           int             `json:"position"`
	MaterialID         *int            `json:"material_id,omitempty"`
	MaterialName       string          `json:"material_name"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	Description        *string         `json:"description,omitempty"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	IsExempt           bool            `json:"is_exempt"`
	SalesPercentage    decimal.Decimal `json:"sales_percentage"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

var hundred = decimal.NewFromInt(100)

// Total is quantity * unit price, less the discount, plus tax unless exempt.
func (l LineItem) Total() decimal.Decimal {
	net := l.Quantity.Mul(l.UnitPrice)
	net = net.Sub(net.Mul(l.DiscountPercentage).Div(hundred))
	if l.IsExempt {
		return net.Round(2)
	}
	return net.Add(net.Mul(l.TaxRate).Div(hundred)).Round(2)
}

// HeaderInput holds the caller-supplied header fields for a new document.
type HeaderInput struct {
	CompanyID      int
	SupplierID     int
	Currency       Currency
	ExchangeRate   *decimal.Decimal
	ServiceOrderID *int
	Notes          string
}

// HeaderPatch changes selected header fields; nil fields are left alone.
// Switching the currency to USD drops the exchange rate. Provenance fields
// are never patchable.
type HeaderPatch struct {
	SupplierID     *int
	Currency       *Currency
	ExchangeRate   *decimal.Decimal
	ServiceOrderID *int
	Notes          *string
}

// LineItemInput is a candidate line item before persistence.
type LineItemInput struct {
	MaterialID         *int
	MaterialName       string
	Quantity           decimal.Decimal
	Unit               string
	Description        string
	UnitPrice          decimal.Decimal
	TaxRate            decimal.Decimal
	IsExempt           bool
	SalesPercentage    decimal.Decimal
	DiscountPercentage decimal.Decimal
}

// StatusFilterKind selects which documents GetAll returns.
type StatusFilterKind int

const (
	FilterAll StatusFilterKind = iota
	FilterActive
	FilterHistory
	FilterStatus
)

type StatusFilter struct {
	Kind   StatusFilterKind
	Status DocumentStatus
}

// ParseStatusFilter maps "", "active", "history" or a status name.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusFilter{Kind: FilterAll}, nil
	case "active":
		return StatusFilter{Kind: FilterActive}, nil
	case "history":
		return StatusFilter{Kind: FilterHistory}, nil
	}
	st, err := ParseDocumentStatus(s)
	if err != nil {
		return StatusFilter{}, err
	}
	return StatusFilter{Kind: FilterStatus, Status: st}, nil
}

// Statuses resolves the filter for a document type. Nil means no filter.
func (f StatusFilter) Statuses(t DocumentType) []DocumentStatus {
	switch f.Kind {
	case FilterActive:
		return t.ActiveStatuses()
	case FilterHistory:
		return HistoryStatuses
	case FilterStatus:
		return []DocumentStatus{f.Status}
	}
	return nil
}

// PriceHistoryEntry is one realized supplier price. At most one of
// PurchaseOrderID and ServiceOrderID is set.
type PriceHistoryEntry struct {
	ID              int              `json:"id"`
	MaterialID      int              `json:"material_id"`
	SupplierID      int              `json:"supplier_id"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Currency        Currency         `json:"currency"`
	ExchangeRate    *decimal.Decimal `json:"exchange_rate,omitempty"`
	RecordedAt      time.Time        `json:"recorded_at"`
	PurchaseOrderID *int             `json:"purchase_order_id,omitempty"`
	ServiceOrderID  *int             `json:"service_order_id,omitempty"`
}

// Source describes where the entry came from, for display.
func (e PriceHistoryEntry) Source() string {
	switch {
	case e.PurchaseOrderID != nil:
		return fmt.Sprintf("purchase order %d", *e.PurchaseOrderID)
	case e.ServiceOrderID != nil:
		return fmt.Sprintf("service order %d", *e.ServiceOrderID)
	}
	return "manual"
}
