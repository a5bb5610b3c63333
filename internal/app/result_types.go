package app

import (
	"procurement/internal/ai"
	"procurement/internal/core"
)

// DocumentResult is returned by document lifecycle operations.
type DocumentResult struct {
	Document *core.Document
	// PricesRecorded is the number of price history entries appended by a
	// create or update.
	PricesRecorded int
}

// DocumentListResult is returned by ListDocuments.
type DocumentListResult struct {
	Type      core.DocumentType
	Documents []core.Document
}

// PriceHistoryResult is returned by GetPriceHistory.
type PriceHistoryResult struct {
	MaterialID int
	Entries    []core.PriceHistoryEntry
	// Superseded counts service order entries hidden by reconciliation.
	Superseded int
}

// DraftResult is returned by DraftDocumentFromText.
type DraftResult struct {
	Draft  *ai.DocumentDraft
	Header core.HeaderInput
	Items  []core.LineItemInput
}
