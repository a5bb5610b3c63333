package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceHistoryLedger is the append-only record of realized supplier prices.
type PriceHistoryLedger interface {
	// Append inserts one entry. RecordedAt is assigned by the store.
	Append(ctx context.Context, entry PriceHistoryEntry) (*PriceHistoryEntry, error)

	// QueryByMaterial returns every entry for a material, newest first.
	QueryByMaterial(ctx context.Context, materialID int) ([]PriceHistoryEntry, error)

	// RecordDocumentPrices appends one entry per priced line item of a purchase
	// or service order that references a material, and returns how many were
	// written. Quote requests record nothing.
	RecordDocumentPrices(ctx context.Context, doc *Document, actor Actor) (int, error)
}

type priceHistoryService struct {
	pool  *pgxpool.Pool
	audit AuditSink
}

func NewPriceHistoryLedger(pool *pgxpool.Pool, audit AuditSink) PriceHistoryLedger {
	if audit == nil {
		audit = NopAuditSink
	}
	return &priceHistoryService{pool: pool, audit: audit}
}

// ValidatePriceEntry enforces the ledger's only invariant: an entry may point
// at a purchase order or a service order, never both.
func ValidatePriceEntry(e PriceHistoryEntry) error {
	v := &ValidationError{}
	if e.PurchaseOrderID != nil && e.ServiceOrderID != nil {
		v.add("service_order_id", "an entry cannot reference both a purchase order and a service order")
	}
	return v.orNil()
}

func (s *priceHistoryService) Append(ctx context.Context, entry PriceHistoryEntry) (*PriceHistoryEntry, error) {
	if err := ValidatePriceEntry(entry); err != nil {
		return nil, err
	}
	out := entry
	err := s.pool.QueryRow(ctx, `
		INSERT INTO price_history (material_id, supplier_id, unit_price, currency, exchange_rate,
		                           purchase_order_id, service_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, recorded_at`,
		entry.MaterialID, entry.SupplierID, entry.UnitPrice, string(entry.Currency), entry.ExchangeRate,
		entry.PurchaseOrderID, entry.ServiceOrderID,
	).Scan(&out.ID, &out.RecordedAt)
	if err != nil {
		return nil, classifyStorageError(fmt.Sprintf("append price for material %d", entry.MaterialID), err)
	}
	return &out, nil
}

func (s *priceHistoryService) QueryByMaterial(ctx context.Context, materialID int) ([]PriceHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, material_id, supplier_id, unit_price, currency, exchange_rate, recorded_at,
		       purchase_order_id, service_order_id
		FROM price_history
		WHERE material_id = $1
		ORDER BY recorded_at DESC, id DESC`,
		materialID,
	)
	if err != nil {
		return nil, classifyStorageError(fmt.Sprintf("query price history for material %d", materialID), err)
	}
	defer rows.Close()

	var entries []PriceHistoryEntry
	for rows.Next() {
		var e PriceHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.MaterialID, &e.SupplierID, &e.UnitPrice, &e.Currency, &e.ExchangeRate,
			&e.RecordedAt, &e.PurchaseOrderID, &e.ServiceOrderID,
		); err != nil {
			return nil, fmt.Errorf("scan price history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageError(fmt.Sprintf("query price history for material %d", materialID), err)
	}
	return entries, nil
}

// PriceEntriesFor builds the ledger entries a document would record.
func PriceEntriesFor(doc *Document) []PriceHistoryEntry {
	if doc == nil || !doc.Type.CarriesPricing() {
		return nil
	}
	var entries []PriceHistoryEntry
	for _, it := range doc.Items {
		if it.MaterialID == nil || !it.UnitPrice.IsPositive() {
			continue
		}
		e := PriceHistoryEntry{
			MaterialID:   *it.MaterialID,
			SupplierID:   doc.SupplierID,
			UnitPrice:    it.UnitPrice,
			Currency:     doc.Currency,
			ExchangeRate: doc.ExchangeRate,
		}
		id := doc.ID
		if doc.Type == PurchaseOrder {
			e.PurchaseOrderID = &id
		} else {
			e.ServiceOrderID = &id
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *priceHistoryService) RecordDocumentPrices(ctx context.Context, doc *Document, actor Actor) (int, error) {
	entries := PriceEntriesFor(doc)
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, classifyStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO price_history (material_id, supplier_id, unit_price, currency, exchange_rate,
			                           purchase_order_id, service_order_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.MaterialID, e.SupplierID, e.UnitPrice, string(e.Currency), e.ExchangeRate,
			e.PurchaseOrderID, e.ServiceOrderID,
		); err != nil {
			return 0, classifyStorageError(fmt.Sprintf("record price for material %d", e.MaterialID), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classifyStorageError("commit price history", err)
	}

	s.audit.Emit(ctx, NewAuditEvent(AuditPriceRecorded, "price_history", strconv.Itoa(doc.ID), actor, map[string]any{
		"document": doc.Number(),
		"entries":  len(entries),
	}))
	return len(entries), nil
}
