package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusChange is the header-only write produced by a StatusDecider.
type StatusChange struct {
	Status       DocumentStatus
	ArchivedFrom *DocumentStatus
}

// StatusDecider inspects the locked current document and returns the status
// to write, or an error to abort without writing.
type StatusDecider func(current Document) (StatusChange, error)

// DocumentRepository is the only writer of documents and their line items.
type DocumentRepository interface {
	// Create validates the input, allocates a sequence number and writes the
	// header and items in one transaction. A *PartialWriteError with Stage
	// "commit" means the outcome is unknown; callers may Delete to clean up.
	Create(ctx context.Context, docType DocumentType, header HeaderInput, items []LineItemInput, actor Actor) (*Document, error)

	// Update patches the header and, when items is non-nil, replaces the item
	// list wholesale. Item IDs change on every replacement.
	Update(ctx context.Context, docType DocumentType, id int, patch HeaderPatch, items []LineItemInput, actor Actor) error

	// GetByID returns the header with items in insertion order.
	GetByID(ctx context.Context, docType DocumentType, id int) (*Document, error)

	// GetAll returns headers matching filter, newest first. Items are not loaded.
	GetAll(ctx context.Context, docType DocumentType, filter StatusFilter) ([]Document, error)

	// Delete removes the header and all its items.
	Delete(ctx context.Context, docType DocumentType, id int, actor Actor) error

	// SetStatus runs decide against the row-locked document and writes the
	// resulting status. Items are never touched.
	SetStatus(ctx context.Context, docType DocumentType, id int, decide StatusDecider) (*Document, error)

	// LinkedServiceOrders returns the service order ids referenced by the given
	// purchase orders.
	LinkedServiceOrders(ctx context.Context, purchaseOrderIDs []int) (map[int]struct{}, error)
}

type documentRepository struct {
	pool  *pgxpool.Pool
	seq   SequenceAllocator
	audit AuditSink
}

// NewDocumentRepository constructs a DocumentRepository backed by PostgreSQL.
func NewDocumentRepository(pool *pgxpool.Pool, seq SequenceAllocator, audit AuditSink) DocumentRepository {
	if audit == nil {
		audit = NopAuditSink
	}
	return &documentRepository{pool: pool, seq: seq, audit: audit}
}

const documentColumns = `
	id, doc_type, sequence_number, status, archived_from_status, company_id, supplier_id,
	currency, exchange_rate, service_order_id, notes, created_by, user_id, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	d := &Document{}
	err := row.Scan(
		&d.ID, &d.Type, &d.SequenceNumber, &d.Status, &d.ArchivedFromStatus,
		&d.CompanyID, &d.SupplierID, &d.Currency, &d.ExchangeRate, &d.ServiceOrderID,
		&d.Notes, &d.CreatedBy, &d.UserID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create validates, allocates a sequence number, and persists header+items.
func (r *documentRepository) Create(ctx context.Context, docType DocumentType, header HeaderInput, items []LineItemInput, actor Actor) (*Document, error) {
	if err := ValidateHeader(docType, header); err != nil {
		return nil, err
	}
	if err := ValidateLineItems(items); err != nil {
		return nil, err
	}
	if header.ServiceOrderID != nil {
		if err := r.checkServiceOrder(ctx, r.pool, *header.ServiceOrderID); err != nil {
			return nil, err
		}
	}

	seq, err := r.seq.Next(ctx, docType)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, classifyStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var docID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO documents (doc_type, sequence_number, status, company_id, supplier_id,
		                       currency, exchange_rate, service_order_id, notes, created_by, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		string(docType), seq, string(StatusDraft), header.CompanyID, header.SupplierID,
		string(header.Currency), header.ExchangeRate, header.ServiceOrderID, emptyToNil(header.Notes),
		actor.Email, actor.UserID,
	).Scan(&docID); err != nil {
		if isSequenceCollision(err) {
			return nil, &ConcurrencyConflictError{Type: docType, Sequence: seq}
		}
		return nil, classifyStorageError(fmt.Sprintf("insert %s header", docType), err)
	}

	if err := insertItems(ctx, tx, docType, docID, items); err != nil {
		return nil, &PartialWriteError{Op: "create", Stage: "insert items", DocumentID: docID, Sequence: seq, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &PartialWriteError{Op: "create", Stage: "commit", DocumentID: docID, Sequence: seq, Err: err}
	}

	r.audit.Emit(ctx, NewAuditEvent(AuditDocumentCreated, "documents", strconv.Itoa(docID), actor, map[string]any{
		"type":            docType,
		"sequence_number": seq,
		"items":           len(items),
	}))

	doc, err := r.GetByID(ctx, docType, docID)
	if err != nil {
		return nil, readBackError("create", docID, seq, err)
	}
	return doc, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, docType DocumentType, docID int, items []LineItemInput) error {
	for i, raw := range items {
		it := normalizeItem(docType, raw)
		if _, err := tx.Exec(ctx, `
			INSERT INTO document_items
			            (document_id, position, material_id, material_name, quantity, unit, description,
			             unit_price, tax_rate, is_exempt, sales_percentage, discount_percentage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			docID, i+1, it.MaterialID, it.MaterialName, it.Quantity, it.Unit, emptyToNil(it.Description),
			it.UnitPrice, it.TaxRate, it.IsExempt, it.SalesPercentage, it.DiscountPercentage,
		); err != nil {
			return fmt.Errorf("insert line item %d: %w", i+1, err)
		}
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *documentRepository) checkServiceOrder(ctx context.Context, q querier, id int) error {
	var exists bool
	if err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1 AND doc_type = $2)",
		id, string(ServiceOrder),
	).Scan(&exists); err != nil {
		return classifyStorageError("check service order", err)
	}
	if !exists {
		return &ValidationError{Fields: map[string]string{"service_order_id": fmt.Sprintf("service order %d does not exist", id)}}
	}
	return nil
}

// Update applies patch and optionally replaces all items.
func (r *documentRepository) Update(ctx context.Context, docType DocumentType, id int, patch HeaderPatch, items []LineItemInput, actor Actor) error {
	if items != nil {
		if err := ValidateLineItems(items); err != nil {
			return err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classifyStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockDocument(ctx, tx, docType, id)
	if err != nil {
		return err
	}

	next := applyPatch(*current, patch)
	if err := validatePatched(next); err != nil {
		return err
	}
	if patch.ServiceOrderID != nil {
		if err := r.checkServiceOrder(ctx, tx, *patch.ServiceOrderID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE documents
		SET supplier_id = $1, currency = $2, exchange_rate = $3, service_order_id = $4,
		    notes = $5, updated_at = NOW()
		WHERE id = $6`,
		next.SupplierID, string(next.Currency), next.ExchangeRate, next.ServiceOrderID, next.Notes, id,
	); err != nil {
		return classifyStorageError(fmt.Sprintf("update %s %d header", docType, id), err)
	}

	if items != nil {
		if _, err := tx.Exec(ctx, "DELETE FROM document_items WHERE document_id = $1", id); err != nil {
			return &PartialWriteError{Op: "update", Stage: "delete items", DocumentID: id, Sequence: current.SequenceNumber, Err: err}
		}
		if err := insertItems(ctx, tx, docType, id, items); err != nil {
			return &PartialWriteError{Op: "update", Stage: "insert items", DocumentID: id, Sequence: current.SequenceNumber, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PartialWriteError{Op: "update", Stage: "commit", DocumentID: id, Sequence: current.SequenceNumber, Err: err}
	}

	r.audit.Emit(ctx, NewAuditEvent(AuditDocumentUpdated, "documents", strconv.Itoa(id), actor, map[string]any{
		"type":           docType,
		"items_replaced": items != nil,
	}))
	return nil
}

// lockDocument reads a header with FOR UPDATE inside tx.
func lockDocument(ctx context.Context, tx pgx.Tx, docType DocumentType, id int) (*Document, error) {
	d, err := scanDocument(tx.QueryRow(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = $1 AND doc_type = $2 FOR UPDATE",
		id, string(docType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: resourceName(docType), ID: id}
		}
		return nil, classifyStorageError(fmt.Sprintf("lock %s %d", docType, id), err)
	}
	return d, nil
}

// GetByID returns a document with its items, ordered by position.
func (r *documentRepository) GetByID(ctx context.Context, docType DocumentType, id int) (*Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = $1 AND doc_type = $2",
		id, string(docType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: resourceName(docType), ID: id}
		}
		return nil, classifyStorageError(fmt.Sprintf("get %s %d", docType, id), err)
	}

	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	d.Items = items
	return d, nil
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q rowsQuerier, docID int) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, document_id, position, material_id, material_name, quantity, unit, description,
		       unit_price, tax_rate, is_exempt, sales_percentage, discount_percentage
		FROM document_items
		WHERE document_id = $1
		ORDER BY position`,
		docID,
	)
	if err != nil {
		return nil, classifyStorageError(fmt.Sprintf("load items for document %d", docID), err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(
			&it.ID, &it.DocumentID, &it.Position, &it.MaterialID, &it.MaterialName,
			&it.Quantity, &it.Unit, &it.Description,
			&it.UnitPrice, &it.TaxRate, &it.IsExempt, &it.SalesPercentage, &it.DiscountPercentage,
		); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageError("iterate line items", err)
	}
	return items, nil
}

// GetAll lists headers of one type, newest first.
func (r *documentRepository) GetAll(ctx context.Context, docType DocumentType, filter StatusFilter) ([]Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE doc_type = $1"
	args := []any{string(docType)}
	if statuses := filter.Statuses(docType); statuses != nil {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += " AND status = ANY($2)"
		args = append(args, names)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyStorageError(fmt.Sprintf("list %s documents", docType), err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageError(fmt.Sprintf("list %s documents", docType), err)
	}
	return docs, nil
}

// Delete removes a document and its items.
func (r *documentRepository) Delete(ctx context.Context, docType DocumentType, id int, actor Actor) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classifyStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM document_items
		WHERE document_id = (SELECT id FROM documents WHERE id = $1 AND doc_type = $2)`,
		id, string(docType),
	); err != nil {
		return classifyStorageError(fmt.Sprintf("delete items of %s %d", docType, id), err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM documents WHERE id = $1 AND doc_type = $2", id, string(docType))
	if err != nil {
		if isServiceOrderReferenced(err) {
			return &ValidationError{Fields: map[string]string{
				"id": fmt.Sprintf("service order %d is referenced by a purchase order", id),
			}}
		}
		return classifyStorageError(fmt.Sprintf("delete %s %d", docType, id), err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Resource: resourceName(docType), ID: id}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyStorageError(fmt.Sprintf("commit delete of %s %d", docType, id), err)
	}

	r.audit.Emit(ctx, NewAuditEvent(AuditDocumentDeleted, "documents", strconv.Itoa(id), actor, map[string]any{
		"type": docType,
	}))
	return nil
}

// SetStatus performs a header-only compare-and-set on the status columns.
func (r *documentRepository) SetStatus(ctx context.Context, docType DocumentType, id int, decide StatusDecider) (*Document, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, classifyStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockDocument(ctx, tx, docType, id)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	current.Items = items

	change, err := decide(*current)
	if err != nil {
		return nil, err
	}

	var archivedFrom *string
	if change.ArchivedFrom != nil {
		s := string(*change.ArchivedFrom)
		archivedFrom = &s
	}
	if _, err := tx.Exec(ctx, `
		UPDATE documents
		SET status = $1, archived_from_status = $2, updated_at = NOW()
		WHERE id = $3`,
		string(change.Status), archivedFrom, id,
	); err != nil {
		return nil, classifyStorageError(fmt.Sprintf("update %s %d status", docType, id), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyStorageError(fmt.Sprintf("commit %s %d status", docType, id), err)
	}

	current.Status = change.Status
	current.ArchivedFromStatus = change.ArchivedFrom
	return current, nil
}

// LinkedServiceOrders maps purchase orders to the service orders they came from.
func (r *documentRepository) LinkedServiceOrders(ctx context.Context, purchaseOrderIDs []int) (map[int]struct{}, error) {
	linked := make(map[int]struct{})
	if len(purchaseOrderIDs) == 0 {
		return linked, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT service_order_id
		FROM documents
		WHERE doc_type = $1 AND id = ANY($2) AND service_order_id IS NOT NULL`,
		string(PurchaseOrder), purchaseOrderIDs,
	)
	if err != nil {
		return nil, classifyStorageError("look up linked service orders", err)
	}
	defer rows.Close()

	for rows.Next() {
		var soID int
		if err := rows.Scan(&soID); err != nil {
			return nil, fmt.Errorf("scan service order id: %w", err)
		}
		linked[soID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageError("look up linked service orders", err)
	}
	return linked, nil
}

func resourceName(t DocumentType) string {
	switch t {
	case QuoteRequest:
		return "quote request"
	case PurchaseOrder:
		return "purchase order"
	case ServiceOrder:
		return "service order"
	}
	return "document"
}
