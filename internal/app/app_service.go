package app

import (
	"context"
	"fmt"
	"strconv"

	"procurement/internal/ai"
	"procurement/internal/core"
)

type appService struct {
	sequences  core.SequenceAllocator
	repo       core.DocumentRepository
	lifecycle  core.StatusLifecycle
	ledger     core.PriceHistoryLedger
	reconciler *core.PriceHistoryReconciler
	drafter    ai.Drafter
	audit      core.AuditSink
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	sequences core.SequenceAllocator,
	repo core.DocumentRepository,
	lifecycle core.StatusLifecycle,
	ledger core.PriceHistoryLedger,
	reconciler *core.PriceHistoryReconciler,
	drafter ai.Drafter,
	audit core.AuditSink,
) ApplicationService {
	if audit == nil {
		audit = core.NopAuditSink
	}
	return &appService{
		sequences:  sequences,
		repo:       repo,
		lifecycle:  lifecycle,
		ledger:     ledger,
		reconciler: reconciler,
		drafter:    drafter,
		audit:      audit,
	}
}

func (s *appService) AllocateSequence(ctx context.Context, docType core.DocumentType) (int64, error) {
	return s.sequences.Next(ctx, docType)
}

func (s *appService) PeekSequence(ctx context.Context, docType core.DocumentType) (int64, error) {
	if !docType.Valid() {
		return 0, &core.ValidationError{Fields: map[string]string{"type": fmt.Sprintf("unknown document type %q", docType)}}
	}
	return s.sequences.Peek(ctx, docType)
}

func (s *appService) ResetSequence(ctx context.Context, req ResetSequenceRequest) error {
	if err := s.sequences.Reset(ctx, req.Type, req.StartNumber, req.AuthToken); err != nil {
		return err
	}
	s.audit.Emit(ctx, core.NewAuditEvent(core.AuditSequenceReset, "document_sequences", string(req.Type), req.Actor, map[string]any{
		"start_number": req.StartNumber,
	}))
	return nil
}

func (s *appService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*DocumentResult, error) {
	doc, err := s.repo.Create(ctx, req.Type, req.Header, req.Items, req.Actor)
	if err != nil {
		return nil, err
	}

	n, err := s.recordPrices(ctx, "create", doc, req.Actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc, PricesRecorded: n}, nil
}

func (s *appService) UpdateDocument(ctx context.Context, req UpdateDocumentRequest) (*DocumentResult, error) {
	if err := s.repo.Update(ctx, req.Type, req.ID, req.Patch, req.Items, req.Actor); err != nil {
		return nil, err
	}

	// The update is committed; a failed read must still say so.
	doc, err := s.repo.GetByID(ctx, req.Type, req.ID)
	if err != nil {
		if req.Items != nil && req.Type.CarriesPricing() {
			err = fmt.Errorf("prices not recorded: %w", err)
		}
		return nil, &core.PartialWriteError{Op: "update", Stage: "read back", DocumentID: req.ID, Err: err}
	}

	// Header-only updates realize no new prices.
	if req.Items == nil {
		return &DocumentResult{Document: doc}, nil
	}
	n, err := s.recordPrices(ctx, "update", doc, req.Actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc, PricesRecorded: n}, nil
}

// recordPrices appends the document's realized prices. The document itself is
// already committed, so a failure is reported as a partial write.
func (s *appService) recordPrices(ctx context.Context, op string, doc *core.Document, actor core.Actor) (int, error) {
	if !doc.Type.CarriesPricing() {
		return 0, nil
	}
	n, err := s.ledger.RecordDocumentPrices(ctx, doc, actor)
	if err != nil {
		return 0, &core.PartialWriteError{
			Op:         op,
			Stage:      "record prices",
			DocumentID: doc.ID,
			Sequence:   doc.SequenceNumber,
			Err:        err,
		}
	}
	return n, nil
}

func (s *appService) GetDocument(ctx context.Context, docType core.DocumentType, id int) (*DocumentResult, error) {
	doc, err := s.repo.GetByID(ctx, docType, id)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) ListDocuments(ctx context.Context, docType core.DocumentType, filter string) (*DocumentListResult, error) {
	if !docType.Valid() {
		return nil, &core.ValidationError{Fields: map[string]string{"type": fmt.Sprintf("unknown document type %q", docType)}}
	}
	f, err := core.ParseStatusFilter(filter)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.GetAll(ctx, docType, f)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Type: docType, Documents: docs}, nil
}

func (s *appService) DeleteDocument(ctx context.Context, docType core.DocumentType, id int, actor core.Actor) error {
	return s.repo.Delete(ctx, docType, id, actor)
}

func (s *appService) TransitionStatus(ctx context.Context, docType core.DocumentType, id int, target core.DocumentStatus, actor core.Actor) (*DocumentResult, error) {
	doc, err := s.lifecycle.Transition(ctx, docType, id, target, actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) ArchiveDocument(ctx context.Context, docType core.DocumentType, id int, actor core.Actor) (*DocumentResult, error) {
	doc, err := s.lifecycle.Archive(ctx, docType, id, actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) UnarchiveDocument(ctx context.Context, docType core.DocumentType, id int, actor core.Actor) (*DocumentResult, error) {
	doc, err := s.lifecycle.Unarchive(ctx, docType, id, actor)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) AppendPriceHistory(ctx context.Context, req AppendPriceRequest) (*core.PriceHistoryEntry, error) {
	entry, err := s.ledger.Append(ctx, core.PriceHistoryEntry{
		MaterialID:      req.MaterialID,
		SupplierID:      req.SupplierID,
		UnitPrice:       req.UnitPrice,
		Currency:        req.Currency,
		ExchangeRate:    req.ExchangeRate,
		PurchaseOrderID: req.PurchaseOrderID,
		ServiceOrderID:  req.ServiceOrderID,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, core.NewAuditEvent(core.AuditPriceRecorded, "price_history", strconv.Itoa(entry.ID), req.Actor, map[string]any{
		"material_id": entry.MaterialID,
		"supplier_id": entry.SupplierID,
		"source":      entry.Source(),
	}))
	return entry, nil
}

func (s *appService) GetPriceHistory(ctx context.Context, materialID int) (*PriceHistoryResult, error) {
	if materialID <= 0 {
		return nil, &core.ValidationError{Fields: map[string]string{"material_id": "must be positive"}}
	}
	raw, err := s.ledger.QueryByMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	entries := s.reconciler.Reconcile(ctx, raw)
	return &PriceHistoryResult{
		MaterialID: materialID,
		Entries:    entries,
		Superseded: len(raw) - len(entries),
	}, nil
}

func (s *appService) DraftDocumentFromText(ctx context.Context, docType core.DocumentType, text string) (*DraftResult, error) {
	draft, err := s.drafter.DraftDocument(ctx, docType, text)
	if err != nil {
		return nil, err
	}
	header, items, err := draft.Inputs()
	if err != nil {
		return nil, err
	}
	return &DraftResult{Draft: draft, Header: header, Items: items}, nil
}
