package app_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"procurement/internal/ai"
	"procurement/internal/core"
)

// memRepo is an in-memory DocumentRepository used to exercise the facade.
type memRepo struct {
	mu    sync.Mutex
	seq   core.SequenceAllocator
	docs  map[int]*core.Document
	next  int
	clock time.Time

	linkErr error
}

func newMemRepo(seq core.SequenceAllocator) *memRepo {
	return &memRepo{
		seq:   seq,
		docs:  make(map[int]*core.Document),
		clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func toItems(docType core.DocumentType, docID int, in []core.LineItemInput) []core.LineItem {
	out := make([]core.LineItem, len(in))
	for i, it := range in {
		li := core.LineItem{
			ID:           docID*100 + i + 1,
			DocumentID:   docID,
			Position:     i + 1,
			MaterialID:   it.MaterialID,
			MaterialName: strings.TrimSpace(it.MaterialName),
			Quantity:     it.Quantity,
			Unit:         strings.TrimSpace(it.Unit),
		}
		if it.Description != "" {
			d := it.Description
			li.Description = &d
		}
		if docType.CarriesPricing() {
			li.UnitPrice = it.UnitPrice
			li.TaxRate = it.TaxRate
			li.IsExempt = it.IsExempt
			li.SalesPercentage = it.SalesPercentage
			li.DiscountPercentage = it.DiscountPercentage
		}
		out[i] = li
	}
	return out
}

func (r *memRepo) Create(ctx context.Context, docType core.DocumentType, h core.HeaderInput, items []core.LineItemInput, actor core.Actor) (*core.Document, error) {
	if err := core.ValidateHeader(docType, h); err != nil {
		return nil, err
	}
	if err := core.ValidateLineItems(items); err != nil {
		return nil, err
	}
	n, err := r.seq.Next(ctx, docType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.clock = r.clock.Add(time.Minute)
	d := &core.Document{
		ID:             r.next,
		Type:           docType,
		SequenceNumber: n,
		Status:         core.StatusDraft,
		CompanyID:      h.CompanyID,
		SupplierID:     h.SupplierID,
		Currency:       h.Currency,
		ExchangeRate:   h.ExchangeRate,
		ServiceOrderID: h.ServiceOrderID,
		CreatedBy:      actor.Email,
		UserID:         actor.UserID,
		CreatedAt:      r.clock,
		UpdatedAt:      r.clock,
		Items:          toItems(docType, r.next, items),
	}
	if h.Notes != "" {
		notes := h.Notes
		d.Notes = &notes
	}
	r.docs[d.ID] = d
	cp := *d
	return &cp, nil
}

func (r *memRepo) Update(_ context.Context, docType core.DocumentType, id int, p core.HeaderPatch, items []core.LineItemInput, _ core.Actor) error {
	if items != nil {
		if err := core.ValidateLineItems(items); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Type != docType {
		return &core.NotFoundError{Resource: "document", ID: id}
	}
	if p.SupplierID != nil {
		d.SupplierID = *p.SupplierID
	}
	if p.Notes != nil {
		notes := *p.Notes
		d.Notes = &notes
	}
	if items != nil {
		d.Items = toItems(docType, id, items)
	}
	return nil
}

func (r *memRepo) GetByID(_ context.Context, docType core.DocumentType, id int) (*core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Type != docType {
		return nil, &core.NotFoundError{Resource: "document", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) GetAll(_ context.Context, docType core.DocumentType, f core.StatusFilter) ([]core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := f.Statuses(docType)
	var out []core.Document
	for _, d := range r.docs {
		if d.Type != docType {
			continue
		}
		if allowed != nil && !containsStatus(allowed, d.Status) {
			continue
		}
		cp := *d
		cp.Items = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func containsStatus(list []core.DocumentStatus, s core.DocumentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *memRepo) Delete(_ context.Context, docType core.DocumentType, id int, _ core.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Type != docType {
		return &core.NotFoundError{Resource: "document", ID: id}
	}
	for _, other := range r.docs {
		if other.ServiceOrderID != nil && *other.ServiceOrderID == id {
			return &core.ValidationError{Fields: map[string]string{"id": "service order is referenced by a purchase order"}}
		}
	}
	delete(r.docs, id)
	return nil
}

func (r *memRepo) SetStatus(_ context.Context, docType core.DocumentType, id int, decide core.StatusDecider) (*core.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Type != docType {
		return nil, &core.NotFoundError{Resource: "document", ID: id}
	}
	change, err := decide(*d)
	if err != nil {
		return nil, err
	}
	d.Status = change.Status
	d.ArchivedFromStatus = change.ArchivedFrom
	cp := *d
	return &cp, nil
}

func (r *memRepo) LinkedServiceOrders(_ context.Context, poIDs []int) (map[int]struct{}, error) {
	if r.linkErr != nil {
		return nil, r.linkErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]struct{})
	for _, id := range poIDs {
		if d, ok := r.docs[id]; ok && d.Type == core.PurchaseOrder && d.ServiceOrderID != nil {
			out[*d.ServiceOrderID] = struct{}{}
		}
	}
	return out, nil
}

// flakyGetRepo commits updates normally but fails every read that follows one.
type flakyGetRepo struct {
	*memRepo
	getErr  error
	updated bool
}

func (r *flakyGetRepo) Update(ctx context.Context, docType core.DocumentType, id int, p core.HeaderPatch, items []core.LineItemInput, actor core.Actor) error {
	if err := r.memRepo.Update(ctx, docType, id, p, items, actor); err != nil {
		return err
	}
	r.updated = true
	return nil
}

func (r *flakyGetRepo) GetByID(ctx context.Context, docType core.DocumentType, id int) (*core.Document, error) {
	if r.updated {
		return nil, r.getErr
	}
	return r.memRepo.GetByID(ctx, docType, id)
}

// memLedger is an in-memory PriceHistoryLedger.
type memLedger struct {
	mu        sync.Mutex
	entries   []core.PriceHistoryEntry
	clock     time.Time
	recordErr error
}

func newMemLedger() *memLedger {
	return &memLedger{clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (l *memLedger) Append(_ context.Context, e core.PriceHistoryEntry) (*core.PriceHistoryEntry, error) {
	if err := core.ValidatePriceEntry(e); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = l.clock.Add(time.Minute)
	e.ID = len(l.entries) + 1
	e.RecordedAt = l.clock
	l.entries = append(l.entries, e)
	return &e, nil
}

func (l *memLedger) QueryByMaterial(_ context.Context, materialID int) ([]core.PriceHistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.PriceHistoryEntry
	for _, e := range l.entries {
		if e.MaterialID == materialID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (l *memLedger) RecordDocumentPrices(ctx context.Context, doc *core.Document, _ core.Actor) (int, error) {
	if l.recordErr != nil {
		return 0, l.recordErr
	}
	entries := core.PriceEntriesFor(doc)
	for _, e := range entries {
		if _, err := l.Append(ctx, e); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// recordingSink keeps every emitted audit event.
type recordingSink struct {
	mu     sync.Mutex
	events []core.AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, e core.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

type stubDrafter struct {
	content string
}

func (d stubDrafter) DraftDocument(_ context.Context, docType core.DocumentType, text string) (*ai.DocumentDraft, error) {
	if d.content == "" {
		return nil, ai.ErrAIUnavailable
	}
	if text == "" {
		return nil, errors.New("empty text")
	}
	return ai.ParseDraft(docType, d.content)
}
