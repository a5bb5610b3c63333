package core_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"procurement/internal/core"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkLookup struct {
	links map[int]int // purchase order -> service order
	err   error
	calls int
}

func (l *linkLookup) LinkedServiceOrders(_ context.Context, poIDs []int) (map[int]struct{}, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := make(map[int]struct{})
	for _, id := range poIDs {
		if so, ok := l.links[id]; ok {
			out[so] = struct{}{}
		}
	}
	return out, nil
}

func soEntry(id, so int, price string) core.PriceHistoryEntry {
	return core.PriceHistoryEntry{ID: id, MaterialID: 1, SupplierID: 1, UnitPrice: d(price), ServiceOrderID: ptr(so)}
}

func poEntry(id, po int, price string) core.PriceHistoryEntry {
	return core.PriceHistoryEntry{ID: id, MaterialID: 1, SupplierID: 1, UnitPrice: d(price), PurchaseOrderID: ptr(po)}
}

func TestReconcile_PurchaseOrderSupersedesItsServiceOrder(t *testing.T) {
	lookup := &linkLookup{links: map[int]int{101: 11}}
	r := core.NewPriceHistoryReconciler(lookup)

	in := []core.PriceHistoryEntry{poEntry(2, 101, "12"), soEntry(1, 11, "10")}
	out := r.Reconcile(context.Background(), in)

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].ID)
	assert.True(t, out[0].UnitPrice.Equal(d("12")))
}

func TestReconcile_UnlinkedEntriesKept(t *testing.T) {
	lookup := &linkLookup{links: map[int]int{}}
	r := core.NewPriceHistoryReconciler(lookup)

	in := []core.PriceHistoryEntry{soEntry(2, 12, "9"), poEntry(1, 102, "8")}
	out := r.Reconcile(context.Background(), in)
	assert.Equal(t, in, out)
}

func TestReconcile_NoPurchaseOrdersSkipsLookup(t *testing.T) {
	lookup := &linkLookup{}
	r := core.NewPriceHistoryReconciler(lookup)

	manual := core.PriceHistoryEntry{ID: 3, MaterialID: 1, UnitPrice: d("5")}
	in := []core.PriceHistoryEntry{manual, soEntry(2, 12, "9")}
	out := r.Reconcile(context.Background(), in)

	assert.Equal(t, in, out)
	assert.Zero(t, lookup.calls)
}

func TestReconcile_KeepsOtherServiceOrdersAndManualEntries(t *testing.T) {
	lookup := &linkLookup{links: map[int]int{101: 11}}
	r := core.NewPriceHistoryReconciler(lookup)

	manual := core.PriceHistoryEntry{ID: 5, MaterialID: 1, UnitPrice: d("7")}
	in := []core.PriceHistoryEntry{
		manual,
		poEntry(4, 101, "12"),
		soEntry(3, 13, "11"),
		poEntry(2, 101, "12.5"),
		soEntry(1, 11, "10"),
	}
	out := r.Reconcile(context.Background(), in)

	ids := make([]int, len(out))
	for i, e := range out {
		ids[i] = e.ID
	}
	assert.Equal(t, []int{5, 4, 3, 2}, ids, "order is preserved")
}

func TestReconcile_FailsOpen(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	lookup := &linkLookup{links: map[int]int{101: 11}, err: errors.New("connection refused")}
	r := core.NewPriceHistoryReconciler(lookup)

	in := []core.PriceHistoryEntry{poEntry(2, 101, "12"), soEntry(1, 11, "10")}
	out := r.Reconcile(context.Background(), in)
	assert.Equal(t, in, out)
	assert.Equal(t, 1, lookup.calls)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "one warning line: %s", buf.String())
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, true, line["degraded"])
	assert.Equal(t, "connection refused", line["error"])
	assert.Equal(t, []any{float64(101)}, line["purchase_order_ids"])
}

func TestPriceEntriesFor(t *testing.T) {
	rate := d("40")
	doc := &core.Document{
		ID: 9, Type: core.ServiceOrder, SupplierID: 4, Currency: core.CurrencyVES, ExchangeRate: &rate,
		Items: []core.LineItem{
			{MaterialID: ptr(1), UnitPrice: d("3")},
			{MaterialID: nil, UnitPrice: d("3")},
			{MaterialID: ptr(2), UnitPrice: d("0")},
		},
	}
	entries := core.PriceEntriesFor(doc)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].MaterialID)
	assert.Equal(t, 4, entries[0].SupplierID)
	require.NotNil(t, entries[0].ServiceOrderID)
	assert.Equal(t, 9, *entries[0].ServiceOrderID)
	assert.Nil(t, entries[0].PurchaseOrderID)
	assert.NoError(t, core.ValidatePriceEntry(entries[0]))

	doc.Type = core.QuoteRequest
	assert.Empty(t, core.PriceEntriesFor(doc))
}

func TestValidatePriceEntry_BothReferences(t *testing.T) {
	e := core.PriceHistoryEntry{MaterialID: 1, PurchaseOrderID: ptr(1), ServiceOrderID: ptr(2)}
	assert.ErrorIs(t, core.ValidatePriceEntry(e), core.ErrValidation)
}
