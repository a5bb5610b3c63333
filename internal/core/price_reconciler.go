package core

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ServiceOrderLinks resolves which service orders the given purchase orders
// were generated from. DocumentRepository implements it.
type ServiceOrderLinks interface {
	LinkedServiceOrders(ctx context.Context, purchaseOrderIDs []int) (map[int]struct{}, error)
}

// PriceHistoryReconciler hides service order entries that were superseded by
// the purchase order generated from them.
type PriceHistoryReconciler struct {
	links ServiceOrderLinks
}

func NewPriceHistoryReconciler(links ServiceOrderLinks) *PriceHistoryReconciler {
	return &PriceHistoryReconciler{links: links}
}

// Reconcile filters one material's entries. If the link lookup fails the
// input is returned unchanged and a degraded warning is logged.
func (r *PriceHistoryReconciler) Reconcile(ctx context.Context, entries []PriceHistoryEntry) []PriceHistoryEntry {
	seen := make(map[int]struct{})
	var poIDs []int
	for _, e := range entries {
		if e.PurchaseOrderID == nil {
			continue
		}
		if _, ok := seen[*e.PurchaseOrderID]; ok {
			continue
		}
		seen[*e.PurchaseOrderID] = struct{}{}
		poIDs = append(poIDs, *e.PurchaseOrderID)
	}
	if len(poIDs) == 0 {
		return entries
	}

	linked, err := r.links.LinkedServiceOrders(ctx, poIDs)
	if err != nil {
		log.Warn().Err(err).
			Bool("degraded", true).
			Ints("purchase_order_ids", poIDs).
			Msg("price history reconciliation skipped, returning unfiltered entries")
		return entries
	}
	if len(linked) == 0 {
		return entries
	}

	out := make([]PriceHistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.ServiceOrderID != nil {
			if _, superseded := linked[*e.ServiceOrderID]; superseded {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
