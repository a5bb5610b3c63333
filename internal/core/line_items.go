package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateLineItems checks a candidate item list as a whole. It has no side
// effects; the set is rejected if any single item is invalid.
func ValidateLineItems(items []LineItemInput) error {
	v := &ValidationError{}
	if len(items) == 0 {
		v.add("items", "at least one line item is required")
		return v
	}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if !it.Quantity.IsPositive() {
			v.add(field+".quantity", "must be greater than zero")
		}
		if strings.TrimSpace(it.Unit) == "" {
			v.add(field+".unit", "is required")
		}
		if it.MaterialID != nil && strings.TrimSpace(it.MaterialName) == "" {
			v.add(field+".material_name", "is required when material_id is set")
		}
		if it.UnitPrice.IsNegative() {
			v.add(field+".unit_price", "must not be negative")
		}
		if !inPercentRange(it.TaxRate) {
			v.add(field+".tax_rate", "must be between 0 and 100")
		}
		if !inPercentRange(it.DiscountPercentage) {
			v.add(field+".discount_percentage", "must be between 0 and 100")
		}
		if it.SalesPercentage.IsNegative() {
			v.add(field+".sales_percentage", "must not be negative")
		}
	}
	return v.orNil()
}

func inPercentRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}

// ValidateHeader checks the header fields of a new document.
func ValidateHeader(docType DocumentType, h HeaderInput) error {
	v := &ValidationError{}
	if !docType.Valid() {
		v.add("type", fmt.Sprintf("unknown document type %q", docType))
	}
	if h.CompanyID <= 0 {
		v.add("company_id", "is required")
	}
	if h.SupplierID <= 0 {
		v.add("supplier_id", "is required")
	}
	validateCurrency(v, h.Currency, h.ExchangeRate)
	if h.ServiceOrderID != nil && docType != PurchaseOrder {
		v.add("service_order_id", "only purchase orders can reference a service order")
	}
	return v.orNil()
}

func validateCurrency(v *ValidationError, c Currency, rate *decimal.Decimal) {
	switch c {
	case CurrencyVES:
		if rate == nil || !rate.IsPositive() {
			v.add("exchange_rate", "a positive exchange rate is required for VES")
		}
	case CurrencyUSD:
		if rate != nil {
			v.add("exchange_rate", "must be empty for USD")
		}
	default:
		v.add("currency", fmt.Sprintf("unsupported currency %q", c))
	}
}

// applyPatch returns the header that results from applying p to d.
func applyPatch(d Document, p HeaderPatch) Document {
	if p.SupplierID != nil {
		d.SupplierID = *p.SupplierID
	}
	if p.Currency != nil {
		d.Currency = *p.Currency
		if d.Currency == CurrencyUSD {
			d.ExchangeRate = nil
		}
	}
	if p.ExchangeRate != nil {
		rate := *p.ExchangeRate
		d.ExchangeRate = &rate
	}
	if p.ServiceOrderID != nil {
		id := *p.ServiceOrderID
		d.ServiceOrderID = &id
	}
	if p.Notes != nil {
		d.Notes = emptyToNil(*p.Notes)
	}
	return d
}

// validatePatched re-checks the header invariants after a patch.
func validatePatched(d Document) error {
	return ValidateHeader(d.Type, HeaderInput{
		CompanyID:      d.CompanyID,
		SupplierID:     d.SupplierID,
		Currency:       d.Currency,
		ExchangeRate:   d.ExchangeRate,
		ServiceOrderID: d.ServiceOrderID,
	})
}

// normalizeItem zeroes pricing for types that carry none.
func normalizeItem(docType DocumentType, it LineItemInput) LineItemInput {
	it.Unit = strings.TrimSpace(it.Unit)
	it.MaterialName = strings.TrimSpace(it.MaterialName)
	if !docType.CarriesPricing() {
		it.UnitPrice = decimal.Zero
		it.TaxRate = decimal.Zero
		it.IsExempt = false
		it.SalesPercentage = decimal.Zero
		it.DiscountPercentage = decimal.Zero
	}
	return it
}

func emptyToNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
