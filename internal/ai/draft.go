package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"procurement/internal/core"

	"github.com/shopspring/decimal"
)

// DraftItem is one line item as proposed by the model. Numbers are strings so
// that no precision is lost before they reach decimal.Decimal.
type DraftItem struct {
	MaterialName string `json:"material_name" jsonschema_description:"Name of the material or service"`
	Quantity     string `json:"quantity" jsonschema_description:"Positive decimal quantity"`
	Unit         string `json:"unit" jsonschema_description:"Unit code"`
	Description  string `json:"description"`
	UnitPrice    string `json:"unit_price" jsonschema_description:"Decimal price per unit, empty when unknown"`
}

// DocumentDraft is never persisted directly. The caller reviews it and submits
// it through the normal create path, where validation applies.
type DocumentDraft struct {
	Type         core.DocumentType `json:"-"`
	Currency     string            `json:"currency" jsonschema:"enum=USD,enum=VES"`
	ExchangeRate string            `json:"exchange_rate"`
	Notes        string            `json:"notes"`
	Items        []DraftItem       `json:"items"`
	Confidence   float64           `json:"confidence"`
	Reasoning    string            `json:"reasoning"`
}

// ParseDraft decodes a model response and checks that every number parses.
func ParseDraft(docType core.DocumentType, content string) (*DocumentDraft, error) {
	var d DocumentDraft
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	d.Type = docType
	if _, _, err := d.Inputs(); err != nil {
		return nil, fmt.Errorf("draft validation failed: %w", err)
	}
	return &d, nil
}

// Inputs converts the draft into the header fields it can fill and the
// candidate line items. Company and supplier are left for the caller.
func (d *DocumentDraft) Inputs() (core.HeaderInput, []core.LineItemInput, error) {
	header := core.HeaderInput{
		Currency: core.Currency(strings.ToUpper(strings.TrimSpace(d.Currency))),
		Notes:    strings.TrimSpace(d.Notes),
	}
	if header.Currency == "" {
		header.Currency = core.CurrencyUSD
	}
	if s := strings.TrimSpace(d.ExchangeRate); s != "" && header.Currency != core.CurrencyUSD {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return core.HeaderInput{}, nil, fmt.Errorf("exchange_rate %q: %w", s, err)
		}
		header.ExchangeRate = &rate
	}

	items := make([]core.LineItemInput, 0, len(d.Items))
	for i, it := range d.Items {
		qty, err := decimal.NewFromString(strings.TrimSpace(it.Quantity))
		if err != nil {
			return core.HeaderInput{}, nil, fmt.Errorf("items[%d].quantity %q: %w", i, it.Quantity, err)
		}
		in := core.LineItemInput{
			MaterialName: strings.TrimSpace(it.MaterialName),
			Quantity:     qty,
			Unit:         strings.TrimSpace(it.Unit),
			Description:  strings.TrimSpace(it.Description),
		}
		if s := strings.TrimSpace(it.UnitPrice); s != "" && d.Type.CarriesPricing() {
			price, err := decimal.NewFromString(s)
			if err != nil {
				return core.HeaderInput{}, nil, fmt.Errorf("items[%d].unit_price %q: %w", i, s, err)
			}
			in.UnitPrice = price
		}
		items = append(items, in)
	}
	return header, items, nil
}
