package app

import (
	"context"
	"fmt"

	"procurement/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const priceSheet = "Price history"

var priceHeaders = []any{"Recorded at", "Supplier", "Unit price", "Currency", "Exchange rate", "Source"}

// ExportPriceHistory writes the reconciled history of one material to a
// single-sheet workbook, newest first.
func (s *appService) ExportPriceHistory(ctx context.Context, materialID int) ([]byte, error) {
	res, err := s.GetPriceHistory(ctx, materialID)
	if err != nil {
		return nil, err
	}
	return renderPriceHistory(materialID, res.Entries)
}

func renderPriceHistory(materialID int, entries []core.PriceHistoryEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", priceSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(priceSheet, "A1", &priceHeaders); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, e := range entries {
		rate := ""
		if e.ExchangeRate != nil {
			rate = e.ExchangeRate.String()
		}
		row := []any{
			e.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
			e.SupplierID,
			nil,
			string(e.Currency),
			rate,
			e.Source(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(priceSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
		if err := setDecimalCell(f, 3, i+2, e.UnitPrice); err != nil {
			return nil, fmt.Errorf("write row %d price: %w", i+2, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title: fmt.Sprintf("Price history for material %d", materialID),
	}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// setDecimalCell stores d as a number formatted with d's own scale, so the
// cell text reads the same as the ledger value.
func setDecimalCell(f *excelize.File, col, row int, d decimal.Decimal) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	value, _ := d.Float64()
	scale := 0
	if exp := d.Exponent(); exp < 0 {
		scale = int(-exp)
	}
	return f.SetCellFloat(priceSheet, cell, value, scale, 64)
}
