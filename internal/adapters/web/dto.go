package web

import (
	"reflect"
	"strings"

	"procurement/internal/app"
	"procurement/internal/core"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// decimal.Decimal validates as a number so min/gt/lte tags work on it.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFields converts validator errors into the same field-path map
// core.ValidationError uses ("items[0].quantity").
func validationFields(err error) map[string]string {
	fields := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["body"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields[path] = msg
	}
	return fields
}

type lineItemBody struct {
	MaterialID         *int            `json:"material_id" validate:"omitempty,gt=0"`
	MaterialName       string          `json:"material_name" validate:"max=255"`
	Quantity           decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit               string          `json:"unit" validate:"required,max=32"`
	Description        string          `json:"description" validate:"max=2000"`
	UnitPrice          decimal.Decimal `json:"unit_price" validate:"gte=0"`
	TaxRate            decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	IsExempt           bool            `json:"is_exempt"`
	SalesPercentage    decimal.Decimal `json:"sales_percentage" validate:"gte=0"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" validate:"gte=0,lte=100"`
}

func (b lineItemBody) input() core.LineItemInput {
	return core.LineItemInput{
		MaterialID:         b.MaterialID,
		MaterialName:       b.MaterialName,
		Quantity:           b.Quantity,
		Unit:               b.Unit,
		Description:        b.Description,
		UnitPrice:          b.UnitPrice,
		TaxRate:            b.TaxRate,
		IsExempt:           b.IsExempt,
		SalesPercentage:    b.SalesPercentage,
		DiscountPercentage: b.DiscountPercentage,
	}
}

func itemInputs(items []lineItemBody) []core.LineItemInput {
	if items == nil {
		return nil
	}
	out := make([]core.LineItemInput, len(items))
	for i, it := range items {
		out[i] = it.input()
	}
	return out
}

type createDocumentBody struct {
	CompanyID      int              `json:"company_id" validate:"required,gt=0"`
	SupplierID     int              `json:"supplier_id" validate:"required,gt=0"`
	Currency       core.Currency    `json:"currency" validate:"required,oneof=USD VES"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	ServiceOrderID *int             `json:"service_order_id" validate:"omitempty,gt=0"`
	Notes          string           `json:"notes" validate:"max=4000"`
	Items          []lineItemBody   `json:"items" validate:"required,min=1,dive"`
}

func (b createDocumentBody) request(docType core.DocumentType, actor core.Actor) app.CreateDocumentRequest {
	return app.CreateDocumentRequest{
		Type: docType,
		Header: core.HeaderInput{
			CompanyID:      b.CompanyID,
			SupplierID:     b.SupplierID,
			Currency:       b.Currency,
			ExchangeRate:   b.ExchangeRate,
			ServiceOrderID: b.ServiceOrderID,
			Notes:          b.Notes,
		},
		Items: itemInputs(b.Items),
		Actor: actor,
	}
}

// updateDocumentBody patches the header; omitting items keeps the current ones.
type updateDocumentBody struct {
	SupplierID     *int             `json:"supplier_id" validate:"omitempty,gt=0"`
	Currency       *core.Currency   `json:"currency" validate:"omitempty,oneof=USD VES"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	ServiceOrderID *int             `json:"service_order_id" validate:"omitempty,gt=0"`
	Notes          *string          `json:"notes" validate:"omitempty,max=4000"`
	Items          []lineItemBody   `json:"items" validate:"omitempty,dive"`
}

func (b updateDocumentBody) request(docType core.DocumentType, id int, actor core.Actor) app.UpdateDocumentRequest {
	return app.UpdateDocumentRequest{
		Type: docType,
		ID:   id,
		Patch: core.HeaderPatch{
			SupplierID:     b.SupplierID,
			Currency:       b.Currency,
			ExchangeRate:   b.ExchangeRate,
			ServiceOrderID: b.ServiceOrderID,
			Notes:          b.Notes,
		},
		Items: itemInputs(b.Items),
		Actor: actor,
	}
}

type transitionBody struct {
	Status string `json:"status" validate:"required"`
}

type resetSequenceBody struct {
	StartNumber int64 `json:"start_number" validate:"required,gte=1"`
}

type draftBody struct {
	Text string `json:"text" validate:"required,max=20000"`
}

type appendPriceBody struct {
	MaterialID      int              `json:"material_id" validate:"required,gt=0"`
	SupplierID      int              `json:"supplier_id" validate:"required,gt=0"`
	UnitPrice       decimal.Decimal  `json:"unit_price" validate:"gte=0"`
	Currency        core.Currency    `json:"currency" validate:"required,oneof=USD VES"`
	ExchangeRate    *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	PurchaseOrderID *int             `json:"purchase_order_id" validate:"omitempty,gt=0,excluded_with=ServiceOrderID"`
	ServiceOrderID  *int             `json:"service_order_id" validate:"omitempty,gt=0"`
}

func (b appendPriceBody) request(actor core.Actor) app.AppendPriceRequest {
	return app.AppendPriceRequest{
		MaterialID:      b.MaterialID,
		SupplierID:      b.SupplierID,
		UnitPrice:       b.UnitPrice,
		Currency:        b.Currency,
		ExchangeRate:    b.ExchangeRate,
		PurchaseOrderID: b.PurchaseOrderID,
		ServiceOrderID:  b.ServiceOrderID,
		Actor:           actor,
	}
}

// documentResponse adds the computed number and total to a document.
type documentResponse struct {
	core.Document
	Number         string          `json:"number"`
	Total          decimal.Decimal `json:"total"`
	PricesRecorded int             `json:"prices_recorded,omitempty"`
}

func newDocumentResponse(doc *core.Document, pricesRecorded int) documentResponse {
	return documentResponse{
		Document:       *doc,
		Number:         doc.Number(),
		Total:          doc.Total(),
		PricesRecorded: pricesRecorded,
	}
}

type documentListResponse struct {
	Type      core.DocumentType  `json:"type"`
	Documents []documentResponse `json:"documents"`
}

type priceHistoryResponse struct {
	MaterialID int                      `json:"material_id"`
	Entries    []core.PriceHistoryEntry `json:"entries"`
	Superseded int                      `json:"superseded"`
}

type sequenceResponse struct {
	Type core.DocumentType `json:"type"`
	Next int64             `json:"next"`
}
