package cli_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"procurement/internal/adapters/cli"
	"procurement/internal/app"
	"procurement/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliService struct {
	app.ApplicationService

	next      int64
	reset     app.ResetSequenceRequest
	transited core.DocumentStatus
	doc       core.Document
	history   app.PriceHistoryResult
}

func (s *cliService) AllocateSequence(_ context.Context, _ core.DocumentType) (int64, error) {
	s.next++
	return s.next, nil
}

func (s *cliService) PeekSequence(_ context.Context, _ core.DocumentType) (int64, error) {
	return s.next + 1, nil
}

func (s *cliService) ResetSequence(_ context.Context, req app.ResetSequenceRequest) error {
	s.reset = req
	return nil
}

func (s *cliService) GetDocument(_ context.Context, docType core.DocumentType, id int) (*app.DocumentResult, error) {
	if docType != s.doc.Type || id != s.doc.ID {
		return nil, &core.NotFoundError{Resource: "document", ID: id}
	}
	doc := s.doc
	return &app.DocumentResult{Document: &doc}, nil
}

func (s *cliService) TransitionStatus(_ context.Context, _ core.DocumentType, _ int, target core.DocumentStatus, _ core.Actor) (*app.DocumentResult, error) {
	s.transited = target
	doc := s.doc
	doc.Status = target
	return &app.DocumentResult{Document: &doc}, nil
}

func (s *cliService) GetPriceHistory(_ context.Context, _ int) (*app.PriceHistoryResult, error) {
	return &s.history, nil
}

func run(t *testing.T, svc app.ApplicationService, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.Run(context.Background(), svc, core.Actor{UserID: 1, Email: "ops@example.com"}, args, &out)
	return out.String(), err
}

func TestNextAndPeek(t *testing.T) {
	svc := &cliService{next: 41}

	out, err := run(t, svc, "peek", "po")
	require.NoError(t, err)
	assert.Equal(t, "PO-00042\n", out)

	out, err = run(t, svc, "next", "po")
	require.NoError(t, err)
	assert.Equal(t, "PO-00042\n", out)
	assert.Equal(t, int64(42), svc.next)
}

func TestReset_ReadsSecretFromEnv(t *testing.T) {
	t.Setenv("SEQUENCE_RESET_SECRET", "from-env")
	svc := &cliService{}

	out, err := run(t, svc, "reset", "so", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "SO-00500")
	assert.Equal(t, core.ServiceOrder, svc.reset.Type)
	assert.Equal(t, int64(500), svc.reset.StartNumber)
	assert.Equal(t, "from-env", svc.reset.AuthToken)
	assert.Equal(t, 1, svc.reset.Actor.UserID)
}

func TestShowAndTransition(t *testing.T) {
	svc := &cliService{doc: core.Document{
		ID: 3, Type: core.PurchaseOrder, SequenceNumber: 7, Status: core.StatusDraft, Currency: core.CurrencyUSD,
		Items: []core.LineItem{{Position: 1, MaterialName: "Rebar", Quantity: decimal.NewFromInt(2), Unit: "TON", UnitPrice: decimal.NewFromInt(100)}},
	}}

	out, err := run(t, svc, "show", "po", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "PO-00007")
	assert.Contains(t, out, "Rebar")
	assert.Contains(t, out, "200.00")

	out, err = run(t, svc, "transition", "po", "3", "sent")
	require.NoError(t, err)
	assert.Equal(t, core.StatusSent, svc.transited)
	assert.Equal(t, "PO-00007 is now SENT\n", out)

	_, err = run(t, svc, "show", "po", "9")
	assert.True(t, core.IsNotFound(err))
}

func TestHistory(t *testing.T) {
	po := 4
	svc := &cliService{history: app.PriceHistoryResult{
		MaterialID: 12,
		Entries: []core.PriceHistoryEntry{{
			SupplierID: 2, UnitPrice: decimal.RequireFromString("9.5"), Currency: core.CurrencyUSD,
			RecordedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), PurchaseOrderID: &po,
		}},
		Superseded: 1,
	}}

	out, err := run(t, svc, "history", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "material 12")
	assert.Contains(t, out, "purchase order 4")
	assert.Contains(t, out, "9.50")
	assert.Contains(t, out, "1 service order price(s) superseded")
}

func TestUsageErrors(t *testing.T) {
	svc := &cliService{}
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"next"},
		{"reset", "po"},
		{"reset", "po", "zero"},
		{"show", "po"},
		{"transition", "po", "3"},
	} {
		_, err := run(t, svc, args...)
		assert.ErrorIs(t, err, cli.ErrUsage, "%v", args)
	}

	_, err := run(t, svc, "next", "invoice")
	assert.ErrorIs(t, err, core.ErrValidation)
}
