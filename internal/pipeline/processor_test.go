package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/alert"
	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/store"
	"github.com/rezonia/nf-reconciler/internal/store/memory"
)

const testAccessKey = "35260111222333000181550010000123451123456785"

func newProcessor(t *testing.T) (*Processor, *store.Store, *config.Config, *alert.Recorder) {
	t.Helper()
	st := memory.New()
	cfg := config.Default()
	recorder := alert.NewRecorder()
	return NewProcessor(st, cfg, recorder, zap.NewNop()), st, cfg, recorder
}

func seedRecord(t *testing.T, st *store.Store) *model.FiscalRecord {
	t.Helper()
	rec := &model.FiscalRecord{
		Type:      model.DocTypeNFe,
		AccessKey: testAccessKey,
		Number:    "12345",
		IssueDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Issuer: model.Party{
			Name:  "Industria de Fixadores Ltda",
			TaxID: "11.222.333/0001-81",
		},
		Totals: model.Totals{Gross: decimal.NewFromInt(1000)},
		Items: []model.LineItem{
			{
				Seq:              1,
				SupplierPartCode: "PAR-M6",
				Description:      "Parafuso M6 inox",
				NCM:              "73181500",
				Quantity:         decimal.NewFromInt(100),
				UnitPrice:        decimal.NewFromInt(10),
				Total:            decimal.NewFromInt(1000),
			},
		},
		ProcessingStatus: model.StatusParsed,
	}
	require.NoError(t, st.Records.Create(context.Background(), rec))
	return rec
}

func TestProcessHappyPath(t *testing.T) {
	p, st, cfg, _ := newProcessor(t)
	cfg.Processing.AutoCreateInvoice = true
	ctx := context.Background()

	supplier := &store.Supplier{Name: "Industria de Fixadores Ltda", TaxID: "11222333000181"}
	require.NoError(t, st.Suppliers.Create(ctx, supplier))

	po := &store.PurchaseOrder{
		SupplierID: supplier.ID,
		Date:       time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		Status:     store.DocSubmitted,
		Total:      decimal.NewFromInt(1000),
		Items: []store.POItem{
			{ItemCode: "PAR-M6", Quantity: decimal.NewFromInt(100), Rate: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1000)},
		},
	}
	require.NoError(t, st.Orders.Create(ctx, po))

	rec := seedRecord(t, st)
	out, err := p.Process(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, out.ProcessingStatus)
	assert.Equal(t, model.SupplierLinked, out.SupplierStatus)
	assert.Equal(t, supplier.ID, out.SupplierID)
	assert.Equal(t, model.ItemsAllCreated, out.ItemResolution)
	assert.Equal(t, model.POLinked, out.POStatus)
	assert.Equal(t, po.ID, out.PurchaseOrderID)
	assert.Equal(t, model.InvoiceCreated, out.InvoiceStatus)
	require.NotEmpty(t, out.PurchaseInvoiceID)

	pi, err := st.Invoices.Get(ctx, out.PurchaseInvoiceID)
	require.NoError(t, err)
	assert.Equal(t, out.ID, pi.FiscalID)
	assert.Equal(t, testAccessKey, pi.AccessKey)

	stored, err := st.Records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.ProcessingStatus)
}

func TestProcessRejectsCancelledRecord(t *testing.T) {
	p, st, _, _ := newProcessor(t)
	ctx := context.Background()

	rec := seedRecord(t, st)
	rec.Cancelled = true
	rec.ProcessingStatus = model.StatusCancelled
	require.NoError(t, st.Records.Update(ctx, rec))

	_, err := p.Process(ctx, rec.ID)
	assert.ErrorIs(t, err, model.ErrRecordCancelled)
}

func TestProcessLinksExistingInvoice(t *testing.T) {
	p, st, _, _ := newProcessor(t)
	ctx := context.Background()

	supplier := &store.Supplier{Name: "Industria de Fixadores Ltda", TaxID: "11222333000181"}
	require.NoError(t, st.Suppliers.Create(ctx, supplier))

	existing := &store.PurchaseInvoice{
		SupplierID: supplier.ID,
		AccessKey:  testAccessKey,
		Status:     store.DocSubmitted,
		Total:      decimal.NewFromInt(1000),
	}
	require.NoError(t, st.Invoices.Create(ctx, existing))

	rec := seedRecord(t, st)
	out, err := p.Process(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, model.InvoiceLinked, out.InvoiceStatus)
	assert.Equal(t, existing.ID, out.PurchaseInvoiceID)

	pi, err := st.Invoices.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, out.ID, pi.FiscalID)
}

func TestProcessSkipsInvoiceWhenItemsIncomplete(t *testing.T) {
	p, st, cfg, _ := newProcessor(t)
	cfg.Processing.AutoCreateInvoice = true
	cfg.Processing.AutoCreateItem = false
	ctx := context.Background()

	supplier := &store.Supplier{Name: "Industria de Fixadores Ltda", TaxID: "11222333000181"}
	require.NoError(t, st.Suppliers.Create(ctx, supplier))

	rec := seedRecord(t, st)
	out, err := p.Process(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, out.ProcessingStatus)
	assert.Equal(t, model.ItemsFailed, out.ItemResolution)
	assert.Equal(t, model.InvoicePending, out.InvoiceStatus)
	assert.Empty(t, out.PurchaseInvoiceID)
}

func TestCancelDeletesDraftInvoice(t *testing.T) {
	p, st, _, recorder := newProcessor(t)
	ctx := context.Background()

	pi := &store.PurchaseInvoice{
		SupplierID: "sup-1",
		Status:     store.DocDraft,
		Total:      decimal.NewFromInt(1000),
	}
	require.NoError(t, st.Invoices.Create(ctx, pi))

	rec := seedRecord(t, st)
	rec.PurchaseInvoiceID = pi.ID
	rec.InvoiceStatus = model.InvoiceCreated
	require.NoError(t, st.Records.Update(ctx, rec))

	out, err := p.Cancel(ctx, rec.ID)
	require.NoError(t, err)

	assert.True(t, out.Cancelled)
	assert.Equal(t, model.StatusCancelled, out.ProcessingStatus)
	assert.Equal(t, model.InvoiceCancelled, out.InvoiceStatus)
	assert.Empty(t, recorder.Alerts())

	_, err = st.Invoices.Get(ctx, pi.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelSubmittedInvoice(t *testing.T) {
	p, st, _, _ := newProcessor(t)
	ctx := context.Background()

	pi := &store.PurchaseInvoice{
		SupplierID: "sup-1",
		Status:     store.DocSubmitted,
		Total:      decimal.NewFromInt(1000),
	}
	require.NoError(t, st.Invoices.Create(ctx, pi))

	rec := seedRecord(t, st)
	rec.PurchaseInvoiceID = pi.ID
	rec.InvoiceStatus = model.InvoiceSubmitted
	require.NoError(t, st.Records.Update(ctx, rec))

	out, err := p.Cancel(ctx, rec.ID)
	require.NoError(t, err)

	assert.True(t, out.Cancelled)
	cancelled, err := st.Invoices.Get(ctx, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DocCancelled, cancelled.Status)
	assert.Equal(t, model.InvoiceCancelled, out.InvoiceStatus)
}

type failingInvoices struct {
	store.PurchaseInvoices
}

func (f *failingInvoices) Update(context.Context, *store.PurchaseInvoice) error {
	return errors.New("invoice has payment entries")
}

func TestCancelAlertsWhenInvoiceCancellationFails(t *testing.T) {
	st := memory.New()
	cfg := config.Default()
	recorder := alert.NewRecorder()
	ctx := context.Background()

	pi := &store.PurchaseInvoice{
		SupplierID: "sup-1",
		Status:     store.DocSubmitted,
		Total:      decimal.NewFromInt(1000),
	}
	require.NoError(t, st.Invoices.Create(ctx, pi))
	st.Invoices = &failingInvoices{PurchaseInvoices: st.Invoices}

	p := NewProcessor(st, cfg, recorder, zap.NewNop())

	rec := seedRecord(t, st)
	rec.PurchaseInvoiceID = pi.ID
	rec.InvoiceStatus = model.InvoiceSubmitted
	require.NoError(t, st.Records.Update(ctx, rec))

	out, err := p.Cancel(ctx, rec.ID)
	require.NoError(t, err)

	// The record is cancelled even though the invoice could not be
	assert.True(t, out.Cancelled)
	assert.Equal(t, model.StatusCancelled, out.ProcessingStatus)
	assert.Equal(t, model.InvoiceSubmitted, out.InvoiceStatus)

	alerts := recorder.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Manual cancellation required", alerts[0].ActionRequired)
	assert.Equal(t, rec.ID, alerts[0].RecordID)
}

func TestBatchIsolatesFailures(t *testing.T) {
	p, st, _, _ := newProcessor(t)
	ctx := context.Background()

	good := seedRecord(t, st)
	bad := seedRecord(t, st)
	bad.Cancelled = true
	require.NoError(t, st.Records.Update(ctx, bad))

	results := p.Batch(ctx, []string{good.ID, bad.ID})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, model.StatusCompleted, results[0].Status)
	assert.ErrorIs(t, results[1].Err, model.ErrRecordCancelled)
}
