// Package pipeline drives a fiscal record through supplier resolution,
// item resolution, purchase order matching and invoice creation.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/alert"
	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/match"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/reconcile"
	"github.com/rezonia/nf-reconciler/internal/resolve"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// Processor orchestrates the reconciliation stages for one record. Each
// stage persists its status before running so an interrupted run is
// visible and resumable from the stored record.
type Processor struct {
	store      *store.Store
	suppliers  *resolve.SupplierResolver
	items      *resolve.ItemResolver
	matcher    *match.POMatcher
	reconciler *reconcile.Reconciler
	notifier   alert.Notifier
	cfg        *config.Config
	log        *zap.Logger
}

// NewProcessor wires the pipeline from its stores and configuration
func NewProcessor(st *store.Store, cfg *config.Config, notifier alert.Notifier, log *zap.Logger) *Processor {
	return &Processor{
		store:      st,
		suppliers:  resolve.NewSupplierResolver(st.Suppliers, st.Invoices, cfg, log),
		items:      resolve.NewItemResolver(st.Items, st.Invoices, cfg, log),
		matcher:    match.NewPOMatcher(st.Orders, cfg, log),
		reconciler: reconcile.NewReconciler(st, cfg, log),
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
	}
}

// Process runs every stage on the stored record. Cancelled records are
// rejected outright. A stage failure leaves the record in Error with the
// failure message retained; later runs start over from the stages.
func (p *Processor) Process(ctx context.Context, recordID string) (*model.FiscalRecord, error) {
	rec, err := p.store.Records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Cancelled || rec.ProcessingStatus == model.StatusCancelled {
		return rec, model.ErrRecordCancelled
	}

	stages := []struct {
		status model.ProcessingStatus
		run    func(context.Context, *model.FiscalRecord) error
	}{
		{model.StatusSupplierProcessing, p.resolveSupplier},
		{model.StatusItemProcessing, p.resolveItems},
		{model.StatusPOMatching, p.matchPurchaseOrder},
		{model.StatusInvoiceCreation, p.reconcileInvoice},
	}

	for _, stage := range stages {
		rec.ProcessingStatus = stage.status
		if err := p.store.Records.Update(ctx, rec); err != nil {
			return rec, err
		}
		if err := stage.run(ctx, rec); err != nil {
			return p.fail(ctx, rec, stage.status, err)
		}
	}

	rec.ProcessingStatus = model.StatusCompleted
	rec.ProcessingError = ""
	if err := p.store.Records.Update(ctx, rec); err != nil {
		return rec, err
	}

	p.log.Info("record processing completed",
		zap.String("record", rec.ID),
		zap.String("supplier_status", string(rec.SupplierStatus)),
		zap.String("item_resolution", string(rec.ItemResolution)),
		zap.String("po_status", string(rec.POStatus)),
		zap.String("invoice_status", string(rec.InvoiceStatus)))
	return rec, nil
}

func (p *Processor) fail(ctx context.Context, rec *model.FiscalRecord, stage model.ProcessingStatus, cause error) (*model.FiscalRecord, error) {
	stageErr := model.NewStageError(stage, cause)
	rec.ProcessingStatus = model.StatusError
	rec.ProcessingError = stageErr.Error()
	if err := p.store.Records.Update(ctx, rec); err != nil {
		p.log.Error("failed to persist error state",
			zap.String("record", rec.ID), zap.Error(err))
	}
	p.log.Error("record processing failed",
		zap.String("record", rec.ID),
		zap.String("stage", string(stage)),
		zap.Error(cause))
	return rec, stageErr
}

func (p *Processor) resolveSupplier(ctx context.Context, rec *model.FiscalRecord) error {
	result := p.suppliers.Resolve(ctx, rec)
	rec.SupplierID = result.SupplierID
	rec.SupplierStatus = result.Status
	return nil
}

func (p *Processor) resolveItems(ctx context.Context, rec *model.FiscalRecord) error {
	rec.ItemResolution = p.items.ResolveAll(ctx, rec)
	return nil
}

func (p *Processor) matchPurchaseOrder(ctx context.Context, rec *model.FiscalRecord) error {
	result, err := p.matcher.Match(ctx, rec)
	if err != nil {
		return err
	}
	rec.POStatus = result.Status
	rec.PurchaseOrderID = result.OrderID
	return nil
}

func (p *Processor) reconcileInvoice(ctx context.Context, rec *model.FiscalRecord) error {
	existing, err := p.reconciler.FindExisting(ctx, rec)
	if err != nil {
		return err
	}
	if existing != nil {
		rec.PurchaseInvoiceID = existing.ID
		rec.InvoiceStatus = model.InvoiceLinked
		if existing.FiscalID == "" {
			existing.FiscalID = rec.ID
			if err := p.store.Invoices.Update(ctx, existing); err != nil {
				return err
			}
		}
		return nil
	}

	if !p.cfg.Processing.AutoCreateInvoice || rec.SupplierID == "" ||
		rec.ItemResolution != model.ItemsAllCreated {
		rec.InvoiceStatus = model.InvoicePending
		return nil
	}

	pi, err := p.reconciler.Create(ctx, rec)
	if err != nil {
		return err
	}
	rec.PurchaseInvoiceID = pi.ID
	if pi.Status == store.DocSubmitted {
		rec.InvoiceStatus = model.InvoiceSubmitted
	} else {
		rec.InvoiceStatus = model.InvoiceCreated
	}
	return nil
}

// Cancel marks the record cancelled and compensates for work already done.
// A draft invoice is deleted, a submitted one is cancelled; if that fails
// the record is still cancelled and an operator alert is queued.
func (p *Processor) Cancel(ctx context.Context, recordID string) (*model.FiscalRecord, error) {
	rec, err := p.store.Records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Cancelled {
		return rec, nil
	}

	if rec.PurchaseInvoiceID != "" {
		p.cancelInvoice(ctx, rec)
	}

	rec.Cancelled = true
	rec.ProcessingStatus = model.StatusCancelled
	if err := p.store.Records.Update(ctx, rec); err != nil {
		return rec, err
	}
	p.log.Info("record cancelled", zap.String("record", rec.ID))
	return rec, nil
}

func (p *Processor) cancelInvoice(ctx context.Context, rec *model.FiscalRecord) {
	pi, err := p.store.Invoices.Get(ctx, rec.PurchaseInvoiceID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.alertManualCancel(ctx, rec, err)
		}
		return
	}

	switch pi.Status {
	case store.DocDraft:
		if err := p.store.Invoices.Delete(ctx, pi.ID); err != nil {
			p.alertManualCancel(ctx, rec, err)
			return
		}
		rec.InvoiceStatus = model.InvoiceCancelled
	case store.DocSubmitted:
		pi.Status = store.DocCancelled
		if err := p.store.Invoices.Update(ctx, pi); err != nil {
			p.alertManualCancel(ctx, rec, err)
			return
		}
		rec.InvoiceStatus = model.InvoiceCancelled
	}
}

func (p *Processor) alertManualCancel(ctx context.Context, rec *model.FiscalRecord, cause error) {
	a := alert.Alert{
		RecordID:       rec.ID,
		Subject:        "Invoice cancellation failed",
		Message:        fmt.Sprintf("invoice %s could not be cancelled: %v", rec.PurchaseInvoiceID, cause),
		ActionRequired: "Manual cancellation required",
	}
	if err := p.notifier.Notify(ctx, a); err != nil {
		p.log.Error("alert delivery failed",
			zap.String("record", rec.ID), zap.Error(err))
	}
}

// BatchResult is the outcome of processing one record in a batch
type BatchResult struct {
	RecordID string
	Status   model.ProcessingStatus
	Err      error
}

// Batch processes several records, isolating failures per record
func (p *Processor) Batch(ctx context.Context, recordIDs []string) []BatchResult {
	results := make([]BatchResult, 0, len(recordIDs))
	for _, id := range recordIDs {
		rec, err := p.Process(ctx, id)
		result := BatchResult{RecordID: id, Err: err}
		if rec != nil {
			result.Status = rec.ProcessingStatus
		}
		results = append(results, result)
	}
	return results
}
