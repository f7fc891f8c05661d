package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/money"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// ErrNoInvoiceLines is returned when no source can produce a single line.
// An empty invoice must never be created silently.
var ErrNoInvoiceLines = errors.New("no source produced any invoice line")

// Fuzzy matching tolerances. Domestic invoices allow small rounding drift,
// foreign ones a wider band for exchange rate differences.
var (
	domesticTolerancePct = decimal.NewFromInt(1)
	domesticToleranceMin = decimal.NewFromInt(10)
	foreignTolerancePct  = decimal.NewFromInt(5)
)

const genericServiceCode = "SRV-GENERIC"

// Reconciler deduplicates and creates purchase invoices for fiscal records
type Reconciler struct {
	invoices store.PurchaseInvoices
	orders   store.PurchaseOrders
	items    store.Items
	cfg      *config.Config
	log      *zap.Logger
}

// NewReconciler creates an invoice reconciler
func NewReconciler(st *store.Store, cfg *config.Config, log *zap.Logger) *Reconciler {
	return &Reconciler{
		invoices: st.Invoices,
		orders:   st.Orders,
		items:    st.Items,
		cfg:      cfg,
		log:      log,
	}
}

// FindExisting looks for an invoice already covering the record. Priority:
// exact access key, then bill number plus supplier, then a fuzzy scan of
// the supplier's recent invoices by value. Returns nil when nothing fits.
func (r *Reconciler) FindExisting(ctx context.Context, rec *model.FiscalRecord) (*store.PurchaseInvoice, error) {
	if rec.AccessKey != "" {
		pi, err := r.invoices.GetByAccessKey(ctx, rec.AccessKey)
		if err == nil {
			return pi, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	billNo := billNumber(rec)
	if billNo != "" && rec.SupplierID != "" {
		pi, err := r.invoices.GetByBillNo(ctx, rec.SupplierID, billNo)
		if err == nil {
			return pi, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return r.findFuzzy(ctx, rec)
}

// findFuzzy scans the supplier's invoices in a date window around the
// document, accepting the closest value within tolerance among invoices
// that carry no fiscal record link of their own.
func (r *Reconciler) findFuzzy(ctx context.Context, rec *model.FiscalRecord) (*store.PurchaseInvoice, error) {
	if rec.SupplierID == "" || rec.Totals.Gross.IsZero() {
		return nil, nil
	}

	anchor := rec.IssueDate
	if anchor.IsZero() {
		anchor = rec.ReceivedAt
	}
	window := time.Duration(r.cfg.Matching.InvoiceDateRangeDays) * 24 * time.Hour

	candidates, err := r.invoices.BySupplier(ctx, rec.SupplierID, anchor.Add(-window), anchor.Add(window))
	if err != nil {
		return nil, err
	}

	tolerance := r.tolerance(rec)

	var best *store.PurchaseInvoice
	var bestDiff decimal.Decimal
	for _, pi := range candidates {
		if pi.FiscalID != "" || pi.Status == store.DocCancelled {
			continue
		}
		if !money.WithinAbsolute(pi.Total, rec.Totals.Gross, tolerance) {
			continue
		}
		diff := pi.Total.Sub(rec.Totals.Gross).Abs()
		if best == nil || diff.LessThan(bestDiff) {
			best = pi
			bestDiff = diff
		}
	}
	return best, nil
}

func (r *Reconciler) tolerance(rec *model.FiscalRecord) decimal.Decimal {
	if rec.Type.IsForeign() {
		return money.PercentOf(rec.Totals.Gross, foreignTolerancePct)
	}
	pct := money.PercentOf(rec.Totals.Gross, domesticTolerancePct)
	if pct.LessThan(domesticToleranceMin) {
		return domesticToleranceMin
	}
	return pct
}

// Create synthesizes a purchase invoice from the record. Lines come from
// the linked purchase order when one matched, else from the resolved
// document lines, else a single service line against a generic item.
func (r *Reconciler) Create(ctx context.Context, rec *model.FiscalRecord) (*store.PurchaseInvoice, error) {
	lines, err := r.buildLines(ctx, rec)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoInvoiceLines
	}

	status := store.DocDraft
	if r.cfg.Processing.InvoiceSubmitMode == config.SubmitModeAuto {
		status = store.DocSubmitted
	}

	total := rec.Totals.Gross
	if total.IsZero() {
		amounts := make([]decimal.Decimal, len(lines))
		for i, line := range lines {
			amounts[i] = line.Amount
		}
		total = money.Round2(money.Sum(amounts))
	}

	pi := &store.PurchaseInvoice{
		SupplierID: rec.SupplierID,
		BillNo:     billNumber(rec),
		AccessKey:  rec.AccessKey,
		Date:       rec.IssueDate,
		Status:     status,
		Total:      total,
		Items:      lines,
		FiscalID:   rec.ID,
	}
	if err := r.invoices.Create(ctx, pi); err != nil {
		return nil, err
	}

	r.log.Info("purchase invoice created",
		zap.String("invoice", pi.ID),
		zap.String("record", rec.ID),
		zap.String("status", string(status)),
		zap.Int("lines", len(lines)))
	return pi, nil
}

func (r *Reconciler) buildLines(ctx context.Context, rec *model.FiscalRecord) ([]store.PIItem, error) {
	if rec.PurchaseOrderID != "" {
		po, err := r.orders.Get(ctx, rec.PurchaseOrderID)
		if err == nil && len(po.Items) > 0 {
			lines := make([]store.PIItem, 0, len(po.Items))
			for _, it := range po.Items {
				lines = append(lines, store.PIItem{
					ItemID:   it.ItemID,
					ItemCode: it.ItemCode,
					Quantity: it.Quantity,
					Rate:     it.Rate,
					Amount:   it.Amount,
					POID:     po.ID,
				})
			}
			return lines, nil
		}
	}

	var lines []store.PIItem
	for _, line := range rec.Items {
		if line.ItemCode == "" {
			continue
		}
		lines = append(lines, store.PIItem{
			ItemCode:    line.ItemCode,
			Description: line.Description,
			Quantity:    line.Quantity,
			Rate:        line.UnitPrice,
			Amount:      line.Total,
		})
	}
	if len(lines) > 0 {
		return lines, nil
	}

	if rec.Totals.Gross.IsZero() {
		return nil, nil
	}
	item, err := r.genericServiceItem(ctx)
	if err != nil {
		return nil, err
	}
	desc := rec.ServiceDescription
	if desc == "" {
		desc = "Services"
	}
	return []store.PIItem{{
		ItemID:      item.ID,
		ItemCode:    item.Code,
		Description: desc,
		Quantity:    decimal.NewFromInt(1),
		Rate:        rec.Totals.Gross,
		Amount:      rec.Totals.Gross,
	}}, nil
}

func (r *Reconciler) genericServiceItem(ctx context.Context) (*store.Item, error) {
	item, err := r.items.GetByCode(ctx, genericServiceCode)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	item = &store.Item{
		Code:           genericServiceCode,
		Name:           "General Services",
		Group:          r.cfg.Processing.ServiceItemGroup,
		UOM:            "Unit",
		IsStock:        false,
		ExpenseAccount: r.cfg.Processing.ExpenseAccount,
		AutoGenerated:  true,
	}
	if err := r.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func billNumber(rec *model.FiscalRecord) string {
	if rec.Number != "" {
		return rec.Number
	}
	return rec.InvoiceNumber
}
