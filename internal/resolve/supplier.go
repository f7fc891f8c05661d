// Package resolve links fiscal documents to purchasing master data,
// creating suppliers and items on the fly when configuration allows.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/cnpj"
	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// SupplierResult is the outcome of supplier resolution
type SupplierResult struct {
	SupplierID string
	Status     model.SupplierStatus
	Message    string
}

// SupplierResolver finds or creates the supplier for a fiscal record
type SupplierResolver struct {
	suppliers store.Suppliers
	invoices  store.PurchaseInvoices
	cfg       *config.Config
	log       *zap.Logger
}

// NewSupplierResolver creates a supplier resolver
func NewSupplierResolver(suppliers store.Suppliers, invoices store.PurchaseInvoices, cfg *config.Config, log *zap.Logger) *SupplierResolver {
	return &SupplierResolver{suppliers: suppliers, invoices: invoices, cfg: cfg, log: log}
}

// Resolve links the record's issuer to a supplier. Resolution never
// returns an error: every failure mode is a status the record carries.
func (r *SupplierResolver) Resolve(ctx context.Context, rec *model.FiscalRecord) SupplierResult {
	if rec.Type.IsForeign() {
		return r.resolveForeign(ctx, rec)
	}
	return r.resolveBrazilian(ctx, rec)
}

func (r *SupplierResolver) resolveBrazilian(ctx context.Context, rec *model.FiscalRecord) SupplierResult {
	taxID := cnpj.Clean(rec.Issuer.TaxID)
	if taxID == "" {
		return SupplierResult{Status: model.SupplierFailed, Message: "no tax id in document"}
	}

	if s, err := r.suppliers.GetByTaxID(ctx, taxID); err == nil {
		return linked(s.ID, "supplier found by tax id")
	}

	// Formats diverge between systems; a fragment search over masked
	// values catches what the exact lookup missed
	if found, err := r.suppliers.Search(ctx, taxID); err == nil && len(found) > 0 {
		return linked(found[0].ID, "supplier found by tax id fragment")
	}

	// Last lookup: an earlier purchase invoice referencing this CNPJ in
	// its access key points at the supplier
	if invs, err := r.invoices.SearchRef(ctx, taxID); err == nil && len(invs) > 0 {
		return linked(invs[0].SupplierID, "supplier found via past purchase invoice")
	}

	if !r.cfg.Processing.AutoCreateSupplier {
		return SupplierResult{Status: model.SupplierNotFound, Message: "supplier not found and auto-create disabled"}
	}

	name := rec.Issuer.Name
	if name == "" {
		name = "Supplier " + cnpj.Format(taxID)
	}
	supplier := &store.Supplier{
		Name:          name,
		TaxID:         cnpj.Format(taxID),
		Country:       "Brazil",
		Group:         r.cfg.Processing.SupplierGroup,
		Email:         rec.Issuer.Email,
		AutoGenerated: true,
	}
	if err := r.suppliers.Create(ctx, supplier); err != nil {
		r.log.Error("supplier creation failed", zap.String("tax_id", taxID), zap.Error(err))
		return SupplierResult{Status: model.SupplierFailed, Message: fmt.Sprintf("supplier creation failed: %v", err)}
	}
	r.log.Info("supplier created",
		zap.String("supplier_id", supplier.ID),
		zap.String("name", name),
		zap.String("tax_id", taxID))
	return SupplierResult{SupplierID: supplier.ID, Status: model.SupplierCreated, Message: "supplier created automatically"}
}

func (r *SupplierResolver) resolveForeign(ctx context.Context, rec *model.FiscalRecord) SupplierResult {
	name := rec.VendorName
	if name == "" {
		name = rec.Issuer.Name
	}
	if name == "" {
		return SupplierResult{Status: model.SupplierFailed, Message: "no vendor name in invoice"}
	}

	if s, err := r.suppliers.GetByName(ctx, name); err == nil {
		return linked(s.ID, "supplier found by name")
	}

	// Vendors rename themselves with suffixes ("Inc.", "LLC"); match when
	// either name contains the other
	if all, err := r.suppliers.All(ctx); err == nil {
		lower := strings.ToLower(name)
		for _, s := range all {
			if s.Disabled {
				continue
			}
			sName := strings.ToLower(s.Name)
			if strings.Contains(sName, lower) || strings.Contains(lower, sName) {
				return linked(s.ID, "supplier found by name containment")
			}
		}
	}

	if rec.Issuer.TaxID != "" {
		if s, err := r.suppliers.GetByTaxID(ctx, rec.Issuer.TaxID); err == nil {
			return linked(s.ID, "supplier found by foreign tax id")
		}
	}

	if !r.cfg.Processing.AutoCreateSupplier {
		return SupplierResult{Status: model.SupplierNotFound, Message: "supplier not found and auto-create disabled"}
	}

	supplier := &store.Supplier{
		Name:          name,
		TaxID:         rec.Issuer.TaxID,
		Country:       rec.Issuer.Country,
		Group:         r.cfg.Processing.SupplierGroup,
		Email:         rec.Issuer.Email,
		AutoGenerated: true,
	}
	if err := r.suppliers.Create(ctx, supplier); err != nil {
		r.log.Error("supplier creation failed", zap.String("vendor", name), zap.Error(err))
		return SupplierResult{Status: model.SupplierFailed, Message: fmt.Sprintf("supplier creation failed: %v", err)}
	}
	r.log.Info("supplier created", zap.String("supplier_id", supplier.ID), zap.String("vendor", name))
	return SupplierResult{SupplierID: supplier.ID, Status: model.SupplierCreated, Message: "supplier created automatically"}
}

func linked(id, message string) SupplierResult {
	return SupplierResult{SupplierID: id, Status: model.SupplierLinked, Message: message}
}
