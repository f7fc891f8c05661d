package resolve

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/money"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// historyWindow bounds how far back the purchase invoice history scan
// looks when no catalog lookup matched a line.
const historyWindow = 180 * 24 * time.Hour

// ItemResolver links document lines to items
type ItemResolver struct {
	items    store.Items
	invoices store.PurchaseInvoices
	cfg      *config.Config
	log      *zap.Logger
}

// NewItemResolver creates an item resolver
func NewItemResolver(items store.Items, invoices store.PurchaseInvoices, cfg *config.Config, log *zap.Logger) *ItemResolver {
	return &ItemResolver{items: items, invoices: invoices, cfg: cfg, log: log}
}

// ResolveAll processes every line of the record in place, setting ItemCode
// and ItemStatus per line, and returns the aggregate resolution.
func (r *ItemResolver) ResolveAll(ctx context.Context, rec *model.FiscalRecord) model.ItemResolution {
	total := len(rec.Items)
	failed := 0

	for i := range rec.Items {
		line := &rec.Items[i]
		code, status := r.resolveLine(ctx, rec, line)
		line.ItemCode = code
		line.ItemStatus = status
		if status == model.ItemFailed {
			failed++
		}
	}

	switch {
	case failed == 0:
		return model.ItemsAllCreated
	case failed == total:
		return model.ItemsFailed
	default:
		return model.ItemsPartial
	}
}

func (r *ItemResolver) resolveLine(ctx context.Context, rec *model.FiscalRecord, line *model.LineItem) (string, model.ItemStatus) {
	if existing := r.findItem(ctx, rec, line); existing != nil {
		return existing.Code, model.ItemLinked
	}

	if !r.cfg.Processing.AutoCreateItem {
		return "", model.ItemFailed
	}

	item, err := r.createItem(ctx, rec, line)
	if err != nil {
		r.log.Error("item creation failed",
			zap.String("part_code", line.SupplierPartCode),
			zap.Error(err))
		return "", model.ItemFailed
	}
	return item.Code, model.ItemCreated
}

func (r *ItemResolver) findItem(ctx context.Context, rec *model.FiscalRecord, line *model.LineItem) *store.Item {
	if line.SupplierPartCode != "" && rec.SupplierID != "" {
		if item, err := r.items.GetBySupplierPart(ctx, rec.SupplierID, line.SupplierPartCode); err == nil {
			return item
		}
	}

	if line.ServiceCode != "" {
		if item, err := r.items.GetByServiceCode(ctx, line.ServiceCode); err == nil {
			return item
		}
	}

	if line.NCM != "" {
		candidates, err := r.items.GetByNCM(ctx, line.NCM)
		if err == nil && len(candidates) > 0 {
			if line.Description != "" {
				for _, item := range candidates {
					if descriptionMatches(item.Name, line.Description) {
						return item
					}
				}
			}
			// A lone NCM match is taken at face value
			if len(candidates) == 1 {
				return candidates[0]
			}
		}
	}

	if rec.SupplierID != "" && line.Description != "" {
		if item := r.findFromHistory(ctx, rec, line); item != nil {
			return item
		}
	}

	return nil
}

// findFromHistory scans the supplier's recent purchase invoice lines for one
// describing the same thing. A line whose unit price is also within 5% wins
// outright; a description-only match is kept as fallback.
func (r *ItemResolver) findFromHistory(ctx context.Context, rec *model.FiscalRecord, line *model.LineItem) *store.Item {
	anchor := rec.IssueDate
	if anchor.IsZero() {
		anchor = rec.ReceivedAt
	}
	invoices, err := r.invoices.BySupplier(ctx, rec.SupplierID, anchor.Add(-historyWindow), anchor.Add(24*time.Hour))
	if err != nil {
		return nil
	}

	var fallback string
	for _, pi := range invoices {
		for _, hist := range pi.Items {
			if hist.ItemCode == "" || !descriptionMatches(hist.Description, line.Description) {
				continue
			}
			if !line.UnitPrice.IsZero() && money.WithinPercent(hist.Rate, line.UnitPrice, 0.05) {
				if item, err := r.items.GetByCode(ctx, hist.ItemCode); err == nil {
					return item
				}
			}
			if fallback == "" {
				fallback = hist.ItemCode
			}
		}
	}
	if fallback != "" {
		if item, err := r.items.GetByCode(ctx, fallback); err == nil {
			return item
		}
	}
	return nil
}

// stopWords are Portuguese and English filler dropped before comparing
// descriptions. Without the filter "parafuso de aco" and "porca de aco"
// would share most of their words.
var stopWords = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true,
	"em": true, "com": true, "para": true, "por": true, "sem": true,
	"e": true, "a": true, "o": true, "as": true, "os": true, "um": true,
	"uma": true, "no": true, "na": true,
	"of": true, "the": true, "and": true, "for": true, "with": true,
	"in": true, "to": true,
}

// descriptionMatches checks if an item name loosely matches the document
// line description: at least half the words of the shorter side in common,
// stop words excluded.
func descriptionMatches(itemName, description string) bool {
	if itemName == "" || description == "" {
		return false
	}
	itemWords := wordSet(itemName)
	descWords := wordSet(description)

	common := 0
	for w := range itemWords {
		if descWords[w] {
			common++
		}
	}
	shorter := len(itemWords)
	if len(descWords) < shorter {
		shorter = len(descWords)
	}
	if shorter == 0 {
		return false
	}
	return float64(common) >= float64(shorter)*0.5
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if stopWords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

func (r *ItemResolver) createItem(ctx context.Context, rec *model.FiscalRecord, line *model.LineItem) (*store.Item, error) {
	name := line.Description
	if name == "" {
		name = "Item " + line.SupplierPartCode
	}
	if len(name) > 140 {
		name = name[:140]
	}

	service := rec.Type.IsService() || line.ServiceCode != ""

	item := &store.Item{
		Code:          itemCode(line, name),
		Name:          name,
		NCM:           line.NCM,
		ServiceCode:   line.ServiceCode,
		UOM:           defaultUOM(line.Unit),
		IsStock:       !service,
		Group:         r.cfg.Processing.ItemGroup,
		AutoGenerated: true,
	}
	if service {
		item.Group = r.cfg.Processing.ServiceItemGroup
		item.ExpenseAccount = r.cfg.Processing.ExpenseAccount
	}

	// Re-running resolution must not mint duplicates
	if existing, err := r.items.GetByCode(ctx, item.Code); err == nil {
		return existing, nil
	}

	if err := r.items.Create(ctx, item); err != nil {
		return nil, err
	}

	if rec.SupplierID != "" && line.SupplierPartCode != "" {
		if err := r.items.LinkSupplierPart(ctx, &store.ItemSupplierPart{
			ItemID:     item.ID,
			SupplierID: rec.SupplierID,
			PartCode:   line.SupplierPartCode,
		}); err != nil {
			return nil, err
		}
	}

	r.log.Info("item created",
		zap.String("code", item.Code),
		zap.String("ncm", item.NCM),
		zap.Bool("service", service))
	return item, nil
}

// itemCode picks a stable code: the supplier part number, a service code
// derivative, or a hash of the description as a last resort.
func itemCode(line *model.LineItem, name string) string {
	if line.SupplierPartCode != "" {
		return line.SupplierPartCode
	}
	if line.ServiceCode != "" {
		return "SRV-" + line.ServiceCode
	}
	sum := sha1.Sum([]byte(strings.ToLower(name)))
	return fmt.Sprintf("ITM-%s", strings.ToUpper(hex.EncodeToString(sum[:4])))
}

func defaultUOM(unit string) string {
	if unit == "" {
		return "Unit"
	}
	return unit
}
