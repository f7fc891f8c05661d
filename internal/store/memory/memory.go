// Package memory provides in-memory repositories, used by the server in
// standalone mode and throughout the tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// New creates a Store backed entirely by memory.
func New() *store.Store {
	return &store.Store{
		Records:   NewFiscalRecords(),
		Suppliers: NewSuppliers(),
		Items:     NewItems(),
		Orders:    NewPurchaseOrders(),
		Invoices:  NewPurchaseInvoices(),
	}
}

// digitsOnly strips formatting from tax identifiers before comparison.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FiscalRecords is an in-memory FiscalRecords repository
type FiscalRecords struct {
	mu      sync.RWMutex
	records map[string]*model.FiscalRecord
	order   []string
}

// NewFiscalRecords creates an empty repository
func NewFiscalRecords() *FiscalRecords {
	return &FiscalRecords{records: make(map[string]*model.FiscalRecord)}
}

func (r *FiscalRecords) Create(ctx context.Context, rec *model.FiscalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	clone := *rec
	r.records[rec.ID] = &clone
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *FiscalRecords) Update(ctx context.Context, rec *model.FiscalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return store.ErrNotFound
	}
	clone := *rec
	r.records[rec.ID] = &clone
	return nil
}

func (r *FiscalRecords) Get(ctx context.Context, id string) (*model.FiscalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *FiscalRecords) GetByAccessKey(ctx context.Context, key string) (*model.FiscalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		rec := r.records[id]
		if rec.AccessKey != "" && rec.AccessKey == key {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *FiscalRecords) GetByInvoiceNumber(ctx context.Context, vendorName, invoiceNumber string) (*model.FiscalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		rec := r.records[id]
		if rec.InvoiceNumber == invoiceNumber && strings.EqualFold(rec.VendorName, vendorName) {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *FiscalRecords) List(ctx context.Context, filter store.RecordFilter) ([]*model.FiscalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.FiscalRecord
	for _, id := range r.order {
		rec := r.records[id]
		if filter.Status != "" && rec.ProcessingStatus != filter.Status {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		clone := *rec
		out = append(out, &clone)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Suppliers is an in-memory Suppliers repository
type Suppliers struct {
	mu        sync.RWMutex
	suppliers map[string]*store.Supplier
	order     []string
}

// NewSuppliers creates an empty repository
func NewSuppliers() *Suppliers {
	return &Suppliers{suppliers: make(map[string]*store.Supplier)}
}

func (r *Suppliers) Create(ctx context.Context, s *store.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	clone := *s
	r.suppliers[s.ID] = &clone
	r.order = append(r.order, s.ID)
	return nil
}

func (r *Suppliers) Get(ctx context.Context, id string) (*store.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *Suppliers) GetByTaxID(ctx context.Context, taxID string) (*store.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := digitsOnly(taxID)
	if want == "" {
		return nil, store.ErrNotFound
	}
	for _, id := range r.order {
		s := r.suppliers[id]
		if !s.Disabled && digitsOnly(s.TaxID) == want {
			clone := *s
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *Suppliers) GetByName(ctx context.Context, name string) (*store.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		s := r.suppliers[id]
		if !s.Disabled && strings.EqualFold(s.Name, name) {
			clone := *s
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *Suppliers) Search(ctx context.Context, fragment string) ([]*store.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fragment = strings.ToLower(fragment)
	var out []*store.Supplier
	for _, id := range r.order {
		s := r.suppliers[id]
		if s.Disabled {
			continue
		}
		if strings.Contains(strings.ToLower(s.Name), fragment) ||
			strings.Contains(digitsOnly(s.TaxID), digitsOnly(fragment)) && digitsOnly(fragment) != "" {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *Suppliers) All(ctx context.Context) ([]*store.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*store.Supplier, 0, len(r.order))
	for _, id := range r.order {
		clone := *r.suppliers[id]
		out = append(out, &clone)
	}
	return out, nil
}

// Items is an in-memory Items repository
type Items struct {
	mu    sync.RWMutex
	items map[string]*store.Item
	order []string
	parts []*store.ItemSupplierPart
}

// NewItems creates an empty repository
func NewItems() *Items {
	return &Items{items: make(map[string]*store.Item)}
}

func (r *Items) Create(ctx context.Context, item *store.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	clone := *item
	r.items[item.ID] = &clone
	r.order = append(r.order, item.ID)
	return nil
}

func (r *Items) Get(ctx context.Context, id string) (*store.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (r *Items) GetByCode(ctx context.Context, code string) (*store.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		item := r.items[id]
		if !item.Disabled && strings.EqualFold(item.Code, code) {
			clone := *item
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *Items) GetBySupplierPart(ctx context.Context, supplierID, partCode string) (*store.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, link := range r.parts {
		if link.SupplierID == supplierID && strings.EqualFold(link.PartCode, partCode) {
			if item, ok := r.items[link.ItemID]; ok && !item.Disabled {
				clone := *item
				return &clone, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (r *Items) GetByNCM(ctx context.Context, ncm string) ([]*store.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*store.Item
	for _, id := range r.order {
		item := r.items[id]
		if !item.Disabled && item.NCM == ncm && ncm != "" {
			clone := *item
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *Items) GetByServiceCode(ctx context.Context, code string) (*store.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if code == "" {
		return nil, store.ErrNotFound
	}
	for _, id := range r.order {
		item := r.items[id]
		if !item.Disabled && item.ServiceCode == code {
			clone := *item
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *Items) LinkSupplierPart(ctx context.Context, link *store.ItemSupplierPart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.parts {
		if existing.SupplierID == link.SupplierID && strings.EqualFold(existing.PartCode, link.PartCode) {
			existing.ItemID = link.ItemID
			return nil
		}
	}
	clone := *link
	r.parts = append(r.parts, &clone)
	return nil
}

// PurchaseOrders is an in-memory PurchaseOrders repository
type PurchaseOrders struct {
	mu     sync.RWMutex
	orders map[string]*store.PurchaseOrder
	order  []string
}

// NewPurchaseOrders creates an empty repository
func NewPurchaseOrders() *PurchaseOrders {
	return &PurchaseOrders{orders: make(map[string]*store.PurchaseOrder)}
}

func (r *PurchaseOrders) Create(ctx context.Context, po *store.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if po.ID == "" {
		po.ID = uuid.NewString()
	}
	clone := *po
	clone.Items = append([]store.POItem(nil), po.Items...)
	r.orders[po.ID] = &clone
	r.order = append(r.order, po.ID)
	return nil
}

func (r *PurchaseOrders) Get(ctx context.Context, id string) (*store.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	po, ok := r.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *po
	clone.Items = append([]store.POItem(nil), po.Items...)
	return &clone, nil
}

func (r *PurchaseOrders) BySupplier(ctx context.Context, supplierID string, from, to time.Time) ([]*store.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*store.PurchaseOrder
	for _, id := range r.order {
		po := r.orders[id]
		if po.SupplierID != supplierID {
			continue
		}
		if !from.IsZero() && po.Date.Before(from) {
			continue
		}
		if !to.IsZero() && po.Date.After(to) {
			continue
		}
		clone := *po
		clone.Items = append([]store.POItem(nil), po.Items...)
		out = append(out, &clone)
	}
	return out, nil
}

// PurchaseInvoices is an in-memory PurchaseInvoices repository
type PurchaseInvoices struct {
	mu       sync.RWMutex
	invoices map[string]*store.PurchaseInvoice
	order    []string
}

// NewPurchaseInvoices creates an empty repository
func NewPurchaseInvoices() *PurchaseInvoices {
	return &PurchaseInvoices{invoices: make(map[string]*store.PurchaseInvoice)}
}

func (r *PurchaseInvoices) Create(ctx context.Context, pi *store.PurchaseInvoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pi.ID == "" {
		pi.ID = uuid.NewString()
	}
	clone := *pi
	clone.Items = append([]store.PIItem(nil), pi.Items...)
	r.invoices[pi.ID] = &clone
	r.order = append(r.order, pi.ID)
	return nil
}

func (r *PurchaseInvoices) Update(ctx context.Context, pi *store.PurchaseInvoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[pi.ID]; !ok {
		return store.ErrNotFound
	}
	clone := *pi
	clone.Items = append([]store.PIItem(nil), pi.Items...)
	r.invoices[pi.ID] = &clone
	return nil
}

func (r *PurchaseInvoices) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.invoices, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *PurchaseInvoices) Get(ctx context.Context, id string) (*store.PurchaseInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pi, ok := r.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *pi
	clone.Items = append([]store.PIItem(nil), pi.Items...)
	return &clone, nil
}

func (r *PurchaseInvoices) GetByAccessKey(ctx context.Context, key string) (*store.PurchaseInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key == "" {
		return nil, store.ErrNotFound
	}
	for _, id := range r.order {
		pi := r.invoices[id]
		if pi.AccessKey == key && pi.Status != store.DocCancelled {
			clone := *pi
			clone.Items = append([]store.PIItem(nil), pi.Items...)
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *PurchaseInvoices) GetByBillNo(ctx context.Context, supplierID, billNo string) (*store.PurchaseInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if billNo == "" {
		return nil, store.ErrNotFound
	}
	for _, id := range r.order {
		pi := r.invoices[id]
		if pi.SupplierID == supplierID && pi.BillNo == billNo && pi.Status != store.DocCancelled {
			clone := *pi
			clone.Items = append([]store.PIItem(nil), pi.Items...)
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *PurchaseInvoices) SearchRef(ctx context.Context, fragment string) ([]*store.PurchaseInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fragment == "" {
		return nil, nil
	}
	var out []*store.PurchaseInvoice
	for _, id := range r.order {
		pi := r.invoices[id]
		if pi.Status == store.DocCancelled {
			continue
		}
		if strings.Contains(pi.AccessKey, fragment) || strings.Contains(pi.BillNo, fragment) {
			clone := *pi
			clone.Items = append([]store.PIItem(nil), pi.Items...)
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *PurchaseInvoices) BySupplier(ctx context.Context, supplierID string, from, to time.Time) ([]*store.PurchaseInvoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*store.PurchaseInvoice
	for _, id := range r.order {
		pi := r.invoices[id]
		if pi.SupplierID != supplierID {
			continue
		}
		if !from.IsZero() && pi.Date.Before(from) {
			continue
		}
		if !to.IsZero() && pi.Date.After(to) {
			continue
		}
		clone := *pi
		clone.Items = append([]store.PIItem(nil), pi.Items...)
		out = append(out, &clone)
	}
	return out, nil
}
