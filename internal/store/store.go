// Package store defines the purchasing entities fiscal records reconcile
// against and the persistence interfaces the pipeline depends on.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// DocStatus is the lifecycle state of a purchasing document
type DocStatus string

const (
	DocDraft     DocStatus = "Draft"
	DocSubmitted DocStatus = "Submitted"
	DocCancelled DocStatus = "Cancelled"
)

// Supplier is a purchasing supplier
type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TaxID         string    `json:"tax_id,omitempty"`
	Country       string    `json:"country,omitempty"`
	Group         string    `json:"group,omitempty"`
	Email         string    `json:"email,omitempty"`
	InvoiceRefs   []string  `json:"invoice_refs,omitempty"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"created_at"`
	AutoGenerated bool      `json:"auto_generated"`
}

// Item is a purchasable item
type Item struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Group          string    `json:"group,omitempty"`
	NCM            string    `json:"ncm,omitempty"`
	ServiceCode    string    `json:"service_code,omitempty"`
	UOM            string    `json:"uom,omitempty"`
	IsStock        bool      `json:"is_stock"`
	ExpenseAccount string    `json:"expense_account,omitempty"`
	Disabled       bool      `json:"disabled"`
	CreatedAt      time.Time `json:"created_at"`
	AutoGenerated  bool      `json:"auto_generated"`
}

// ItemSupplierPart links a supplier's part code to an item
type ItemSupplierPart struct {
	ItemID     string `json:"item_id"`
	SupplierID string `json:"supplier_id"`
	PartCode   string `json:"part_code"`
}

// POItem is one purchase order line
type POItem struct {
	ItemID   string          `json:"item_id"`
	ItemCode string          `json:"item_code"`
	Quantity decimal.Decimal `json:"quantity"`
	Received decimal.Decimal `json:"received"`
	Billed   decimal.Decimal `json:"billed"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// PurchaseOrder is an open purchase order
type PurchaseOrder struct {
	ID         string          `json:"id"`
	SupplierID string          `json:"supplier_id"`
	Date       time.Time       `json:"date"`
	Status     DocStatus       `json:"status"`
	Closed     bool            `json:"closed"`
	Total      decimal.Decimal `json:"total"`
	Items      []POItem        `json:"items"`
}

// Billable reports whether the order can still receive invoices
func (po *PurchaseOrder) Billable() bool {
	return po.Status == DocSubmitted && !po.Closed
}

// PIItem is one purchase invoice line
type PIItem struct {
	ItemID      string          `json:"item_id"`
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	POID        string          `json:"po_id,omitempty"`
}

// PurchaseInvoice is a supplier bill
type PurchaseInvoice struct {
	ID         string          `json:"id"`
	SupplierID string          `json:"supplier_id"`
	BillNo     string          `json:"bill_no,omitempty"`
	AccessKey  string          `json:"access_key,omitempty"`
	Date       time.Time       `json:"date"`
	Status     DocStatus       `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Items      []PIItem        `json:"items"`
	FiscalID   string          `json:"fiscal_id,omitempty"`
}

// FiscalRecords persists fiscal document records
type FiscalRecords interface {
	Create(ctx context.Context, rec *model.FiscalRecord) error
	Update(ctx context.Context, rec *model.FiscalRecord) error
	Get(ctx context.Context, id string) (*model.FiscalRecord, error)
	GetByAccessKey(ctx context.Context, key string) (*model.FiscalRecord, error)
	GetByInvoiceNumber(ctx context.Context, vendorName, invoiceNumber string) (*model.FiscalRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]*model.FiscalRecord, error)
}

// RecordFilter narrows List results
type RecordFilter struct {
	Status model.ProcessingStatus
	Type   model.DocumentType
	Limit  int
}

// Suppliers persists suppliers
type Suppliers interface {
	Create(ctx context.Context, s *Supplier) error
	Get(ctx context.Context, id string) (*Supplier, error)
	GetByTaxID(ctx context.Context, taxID string) (*Supplier, error)
	GetByName(ctx context.Context, name string) (*Supplier, error)
	Search(ctx context.Context, fragment string) ([]*Supplier, error)
	All(ctx context.Context) ([]*Supplier, error)
}

// Items persists items and supplier part links
type Items interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	GetByCode(ctx context.Context, code string) (*Item, error)
	GetBySupplierPart(ctx context.Context, supplierID, partCode string) (*Item, error)
	GetByNCM(ctx context.Context, ncm string) ([]*Item, error)
	GetByServiceCode(ctx context.Context, code string) (*Item, error)
	LinkSupplierPart(ctx context.Context, link *ItemSupplierPart) error
}

// PurchaseOrders persists purchase orders
type PurchaseOrders interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	Get(ctx context.Context, id string) (*PurchaseOrder, error)
	BySupplier(ctx context.Context, supplierID string, from, to time.Time) ([]*PurchaseOrder, error)
}

// PurchaseInvoices persists purchase invoices
type PurchaseInvoices interface {
	Create(ctx context.Context, pi *PurchaseInvoice) error
	Update(ctx context.Context, pi *PurchaseInvoice) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*PurchaseInvoice, error)
	GetByAccessKey(ctx context.Context, key string) (*PurchaseInvoice, error)
	GetByBillNo(ctx context.Context, supplierID, billNo string) (*PurchaseInvoice, error)
	BySupplier(ctx context.Context, supplierID string, from, to time.Time) ([]*PurchaseInvoice, error)
	// SearchRef finds live invoices whose access key or bill number
	// contains the fragment
	SearchRef(ctx context.Context, fragment string) ([]*PurchaseInvoice, error)
}

// Store bundles every repository the pipeline needs
type Store struct {
	Records   FiscalRecords
	Suppliers Suppliers
	Items     Items
	Orders    PurchaseOrders
	Invoices  PurchaseInvoices
}
