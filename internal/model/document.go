package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType identifies the kind of fiscal document
type DocumentType string

const (
	DocTypeNFe     DocumentType = "NF-e"
	DocTypeNFCe    DocumentType = "NFC-e"
	DocTypeCTe     DocumentType = "CT-e"
	DocTypeCTeOS   DocumentType = "CT-e OS"
	DocTypeMDFe    DocumentType = "MDF-e"
	DocTypeNFSe    DocumentType = "NFS-e"
	DocTypeInvoice DocumentType = "Invoice"
	DocTypeUnknown DocumentType = "Unknown"
)

// IsService returns true for service documents (single synthetic line item)
func (t DocumentType) IsService() bool {
	return t == DocTypeNFSe
}

// IsForeign returns true for foreign vendor invoices (no access key)
func (t DocumentType) IsForeign() bool {
	return t == DocTypeInvoice
}

// Party identifies one side of a fiscal document
type Party struct {
	Name                  string `json:"name"`
	TaxID                 string `json:"tax_id"`
	StateRegistration     string `json:"state_registration,omitempty"`
	MunicipalRegistration string `json:"municipal_registration,omitempty"`
	State                 string `json:"state,omitempty"`
	CityCode              string `json:"city_code,omitempty"`
	Country               string `json:"country,omitempty"`
	Email                 string `json:"email,omitempty"`
}

// Totals holds document-level monetary fields. Presence varies by type:
// product documents carry the ICMS block, service documents the ISS block,
// foreign invoices only Gross plus the original currency amount.
type Totals struct {
	Gross    decimal.Decimal `json:"gross"`
	Products decimal.Decimal `json:"products,omitempty"`
	Freight  decimal.Decimal `json:"freight,omitempty"`
	Discount decimal.Decimal `json:"discount,omitempty"`
	Net      decimal.Decimal `json:"net,omitempty"`

	ICMSBase decimal.Decimal `json:"icms_base,omitempty"`
	ICMS     decimal.Decimal `json:"icms,omitempty"`
	IPI      decimal.Decimal `json:"ipi,omitempty"`
	PIS      decimal.Decimal `json:"pis,omitempty"`
	COFINS   decimal.Decimal `json:"cofins,omitempty"`

	ISSBase decimal.Decimal `json:"iss_base,omitempty"`
	ISS     decimal.Decimal `json:"iss,omitempty"`
	ISSRate decimal.Decimal `json:"iss_rate,omitempty"`

	FederalTaxes   decimal.Decimal `json:"federal_taxes,omitempty"`
	StateTaxes     decimal.Decimal `json:"state_taxes,omitempty"`
	MunicipalTaxes decimal.Decimal `json:"municipal_taxes,omitempty"`

	OriginalCurrency decimal.Decimal `json:"original_currency_amount,omitempty"`
}

// ICMSTax is the per-line state goods tax block
type ICMSTax struct {
	CST  string          `json:"cst,omitempty"`
	Base decimal.Decimal `json:"base"`
	Rate decimal.Decimal `json:"rate"`
	Due  decimal.Decimal `json:"due"`
}

// ISSTax is the per-line municipal service tax block
type ISSTax struct {
	Base decimal.Decimal `json:"base"`
	Rate decimal.Decimal `json:"rate"`
	Due  decimal.Decimal `json:"due"`
}

// LineItem is one line of a fiscal document. For NF-e there is one per
// det node, order preserved. For NFS-e a single synthetic line represents
// the whole service. Unit price times quantity need not equal Total
// (fiscal rounding); no reconciliation between them is assumed.
type LineItem struct {
	Seq              int             `json:"seq"`
	SupplierPartCode string          `json:"supplier_part_code,omitempty"`
	Barcode          string          `json:"barcode,omitempty"`
	Description      string          `json:"description"`
	NCM              string          `json:"ncm,omitempty"`
	CFOP             string          `json:"cfop,omitempty"`
	ServiceCode      string          `json:"service_code,omitempty"`
	MunicipalCode    string          `json:"municipal_code,omitempty"`
	NBSCode          string          `json:"nbs_code,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Total            decimal.Decimal `json:"total"`

	ICMS *ICMSTax `json:"icms,omitempty"`
	ISS  *ISSTax  `json:"iss,omitempty"`

	// Filled by item resolution
	ItemCode   string     `json:"item_code,omitempty"`
	ItemStatus ItemStatus `json:"item_status,omitempty"`
}

// ParsedDocument is the canonical shape every parser dialect and the
// foreign invoice extractor produce. Transient, never persisted as-is.
type ParsedDocument struct {
	Type      DocumentType `json:"document_type"`
	AccessKey string       `json:"access_key,omitempty"`
	Number    string       `json:"number,omitempty"`
	Series    string       `json:"series,omitempty"`
	IssueDate time.Time    `json:"issue_date,omitempty"`

	Issuer       Party `json:"issuer"`
	Counterparty Party `json:"counterparty"`

	Totals   Totals `json:"totals"`
	Currency string `json:"currency,omitempty"`

	ServiceDescription string `json:"service_description,omitempty"`
	TaxRegime          string `json:"tax_regime,omitempty"`

	// Foreign invoice fields
	InvoiceNumber      string    `json:"invoice_number,omitempty"`
	BillingPeriodStart time.Time `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   time.Time `json:"billing_period_end,omitempty"`

	Items []LineItem `json:"items"`

	Raw []byte `json:"-"`
}
