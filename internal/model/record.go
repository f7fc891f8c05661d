package model

import (
	"time"
)

// Origin flags how a document reached the system. A record merged from
// two channels carries both flags.
type Origin struct {
	SEFAZ          bool   `json:"sefaz"`
	Email          bool   `json:"email"`
	Manual         bool   `json:"manual"`
	EmailReference string `json:"email_reference,omitempty"`
	NSU            string `json:"nsu,omitempty"`
}

// FiscalRecord is the persisted fiscal document entity. Identity is the
// access key when present, else the (invoice number, vendor name) pair for
// foreign invoices. The access key is globally unique among live records:
// duplicate inbound documents with the same key are merged, not re-created.
type FiscalRecord struct {
	ID      string       `json:"id"`
	Company string       `json:"company,omitempty"`
	Type    DocumentType `json:"document_type"`

	AccessKey string    `json:"access_key,omitempty"`
	Number    string    `json:"number,omitempty"`
	Series    string    `json:"series,omitempty"`
	IssueDate time.Time `json:"issue_date,omitempty"`

	Issuer       Party `json:"issuer"`
	Counterparty Party `json:"counterparty"`

	Totals   Totals `json:"totals"`
	Currency string `json:"currency,omitempty"`

	ServiceDescription string `json:"service_description,omitempty"`

	// Foreign invoice identity
	VendorName    string `json:"vendor_name,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`

	Items []LineItem `json:"items"`

	Origin     Origin    `json:"origin"`
	ReceivedAt time.Time `json:"received_at"`

	// Raw payload retained for audit
	Payload []byte `json:"-"`

	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ProcessingError  string           `json:"processing_error,omitempty"`

	SupplierID     string         `json:"supplier_id,omitempty"`
	SupplierStatus SupplierStatus `json:"supplier_status,omitempty"`

	ItemResolution ItemResolution `json:"item_resolution,omitempty"`

	PurchaseOrderID string   `json:"purchase_order_id,omitempty"`
	POStatus        POStatus `json:"po_status,omitempty"`

	PurchaseInvoiceID string        `json:"purchase_invoice_id,omitempty"`
	InvoiceStatus     InvoiceStatus `json:"invoice_status,omitempty"`

	Cancelled bool `json:"cancelled"`
}

// ScoreBreakdown details how a purchase order match score was composed
type ScoreBreakdown struct {
	Value       int `json:"value"`
	LineCount   int `json:"line_count"`
	ItemOverlap int `json:"item_overlap"`
	DateGap     int `json:"date_gap"`
}

// Total sums the breakdown, capped at 100
func (b ScoreBreakdown) Total() int {
	total := b.Value + b.LineCount + b.ItemOverlap + b.DateGap
	if total > 100 {
		total = 100
	}
	return total
}

// MatchCandidate is an ephemeral scored candidate produced by the purchase
// order matcher or the invoice reconciler. Never persisted; used only to
// pick a winner or present alternatives.
type MatchCandidate struct {
	TargetID  string         `json:"target_id"`
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}
