package model

// ProcessingStatus is the pipeline state of a FiscalRecord
type ProcessingStatus string

const (
	StatusNew                ProcessingStatus = "New"
	StatusParsed             ProcessingStatus = "Parsed"
	StatusSupplierProcessing ProcessingStatus = "Supplier Processing"
	StatusItemProcessing     ProcessingStatus = "Item Processing"
	StatusPOMatching         ProcessingStatus = "PO Matching"
	StatusInvoiceCreation    ProcessingStatus = "Invoice Creation"
	StatusCompleted          ProcessingStatus = "Completed"
	StatusError              ProcessingStatus = "Error"
	StatusCancelled          ProcessingStatus = "Cancelled"
)

// Terminal reports whether no further pipeline execution is possible
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// SupplierStatus is the outcome of supplier resolution
type SupplierStatus string

const (
	SupplierPending  SupplierStatus = "Pending"
	SupplierLinked   SupplierStatus = "Linked"
	SupplierCreated  SupplierStatus = "Created"
	SupplierNotFound SupplierStatus = "Not Found"
	SupplierFailed   SupplierStatus = "Failed"
)

// ItemStatus is the per-line outcome of item resolution
type ItemStatus string

const (
	ItemPending ItemStatus = "Pending"
	ItemLinked  ItemStatus = "Linked"
	ItemCreated ItemStatus = "Created"
	ItemFailed  ItemStatus = "Failed"
)

// ItemResolution is the aggregate outcome across all lines
type ItemResolution string

const (
	ItemsPending    ItemResolution = "Pending"
	ItemsAllCreated ItemResolution = "All Created"
	ItemsPartial    ItemResolution = "Partial"
	ItemsFailed     ItemResolution = "Failed"
)

// POStatus is the outcome of purchase order matching
type POStatus string

const (
	POPending       POStatus = "Pending"
	POLinked        POStatus = "Linked"
	POPartialMatch  POStatus = "Partial Match"
	PONotFound      POStatus = "Not Found"
	PONotApplicable POStatus = "Not Applicable"
)

// InvoiceStatus is the state of the linked purchase invoice
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "Pending"
	InvoiceCreated   InvoiceStatus = "Created"
	InvoiceSubmitted InvoiceStatus = "Submitted"
	InvoiceLinked    InvoiceStatus = "Linked"
	InvoiceCancelled InvoiceStatus = "Cancelled"
)
