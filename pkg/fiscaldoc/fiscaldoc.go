// Package fiscaldoc provides a public API for parsing Brazilian fiscal
// documents and foreign vendor invoices.
//
// Example usage:
//
//	parser := fiscaldoc.NewParser()
//	doc, err := parser.ParseXML(ctx, xmlBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.AccessKey, doc.Totals.Gross)
package fiscaldoc

import "github.com/rezonia/nf-reconciler/internal/model"

// Re-export core types for public API
type (
	ParsedDocument = model.ParsedDocument
	LineItem       = model.LineItem
	Party          = model.Party
	Totals         = model.Totals
	ICMSTax        = model.ICMSTax
	ISSTax         = model.ISSTax
	DocumentType   = model.DocumentType
)

// Re-export document types
const (
	DocTypeNFe     = model.DocTypeNFe
	DocTypeNFCe    = model.DocTypeNFCe
	DocTypeCTe     = model.DocTypeCTe
	DocTypeCTeOS   = model.DocTypeCTeOS
	DocTypeMDFe    = model.DocTypeMDFe
	DocTypeNFSe    = model.DocTypeNFSe
	DocTypeInvoice = model.DocTypeInvoice
	DocTypeUnknown = model.DocTypeUnknown
)

// Re-export error types
type (
	ParseError      = model.ParseError
	ValidationError = model.ValidationError
)
