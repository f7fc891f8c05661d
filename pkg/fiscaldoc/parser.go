package fiscaldoc

import (
	"context"
	"fmt"

	"github.com/rezonia/nf-reconciler/internal/parser/invoicetext"
	"github.com/rezonia/nf-reconciler/internal/parser/pdf"
	xmlparser "github.com/rezonia/nf-reconciler/internal/parser/xml"
)

// Parser parses fiscal documents from XML, PDF and plain invoice text
type Parser struct {
	registry *xmlparser.Registry
	pdf      *pdf.Extractor
	text     *invoicetext.Parser
}

// NewParser creates a parser with every known dialect registered
func NewParser() *Parser {
	return &Parser{
		registry: xmlparser.NewRegistry(),
		pdf:      pdf.NewExtractor(),
		text:     invoicetext.NewParser(),
	}
}

// ParseXML parses fiscal XML content, detecting the dialect
func (p *Parser) ParseXML(ctx context.Context, content []byte) (*ParsedDocument, error) {
	return p.registry.Parse(ctx, content)
}

// ParsePDF recovers a document from PDF bytes: embedded XML first, then
// DANFE text scraping, then foreign vendor invoice text
func (p *Parser) ParsePDF(ctx context.Context, data []byte) (*ParsedDocument, error) {
	for _, payload := range p.pdf.XMLPayloads(data) {
		if doc, err := p.registry.Parse(ctx, payload); err == nil {
			return doc, nil
		}
	}

	text, err := p.pdf.Text(data)
	if err != nil {
		return nil, err
	}

	if invoicetext.IsInternationalInvoice(text) {
		return p.text.Extract(text)
	}

	fiscal := pdf.ExtractFiscalData(text)
	if fiscal == nil {
		return nil, fmt.Errorf("no fiscal document found in pdf")
	}
	return &ParsedDocument{
		Type:      fiscal.Type,
		AccessKey: fiscal.AccessKey,
		Number:    fiscal.Number,
		IssueDate: fiscal.IssueDate,
		Issuer:    Party{Name: fiscal.IssuerName, TaxID: fiscal.IssuerCNPJ},
		Totals:    Totals{Gross: fiscal.Total},
	}, nil
}

// ParseInvoiceText parses foreign vendor invoice text
func (p *Parser) ParseInvoiceText(text string) (*ParsedDocument, error) {
	return p.text.Extract(text)
}

// SignatureInfo reads the signing certificate summary out of fiscal XML
func (p *Parser) SignatureInfo(content []byte) xmlparser.SignatureInfo {
	return xmlparser.ExtractSignatureInfo(content)
}
