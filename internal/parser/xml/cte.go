package xml

import (
	"bytes"
	"context"

	"github.com/beevik/etree"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// CTeExtractor parses CT-e transport documents. A CT-e bills a freight
// service with document-level totals only, so it yields no line items.
type CTeExtractor struct{}

// NewCTeExtractor creates a new CT-e extractor
func NewCTeExtractor() *CTeExtractor {
	return &CTeExtractor{}
}

// Dialect returns the layout name
func (e *CTeExtractor) Dialect() string {
	return "CT-e"
}

// CanParse checks if content is a CT-e layout
func (e *CTeExtractor) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte(CTeNamespace)) ||
		bytes.Contains(content, []byte("<infCte")) ||
		bytes.Contains(content, []byte(":infCte"))
}

// Extract parses CT-e XML into a ParsedDocument
func (e *CTeExtractor) Extract(ctx context.Context, content []byte) (*model.ParsedDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewParseError(e.Dialect(), "xml", "failed to parse XML", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewParseError(e.Dialect(), "root", "empty XML document", nil)
	}

	inf := findElement(root, "infCte", "CTe/infCte")
	if inf == nil {
		return nil, model.NewParseError(e.Dialect(), "infCte", "infCte element not found", nil)
	}

	result := &model.ParsedDocument{
		Type:      model.DocTypeCTe,
		AccessKey: accessKeyFromID(inf.SelectAttrValue("Id", "")),
	}

	ide := findElement(inf, "ide")
	if ide != nil {
		result.Number = childText(ide, "nCT")
		result.Series = childText(ide, "serie")
		result.IssueDate = parseDate(childText(ide, "dhEmi"))
		if childText(ide, "mod") == "67" {
			result.Type = model.DocTypeCTeOS
		}
	}

	result.Issuer = extractCTeParty(findElement(inf, "emit"))

	// The carrier bills whoever takes the freight; fall back to the cargo
	// receiver when no distinct taker is present
	counterparty := extractCTeParty(findElement(inf, "toma"))
	if counterparty.TaxID == "" && counterparty.Name == "" {
		counterparty = extractCTeParty(findElement(inf, "dest"))
	}
	result.Counterparty = counterparty

	if prest := findElement(inf, "vPrest"); prest != nil {
		result.Totals.Gross = parseCurrency(childText(prest, "vTPrest"))
		result.Totals.Net = parseCurrency(childText(prest, "vRec"))
		if result.Totals.Net.IsZero() {
			result.Totals.Net = result.Totals.Gross
		}
	}
	if icms := findElement(inf, "imp/ICMS", "ICMS"); icms != nil {
		for _, variant := range icms.ChildElements() {
			result.Totals.ICMSBase = parseCurrency(childText(variant, "vBC"))
			result.Totals.ICMS = parseCurrency(childText(variant, "vICMS"))
			break
		}
	}

	return result, nil
}

func extractCTeParty(elem *etree.Element) model.Party {
	if elem == nil {
		return model.Party{}
	}
	taxID := childText(elem, "CNPJ")
	if taxID == "" {
		taxID = childText(elem, "CPF")
	}
	name := childText(elem, "xNome")
	if name == "" {
		name = childText(elem, "xFant")
	}
	return model.Party{
		Name:              name,
		TaxID:             taxID,
		StateRegistration: childText(elem, "IE"),
		State:             childText(elem, "enderEmit/UF", "enderToma/UF", "enderDest/UF", "UF"),
	}
}
