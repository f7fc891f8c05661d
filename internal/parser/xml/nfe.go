package xml

import (
	"bytes"
	"context"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/nf-reconciler/internal/fiscalkey"
	"github.com/rezonia/nf-reconciler/internal/model"
)

// NFeExtractor parses NF-e and NFC-e product documents, with or without
// the nfeProc authorization wrapper.
type NFeExtractor struct{}

// NewNFeExtractor creates a new NF-e extractor
func NewNFeExtractor() *NFeExtractor {
	return &NFeExtractor{}
}

// Dialect returns the layout name
func (e *NFeExtractor) Dialect() string {
	return "NF-e"
}

// CanParse checks if content is an NF-e layout
func (e *NFeExtractor) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte(NFeNamespace)) ||
		bytes.Contains(content, []byte("<infNFe")) ||
		bytes.Contains(content, []byte(":infNFe"))
}

// Extract parses NF-e XML into a ParsedDocument
func (e *NFeExtractor) Extract(ctx context.Context, content []byte) (*model.ParsedDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewParseError(e.Dialect(), "xml", "failed to parse XML", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewParseError(e.Dialect(), "root", "empty XML document", nil)
	}

	inf := findElement(root, "infNFe", "NFe/infNFe", "nfe:NFe/nfe:infNFe")
	if inf == nil {
		return nil, model.NewParseError(e.Dialect(), "infNFe", "infNFe element not found", nil)
	}

	result := &model.ParsedDocument{
		Type:      model.DocTypeNFe,
		AccessKey: accessKeyFromID(inf.SelectAttrValue("Id", "")),
	}

	ide := findElement(inf, "ide")
	if ide != nil {
		result.Number = childText(ide, "nNF")
		result.Series = childText(ide, "serie")
		result.IssueDate = parseDate(childText(ide, "dhEmi"))
		if result.IssueDate.IsZero() {
			result.IssueDate = parseDate(childText(ide, "dEmi"))
		}
		if childText(ide, "mod") == "65" {
			result.Type = model.DocTypeNFCe
		}
	}
	if result.AccessKey == "" {
		// Some stripped copies drop the Id attribute but keep protNFe
		result.AccessKey = fiscalkey.Clean(findText(root, "protNFe/infProt/chNFe", "chNFe"))
	}

	emit := findElement(inf, "emit")
	result.Issuer = extractNFeParty(emit)
	result.TaxRegime = decodeCRT(childText(emit, "CRT"))

	result.Counterparty = extractNFeParty(findElement(inf, "dest"))

	if tot := findElement(inf, "total/ICMSTot", "ICMSTot"); tot != nil {
		result.Totals = model.Totals{
			Gross:    parseCurrency(childText(tot, "vNF")),
			Products: parseCurrency(childText(tot, "vProd")),
			Freight:  parseCurrency(childText(tot, "vFrete")),
			Discount: parseCurrency(childText(tot, "vDesc")),
			ICMSBase: parseCurrency(childText(tot, "vBC")),
			ICMS:     parseCurrency(childText(tot, "vICMS")),
			IPI:      parseCurrency(childText(tot, "vIPI")),
			PIS:      parseCurrency(childText(tot, "vPIS")),
			COFINS:   parseCurrency(childText(tot, "vCOFINS")),
		}
		result.Totals.Net = result.Totals.Gross
	}

	for seq, det := range childrenByLocalName(inf, "det") {
		result.Items = append(result.Items, extractNFeItem(det, seq+1))
	}

	return result, nil
}

// accessKeyFromID strips the layout prefix from an infNFe/infCte Id
// attribute, e.g. "NFe352601...". Returns "" unless 44 digits remain.
func accessKeyFromID(id string) string {
	key := fiscalkey.Clean(id)
	if len(key) != 44 {
		return ""
	}
	return key
}

func extractNFeParty(elem *etree.Element) model.Party {
	if elem == nil {
		return model.Party{}
	}
	taxID := childText(elem, "CNPJ")
	if taxID == "" {
		taxID = childText(elem, "CPF")
	}
	return model.Party{
		Name:              childText(elem, "xNome"),
		TaxID:             taxID,
		StateRegistration: childText(elem, "IE"),
		State:             childText(elem, "enderEmit/UF", "enderDest/UF", "UF"),
		CityCode:          childText(elem, "enderEmit/cMun", "enderDest/cMun", "cMun"),
		Email:             childText(elem, "email"),
	}
}

func extractNFeItem(det *etree.Element, seq int) model.LineItem {
	item := model.LineItem{Seq: seq}

	if prod := findElement(det, "prod"); prod != nil {
		item.SupplierPartCode = childText(prod, "cProd")
		item.Barcode = normalizeBarcode(childText(prod, "cEAN"))
		item.Description = childText(prod, "xProd")
		item.NCM = childText(prod, "NCM")
		item.CFOP = childText(prod, "CFOP")
		item.Unit = childText(prod, "uCom")
		item.Quantity = parseCurrency(childText(prod, "qCom"))
		item.UnitPrice = parseCurrency(childText(prod, "vUnCom"))
		item.Total = parseCurrency(childText(prod, "vProd"))
	}

	// The ICMS group nests one variant element (ICMS00, ICMS20, ICMSSN102
	// and so on) whose children carry the actual values
	if icms := findElement(det, "imposto/ICMS", "ICMS"); icms != nil {
		for _, variant := range icms.ChildElements() {
			tax := &model.ICMSTax{
				CST:  childText(variant, "CST"),
				Base: parseCurrency(childText(variant, "vBC")),
				Rate: parseCurrency(childText(variant, "pICMS")),
				Due:  parseCurrency(childText(variant, "vICMS")),
			}
			if tax.CST == "" {
				tax.CST = childText(variant, "CSOSN")
			}
			item.ICMS = tax
			break
		}
	}

	return item
}

// normalizeBarcode drops the SEM GTIN placeholder used when a product has
// no registered barcode.
func normalizeBarcode(s string) string {
	if strings.EqualFold(s, "SEM GTIN") {
		return ""
	}
	return s
}

// decodeCRT maps the tax regime code to its description.
func decodeCRT(code string) string {
	switch code {
	case "1":
		return "Simples Nacional"
	case "2":
		return "Simples Nacional - excesso de sublimite"
	case "3":
		return "Regime Normal"
	case "4":
		return "MEI"
	default:
		return ""
	}
}
