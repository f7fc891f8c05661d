package xml

import (
	"bytes"
	"context"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// NFSeNacionalExtractor parses the national standard service invoice
// layout (sped.fazenda.gov.br namespace). Service documents carry no
// product lines; the whole service becomes a single synthetic line item.
type NFSeNacionalExtractor struct{}

// NewNFSeNacionalExtractor creates a new national NFS-e extractor
func NewNFSeNacionalExtractor() *NFSeNacionalExtractor {
	return &NFSeNacionalExtractor{}
}

// Dialect returns the layout name
func (e *NFSeNacionalExtractor) Dialect() string {
	return "NFS-e nacional"
}

// CanParse checks if content is the national NFS-e layout
func (e *NFSeNacionalExtractor) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte(NFSeNamespace)) ||
		(bytes.Contains(content, []byte("<infNFSe")) && bytes.Contains(content, []byte("sped")))
}

// Extract parses national NFS-e XML into a ParsedDocument
func (e *NFSeNacionalExtractor) Extract(ctx context.Context, content []byte) (*model.ParsedDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewParseError(e.Dialect(), "xml", "failed to parse XML", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewParseError(e.Dialect(), "root", "empty XML document", nil)
	}

	inf := findElement(root, "infNFSe", "NFSe/infNFSe")
	if inf == nil {
		return nil, model.NewParseError(e.Dialect(), "infNFSe", "infNFSe element not found", nil)
	}

	result := &model.ParsedDocument{
		Type:   model.DocTypeNFSe,
		Number: childText(inf, "nNFSe"),
	}
	result.IssueDate = parseDate(childText(inf, "dhProc"))

	// The underlying DPS carries the declared service data
	dps := findElement(inf, "DPS/infDPS", "infDPS")
	if dps != nil {
		result.Series = childText(dps, "serie")
		if result.IssueDate.IsZero() {
			result.IssueDate = parseDate(childText(dps, "dhEmi"))
		}
		result.TaxRegime = decodeOpSimpNac(findText(dps, "prest/regTrib/opSimpNac", "opSimpNac"))
	}

	emit := findElement(inf, "emit")
	result.Issuer = model.Party{
		Name:                  childText(emit, "xNome"),
		TaxID:                 childText(emit, "CNPJ"),
		MunicipalRegistration: childText(emit, "IM"),
		Email:                 childText(emit, "email"),
	}

	// The recursive fallback reaches the DPS taker when the processed
	// invoice carries none of its own
	result.Counterparty = extractNacionalParty(findElement(inf, "toma"))

	serv := findElement(inf, "serv")
	if serv == nil && dps != nil {
		serv = findElement(dps, "serv")
	}
	serviceCode := childText(serv, "cServ/cTribNac", "cTribNac")
	description := childText(serv, "cServ/xDescServ", "xDescServ")
	result.ServiceDescription = description

	gross := parseCurrency(findText(inf, "valores/vServPrest/vServ", "vServ"))
	if gross.IsZero() && dps != nil {
		gross = parseCurrency(findText(dps, "vServPrest/vServ", "vServ"))
	}
	net := parseCurrency(findText(inf, "valores/vLiq", "vLiq"))
	if net.IsZero() {
		net = gross
	}
	result.Totals.Gross = gross
	result.Totals.Net = net
	result.Totals.ISSBase = parseCurrency(findText(inf, "valores/vBC", "vBC"))
	result.Totals.ISS = parseCurrency(findText(inf, "valores/vISSQN", "vISSQN"))
	result.Totals.ISSRate = parseCurrency(findText(inf, "valores/pAliqAplic", "pAliqAplic"))

	item := model.LineItem{
		Seq:         1,
		Description: description,
		ServiceCode: serviceCode,
		NBSCode:     childText(serv, "cServ/cNBS", "cNBS"),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   gross,
		Total:       gross,
	}
	if !result.Totals.ISS.IsZero() || !result.Totals.ISSBase.IsZero() {
		item.ISS = &model.ISSTax{
			Base: result.Totals.ISSBase,
			Rate: result.Totals.ISSRate,
			Due:  result.Totals.ISS,
		}
	}
	result.Items = []model.LineItem{item}

	return result, nil
}

func extractNacionalParty(elem *etree.Element) model.Party {
	if elem == nil {
		return model.Party{}
	}
	taxID := childText(elem, "CNPJ")
	if taxID == "" {
		taxID = childText(elem, "CPF")
	}
	return model.Party{
		Name:                  childText(elem, "xNome"),
		TaxID:                 taxID,
		MunicipalRegistration: childText(elem, "IM"),
		Email:                 childText(elem, "email"),
	}
}

// decodeOpSimpNac maps the Simples Nacional option code.
func decodeOpSimpNac(code string) string {
	switch code {
	case "1":
		return "Não optante"
	case "2":
		return "MEI"
	case "3":
		return "Simples Nacional"
	default:
		return ""
	}
}
