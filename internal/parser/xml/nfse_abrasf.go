package xml

import (
	"bytes"
	"context"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// ABRASFExtractor parses municipal service invoices in the ABRASF layout
// family. Municipal deployments diverge in wrappers and prefixes, so the
// lookups lean heavily on the local-name fallback.
type ABRASFExtractor struct{}

// NewABRASFExtractor creates a new ABRASF extractor
func NewABRASFExtractor() *ABRASFExtractor {
	return &ABRASFExtractor{}
}

// Dialect returns the layout name
func (e *ABRASFExtractor) Dialect() string {
	return "NFS-e ABRASF"
}

// CanParse checks if content looks like an ABRASF municipal layout
func (e *ABRASFExtractor) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte("abrasf.org.br")) ||
		bytes.Contains(content, []byte("<CompNfse")) ||
		bytes.Contains(content, []byte("<InfNfse")) ||
		bytes.Contains(content, []byte("<Nfse"))
}

// Extract parses ABRASF XML into a ParsedDocument
func (e *ABRASFExtractor) Extract(ctx context.Context, content []byte) (*model.ParsedDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewParseError(e.Dialect(), "xml", "failed to parse XML", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewParseError(e.Dialect(), "root", "empty XML document", nil)
	}

	inf := findElement(root, "InfNfse", "Nfse/InfNfse", "CompNfse/Nfse/InfNfse")
	if inf == nil {
		return nil, model.NewParseError(e.Dialect(), "InfNfse", "InfNfse element not found", nil)
	}

	result := &model.ParsedDocument{
		Type:      model.DocTypeNFSe,
		Number:    childText(inf, "Numero"),
		IssueDate: parseDate(childText(inf, "DataEmissao")),
	}

	result.Issuer = extractABRASFParty(findElement(inf, "PrestadorServico", "Prestador"))
	result.Counterparty = extractABRASFParty(findElement(inf, "TomadorServico", "Tomador"))

	serv := findElement(inf, "Servico")
	description := childText(serv, "Discriminacao")
	serviceCode := childText(serv, "ItemListaServico")
	result.ServiceDescription = description

	valores := findElement(serv, "Valores")
	if valores == nil {
		valores = findElement(inf, "Valores")
	}
	gross := parseCurrency(childText(valores, "ValorServicos"))
	net := parseCurrency(childText(valores, "ValorLiquidoNfse"))
	if net.IsZero() {
		net = gross
	}
	result.Totals = model.Totals{
		Gross:   gross,
		Net:     net,
		ISSBase: parseCurrency(childText(valores, "BaseCalculo")),
		ISS:     parseCurrency(childText(valores, "ValorIss")),
		ISSRate: parseCurrency(childText(valores, "Aliquota")),
		PIS:     parseCurrency(childText(valores, "ValorPis")),
		COFINS:  parseCurrency(childText(valores, "ValorCofins")),
	}
	if result.Totals.ISSBase.IsZero() {
		result.Totals.ISSBase = gross
	}

	item := model.LineItem{
		Seq:           1,
		Description:   description,
		ServiceCode:   serviceCode,
		MunicipalCode: childText(serv, "CodigoTributacaoMunicipio"),
		Quantity:      decimal.NewFromInt(1),
		UnitPrice:     gross,
		Total:         gross,
	}
	if !result.Totals.ISS.IsZero() {
		item.ISS = &model.ISSTax{
			Base: result.Totals.ISSBase,
			Rate: result.Totals.ISSRate,
			Due:  result.Totals.ISS,
		}
	}
	result.Items = []model.LineItem{item}

	return result, nil
}

func extractABRASFParty(elem *etree.Element) model.Party {
	if elem == nil {
		return model.Party{}
	}
	taxID := findText(elem, "IdentificacaoPrestador/Cnpj", "IdentificacaoTomador/CpfCnpj/Cnpj", "Cnpj")
	if taxID == "" {
		taxID = findText(elem, "IdentificacaoTomador/CpfCnpj/Cpf", "Cpf")
	}
	return model.Party{
		Name:                  findText(elem, "RazaoSocial"),
		TaxID:                 taxID,
		MunicipalRegistration: findText(elem, "InscricaoMunicipal"),
		CityCode:              findText(elem, "Endereco/CodigoMunicipio", "CodigoMunicipio"),
		Email:                 findText(elem, "Contato/Email", "Email"),
	}
}
