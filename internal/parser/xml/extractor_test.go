package xml

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nf-reconciler/internal/model"
)

const nfeSample = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35260111222333000181550010000123451123456785" versao="4.00">
      <ide>
        <cUF>35</cUF>
        <mod>55</mod>
        <serie>1</serie>
        <nNF>12345</nNF>
        <dhEmi>2026-01-15T10:30:00-03:00</dhEmi>
      </ide>
      <emit>
        <CNPJ>11222333000181</CNPJ>
        <xNome>Industria de Parafusos Ltda</xNome>
        <IE>123456789</IE>
        <CRT>3</CRT>
        <enderEmit>
          <cMun>3550308</cMun>
          <UF>SP</UF>
        </enderEmit>
      </emit>
      <dest>
        <CNPJ>45678901000175</CNPJ>
        <xNome>Compradora SA</xNome>
        <enderDest>
          <cMun>3106200</cMun>
          <UF>MG</UF>
        </enderDest>
      </dest>
      <det nItem="1">
        <prod>
          <cProd>PAR-M6</cProd>
          <cEAN>SEM GTIN</cEAN>
          <xProd>Parafuso M6 inox</xProd>
          <NCM>73181500</NCM>
          <CFOP>5102</CFOP>
          <uCom>UN</uCom>
          <qCom>1000.0000</qCom>
          <vUnCom>1.5000</vUnCom>
          <vProd>1500.00</vProd>
        </prod>
        <imposto>
          <ICMS>
            <ICMS00>
              <CST>00</CST>
              <vBC>1500.00</vBC>
              <pICMS>18.00</pICMS>
              <vICMS>270.00</vICMS>
            </ICMS00>
          </ICMS>
        </imposto>
      </det>
      <det nItem="2">
        <prod>
          <cProd>PRC-10</cProd>
          <cEAN>7891234567895</cEAN>
          <xProd>Porca sextavada 10mm</xProd>
          <NCM>73181600</NCM>
          <CFOP>5102</CFOP>
          <uCom>CX</uCom>
          <qCom>50.0000</qCom>
          <vUnCom>6.0000</vUnCom>
          <vProd>300.00</vProd>
        </prod>
      </det>
      <total>
        <ICMSTot>
          <vBC>1800.00</vBC>
          <vICMS>324.00</vICMS>
          <vProd>1800.00</vProd>
          <vFrete>50.00</vFrete>
          <vDesc>0.00</vDesc>
          <vIPI>90.00</vIPI>
          <vPIS>29.70</vPIS>
          <vCOFINS>136.80</vCOFINS>
          <vNF>1940.00</vNF>
        </ICMSTot>
      </total>
    </infNFe>
  </NFe>
</nfeProc>`

// Same document with an explicit namespace prefix on every element.
const nfePrefixedSample = `<?xml version="1.0" encoding="UTF-8"?>
<nfe:nfeProc xmlns:nfe="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <nfe:NFe>
    <nfe:infNFe Id="NFe35260111222333000181550010000123451123456785" versao="4.00">
      <nfe:ide>
        <nfe:cUF>35</nfe:cUF>
        <nfe:mod>55</nfe:mod>
        <nfe:serie>1</nfe:serie>
        <nfe:nNF>12345</nfe:nNF>
        <nfe:dhEmi>2026-01-15T10:30:00-03:00</nfe:dhEmi>
      </nfe:ide>
      <nfe:emit>
        <nfe:CNPJ>11222333000181</nfe:CNPJ>
        <nfe:xNome>Industria de Parafusos Ltda</nfe:xNome>
        <nfe:IE>123456789</nfe:IE>
        <nfe:CRT>3</nfe:CRT>
        <nfe:enderEmit>
          <nfe:cMun>3550308</nfe:cMun>
          <nfe:UF>SP</nfe:UF>
        </nfe:enderEmit>
      </nfe:emit>
      <nfe:dest>
        <nfe:CNPJ>45678901000175</nfe:CNPJ>
        <nfe:xNome>Compradora SA</nfe:xNome>
        <nfe:enderDest>
          <nfe:cMun>3106200</nfe:cMun>
          <nfe:UF>MG</nfe:UF>
        </nfe:enderDest>
      </nfe:dest>
      <nfe:det nItem="1">
        <nfe:prod>
          <nfe:cProd>PAR-M6</nfe:cProd>
          <nfe:cEAN>SEM GTIN</nfe:cEAN>
          <nfe:xProd>Parafuso M6 inox</nfe:xProd>
          <nfe:NCM>73181500</nfe:NCM>
          <nfe:CFOP>5102</nfe:CFOP>
          <nfe:uCom>UN</nfe:uCom>
          <nfe:qCom>1000.0000</nfe:qCom>
          <nfe:vUnCom>1.5000</nfe:vUnCom>
          <nfe:vProd>1500.00</nfe:vProd>
        </nfe:prod>
        <nfe:imposto>
          <nfe:ICMS>
            <nfe:ICMS00>
              <nfe:CST>00</nfe:CST>
              <nfe:vBC>1500.00</nfe:vBC>
              <nfe:pICMS>18.00</nfe:pICMS>
              <nfe:vICMS>270.00</nfe:vICMS>
            </nfe:ICMS00>
          </nfe:ICMS>
        </nfe:imposto>
      </nfe:det>
      <nfe:det nItem="2">
        <nfe:prod>
          <nfe:cProd>PRC-10</nfe:cProd>
          <nfe:cEAN>7891234567895</nfe:cEAN>
          <nfe:xProd>Porca sextavada 10mm</nfe:xProd>
          <nfe:NCM>73181600</nfe:NCM>
          <nfe:CFOP>5102</nfe:CFOP>
          <nfe:uCom>CX</nfe:uCom>
          <nfe:qCom>50.0000</nfe:qCom>
          <nfe:vUnCom>6.0000</nfe:vUnCom>
          <nfe:vProd>300.00</nfe:vProd>
        </nfe:prod>
      </nfe:det>
      <nfe:total>
        <nfe:ICMSTot>
          <nfe:vBC>1800.00</nfe:vBC>
          <nfe:vICMS>324.00</nfe:vICMS>
          <nfe:vProd>1800.00</nfe:vProd>
          <nfe:vFrete>50.00</nfe:vFrete>
          <nfe:vDesc>0.00</nfe:vDesc>
          <nfe:vIPI>90.00</nfe:vIPI>
          <nfe:vPIS>29.70</nfe:vPIS>
          <nfe:vCOFINS>136.80</nfe:vCOFINS>
          <nfe:vNF>1940.00</nfe:vNF>
        </nfe:ICMSTot>
      </nfe:total>
    </nfe:infNFe>
  </nfe:NFe>
</nfe:nfeProc>`

const cteSample = `<?xml version="1.0" encoding="UTF-8"?>
<cteProc xmlns="http://www.portalfiscal.inf.br/cte" versao="4.00">
  <CTe>
    <infCte Id="CTe41251211222333000181570010000009871876543218" versao="4.00">
      <ide>
        <cUF>41</cUF>
        <mod>57</mod>
        <serie>1</serie>
        <nCT>987</nCT>
        <dhEmi>2025-12-03T08:00:00-03:00</dhEmi>
      </ide>
      <emit>
        <CNPJ>11222333000181</CNPJ>
        <xNome>Transportadora Rapida Ltda</xNome>
        <IE>987654321</IE>
      </emit>
      <dest>
        <CNPJ>45678901000175</CNPJ>
        <xNome>Compradora SA</xNome>
      </dest>
      <vPrest>
        <vTPrest>850.00</vTPrest>
        <vRec>850.00</vRec>
      </vPrest>
      <imp>
        <ICMS>
          <ICMS00>
            <vBC>850.00</vBC>
            <vICMS>102.00</vICMS>
          </ICMS00>
        </ICMS>
      </imp>
    </infCte>
  </CTe>
</cteProc>`

const nfseNacionalSample = `<?xml version="1.0" encoding="UTF-8"?>
<NFSe xmlns="http://www.sped.fazenda.gov.br/nfse" versao="1.00">
  <infNFSe Id="NFS123">
    <nNFSe>742</nNFSe>
    <dhProc>2026-02-10T14:00:00-03:00</dhProc>
    <emit>
      <CNPJ>11222333000181</CNPJ>
      <xNome>Consultoria Tributaria ME</xNome>
      <IM>98765</IM>
    </emit>
    <valores>
      <vServPrest>
        <vServ>16800.00</vServ>
      </vServPrest>
      <vBC>16800.00</vBC>
      <pAliqAplic>2.00</pAliqAplic>
      <vISSQN>336.00</vISSQN>
      <vLiq>16464.00</vLiq>
    </valores>
    <DPS>
      <infDPS>
        <serie>1</serie>
        <dhEmi>2026-02-09T18:00:00-03:00</dhEmi>
        <prest>
          <regTrib>
            <opSimpNac>3</opSimpNac>
          </regTrib>
        </prest>
        <toma>
          <CNPJ>45678901000175</CNPJ>
          <xNome>Compradora SA</xNome>
        </toma>
        <serv>
          <cServ>
            <cTribNac>010701</cTribNac>
            <xDescServ>Consultoria fiscal mensal</xDescServ>
          </cServ>
        </serv>
      </infDPS>
    </DPS>
  </infNFSe>
</NFSe>`

const nfseABRASFSample = `<?xml version="1.0" encoding="UTF-8"?>
<CompNfse xmlns="http://www.abrasf.org.br/nfse.xsd">
  <Nfse>
    <InfNfse>
      <Numero>556</Numero>
      <DataEmissao>2026-03-01T09:15:00</DataEmissao>
      <PrestadorServico>
        <IdentificacaoPrestador>
          <Cnpj>11222333000181</Cnpj>
          <InscricaoMunicipal>12345</InscricaoMunicipal>
        </IdentificacaoPrestador>
        <RazaoSocial>Servicos de TI Ltda</RazaoSocial>
      </PrestadorServico>
      <TomadorServico>
        <IdentificacaoTomador>
          <CpfCnpj>
            <Cnpj>45678901000175</Cnpj>
          </CpfCnpj>
        </IdentificacaoTomador>
        <RazaoSocial>Compradora SA</RazaoSocial>
      </TomadorServico>
      <Servico>
        <Valores>
          <ValorServicos>5.000,00</ValorServicos>
          <ValorIss>100,00</ValorIss>
          <BaseCalculo>5.000,00</BaseCalculo>
          <Aliquota>2,00</Aliquota>
          <ValorLiquidoNfse>4.900,00</ValorLiquidoNfse>
        </Valores>
        <ItemListaServico>1.07</ItemListaServico>
        <CodigoTributacaoMunicipio>620910000</CodigoTributacaoMunicipio>
        <Discriminacao>Manutencao de sistemas</Discriminacao>
      </Servico>
    </InfNfse>
  </Nfse>
</CompNfse>`

func TestRegistryDetect(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name    string
		content string
		dialect string
	}{
		{"nfe", nfeSample, "NF-e"},
		{"nfe prefixed", nfePrefixedSample, "NF-e"},
		{"cte", cteSample, "CT-e"},
		{"nfse nacional", nfseNacionalSample, "NFS-e nacional"},
		{"nfse abrasf", nfseABRASFSample, "NFS-e ABRASF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, err := registry.Detect([]byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, extractor.Dialect())
		})
	}
}

func TestRegistryDetectUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Detect([]byte("<order><id>1</id></order>"))
	require.Error(t, err)

	var parseErr *model.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "unknown", parseErr.Dialect)
}

func TestNFeExtract(t *testing.T) {
	registry := NewRegistry()

	doc, err := registry.Parse(context.Background(), []byte(nfeSample))
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeNFe, doc.Type)
	assert.Equal(t, "35260111222333000181550010000123451123456785", doc.AccessKey)
	assert.Equal(t, "12345", doc.Number)
	assert.Equal(t, "1", doc.Series)
	assert.Equal(t, 2026, doc.IssueDate.Year())
	assert.Equal(t, time.January, doc.IssueDate.Month())

	assert.Equal(t, "Industria de Parafusos Ltda", doc.Issuer.Name)
	assert.Equal(t, "11222333000181", doc.Issuer.TaxID)
	assert.Equal(t, "SP", doc.Issuer.State)
	assert.Equal(t, "Regime Normal", doc.TaxRegime)
	assert.Equal(t, "45678901000175", doc.Counterparty.TaxID)
	assert.Equal(t, "MG", doc.Counterparty.State)

	assert.True(t, doc.Totals.Gross.Equal(decimal.RequireFromString("1940.00")), "gross: %s", doc.Totals.Gross)
	assert.True(t, doc.Totals.Products.Equal(decimal.RequireFromString("1800.00")))
	assert.True(t, doc.Totals.Freight.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, doc.Totals.ICMS.Equal(decimal.RequireFromString("324.00")))
	assert.True(t, doc.Totals.IPI.Equal(decimal.RequireFromString("90.00")))

	require.Len(t, doc.Items, 2)

	first := doc.Items[0]
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, "PAR-M6", first.SupplierPartCode)
	assert.Equal(t, "", first.Barcode)
	assert.Equal(t, "Parafuso M6 inox", first.Description)
	assert.Equal(t, "73181500", first.NCM)
	assert.Equal(t, "5102", first.CFOP)
	assert.Equal(t, "UN", first.Unit)
	assert.True(t, first.Quantity.Equal(decimal.RequireFromString("1000")))
	assert.True(t, first.Total.Equal(decimal.RequireFromString("1500.00")))
	require.NotNil(t, first.ICMS)
	assert.Equal(t, "00", first.ICMS.CST)
	assert.True(t, first.ICMS.Rate.Equal(decimal.RequireFromString("18.00")))

	second := doc.Items[1]
	assert.Equal(t, 2, second.Seq)
	assert.Equal(t, "7891234567895", second.Barcode)
	assert.Nil(t, second.ICMS)

	assert.Equal(t, []byte(nfeSample), doc.Raw)
}

// A namespace prefix must not change the extraction result.
func TestNFeExtractNamespacePrefixEquivalence(t *testing.T) {
	registry := NewRegistry()

	plain, err := registry.Parse(context.Background(), []byte(nfeSample))
	require.NoError(t, err)
	prefixed, err := registry.Parse(context.Background(), []byte(nfePrefixedSample))
	require.NoError(t, err)

	plain.Raw = nil
	prefixed.Raw = nil
	assert.Equal(t, plain, prefixed)
}

func TestCTeExtract(t *testing.T) {
	registry := NewRegistry()

	doc, err := registry.Parse(context.Background(), []byte(cteSample))
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeCTe, doc.Type)
	assert.Equal(t, "41251211222333000181570010000009871876543218", doc.AccessKey)
	assert.Equal(t, "987", doc.Number)
	assert.Equal(t, "Transportadora Rapida Ltda", doc.Issuer.Name)
	assert.Equal(t, "45678901000175", doc.Counterparty.TaxID)
	assert.True(t, doc.Totals.Gross.Equal(decimal.RequireFromString("850.00")))
	assert.True(t, doc.Totals.ICMS.Equal(decimal.RequireFromString("102.00")))
	assert.Empty(t, doc.Items)
}

func TestNFSeNacionalExtract(t *testing.T) {
	registry := NewRegistry()

	doc, err := registry.Parse(context.Background(), []byte(nfseNacionalSample))
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeNFSe, doc.Type)
	assert.Equal(t, "742", doc.Number)
	assert.Equal(t, "1", doc.Series)
	assert.Equal(t, "Consultoria Tributaria ME", doc.Issuer.Name)
	assert.Equal(t, "98765", doc.Issuer.MunicipalRegistration)
	assert.Equal(t, "45678901000175", doc.Counterparty.TaxID)
	assert.Equal(t, "Simples Nacional", doc.TaxRegime)
	assert.Equal(t, "Consultoria fiscal mensal", doc.ServiceDescription)

	assert.True(t, doc.Totals.Gross.Equal(decimal.RequireFromString("16800.00")))
	assert.True(t, doc.Totals.Net.Equal(decimal.RequireFromString("16464.00")))
	assert.True(t, doc.Totals.ISS.Equal(decimal.RequireFromString("336.00")))

	require.Len(t, doc.Items, 1)
	item := doc.Items[0]
	assert.Equal(t, "010701", item.ServiceCode)
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, item.Total.Equal(decimal.RequireFromString("16800.00")))
	require.NotNil(t, item.ISS)
	assert.True(t, item.ISS.Rate.Equal(decimal.RequireFromString("2.00")))
}

func TestABRASFExtractBrazilianNumberFormat(t *testing.T) {
	registry := NewRegistry()

	doc, err := registry.Parse(context.Background(), []byte(nfseABRASFSample))
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeNFSe, doc.Type)
	assert.Equal(t, "556", doc.Number)
	assert.Empty(t, doc.AccessKey)
	assert.Equal(t, "Servicos de TI Ltda", doc.Issuer.Name)
	assert.Equal(t, "11222333000181", doc.Issuer.TaxID)
	assert.Equal(t, "12345", doc.Issuer.MunicipalRegistration)
	assert.Equal(t, "45678901000175", doc.Counterparty.TaxID)
	assert.Equal(t, "Compradora SA", doc.Counterparty.Name)

	assert.True(t, doc.Totals.Gross.Equal(decimal.RequireFromString("5000.00")), "gross: %s", doc.Totals.Gross)
	assert.True(t, doc.Totals.Net.Equal(decimal.RequireFromString("4900.00")))
	assert.True(t, doc.Totals.ISS.Equal(decimal.RequireFromString("100.00")))

	require.Len(t, doc.Items, 1)
	assert.Equal(t, "1.07", doc.Items[0].ServiceCode)
	assert.Equal(t, "620910000", doc.Items[0].MunicipalCode)
}

func TestABRASFExtractWithoutServico(t *testing.T) {
	registry := NewRegistry()

	sparse := `<CompNfse xmlns="http://www.abrasf.org.br/nfse.xsd">
  <Nfse>
    <InfNfse>
      <Numero>789</Numero>
      <DataEmissao>2026-02-10</DataEmissao>
    </InfNfse>
  </Nfse>
</CompNfse>`

	doc, err := registry.Parse(context.Background(), []byte(sparse))
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeNFSe, doc.Type)
	assert.Equal(t, "789", doc.Number)
	assert.Empty(t, doc.ServiceDescription)
	assert.True(t, doc.Totals.Gross.IsZero())
	require.Len(t, doc.Items, 1)
	assert.True(t, doc.Items[0].Total.IsZero())
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dot decimal", "16800.00", "16800.00"},
		{"brazilian with thousands", "16.800,00", "16800.00"},
		{"brazilian no thousands", "100,50", "100.50"},
		{"currency symbol", "R$ 1.234,56", "1234.56"},
		{"plain integer", "42", "42"},
		{"empty", "", "0"},
		{"garbage", "abc", "0"},
		{"whitespace", "  950.10  ", "950.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCurrency(tt.input)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)),
				"parseCurrency(%q) = %s, want %s", tt.input, got, tt.expected)
		})
	}
}

func TestParseDate(t *testing.T) {
	withOffset := parseDate("2026-01-15T10:30:00-03:00")
	assert.Equal(t, 2026, withOffset.Year())
	_, offset := withOffset.Zone()
	assert.Equal(t, -3*60*60, offset)

	bare := parseDate("2025-07-01")
	assert.Equal(t, time.July, bare.Month())

	assert.True(t, parseDate("").IsZero())
	assert.True(t, parseDate("15 de janeiro").IsZero())
}

func BenchmarkNFeExtract(b *testing.B) {
	registry := NewRegistry()
	content := []byte(nfeSample)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = registry.Parse(ctx, content)
	}
}
