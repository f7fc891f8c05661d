package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/store"
	"github.com/rezonia/nf-reconciler/internal/store/memory"
)

const nfeSample = `<?xml version="1.0" encoding="UTF-8"?>
<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe Id="NFe35260111222333000181550010000123451123456785" versao="4.00">
    <ide>
      <mod>55</mod>
      <serie>1</serie>
      <nNF>12345</nNF>
      <dhEmi>2026-01-15T10:30:00-03:00</dhEmi>
    </ide>
    <emit>
      <CNPJ>11222333000181</CNPJ>
      <xNome>Industria de Fixadores Ltda</xNome>
      <enderEmit><UF>SP</UF></enderEmit>
    </emit>
    <dest>
      <CNPJ>45678901000175</CNPJ>
      <xNome>Comercial Compradora SA</xNome>
    </dest>
    <det nItem="1">
      <prod>
        <cProd>PAR-M6</cProd>
        <xProd>Parafuso M6 inox</xProd>
        <NCM>73181500</NCM>
        <uCom>UN</uCom>
        <qCom>100.0000</qCom>
        <vUnCom>10.00</vUnCom>
        <vProd>1000.00</vProd>
      </prod>
    </det>
    <total>
      <ICMSTot>
        <vProd>1000.00</vProd>
        <vNF>1000.00</vNF>
      </ICMSTot>
    </total>
  </infNFe>
</NFe>`

const githubInvoiceText = `GitHub, Inc.
88 Colin P Kelly Jr St, San Francisco, CA
Invoice #GH-2026-000123
Invoice Date: January 15, 2026
GitHub Team subscription for organization acme
Total: $420.00 USD`

func newIngestor(t *testing.T) (*Ingestor, *store.Store) {
	t.Helper()
	st := memory.New()
	return NewIngestor(st.Records, zap.NewNop()), st
}

func gzipBase64(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return []byte(base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
		wantErr bool
	}{
		{name: "plain xml", payload: []byte("<NFe/>"), want: "<NFe/>"},
		{name: "plain base64", payload: []byte(base64.StdEncoding.EncodeToString([]byte("<NFe/>"))), want: "<NFe/>"},
		{name: "gzip base64", payload: gzipBase64(t, "<NFe/>"), want: "<NFe/>"},
		{name: "empty", payload: []byte("  "), wantErr: true},
		{name: "garbage", payload: []byte("not base64 at all!!"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestIngestFeedCreatesRecord(t *testing.T) {
	in, st := newIngestor(t)
	ctx := context.Background()

	rec, err := in.IngestFeed(ctx, RawDocument{
		NSU:     "000000000012345",
		Kind:    "nfe",
		Payload: gzipBase64(t, nfeSample),
	})
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeNFe, rec.Type)
	assert.Equal(t, "35260111222333000181550010000123451123456785", rec.AccessKey)
	assert.Equal(t, model.StatusParsed, rec.ProcessingStatus)
	assert.True(t, rec.Origin.SEFAZ)
	assert.Equal(t, "000000000012345", rec.Origin.NSU)
	assert.True(t, rec.Totals.Gross.Equal(decimal.NewFromInt(1000)))
	require.Len(t, rec.Items, 1)

	stored, err := st.Records.GetByAccessKey(ctx, rec.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
}

func TestIngestSameKeyTwiceMergesOrigins(t *testing.T) {
	in, st := newIngestor(t)
	ctx := context.Background()

	first, err := in.IngestFeed(ctx, RawDocument{
		NSU:     "42",
		Payload: []byte(nfeSample),
	})
	require.NoError(t, err)

	second, err := in.IngestXML(ctx, []byte(nfeSample), SourceEmail, "msg-789")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Origin.SEFAZ)
	assert.True(t, second.Origin.Email)
	assert.Equal(t, "42", second.Origin.NSU)
	assert.Equal(t, "msg-789", second.Origin.EmailReference)

	all, err := st.Records.List(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngestInvoiceText(t *testing.T) {
	in, _ := newIngestor(t)
	ctx := context.Background()

	rec, err := in.IngestInvoiceText(ctx, githubInvoiceText, SourceEmail, "msg-1")
	require.NoError(t, err)

	assert.Equal(t, model.DocTypeInvoice, rec.Type)
	assert.Equal(t, "GitHub, Inc.", rec.VendorName)
	assert.Equal(t, "GH-2026-000123", rec.InvoiceNumber)
	assert.True(t, rec.Origin.Email)

	// The same invoice from another channel folds into one record
	again, err := in.IngestInvoiceText(ctx, githubInvoiceText, SourceManual, "")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)
	assert.True(t, again.Origin.Manual)
}

func TestIngestInvoiceTextWithoutIdentity(t *testing.T) {
	in, st := newIngestor(t)
	ctx := context.Background()

	// An amount alone extracts, but without a vendor or invoice number the
	// record has no identity to deduplicate on
	_, err := in.IngestInvoiceText(ctx, "payment received\ntotal: $123.45\nthank you", SourceEmail, "msg-2")

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	recs, err := st.Records.List(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestIngestXMLRejectsGarbage(t *testing.T) {
	in, _ := newIngestor(t)
	_, err := in.IngestXML(context.Background(), []byte("<unrelated/>"), SourceManual, "")
	var parseErr *model.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
