// Package ingest turns raw document payloads from any channel into
// persisted fiscal records and merges duplicates across channels.
package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/fiscalkey"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/parser/invoicetext"
	"github.com/rezonia/nf-reconciler/internal/parser/pdf"
	xmlparser "github.com/rezonia/nf-reconciler/internal/parser/xml"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// Source identifies the channel a document arrived through
type Source string

const (
	SourceSEFAZ  Source = "sefaz"
	SourceEmail  Source = "email"
	SourceManual Source = "manual"
)

// RawDocument is one entry from the fiscal authority's distribution feed
type RawDocument struct {
	AccessKey string `json:"access_key"`
	NSU       string `json:"nsu"`
	Kind      string `json:"kind"`
	Payload   []byte `json:"payload"`
}

// ErrUnreadablePDF is returned when a PDF yields neither an embedded XML
// nor scrapable fiscal or invoice text.
var ErrUnreadablePDF = errors.New("no fiscal document could be recovered from pdf")

// Ingestor parses raw payloads and upserts fiscal records
type Ingestor struct {
	records  store.FiscalRecords
	registry *xmlparser.Registry
	pdf      *pdf.Extractor
	text     *invoicetext.Parser
	log      *zap.Logger

	now func() time.Time
}

// NewIngestor creates an ingestor over the given record store
func NewIngestor(records store.FiscalRecords, log *zap.Logger) *Ingestor {
	return &Ingestor{
		records:  records,
		registry: xmlparser.NewRegistry(),
		pdf:      pdf.NewExtractor(),
		text:     invoicetext.NewParser(),
		log:      log,
		now:      time.Now,
	}
}

// DecodePayload normalizes a distribution feed payload to XML bytes.
// Feeds deliver base64 of gzipped XML, base64 of plain XML, or the XML
// itself.
func DecodePayload(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '<' {
		return trimmed, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("payload is neither xml nor base64: %w", err)
	}

	if len(decoded) > 2 && decoded[0] == 0x1f && decoded[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(decoded))
		if err != nil {
			return nil, fmt.Errorf("gzip payload: %w", err)
		}
		defer zr.Close()
		inflated, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip payload: %w", err)
		}
		return inflated, nil
	}
	return decoded, nil
}

// IngestFeed decodes and ingests one distribution feed entry
func (in *Ingestor) IngestFeed(ctx context.Context, raw RawDocument) (*model.FiscalRecord, error) {
	content, err := DecodePayload(raw.Payload)
	if err != nil {
		return nil, err
	}
	return in.ingestXML(ctx, content, SourceSEFAZ, raw.NSU)
}

// IngestXML parses XML content and upserts the record
func (in *Ingestor) IngestXML(ctx context.Context, content []byte, src Source, ref string) (*model.FiscalRecord, error) {
	return in.ingestXML(ctx, content, src, ref)
}

// IngestPDF recovers a document from a PDF attachment. Embedded XML wins;
// otherwise the page text is scraped as a DANFE print or, for foreign
// vendors, as invoice text.
func (in *Ingestor) IngestPDF(ctx context.Context, data []byte, src Source, ref string) (*model.FiscalRecord, error) {
	for _, payload := range in.pdf.XMLPayloads(data) {
		rec, err := in.ingestXML(ctx, payload, src, ref)
		if err == nil {
			return rec, nil
		}
		in.log.Debug("embedded xml rejected", zap.Error(err))
	}

	text, err := in.pdf.Text(data)
	if err != nil {
		return nil, fmt.Errorf("pdf text extraction: %w", err)
	}

	if invoicetext.IsInternationalInvoice(text) {
		doc, err := in.text.Extract(text)
		if err != nil {
			return nil, err
		}
		return in.upsertForeign(ctx, doc, src, ref)
	}

	if fiscal := pdf.ExtractFiscalData(text); fiscal != nil {
		return in.upsertFromPrint(ctx, fiscal, src, ref)
	}
	return nil, ErrUnreadablePDF
}

// IngestInvoiceText ingests plain foreign vendor invoice text
func (in *Ingestor) IngestInvoiceText(ctx context.Context, text string, src Source, ref string) (*model.FiscalRecord, error) {
	doc, err := in.text.Extract(text)
	if err != nil {
		return nil, err
	}
	return in.upsertForeign(ctx, doc, src, ref)
}

func (in *Ingestor) ingestXML(ctx context.Context, content []byte, src Source, ref string) (*model.FiscalRecord, error) {
	doc, err := in.registry.Parse(ctx, content)
	if err != nil {
		return nil, err
	}

	rec := in.recordFromParsed(doc)
	applyOrigin(&rec.Origin, src, ref)

	if rec.AccessKey != "" {
		existing, err := in.records.GetByAccessKey(ctx, rec.AccessKey)
		if err == nil {
			return in.merge(ctx, existing, rec)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if !fiscalkey.Validate(rec.AccessKey) {
			in.log.Warn("access key failed check digit validation",
				zap.String("access_key", rec.AccessKey))
		}
	}

	if err := in.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	in.log.Info("fiscal record created",
		zap.String("record", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.String("source", string(src)))
	return rec, nil
}

func (in *Ingestor) upsertForeign(ctx context.Context, doc *model.ParsedDocument, src Source, ref string) (*model.FiscalRecord, error) {
	rec := in.recordFromParsed(doc)
	applyOrigin(&rec.Origin, src, ref)

	// Foreign records are identified by vendor plus invoice number; a
	// record with neither could never be deduplicated
	if rec.VendorName == "" && rec.InvoiceNumber == "" {
		return nil, model.NewValidationError("invoice", nil, "identity",
			"foreign invoice carries neither vendor name nor invoice number")
	}

	if rec.VendorName != "" && rec.InvoiceNumber != "" {
		existing, err := in.records.GetByInvoiceNumber(ctx, rec.VendorName, rec.InvoiceNumber)
		if err == nil {
			return in.merge(ctx, existing, rec)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if err := in.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// upsertFromPrint builds a thin record from scraped DANFE fields. When the
// XML arrives later through another channel the merge keeps one record.
func (in *Ingestor) upsertFromPrint(ctx context.Context, fiscal *pdf.FiscalData, src Source, ref string) (*model.FiscalRecord, error) {
	existing, err := in.records.GetByAccessKey(ctx, fiscal.AccessKey)
	if err == nil {
		applyOrigin(&existing.Origin, src, ref)
		if err := in.records.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	rec := &model.FiscalRecord{
		Type:      fiscal.Type,
		AccessKey: fiscal.AccessKey,
		Number:    fiscal.Number,
		IssueDate: fiscal.IssueDate,
		Issuer: model.Party{
			Name:  fiscal.IssuerName,
			TaxID: fiscal.IssuerCNPJ,
		},
		Totals:           model.Totals{Gross: fiscal.Total},
		ReceivedAt:       in.now(),
		ProcessingStatus: model.StatusParsed,
	}
	applyOrigin(&rec.Origin, src, ref)

	if err := in.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (in *Ingestor) recordFromParsed(doc *model.ParsedDocument) *model.FiscalRecord {
	rec := &model.FiscalRecord{
		Type:               doc.Type,
		AccessKey:          doc.AccessKey,
		Number:             doc.Number,
		Series:             doc.Series,
		IssueDate:          doc.IssueDate,
		Issuer:             doc.Issuer,
		Counterparty:       doc.Counterparty,
		Totals:             doc.Totals,
		Currency:           doc.Currency,
		ServiceDescription: doc.ServiceDescription,
		InvoiceNumber:      doc.InvoiceNumber,
		Items:              doc.Items,
		Payload:            doc.Raw,
		ReceivedAt:         in.now(),
		ProcessingStatus:   model.StatusParsed,
	}
	if doc.Type.IsForeign() {
		rec.VendorName = doc.Issuer.Name
	}
	return rec
}

// merge folds a duplicate inbound document into the stored record. Only
// origin flags and gaps in the stored data change; one record per identity.
func (in *Ingestor) merge(ctx context.Context, existing, incoming *model.FiscalRecord) (*model.FiscalRecord, error) {
	origin := existing.Origin
	origin.SEFAZ = origin.SEFAZ || incoming.Origin.SEFAZ
	origin.Email = origin.Email || incoming.Origin.Email
	origin.Manual = origin.Manual || incoming.Origin.Manual
	if origin.NSU == "" {
		origin.NSU = incoming.Origin.NSU
	}
	if origin.EmailReference == "" {
		origin.EmailReference = incoming.Origin.EmailReference
	}
	existing.Origin = origin

	if len(existing.Items) == 0 && len(incoming.Items) > 0 {
		existing.Items = incoming.Items
		existing.Totals = incoming.Totals
		existing.Issuer = incoming.Issuer
		existing.Counterparty = incoming.Counterparty
		existing.Payload = incoming.Payload
	}

	if err := in.records.Update(ctx, existing); err != nil {
		return nil, err
	}
	in.log.Info("duplicate document merged",
		zap.String("record", existing.ID),
		zap.String("access_key", existing.AccessKey))
	return existing, nil
}

func applyOrigin(o *model.Origin, src Source, ref string) {
	switch src {
	case SourceSEFAZ:
		o.SEFAZ = true
		o.NSU = ref
	case SourceEmail:
		o.Email = true
		o.EmailReference = ref
	case SourceManual:
		o.Manual = true
	}
}
