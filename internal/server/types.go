package server

import (
	"github.com/rezonia/nf-reconciler/internal/ingest"
	"github.com/rezonia/nf-reconciler/internal/model"
	xmlparser "github.com/rezonia/nf-reconciler/internal/parser/xml"
)

// IngestResponse is returned by the ingestion endpoints
type IngestResponse struct {
	Record *model.FiscalRecord `json:"record"`
}

// FeedRequest carries a batch from the distribution feed client
type FeedRequest struct {
	Documents []ingest.RawDocument `json:"documents"`
}

// FeedFailure reports one feed entry that could not be ingested
type FeedFailure struct {
	NSU   string `json:"nsu"`
	Error string `json:"error"`
}

// FeedResponse summarizes a feed ingestion batch
type FeedResponse struct {
	Ingested []string      `json:"ingested"`
	Failed   []FeedFailure `json:"failed,omitempty"`
}

// ListResponse is the document listing payload
type ListResponse struct {
	Records []*model.FiscalRecord `json:"records"`
	Count   int                   `json:"count"`
}

// ParseResponse is the stateless parse payload
type ParseResponse struct {
	Document  *model.ParsedDocument   `json:"document"`
	Signature xmlparser.SignatureInfo `json:"signature"`
}

// KeyRequest carries an access key for validation or decoding
type KeyRequest struct {
	Key        string `json:"key"`
	IssuerCNPJ string `json:"issuer_cnpj,omitempty"`
}

// KeyValidationResponse reports access key check digit validity
type KeyValidationResponse struct {
	Key       string `json:"key"`
	Valid     bool   `json:"valid"`
	CNPJValid bool   `json:"cnpj_valid,omitempty"`
}

// KeyDecodeResponse is the structural decomposition of an access key
type KeyDecodeResponse struct {
	Key          string `json:"key"`
	Valid        bool   `json:"valid"`
	State        string `json:"state"`
	YearMonth    string `json:"year_month"`
	CNPJ         string `json:"cnpj"`
	Model        string `json:"model"`
	DocumentType string `json:"document_type"`
	Series       string `json:"series"`
	Number       string `json:"number"`
	EmissionType string `json:"emission_type"`
	Formatted    string `json:"formatted"`
}
