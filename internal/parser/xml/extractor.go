// Package xml parses Brazilian electronic fiscal documents into the
// canonical parsed form. Each layout (NF-e, CT-e, the national NFS-e and
// the ABRASF municipal NFS-e) has its own extractor; a registry sniffs the
// content and dispatches to the right one.
package xml

import (
	"bytes"
	"context"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// Extractor parses one fiscal XML layout into a ParsedDocument
type Extractor interface {
	// Extract parses XML content into a ParsedDocument
	Extract(ctx context.Context, content []byte) (*model.ParsedDocument, error)

	// CanParse returns true if this extractor can handle the content
	CanParse(content []byte) bool

	// Dialect returns the layout name for error reporting
	Dialect() string
}

// Registry holds all registered extractors
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with all extractors
// Order matters: dialects with unique namespaces come before the more
// loosely structured municipal layouts
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			NewNFeExtractor(),        // portalfiscal nfe namespace
			NewCTeExtractor(),        // portalfiscal cte namespace
			NewNFSeNacionalExtractor(), // sped national standard
			NewABRASFExtractor(),     // municipal ABRASF layouts, most lenient, last
		},
	}
}

// Detect identifies the layout from XML content
func (r *Registry) Detect(content []byte) (Extractor, error) {
	for _, e := range r.extractors {
		if e.CanParse(content) {
			return e, nil
		}
	}
	return nil, model.NewParseError("unknown", "root", "unknown XML layout, no matching extractor found", nil)
}

// Parse parses XML using the appropriate extractor and retains the raw
// payload on the result.
func (r *Registry) Parse(ctx context.Context, content []byte) (*model.ParsedDocument, error) {
	extractor, err := r.Detect(content)
	if err != nil {
		return nil, err
	}
	doc, err := extractor.Extract(ctx, content)
	if err != nil {
		return nil, err
	}
	doc.Raw = bytes.Clone(content)
	return doc, nil
}

// RegisterExtractor adds a custom extractor to the registry
func (r *Registry) RegisterExtractor(e Extractor) {
	// Custom extractors take priority
	r.extractors = append([]Extractor{e}, r.extractors...)
}
