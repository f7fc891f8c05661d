package xml

import (
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// Known fiscal namespaces, used for dialect detection
const (
	NFeNamespace    = "http://www.portalfiscal.inf.br/nfe"
	CTeNamespace    = "http://www.portalfiscal.inf.br/cte"
	NFSeNamespace   = "http://www.sped.fazenda.gov.br/nfse"
	ABRASFNamespace = "http://www.abrasf.org.br/nfse.xsd"
)

// findElement tries each path in order, then falls back to a recursive
// search by the local name of the first path's last segment. Issuer
// software disagrees on namespace prefixes and wrapper elements, so path
// lookups alone are not enough.
func findElement(root *etree.Element, paths ...string) *etree.Element {
	if root == nil {
		return nil
	}
	for _, path := range paths {
		if elem := root.FindElement(path); elem != nil {
			return elem
		}
	}
	if len(paths) == 0 {
		return nil
	}
	local := paths[0]
	if idx := strings.LastIndexByte(local, '/'); idx >= 0 {
		local = local[idx+1:]
	}
	return findByLocalName(root, local)
}

// findByLocalName searches for an element by local name recursively,
// ignoring any namespace prefix.
func findByLocalName(elem *etree.Element, localName string) *etree.Element {
	if hasLocalName(elem, localName) {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findByLocalName(child, localName); found != nil {
			return found
		}
	}
	return nil
}

// hasLocalName checks if element has the given local name regardless of
// namespace prefix.
func hasLocalName(elem *etree.Element, localName string) bool {
	tag := elem.Tag
	if idx := strings.IndexByte(tag, ':'); idx >= 0 {
		tag = tag[idx+1:]
	}
	return tag == localName
}

// childrenByLocalName returns the direct children with the given local
// name, in document order.
func childrenByLocalName(parent *etree.Element, localName string) []*etree.Element {
	if parent == nil {
		return nil
	}
	var out []*etree.Element
	for _, child := range parent.ChildElements() {
		if hasLocalName(child, localName) {
			out = append(out, child)
		}
	}
	return out
}

// findText returns the trimmed text of the first element matched by
// findElement, or "" when nothing matches.
func findText(root *etree.Element, paths ...string) string {
	if elem := findElement(root, paths...); elem != nil {
		return strings.TrimSpace(elem.Text())
	}
	return ""
}

// childText is findText scoped to a possibly-nil parent.
func childText(parent *etree.Element, paths ...string) string {
	if parent == nil {
		return ""
	}
	return findText(parent, paths...)
}

// parseCurrency converts a monetary string into a decimal. Fiscal XML
// mandates dot-decimal, but values that passed through spreadsheets or
// scraped prints arrive in Brazilian format ("16.800,00"). The format is
// decided per value: a comma means Brazilian convention. Unparseable or
// empty input yields zero, never an error.
func parseCurrency(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.ContainsRune(s, ',') {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseDate accepts the emission timestamp variants found in the wild:
// ISO-8601 with offset (dhEmi), without offset, bare dates (legacy dEmi)
// and the dd/mm/yyyy of scraped prints. Returns the zero time on failure.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
