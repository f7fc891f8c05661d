// Package pdf extracts text and embedded XML from fiscal PDFs. DANFE
// prints sometimes carry the authorized XML inside the file; when they do
// not, the printed text itself is scraped for fiscal data.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Extractor pulls text and XML payloads out of PDF files
type Extractor struct {
	conf *pdfmodel.Configuration
}

// NewExtractor creates a new PDF extractor
func NewExtractor() *Extractor {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return &Extractor{conf: conf}
}

// Text extracts the printable text of every page, one page per line.
func (e *Extractor) Text(data []byte) (string, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), e.conf)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return "", fmt.Errorf("validate pdf: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		sb.WriteString(scrapeContentText(content))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// XMLPayloads returns fiscal XML documents embedded in the PDF. The scan
// covers the raw file, which catches both attachment streams stored
// uncompressed and XML pasted into content.
func (e *Extractor) XMLPayloads(data []byte) [][]byte {
	return scanForXML(data)
}

var xmlCloseTags = [][]byte{
	[]byte("</nfeProc>"),
	[]byte("</NFe>"),
	[]byte("</cteProc>"),
	[]byte("</CTe>"),
	[]byte("</NFSe>"),
	[]byte("</CompNfse>"),
	[]byte("</ConsultarNfseResposta>"),
}

func scanForXML(data []byte) [][]byte {
	var payloads [][]byte
	rest := data
	offset := 0
	for {
		start := bytes.Index(rest, []byte("<?xml"))
		if start < 0 {
			break
		}
		abs := offset + start
		end := -1
		for _, close := range xmlCloseTags {
			if idx := bytes.Index(data[abs:], close); idx >= 0 {
				candidate := abs + idx + len(close)
				if end < 0 || candidate < end {
					end = candidate
				}
			}
		}
		if end < 0 {
			break
		}
		payloads = append(payloads, bytes.Clone(data[abs:end]))
		offset = end
		rest = data[end:]
	}
	return payloads
}

var (
	tjRe    = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*Tj`)
	tjArrRe = regexp.MustCompile(`\[((?:\\.|[^\\\]])*)\]\s*TJ`)
	strRe   = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
)

// scrapeContentText pulls string operands of the Tj and TJ text-show
// operators out of a decoded content stream.
func scrapeContentText(content []byte) string {
	var sb strings.Builder
	for _, m := range tjRe.FindAllSubmatch(content, -1) {
		sb.WriteString(unescapePDFString(string(m[1])))
		sb.WriteByte(' ')
	}
	for _, m := range tjArrRe.FindAllSubmatch(content, -1) {
		for _, s := range strRe.FindAllSubmatch(m[1], -1) {
			sb.WriteString(unescapePDFString(string(s[1])))
		}
		sb.WriteByte(' ')
	}
	return sb.String()
}

func unescapePDFString(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '(', ')', '\\':
			sb.WriteByte(s[i])
		default:
			if s[i] >= '0' && s[i] <= '7' {
				j := i
				for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				if v, err := strconv.ParseUint(s[i:j], 8, 16); err == nil && v < 256 {
					sb.WriteByte(byte(v))
				}
				i = j - 1
			} else {
				sb.WriteByte(s[i])
			}
		}
	}
	return sb.String()
}
