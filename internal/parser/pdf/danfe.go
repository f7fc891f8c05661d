package pdf

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/nf-reconciler/internal/fiscalkey"
	"github.com/rezonia/nf-reconciler/internal/model"
)

// FiscalData is what a printed DANFE or DACTE reliably exposes as text.
// Used as a last resort when no XML can be recovered for the document.
type FiscalData struct {
	AccessKey  string
	Type       model.DocumentType
	IssuerCNPJ string
	IssuerName string
	Number     string
	Total      decimal.Decimal
	IssueDate  time.Time
}

const keyGroups = `(\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\s*\d{4})`

var (
	accessKeyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:chave\s*(?:de\s*)?acesso|NFe)\s*[:\s]*` + keyGroups),
		regexp.MustCompile(keyGroups),
		regexp.MustCompile(`(\d{44})`),
	}
	cnpjRe    = regexp.MustCompile(`(?i)CNPJ[:\s]*(\d{2}[.\s]?\d{3}[.\s]?\d{3}[/\s]?\d{4}[-\s]?\d{2})`)
	numberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:N[ºo°]\.?\s*|Número\s*(?:da\s*)?(?:NF|Nota)[:\s]*)(\d{1,9})`),
		regexp.MustCompile(`(?i)NF-e\s*[Nn][ºo°]?\s*(\d{1,9})`),
		regexp.MustCompile(`(?i)(?:NOTA\s*FISCAL|NF-e)[^\d]*(\d{1,9})`),
	}
	totalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:VALOR\s*TOTAL|VL\.?\s*TOTAL|TOTAL\s*(?:DA\s*)?NF)[^\d]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)(?:TOTAL\s*GERAL)[^\d]*R?\$?\s*([\d.,]+)`),
	}
	issueDateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:DATA\s*(?:DE\s*)?EMISS[ÃA]O|EMISS[ÃA]O)[:\s]*(\d{2}[/.-]\d{2}[/.-]\d{4})`),
		regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
	}
	issuerNameRe = regexp.MustCompile(`(?i)(?:RAZ[ÃA]O\s*SOCIAL|NOME[/\s]*RAZ[ÃA]O\s*SOCIAL)[:\s]*([A-Z][A-Z\s.,&\-]+?)(?:\s*CNPJ|\s*END|\n)`)

	nonDigitRe = regexp.MustCompile(`\D`)
)

// ExtractFiscalData scrapes fiscal fields from DANFE text. The access key
// is the anchor: without one the text is not treated as a fiscal print
// and nil is returned.
func ExtractFiscalData(text string) *FiscalData {
	data := &FiscalData{}

	for _, re := range accessKeyRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		key := nonDigitRe.ReplaceAllString(m[1], "")
		if len(key) == 44 {
			data.AccessKey = key
			break
		}
	}
	if data.AccessKey == "" {
		return nil
	}

	data.Type = fiscalkey.DocumentTypeFromModel(data.AccessKey[20:22])
	if data.Type == model.DocTypeUnknown {
		data.Type = model.DocTypeNFe
	}

	if m := cnpjRe.FindStringSubmatch(text); m != nil {
		cnpj := nonDigitRe.ReplaceAllString(m[1], "")
		if len(cnpj) == 14 {
			data.IssuerCNPJ = cnpj
		}
	}

	for _, re := range numberRes {
		if m := re.FindStringSubmatch(text); m != nil {
			data.Number = m[1]
			break
		}
	}

	for _, re := range totalRes {
		if m := re.FindStringSubmatch(text); m != nil {
			data.Total = parseBRL(m[1])
			break
		}
	}

	for _, re := range issueDateRes {
		if m := re.FindStringSubmatch(text); m != nil {
			data.IssueDate = parseBRDate(m[1])
			break
		}
	}

	if m := issuerNameRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		if len(name) > 5 {
			if len(name) > 140 {
				name = name[:140]
			}
			data.IssuerName = name
		}
	}

	return data
}

// parseBRL parses a Brazilian-formatted amount, dots for thousands and a
// comma decimal.
func parseBRL(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseBRDate(s string) time.Time {
	for _, format := range []string{"02/01/2006", "02-01-2006", "02.01.2006"} {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
