// Package fiscalkey decodes and validates the 44-digit access key that
// identifies Brazilian electronic fiscal documents (chave de acesso).
package fiscalkey

import (
	"fmt"
	"strings"

	"github.com/rezonia/nf-reconciler/internal/model"
)

// Key is the decomposed form of a 44-digit access key.
type Key struct {
	UF           string // IBGE state code, positions 0-1
	YearMonth    string // AAMM of emission, positions 2-5
	CNPJ         string // issuer CNPJ, positions 6-19
	Model        string // fiscal model, positions 20-21
	Series       string // positions 22-24
	Number       string // document number, positions 25-33
	EmissionType string // tpEmis, position 34
	Code         string // numeric code cNF, positions 35-42
	CheckDigit   string // mod-11 check digit, position 43
}

// Clean strips everything but digits from a candidate key. DANFE prints
// commonly group the key in blocks of four separated by spaces or dots.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(44)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse decomposes a key into its fields. It returns nil when the cleaned
// input is not exactly 44 digits; callers treat that as "not an access key"
// rather than an error.
func Parse(raw string) *Key {
	k := Clean(raw)
	if len(k) != 44 {
		return nil
	}
	return &Key{
		UF:           k[0:2],
		YearMonth:    k[2:6],
		CNPJ:         k[6:20],
		Model:        k[20:22],
		Series:       k[22:25],
		Number:       k[25:34],
		EmissionType: k[34:35],
		Code:         k[35:43],
		CheckDigit:   k[43:44],
	}
}

// Validate checks structure and the mod-11 check digit. It fails closed:
// anything that is not a well-formed 44-digit key with a correct check
// digit is invalid.
func Validate(raw string) bool {
	k := Clean(raw)
	if len(k) != 44 {
		return false
	}
	return checkDigit(k[:43]) == int(k[43]-'0')
}

// checkDigit computes the mod-11 digit over the 43 payload digits, with
// weights cycling 2 through 9 from the rightmost digit.
func checkDigit(payload string) int {
	weight := 2
	sum := 0
	for i := len(payload) - 1; i >= 0; i-- {
		sum += int(payload[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// Format renders a key in the conventional print layout, eleven groups of
// four digits separated by single spaces. Invalid-length input is returned
// cleaned but ungrouped.
func Format(raw string) string {
	k := Clean(raw)
	if len(k) != 44 {
		return k
	}
	groups := make([]string, 0, 11)
	for i := 0; i < 44; i += 4 {
		groups = append(groups, k[i:i+4])
	}
	return strings.Join(groups, " ")
}

// DocumentTypeFromModel maps the two-digit fiscal model to a document type.
func DocumentTypeFromModel(mod string) model.DocumentType {
	switch mod {
	case "55":
		return model.DocTypeNFe
	case "65":
		return model.DocTypeNFCe
	case "57":
		return model.DocTypeCTe
	case "67":
		return model.DocTypeCTeOS
	case "58":
		return model.DocTypeMDFe
	default:
		return model.DocTypeUnknown
	}
}

// DocumentType reports the document type encoded in the key's model field.
func (k *Key) DocumentType() model.DocumentType {
	return DocumentTypeFromModel(k.Model)
}

// ufNames maps IBGE state codes to state abbreviations.
var ufNames = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA",
	"16": "AP", "17": "TO", "21": "MA", "22": "PI", "23": "CE",
	"24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE",
	"29": "BA", "31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS", "50": "MS", "51": "MT",
	"52": "GO", "53": "DF",
}

// UFName returns the state abbreviation for an IBGE code, or "" when the
// code is not assigned to a state.
func UFName(code string) string {
	return ufNames[code]
}

// emissionNames maps tpEmis codes to human descriptions.
var emissionNames = map[string]string{
	"1": "Normal",
	"2": "Contingência FS-IA",
	"3": "Contingência SCAN",
	"4": "Contingência DPEC",
	"5": "Contingência FS-DA",
	"6": "Contingência SVC-AN",
	"7": "Contingência SVC-RS",
	"9": "Contingência off-line",
}

// EmissionTypeName returns the description for a tpEmis code.
func EmissionTypeName(code string) string {
	if n, ok := emissionNames[code]; ok {
		return n
	}
	return "Desconhecido"
}

// Describe returns a one-line human summary of the key, used by the CLI
// and the decode endpoint.
func (k *Key) Describe() string {
	uf := UFName(k.UF)
	if uf == "" {
		uf = k.UF
	}
	return fmt.Sprintf("%s nº %s série %s, emitente %s, %s/20%s, emissão %s",
		k.DocumentType(), strings.TrimLeft(k.Number, "0"), strings.TrimLeft(k.Series, "0"),
		k.CNPJ, uf, k.YearMonth[:2], EmissionTypeName(k.EmissionType))
}
