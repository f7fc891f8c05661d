package fiscaldoc

import (
	"github.com/rezonia/nf-reconciler/internal/cnpj"
	"github.com/rezonia/nf-reconciler/internal/fiscalkey"
)

// AccessKey is the structural decomposition of a 44 digit access key
type AccessKey = fiscalkey.Key

// CleanAccessKey strips everything but digits from an access key
func CleanAccessKey(raw string) string {
	return fiscalkey.Clean(raw)
}

// ParseAccessKey decomposes an access key, or nil for non-44-digit input
func ParseAccessKey(raw string) *AccessKey {
	return fiscalkey.Parse(raw)
}

// ValidateAccessKey checks the modulo-11 check digit
func ValidateAccessKey(raw string) bool {
	return fiscalkey.Validate(raw)
}

// ValidateCNPJ checks the CNPJ check digits
func ValidateCNPJ(raw string) bool {
	return cnpj.IsValid(raw)
}

// FormatCNPJ applies the canonical XX.XXX.XXX/XXXX-XX mask
func FormatCNPJ(raw string) string {
	return cnpj.Format(raw)
}
