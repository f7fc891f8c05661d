// Package cnpj validates and formats Brazilian company tax identifiers.
package cnpj

import "strings"

var (
	firstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Clean strips everything but digits.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(14)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether the input is a structurally valid CNPJ. Both
// check digits are verified, and sequences of a single repeated digit are
// rejected even though they satisfy the arithmetic.
func IsValid(raw string) bool {
	c := Clean(raw)
	if len(c) != 14 {
		return false
	}
	uniform := true
	for i := 1; i < 14; i++ {
		if c[i] != c[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return false
	}
	if digit(c[:12], firstWeights) != int(c[12]-'0') {
		return false
	}
	return digit(c[:13], secondWeights) == int(c[13]-'0')
}

func digit(digits string, weights []int) int {
	sum := 0
	for i := range weights {
		sum += int(digits[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// Format renders a CNPJ in the XX.XXX.XXX/XXXX-XX mask. Input that does
// not clean to 14 digits is returned cleaned but unmasked.
func Format(raw string) string {
	c := Clean(raw)
	if len(c) != 14 {
		return c
	}
	return c[0:2] + "." + c[2:5] + "." + c[5:8] + "/" + c[8:12] + "-" + c[12:14]
}

// Root returns the first eight digits, shared by every branch of the same
// company.
func Root(raw string) string {
	c := Clean(raw)
	if len(c) < 8 {
		return ""
	}
	return c[:8]
}

// Branch returns the four-digit branch identifier.
func Branch(raw string) string {
	c := Clean(raw)
	if len(c) != 14 {
		return ""
	}
	return c[8:12]
}

// IsHeadquarters reports whether the CNPJ identifies the head office
// (branch 0001).
func IsHeadquarters(raw string) bool {
	return Branch(raw) == "0001"
}
