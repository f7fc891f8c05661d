package xml

import (
	"crypto/x509"
	"encoding/base64"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/rezonia/nf-reconciler/internal/cnpj"
)

// SignatureInfo summarizes the XMLDSig block authorized fiscal documents
// carry. The signature is not cryptographically verified here; the fields
// support audit display and issuer cross-checks only.
type SignatureInfo struct {
	Present    bool      `json:"present"`
	SignerName string    `json:"signer_name,omitempty"`
	SignerCNPJ string    `json:"signer_cnpj,omitempty"`
	Issuer     string    `json:"issuer,omitempty"`
	ValidFrom  time.Time `json:"valid_from,omitempty"`
	ValidTo    time.Time `json:"valid_to,omitempty"`
}

// ExtractSignatureInfo reads the signing certificate out of a fiscal XML.
// Returns a zero-value info (Present false) when no signature exists and
// degrades to Present-only when the certificate cannot be decoded.
func ExtractSignatureInfo(content []byte) SignatureInfo {
	var info SignatureInfo

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return info
	}
	root := doc.Root()
	if root == nil {
		return info
	}

	sig := findSignatureElement(root)
	if sig == nil {
		return info
	}
	info.Present = true

	certElem := findByLocalName(sig, "X509Certificate")
	if certElem == nil {
		return info
	}
	raw := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, certElem.Text())

	der, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return info
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return info
	}

	info.SignerName, info.SignerCNPJ = splitICPSubject(cert.Subject.CommonName)
	info.Issuer = cert.Issuer.CommonName
	info.ValidFrom = cert.NotBefore
	info.ValidTo = cert.NotAfter
	return info
}

// findSignatureElement locates the enveloped Signature element. Fiscal
// documents place it as a sibling of the signed inf* node.
func findSignatureElement(root *etree.Element) *etree.Element {
	paths := []string{
		"Signature",
		"ds:Signature",
		"NFe/Signature",
		"CTe/Signature",
		"infNFSe/Signature",
	}
	for _, path := range paths {
		if elem := root.FindElement(path); elem != nil {
			return elem
		}
	}
	return findByLocalName(root, "Signature")
}

// splitICPSubject decodes the e-CNPJ common name convention
// "RAZAO SOCIAL:CNPJ" used by ICP-Brasil certificates.
func splitICPSubject(cn string) (name, taxID string) {
	idx := strings.LastIndex(cn, ":")
	if idx < 0 {
		return cn, ""
	}
	digits := cnpj.Clean(cn[idx+1:])
	if len(digits) != 14 {
		return cn, ""
	}
	return cn[:idx], digits
}
