package constants

import "strings"

// DocumentKind selects the extraction schema variant.
type DocumentKind string

const (
	KindInvoice       DocumentKind = "Invoice"
	KindTaxCreditNote DocumentKind = "TaxCreditNote"
	KindKYCPAN        DocumentKind = "KYCPan"
	KindKYCAadhaar    DocumentKind = "KYCAadhaar"
	KindKYCGSTCert    DocumentKind = "KYCGSTCertificate"
)

var allKinds = []DocumentKind{
	KindInvoice,
	KindTaxCreditNote,
	KindKYCPAN,
	KindKYCAadhaar,
	KindKYCGSTCert,
}

func KindsAsStringSlice() []string {
	result := make([]string, len(allKinds))
	for i, k := range allKinds {
		result[i] = string(k)
	}
	return result
}

// CanonicalizeKind maps free-form labels (button ids, user text) to a DocumentKind.
func CanonicalizeKind(input string) (DocumentKind, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]DocumentKind{
		"invoice":         KindInvoice,
		"tax invoice":     KindInvoice,
		"bill":            KindInvoice,
		"credit note":     KindTaxCreditNote,
		"credit_note":     KindTaxCreditNote,
		"pan":             KindKYCPAN,
		"pan card":        KindKYCPAN,
		"aadhaar":         KindKYCAadhaar,
		"aadhar":          KindKYCAadhaar,
		"gst certificate": KindKYCGSTCert,
		"gst cert":        KindKYCGSTCert,
	}

	if k, ok := synonyms[normalized]; ok {
		return k, true
	}

	for _, k := range allKinds {
		if normalized == strings.ToLower(string(k)) {
			return k, true
		}
	}

	return "", false
}

// IsKYC reports whether the kind belongs to the identity-verification set.
func (k DocumentKind) IsKYC() bool {
	switch k {
	case KindKYCPAN, KindKYCAadhaar, KindKYCGSTCert:
		return true
	}
	return false
}
