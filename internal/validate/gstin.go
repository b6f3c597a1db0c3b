package validate

import (
	"regexp"
	"strings"
)

var (
	reGSTIN = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	rePAN   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	reHSN   = regexp.MustCompile(`^[0-9]{4}([0-9]{2})?([0-9]{2})?$`) // 4, 6 or 8 digits
)

const checksumCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ValidGSTINFormat checks the 15-character structural pattern only.
func ValidGSTINFormat(gstin string) bool {
	return reGSTIN.MatchString(gstin)
}

// ValidPANFormat checks the 10-character PAN pattern.
func ValidPANFormat(pan string) bool {
	return rePAN.MatchString(pan)
}

// ValidHSNCode checks the fixed-digit HSN/SAC classification pattern.
func ValidHSNCode(code string) bool {
	return reHSN.MatchString(code)
}

// ValidateChecksum verifies the GSTIN check digit: a weighted modulo-36 sum
// over the first 14 characters with alternating 1/2 factors, where each
// product contributes quotient plus remainder.
func ValidateChecksum(gstin string) bool {
	gstin = strings.ToUpper(strings.TrimSpace(gstin))
	if len(gstin) != 15 {
		return false
	}

	sum := 0
	for i := 0; i < 14; i++ {
		v := strings.IndexByte(checksumCharset, gstin[i])
		if v < 0 {
			return false
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		product := v * factor
		sum += product/36 + product%36
	}

	want := checksumCharset[(36-sum%36)%36]
	return gstin[14] == want
}

// StateCode returns the two-digit jurisdiction prefix of a GSTIN.
func StateCode(gstin string) string {
	if len(gstin) < 2 {
		return ""
	}
	return gstin[:2]
}
