package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Valid published sample GSTINs with correct check digits.
var validGSTINs = []string{
	"27AAPFU0939F1ZV",
	"29AAGCB7383J1Z4",
}

func TestValidateChecksum(t *testing.T) {
	for _, g := range validGSTINs {
		assert.True(t, ValidateChecksum(g), g)
	}
}

func TestValidateChecksumRejectsMutations(t *testing.T) {
	// flipping any single character must invalidate the check digit
	g := validGSTINs[0]
	mutations := []string{
		"17AAPFU0939F1ZV", // state digit
		"27ABPFU0939F1ZV", // PAN letter
		"27AAPFU0930F1ZV", // PAN digit
		"27AAPFU0939F2ZV", // entity code
		"27AAPFU0939F1ZA", // check digit itself
	}
	for _, m := range mutations {
		assert.False(t, ValidateChecksum(m), m)
	}
	assert.True(t, ValidateChecksum(g))
}

func TestValidGSTINFormat(t *testing.T) {
	assert.True(t, ValidGSTINFormat("27AAPFU0939F1ZV"))
	assert.False(t, ValidGSTINFormat("27AAPFU0939F1Z"))   // too short
	assert.False(t, ValidGSTINFormat("27aapfu0939f1zv"))  // lowercase
	assert.False(t, ValidGSTINFormat("XXAAPFU0939F1ZV"))  // non-digit state
	assert.False(t, ValidGSTINFormat("27AAPFU0939F1XV"))  // missing fixed Z
}

func TestValidPANFormat(t *testing.T) {
	assert.True(t, ValidPANFormat("AAPFU0939F"))
	assert.False(t, ValidPANFormat("AAPFU0939"))
	assert.False(t, ValidPANFormat("12345ABCDE"))
}

func TestValidHSNCode(t *testing.T) {
	assert.True(t, ValidHSNCode("8471"))
	assert.True(t, ValidHSNCode("847130"))
	assert.True(t, ValidHSNCode("84713010"))
	assert.False(t, ValidHSNCode("847"))
	assert.False(t, ValidHSNCode("84713"))
	assert.False(t, ValidHSNCode("ABCD"))
}
