package route

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docproc/constants"
	"docproc/internal/entity"
)

func scoresAt(conf float64) map[string]float64 {
	return map[string]float64{
		"issuer.gstin":             conf,
		"recipient.gstin":          conf,
		"line_items[0].amount":     conf,
		"tax_summary.grand_total":  conf,
		"document_number":          conf,
		"issuer.legal_name":        conf,
	}
}

func warning() entity.ValidationFinding {
	return entity.ValidationFinding{
		FieldPath: "tax_summary.grand_total",
		Severity:  constants.SeverityWarning,
		Message:   "drift",
	}
}

func errFinding() entity.ValidationFinding {
	return entity.ValidationFinding{
		FieldPath: "tax_summary",
		Severity:  constants.SeverityError,
		Message:   "mutual exclusivity",
	}
}

func TestWeightedConfidenceIsDeterministic(t *testing.T) {
	scores := map[string]float64{
		"issuer.gstin":            0.99,
		"line_items[0].quantity":  0.80,
		"document_number":         0.60,
	}
	first := WeightedConfidence(scores)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, WeightedConfidence(scores))
	}
}

func TestWeightedConfidenceWeighsTaxIDHighest(t *testing.T) {
	highTaxID := map[string]float64{"issuer.gstin": 1.0, "document_number": 0.0}
	highMeta := map[string]float64{"issuer.gstin": 0.0, "document_number": 1.0}
	assert.Greater(t, WeightedConfidence(highTaxID), WeightedConfidence(highMeta))
}

func TestWeightedConfidenceEmpty(t *testing.T) {
	assert.Zero(t, WeightedConfidence(nil))
}

func TestDecideAutoApprove(t *testing.T) {
	d := Decide(DefaultThresholds(), scoresAt(0.97), nil)
	assert.True(t, d.AutoApprove)
	assert.InDelta(t, 0.97, d.WeightedConfidence, 1e-9)
}

func TestDecideErrorBlocksAutoApprove(t *testing.T) {
	d := Decide(DefaultThresholds(), scoresAt(0.97), []entity.ValidationFinding{errFinding()})
	assert.False(t, d.AutoApprove)
	assert.Equal(t, constants.PriorityHigh, d.Priority)
}

func TestDecideLowConfidenceIsHighPriority(t *testing.T) {
	d := Decide(DefaultThresholds(), scoresAt(0.70), nil)
	assert.False(t, d.AutoApprove)
	assert.Equal(t, constants.PriorityHigh, d.Priority)
}

func TestDecideMidConfidenceWarningsOnlyIsMedium(t *testing.T) {
	d := Decide(DefaultThresholds(), scoresAt(0.90), []entity.ValidationFinding{warning()})
	assert.False(t, d.AutoApprove)
	assert.Equal(t, constants.PriorityMedium, d.Priority)
}

func TestDecideMidConfidenceNoFindingsIsLow(t *testing.T) {
	d := Decide(DefaultThresholds(), scoresAt(0.90), nil)
	assert.False(t, d.AutoApprove)
	assert.Equal(t, constants.PriorityLow, d.Priority)
}

func TestDecideWarningDoesNotBlockAutoApprove(t *testing.T) {
	d := Decide(DefaultThresholds(), scoresAt(0.99), []entity.ValidationFinding{warning()})
	assert.True(t, d.AutoApprove)
}
