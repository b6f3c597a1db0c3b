package route

import (
	"sort"
	"strings"

	"docproc/constants"
	"docproc/internal/entity"
)

// Field-group weights for the confidence average. Static configuration, not
// learned: tax identifiers dominate, then line items and totals, then metadata.
const (
	weightTaxID    = 3.0
	weightAmounts  = 2.0
	weightMetadata = 1.0
)

// Thresholds drives the routing decision.
type Thresholds struct {
	AutoApprove       float64 // default 0.95
	HighPriorityBelow float64 // default 0.85
}

// DefaultThresholds mirrors the production configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoApprove: 0.95, HighPriorityBelow: 0.85}
}

// Decision is the routing outcome for one extraction.
type Decision struct {
	AutoApprove        bool
	Priority           constants.ReviewPriority
	WeightedConfidence float64
	OverallConfidence  float64
}

// FieldWeight returns the group weight for a field path.
func FieldWeight(path string) float64 {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".gstin"), strings.HasSuffix(p, ".pan"):
		return weightTaxID
	case strings.HasPrefix(p, "line_items"), strings.HasPrefix(p, "tax_summary"):
		return weightAmounts
	default:
		return weightMetadata
	}
}

// WeightedConfidence computes the weighted average of per-field confidences.
// Deterministic: identical input always yields identical output. Iteration is
// over sorted keys so float accumulation order is stable.
func WeightedConfidence(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var num, den float64
	for _, k := range keys {
		w := FieldWeight(k)
		num += w * scores[k]
		den += w
	}
	return num / den
}

// OverallConfidence is the unweighted mean, kept for audit display.
func OverallConfidence(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, c := range scores {
		sum += c
	}
	return sum / float64(len(scores))
}

// Decide is a pure function of the extraction result and validation findings.
// No hidden state: the same inputs always route the same way.
func Decide(t Thresholds, scores map[string]float64, findings []entity.ValidationFinding) Decision {
	weighted := WeightedConfidence(scores)
	overall := OverallConfidence(scores)
	hasErrors := entity.HasErrors(findings)

	d := Decision{
		WeightedConfidence: weighted,
		OverallConfidence:  overall,
	}

	if weighted >= t.AutoApprove && !hasErrors {
		d.AutoApprove = true
		return d
	}

	switch {
	case hasErrors || weighted < t.HighPriorityBelow:
		d.Priority = constants.PriorityHigh
	case len(findings) > 0:
		d.Priority = constants.PriorityMedium
	default:
		d.Priority = constants.PriorityLow
	}
	return d
}
