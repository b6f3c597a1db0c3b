package entity

import (
	"github.com/google/uuid"

	"docproc/constants"
)

// Anomaly types produced by the detector.
const (
	AnomalyAmountOutlier    = "AMOUNT_OUTLIER"
	AnomalySequenceGap      = "SEQUENCE_GAP"
	AnomalyFutureDated      = "FUTURE_DATED"
	AnomalyDueBeforeIssue   = "DUE_BEFORE_ISSUE"
	AnomalyLongAgedUnpaid   = "LONG_AGED_UNPAID"
	AnomalyTaxMismatch      = "TAX_MISMATCH"
	AnomalyRepeatedAmount   = "REPEATED_AMOUNT"
)

// Anomaly is one detected irregularity over a document set. Computed on demand,
// not a persisted ledger of record; recomputed each run.
type Anomaly struct {
	Type        string             `json:"type"`
	Severity    constants.Severity `json:"severity"`
	DocumentIDs []uuid.UUID        `json:"affected_document_ids"`
	Message     string             `json:"message"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// AnomalyReport is the result of one detector run.
type AnomalyReport struct {
	Anomalies []Anomaly `json:"anomalies"`
	RiskScore float64   `json:"risk_score"` // 0-100
	Scanned   int       `json:"scanned"`
}
