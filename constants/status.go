package constants

// DocumentStatus is the canonical lifecycle status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentUploaded   DocumentStatus = "UPLOADED"   // intake complete, not yet processed
	DocumentProcessing DocumentStatus = "PROCESSING" // pipeline in progress
	DocumentCompleted  DocumentStatus = "COMPLETED"  // extraction finished, immutable
	DocumentFailed     DocumentStatus = "FAILED"     // terminal failure
)

// ReviewStatus is the lifecycle status of a review queue item.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "PENDING"
	ReviewInReview  ReviewStatus = "IN_REVIEW"
	ReviewApproved  ReviewStatus = "APPROVED"
	ReviewRejected  ReviewStatus = "REJECTED"
	ReviewEscalated ReviewStatus = "ESCALATED"
)

// Terminal reports whether a review status admits no further transitions.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// ReviewPriority orders items in the reviewer queue.
type ReviewPriority string

const (
	PriorityHigh   ReviewPriority = "HIGH"
	PriorityMedium ReviewPriority = "MEDIUM"
	PriorityLow    ReviewPriority = "LOW"
)

// Severity classifies validation findings and anomalies.
type Severity string

const (
	SeverityError    Severity = "ERROR"
	SeverityWarning  Severity = "WARNING"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SessionState is the state of a conversational intake session.
type SessionState string

const (
	SessionIdle          SessionState = "IDLE"
	SessionTypeSelection SessionState = "DOCUMENT_TYPE_SELECTION"
	SessionAwaitingDoc   SessionState = "AWAITING_DOCUMENT"
	SessionProcessing    SessionState = "PROCESSING"
	SessionConfirming    SessionState = "AWAITING_CONFIRMATION"
	SessionFinalized     SessionState = "FINALIZED"
)
