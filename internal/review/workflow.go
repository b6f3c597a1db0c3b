package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
)

// ListFilter narrows queue listings. Zero values mean no constraint; the
// zero filter returns every non-terminal item.
type ListFilter struct {
	Status   constants.ReviewStatus
	Priority constants.ReviewPriority
	Limit    int
}

// Store is the persistence port for review queue items.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.ReviewQueueItem, error)
	Create(ctx context.Context, item *entity.ReviewQueueItem) (*entity.ReviewQueueItem, error)
	List(ctx context.Context, f ListFilter) ([]*entity.ReviewQueueItem, error)
	// ClaimAssignment sets the assignee if and only if the item is currently
	// unassigned. Returns false when another reviewer holds the item.
	ClaimAssignment(ctx context.Context, id uuid.UUID, reviewer string, at time.Time) (bool, error)
	Update(ctx context.Context, item *entity.ReviewQueueItem) error
	AppendCorrections(ctx context.Context, corrections []entity.Correction) error
}

// LedgerPublisher hands an approved document to the bookkeeping collaborator.
type LedgerPublisher interface {
	PublishLedgerRecord(ctx context.Context, rec entity.LedgerRecord) error
}

// transitions is the complete state machine. Escalated items return to the
// pool and are claimed again via Assign.
var transitions = map[constants.ReviewStatus][]constants.ReviewStatus{
	constants.ReviewPending:   {constants.ReviewInReview},
	constants.ReviewInReview:  {constants.ReviewApproved, constants.ReviewRejected, constants.ReviewEscalated},
	constants.ReviewEscalated: {constants.ReviewInReview},
}

func canTransition(from, to constants.ReviewStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Workflow drives the reviewer lifecycle over queue items.
type Workflow struct {
	store  Store
	ledger LedgerPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewWorkflow(store Store, ledger LedgerPublisher, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{store: store, ledger: ledger, logger: logger, now: time.Now}
}

// Enqueue creates a pending item for a document the router did not
// auto-approve.
func (w *Workflow) Enqueue(ctx context.Context, documentID, extractionID uuid.UUID,
	extracted json.RawMessage, findings []entity.ValidationFinding,
	priority constants.ReviewPriority) (*entity.ReviewQueueItem, error) {

	item, err := w.store.Create(ctx, &entity.ReviewQueueItem{
		DocumentID:    documentID,
		ExtractionID:  extractionID,
		ExtractedData: extracted,
		Findings:      findings,
		Priority:      priority,
		Status:        constants.ReviewPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create review item: %w", err)
	}
	w.logger.Info("review.enqueue.ok",
		"item_id", item.ID, "document_id", documentID, "priority", priority)
	return item, nil
}

// Assign claims the item for a reviewer. The claim is a compare-and-set on
// the assignee: exactly one reviewer wins a concurrent race.
func (w *Workflow) Assign(ctx context.Context, itemID uuid.UUID, reviewer string) (*entity.ReviewQueueItem, error) {
	if reviewer == "" {
		return nil, common.WrapError(common.ErrInvalidInput, "review.assign", fmt.Errorf("reviewer is required"))
	}

	item, err := w.store.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.AssignedTo != nil && !item.Status.Terminal() {
		return nil, common.WrapError(common.ErrAssignmentConflict, "review.assign",
			fmt.Errorf("item %s is held by %s", itemID, *item.AssignedTo))
	}
	if !canTransition(item.Status, constants.ReviewInReview) {
		return nil, common.WrapError(common.ErrInvalidTransition, "review.assign",
			fmt.Errorf("cannot assign item in status %s", item.Status))
	}

	now := w.now()
	claimed, err := w.store.ClaimAssignment(ctx, itemID, reviewer, now)
	if err != nil {
		return nil, fmt.Errorf("claim assignment: %w", err)
	}
	if !claimed {
		return nil, common.WrapError(common.ErrAssignmentConflict, "review.assign",
			fmt.Errorf("item %s is held by another reviewer", itemID))
	}

	item.Status = constants.ReviewInReview
	item.AssignedTo = &reviewer
	item.AssignedAt = &now
	if err := w.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	w.logger.Info("review.assign.ok", "item_id", itemID, "reviewer", reviewer)
	return item, nil
}

// Approve finishes the item. When outstanding validator errors exist, an
// explicit corrected payload is mandatory; the field-level diff is captured
// as write-once corrections and the ledger handoff is published.
func (w *Workflow) Approve(ctx context.Context, itemID uuid.UUID, reviewer string,
	corrected json.RawMessage, ledgerRec *entity.LedgerRecord) (*entity.ReviewQueueItem, error) {

	item, err := w.heldItem(ctx, itemID, reviewer, constants.ReviewApproved)
	if err != nil {
		return nil, err
	}

	if entity.HasErrors(item.Findings) && len(corrected) == 0 {
		return nil, common.WrapError(common.ErrInvalidTransition, "review.approve",
			fmt.Errorf("validator errors outstanding and no corrected payload supplied"))
	}

	now := w.now()
	if len(corrected) > 0 {
		corrections, err := DiffCorrections(item.ID, item.DocumentID, item.ExtractedData, corrected, now)
		if err != nil {
			return nil, common.WrapError(common.ErrInvalidInput, "review.approve", err)
		}
		if len(corrections) > 0 {
			if err := w.store.AppendCorrections(ctx, corrections); err != nil {
				return nil, fmt.Errorf("append corrections: %w", err)
			}
		}
		item.CorrectedData = corrected
	}

	item.Status = constants.ReviewApproved
	item.ResolvedAt = &now
	if err := w.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	if w.ledger != nil && ledgerRec != nil {
		if err := w.ledger.PublishLedgerRecord(ctx, *ledgerRec); err != nil {
			// the approval stands; the handoff is at-least-once and retried
			// by the caller
			w.logger.Error("review.approve.ledger_publish_failed",
				"item_id", itemID, "error", err)
		}
	}

	w.logger.Info("review.approve.ok", "item_id", itemID, "reviewer", reviewer,
		"corrected", len(corrected) > 0)
	return item, nil
}

// Reject closes the item without bookkeeping. Notes are a contract, not a
// nicety: rejection without a reason is invalid.
func (w *Workflow) Reject(ctx context.Context, itemID uuid.UUID, reviewer, notes string) (*entity.ReviewQueueItem, error) {
	if notes == "" {
		return nil, common.WrapError(common.ErrInvalidInput, "review.reject",
			fmt.Errorf("reviewer notes are required"))
	}

	item, err := w.heldItem(ctx, itemID, reviewer, constants.ReviewRejected)
	if err != nil {
		return nil, err
	}

	now := w.now()
	item.Status = constants.ReviewRejected
	item.ReviewerNotes = &notes
	item.ResolvedAt = &now
	if err := w.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	w.logger.Info("review.reject.ok", "item_id", itemID, "reviewer", reviewer)
	return item, nil
}

// Escalate releases the item back to the pool at high priority.
func (w *Workflow) Escalate(ctx context.Context, itemID uuid.UUID, reviewer, notes string) (*entity.ReviewQueueItem, error) {
	item, err := w.heldItem(ctx, itemID, reviewer, constants.ReviewEscalated)
	if err != nil {
		return nil, err
	}

	item.Status = constants.ReviewEscalated
	item.Priority = constants.PriorityHigh
	item.AssignedTo = nil
	item.AssignedAt = nil
	if notes != "" {
		item.ReviewerNotes = &notes
	}
	if err := w.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	w.logger.Info("review.escalate.ok", "item_id", itemID, "reviewer", reviewer)
	return item, nil
}

// heldItem loads the item and checks the reviewer holds it and the requested
// transition is legal.
func (w *Workflow) heldItem(ctx context.Context, itemID uuid.UUID, reviewer string,
	to constants.ReviewStatus) (*entity.ReviewQueueItem, error) {

	item, err := w.store.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !canTransition(item.Status, to) {
		return nil, common.WrapError(common.ErrInvalidTransition, "review",
			fmt.Errorf("cannot move item from %s to %s", item.Status, to))
	}
	if item.AssignedTo == nil || *item.AssignedTo != reviewer {
		return nil, common.WrapError(common.ErrAssignmentConflict, "review",
			fmt.Errorf("item %s is not held by %s", itemID, reviewer))
	}
	return item, nil
}
