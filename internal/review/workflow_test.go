package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
)

type fakeStore struct {
	items       map[uuid.UUID]*entity.ReviewQueueItem
	corrections []entity.Correction
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[uuid.UUID]*entity.ReviewQueueItem)}
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (*entity.ReviewQueueItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *fakeStore) Create(_ context.Context, item *entity.ReviewQueueItem) (*entity.ReviewQueueItem, error) {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	s.items[item.ID] = item
	return item, nil
}

func (s *fakeStore) List(_ context.Context, f ListFilter) ([]*entity.ReviewQueueItem, error) {
	var out []*entity.ReviewQueueItem
	for _, item := range s.items {
		if !item.Status.Terminal() {
			out = append(out, item)
		}
		if len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ClaimAssignment(_ context.Context, id uuid.UUID, reviewer string, at time.Time) (bool, error) {
	item := s.items[id]
	if item.AssignedTo != nil {
		return false, nil
	}
	item.AssignedTo = &reviewer
	item.AssignedAt = &at
	return true, nil
}

func (s *fakeStore) Update(_ context.Context, item *entity.ReviewQueueItem) error {
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *fakeStore) AppendCorrections(_ context.Context, corrections []entity.Correction) error {
	s.corrections = append(s.corrections, corrections...)
	return nil
}

type fakeLedger struct {
	published []entity.LedgerRecord
	fail      bool
}

func (l *fakeLedger) PublishLedgerRecord(_ context.Context, rec entity.LedgerRecord) error {
	if l.fail {
		return errors.New("ledger unavailable")
	}
	l.published = append(l.published, rec)
	return nil
}

func enqueueItem(t *testing.T, w *Workflow, findings []entity.ValidationFinding) *entity.ReviewQueueItem {
	t.Helper()
	item, err := w.Enqueue(context.Background(), uuid.New(), uuid.New(),
		json.RawMessage(`{"issuer":{"gstin":"27AAPFU0939F1ZV"},"grand_total":11800}`),
		findings, constants.PriorityMedium)
	require.NoError(t, err)
	return item
}

func errorFinding() entity.ValidationFinding {
	return entity.ValidationFinding{
		FieldPath: "tax_summary", Severity: constants.SeverityError, Message: "mutually exclusive taxes",
	}
}

func TestAssignClaimsPendingItem(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	got, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewInReview, got.Status)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "alice", *got.AssignedTo)
	assert.NotNil(t, got.AssignedAt)
}

func TestAssignSecondReviewerConflicts(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	_, err = w.Assign(context.Background(), item.ID, "bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAssignmentConflict))
}

func TestAssignRequiresReviewer(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestApproveWithoutErrorsNeedsNoCorrection(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{}
	w := NewWorkflow(store, ledger, nil)
	item := enqueueItem(t, w, []entity.ValidationFinding{
		{FieldPath: "line_items[0].amount", Severity: constants.SeverityWarning, Message: "drift"},
	})

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	got, err := w.Approve(context.Background(), item.ID, "alice", nil,
		&entity.LedgerRecord{DocumentID: item.DocumentID, GrandTotal: 11800})
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewApproved, got.Status)
	assert.NotNil(t, got.ResolvedAt)
	assert.Empty(t, store.corrections)
	require.Len(t, ledger.published, 1)
	assert.InDelta(t, 11800, ledger.published[0].GrandTotal, 1e-9)
}

func TestApproveWithErrorsRequiresCorrectedPayload(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, []entity.ValidationFinding{errorFinding()})

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	_, err = w.Approve(context.Background(), item.ID, "alice", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))
}

func TestApproveWithCorrectionCapturesDiff(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, []entity.ValidationFinding{errorFinding()})

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	corrected := json.RawMessage(`{"issuer":{"gstin":"29AAGCB7383J1Z4"},"grand_total":11800}`)
	got, err := w.Approve(context.Background(), item.ID, "alice", corrected, nil)
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewApproved, got.Status)
	assert.JSONEq(t, string(corrected), string(got.CorrectedData))

	require.Len(t, store.corrections, 1)
	c := store.corrections[0]
	assert.Equal(t, "issuer.gstin", c.FieldName)
	assert.Equal(t, "27AAPFU0939F1ZV", *c.OriginalValue)
	assert.Equal(t, "29AAGCB7383J1Z4", *c.CorrectedValue)
	assert.Equal(t, "modified", c.CorrectionType)
	assert.Equal(t, item.ID, c.ReviewItemID)
}

func TestApproveByNonHolderRejected(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	_, err = w.Approve(context.Background(), item.ID, "bob", nil, nil)
	assert.True(t, errors.Is(err, common.ErrAssignmentConflict))
}

func TestRejectRequiresNotes(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	_, err = w.Reject(context.Background(), item.ID, "alice", "")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	got, err := w.Reject(context.Background(), item.ID, "alice", "unreadable scan")
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewRejected, got.Status)
	assert.Equal(t, "unreadable scan", *got.ReviewerNotes)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)
	_, err = w.Reject(context.Background(), item.ID, "alice", "bad scan")
	require.NoError(t, err)

	_, err = w.Assign(context.Background(), item.ID, "bob")
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))

	_, err = w.Approve(context.Background(), item.ID, "alice", nil, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))
}

func TestEscalateReleasesAssignment(t *testing.T) {
	store := newFakeStore()
	w := NewWorkflow(store, nil, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	got, err := w.Escalate(context.Background(), item.ID, "alice", "needs a senior look")
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewEscalated, got.Status)
	assert.Equal(t, constants.PriorityHigh, got.Priority)
	assert.Nil(t, got.AssignedTo)

	// a different reviewer can now claim it
	reclaimed, err := w.Assign(context.Background(), item.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewInReview, reclaimed.Status)
	assert.Equal(t, "carol", *reclaimed.AssignedTo)
}

func TestApproveSurvivesLedgerFailure(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{fail: true}
	w := NewWorkflow(store, ledger, nil)
	item := enqueueItem(t, w, nil)

	_, err := w.Assign(context.Background(), item.ID, "alice")
	require.NoError(t, err)

	got, err := w.Approve(context.Background(), item.ID, "alice", nil,
		&entity.LedgerRecord{DocumentID: item.DocumentID})
	require.NoError(t, err)
	assert.Equal(t, constants.ReviewApproved, got.Status)
}
