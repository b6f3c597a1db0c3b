package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
	"docproc/internal/metrics"
)

type fakePipeline struct {
	outcome PipelineOutcome
	err     error
	calls   int
}

func (p *fakePipeline) Process(_ context.Context, _ entity.InboundEvent, _ constants.DocumentKind) (*PipelineOutcome, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := p.outcome
	return &out, nil
}

type fakeDupGuard struct {
	seen map[string]bool
}

func (g *fakeDupGuard) SeenRecently(_ context.Context, _ uuid.UUID, filename string, _ int64) (bool, error) {
	return g.seen[filename], nil
}

func newMachine(pipeline *fakePipeline, guard *fakeDupGuard) *Machine {
	if guard == nil {
		guard = &fakeDupGuard{seen: map[string]bool{}}
	}
	return NewMachine(NewSessionStore(time.Minute), pipeline, guard, nil, nil)
}

func textEvent(sender, text string) entity.InboundEvent {
	return entity.InboundEvent{
		SenderIdentity: sender, ClientID: uuid.New(), Type: entity.EventText, Text: text,
	}
}

func docEvent(sender, filename string) entity.InboundEvent {
	return entity.InboundEvent{
		SenderIdentity: sender,
		ClientID:       uuid.New(),
		Type:           entity.EventDocument,
		Filename:       filename,
		MimeType:       "application/pdf",
		Payload:        []byte("%PDF-1.4 fake"),
	}
}

func advanceToAwaitingDoc(t *testing.T, m *Machine, sender string) {
	t.Helper()
	_, err := m.Handle(context.Background(), textEvent(sender, "hi"))
	require.NoError(t, err)
	_, err = m.Handle(context.Background(), entity.InboundEvent{
		SenderIdentity: sender, Type: entity.EventButtonClick, ActionID: "Invoice",
	})
	require.NoError(t, err)
}

func TestIdleShowsMenu(t *testing.T) {
	m := newMachine(&fakePipeline{}, nil)

	reply, err := m.Handle(context.Background(), textEvent("alice", "hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Buttons)
	assert.Equal(t, constants.SessionTypeSelection, m.sessions.Load("alice").State)
}

func TestTypeSelectionAcceptsButton(t *testing.T) {
	m := newMachine(&fakePipeline{}, nil)
	_, err := m.Handle(context.Background(), textEvent("alice", "hello"))
	require.NoError(t, err)

	reply, err := m.Handle(context.Background(), entity.InboundEvent{
		SenderIdentity: "alice", Type: entity.EventButtonClick, ActionID: "Invoice",
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Invoice")

	sess := m.sessions.Load("alice")
	assert.Equal(t, constants.SessionAwaitingDoc, sess.State)
	assert.Equal(t, constants.KindInvoice, sess.DocumentKind)
}

func TestTypeSelectionRepromptOnUnknownLabel(t *testing.T) {
	m := newMachine(&fakePipeline{}, nil)
	_, err := m.Handle(context.Background(), textEvent("alice", "hello"))
	require.NoError(t, err)

	reply, err := m.Handle(context.Background(), textEvent("alice", "a poem"))
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Buttons)
	assert.Equal(t, constants.SessionTypeSelection, m.sessions.Load("alice").State)
}

func TestAwaitingDocumentRejectsNonDocument(t *testing.T) {
	m := newMachine(&fakePipeline{}, nil)
	advanceToAwaitingDoc(t, m, "alice")

	reply, err := m.Handle(context.Background(), textEvent("alice", "here it comes"))
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Buttons, "restarts from the menu")
	assert.Equal(t, constants.SessionTypeSelection, m.sessions.Load("alice").State,
		"non-document resets the flow")
}

func TestAutoApprovedSubmissionClearsSession(t *testing.T) {
	pipeline := &fakePipeline{outcome: PipelineOutcome{DocumentID: uuid.New(), AutoApproved: true}}
	m := newMachine(pipeline, nil)
	advanceToAwaitingDoc(t, m, "alice")

	reply, err := m.Handle(context.Background(), docEvent("alice", "inv.pdf"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "recorded")
	assert.Equal(t, 1, pipeline.calls)
	assert.Equal(t, constants.SessionIdle, m.sessions.Load("alice").State,
		"cleared session reloads as fresh idle")
}

func TestRoutedToReviewEntersConfirming(t *testing.T) {
	docID := uuid.New()
	pipeline := &fakePipeline{outcome: PipelineOutcome{DocumentID: docID}}
	m := newMachine(pipeline, nil)
	advanceToAwaitingDoc(t, m, "alice")

	_, err := m.Handle(context.Background(), docEvent("alice", "inv.pdf"))
	require.NoError(t, err)

	sess := m.sessions.Load("alice")
	assert.Equal(t, constants.SessionConfirming, sess.State)
	require.NotNil(t, sess.PendingDocumentID)
	assert.Equal(t, docID, *sess.PendingDocumentID)

	// further messages while waiting do not disturb the session
	reply, err := m.Handle(context.Background(), textEvent("alice", "any news?"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "reviewer")
	assert.Equal(t, constants.SessionConfirming, m.sessions.Load("alice").State)
}

func TestResolvePendingClearsConfirmingSession(t *testing.T) {
	pipeline := &fakePipeline{outcome: PipelineOutcome{DocumentID: uuid.New()}}
	m := newMachine(pipeline, nil)
	advanceToAwaitingDoc(t, m, "alice")
	_, err := m.Handle(context.Background(), docEvent("alice", "inv.pdf"))
	require.NoError(t, err)

	reply := m.ResolvePending("alice", true)
	assert.Contains(t, reply.Text, "recorded")
	assert.Equal(t, constants.SessionIdle, m.sessions.Load("alice").State)
}

func TestDuplicateSubmissionRejectedAndSessionIdles(t *testing.T) {
	pipeline := &fakePipeline{}
	guard := &fakeDupGuard{seen: map[string]bool{"inv.pdf": true}}
	m := newMachine(pipeline, guard)
	advanceToAwaitingDoc(t, m, "alice")

	reply, err := m.Handle(context.Background(), docEvent("alice", "inv.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateSubmission))
	assert.Contains(t, reply.Text, "already submitted")
	assert.Equal(t, 0, pipeline.calls, "rejected before entering the pipeline")
	assert.Equal(t, constants.SessionIdle, m.sessions.Load("alice").State)
}

func TestDuplicateRejectionIncrementsCounter(t *testing.T) {
	guard := &fakeDupGuard{seen: map[string]bool{"inv.pdf": true}}
	met := metrics.New()
	m := NewMachine(NewSessionStore(time.Minute), &fakePipeline{}, guard, met, nil)
	advanceToAwaitingDoc(t, m, "alice")

	_, err := m.Handle(context.Background(), docEvent("alice", "inv.pdf"))
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(met.DuplicatesTotal))
}

func TestPipelineFailureReturnsToIdle(t *testing.T) {
	pipeline := &fakePipeline{err: common.WrapError(common.ErrNormalization, "normalize", errors.New("bad pdf"))}
	m := newMachine(pipeline, nil)
	advanceToAwaitingDoc(t, m, "alice")

	_, err := m.Handle(context.Background(), docEvent("alice", "inv.pdf"))
	require.Error(t, err)
	assert.Equal(t, constants.SessionIdle, m.sessions.Load("alice").State)
}

func TestResetFromAnyState(t *testing.T) {
	m := newMachine(&fakePipeline{}, nil)
	advanceToAwaitingDoc(t, m, "alice")

	reply, err := m.Handle(context.Background(), textEvent("alice", "cancel"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "reset")
	assert.Equal(t, constants.SessionIdle, m.sessions.Load("alice").State)
}

func TestSendersAreIndependent(t *testing.T) {
	m := newMachine(&fakePipeline{}, nil)
	advanceToAwaitingDoc(t, m, "alice")

	_, err := m.Handle(context.Background(), textEvent("bob", "hello"))
	require.NoError(t, err)

	assert.Equal(t, constants.SessionAwaitingDoc, m.sessions.Load("alice").State)
	assert.Equal(t, constants.SessionTypeSelection, m.sessions.Load("bob").State)
}

func TestSessionExpiryStartsFresh(t *testing.T) {
	store := NewSessionStore(time.Minute)
	base := time.Now()
	store.now = func() time.Time { return base }

	sess := store.Load("alice")
	sess.State = constants.SessionAwaitingDoc
	store.Save(sess)

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, constants.SessionIdle, store.Load("alice").State)
}

func TestSweepDropsExpiredSessions(t *testing.T) {
	store := NewSessionStore(time.Minute)
	base := time.Now()
	store.now = func() time.Time { return base }

	store.Save(&entity.Session{ChannelIdentity: "old"})
	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	store.Save(&entity.Session{ChannelIdentity: "fresh"})

	assert.Equal(t, 1, store.Sweep())
}
