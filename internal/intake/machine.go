package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
	"docproc/internal/metrics"
)

// PipelineOutcome is what a full processing run reports back to the session.
type PipelineOutcome struct {
	DocumentID   uuid.UUID
	AutoApproved bool
	ReviewItemID *uuid.UUID
}

// Pipeline runs a submitted document through normalization, recognition,
// extraction, validation and routing. Synchronous from the session's
// perspective: the session waits for the outcome before advancing.
type Pipeline interface {
	Process(ctx context.Context, ev entity.InboundEvent, kind constants.DocumentKind) (*PipelineOutcome, error)
}

// DuplicateGuard answers whether an identical (filename, byte size) was
// already submitted by the client inside the rolling window.
type DuplicateGuard interface {
	SeenRecently(ctx context.Context, clientID uuid.UUID, filename string, size int64) (bool, error)
}

// Button is one tappable option in a reply.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Reply is the machine's outbound message for one inbound event.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

const actionReset = "reset"

// Machine is the per-sender conversational state machine. Events from the
// same sender are serialized; different senders proceed concurrently.
type Machine struct {
	sessions *SessionStore
	pipeline Pipeline
	dupGuard DuplicateGuard
	metrics  *metrics.Metrics
	logger   *slog.Logger

	senderLocks sync.Map // sender identity -> *sync.Mutex
}

func NewMachine(sessions *SessionStore, pipeline Pipeline, dupGuard DuplicateGuard,
	m *metrics.Metrics, logger *slog.Logger) *Machine {

	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		sessions: sessions,
		pipeline: pipeline,
		dupGuard: dupGuard,
		metrics:  m,
		logger:   logger,
	}
}

// Handle consumes one inbound event and returns the reply to send back.
// Events from one sender are handled strictly one at a time, so the session
// read-modify-write cannot interleave.
func (m *Machine) Handle(ctx context.Context, ev entity.InboundEvent) (Reply, error) {
	if ev.SenderIdentity == "" {
		return Reply{}, common.WrapError(common.ErrInvalidInput, "intake.handle",
			fmt.Errorf("sender identity is required"))
	}

	lock := m.senderLock(ev.SenderIdentity)
	lock.Lock()
	defer lock.Unlock()

	sess := m.sessions.Load(ev.SenderIdentity)
	if sess.ClientID == uuid.Nil {
		sess.ClientID = ev.ClientID
	}

	if isReset(ev) {
		m.sessions.Clear(ev.SenderIdentity)
		return Reply{Text: "Session reset. Send any message to start again."}, nil
	}

	reply, err := m.dispatch(ctx, sess, ev)
	m.logger.Debug("intake.handle",
		"sender", ev.SenderIdentity, "event", ev.Type, "state", sess.State)
	return reply, err
}

func (m *Machine) dispatch(ctx context.Context, sess *entity.Session, ev entity.InboundEvent) (Reply, error) {
	switch sess.State {
	case constants.SessionIdle:
		return m.fromIdle(sess)
	case constants.SessionTypeSelection:
		return m.fromTypeSelection(sess, ev)
	case constants.SessionAwaitingDoc:
		return m.fromAwaitingDocument(ctx, sess, ev)
	case constants.SessionConfirming:
		return Reply{Text: "Your document is with a reviewer. You will be notified once it is confirmed."}, nil
	default:
		// processing is never observable here: the pipeline runs inside the
		// sender's lock, so a stuck state means a crash mid-run; recover to idle
		m.toIdle(sess)
		return m.fromIdle(sess)
	}
}

func (m *Machine) fromIdle(sess *entity.Session) (Reply, error) {
	sess.State = constants.SessionTypeSelection
	m.sessions.Save(sess)
	return Reply{
		Text:    "What would you like to submit?",
		Buttons: kindButtons(),
	}, nil
}

func (m *Machine) fromTypeSelection(sess *entity.Session, ev entity.InboundEvent) (Reply, error) {
	label := ev.ActionID
	if label == "" {
		label = ev.Text
	}
	kind, ok := constants.CanonicalizeKind(label)
	if !ok {
		return Reply{
			Text:    "Please pick one of the document types below.",
			Buttons: kindButtons(),
		}, nil
	}

	sess.DocumentKind = kind
	sess.State = constants.SessionAwaitingDoc
	m.sessions.Save(sess)
	return Reply{Text: fmt.Sprintf("Got it: %s. Now send the document as a file or photo.", kind)}, nil
}

func (m *Machine) fromAwaitingDocument(ctx context.Context, sess *entity.Session, ev entity.InboundEvent) (Reply, error) {
	if !ev.IsDocumentShaped() {
		// anything that is not a document restarts the flow
		m.toIdle(sess)
		return Reply{
			Text:    "That was not a document. Let's start over: what would you like to submit?",
			Buttons: kindButtons(),
		}, nil
	}

	if m.dupGuard != nil {
		seen, err := m.dupGuard.SeenRecently(ctx, ev.ClientID, ev.Filename, int64(len(ev.Payload)))
		if err != nil {
			return Reply{}, fmt.Errorf("duplicate check: %w", err)
		}
		if seen {
			if m.metrics != nil {
				m.metrics.DuplicatesTotal.Inc()
			}
			m.toIdle(sess)
			return Reply{Text: "This file was already submitted recently, so it was not processed again."},
				common.WrapError(common.ErrDuplicateSubmission, "intake.submit",
					fmt.Errorf("file %q already seen for client %s", ev.Filename, ev.ClientID))
		}
	}

	sess.State = constants.SessionProcessing
	m.sessions.Save(sess)

	outcome, err := m.pipeline.Process(ctx, ev, sess.DocumentKind)
	if err != nil {
		m.toIdle(sess)
		m.logger.Error("intake.pipeline_failed", "sender", ev.SenderIdentity, "error", err)
		return Reply{Text: "Something went wrong while reading your document. Please try again."}, err
	}

	if outcome.AutoApproved {
		// finalized: the workflow is complete and the session is gone
		m.sessions.Clear(sess.ChannelIdentity)
		return Reply{Text: "Your document was processed and recorded. You are all set."}, nil
	}

	sess.State = constants.SessionConfirming
	sess.PendingDocumentID = &outcome.DocumentID
	m.sessions.Save(sess)
	return Reply{Text: "Your document needs a quick human check. You will hear back shortly."}, nil
}

// ResolvePending completes a session waiting on a reviewer decision. Called
// by the review workflow when the document's item reaches a terminal state.
func (m *Machine) ResolvePending(sender string, approved bool) Reply {
	lock := m.senderLock(sender)
	lock.Lock()
	defer lock.Unlock()

	sess := m.sessions.Load(sender)
	if sess.State != constants.SessionConfirming {
		return Reply{}
	}

	m.sessions.Clear(sender)
	if approved {
		return Reply{Text: "Your document was reviewed and recorded. You are all set."}
	}
	return Reply{Text: "Your document was rejected during review. Please submit a corrected copy."}
}

func (m *Machine) toIdle(sess *entity.Session) {
	sess.State = constants.SessionIdle
	sess.DocumentKind = ""
	sess.PendingDocumentID = nil
	m.sessions.Save(sess)
}

func (m *Machine) senderLock(sender string) *sync.Mutex {
	v, _ := m.senderLocks.LoadOrStore(sender, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func isReset(ev entity.InboundEvent) bool {
	if ev.Type == entity.EventButtonClick && ev.ActionID == actionReset {
		return true
	}
	if ev.Type == entity.EventText {
		switch strings.ToLower(strings.TrimSpace(ev.Text)) {
		case "reset", "cancel", "start over":
			return true
		}
	}
	return false
}

func kindButtons() []Button {
	kinds := constants.KindsAsStringSlice()
	out := make([]Button, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Button{ID: k, Label: k})
	}
	return out
}

// IsDuplicate reports whether err is the duplicate-submission rejection.
func IsDuplicate(err error) bool {
	return errors.Is(err, common.ErrDuplicateSubmission)
}
