package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"docproc/internal/common"
	"docproc/internal/entity"
)

// Queue is the NATS-backed transport for inbound channel events and the
// ledger handoff. Handoff is at-least-once; the intake duplicate guard is the
// idempotency backstop for redelivered submissions.
type Queue struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func Connect(cfg common.QueueConfig, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("queue.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("queue.reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info("queue.connected", "url", cfg.URL, "subject", cfg.Subject)
	return &Queue{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

func (q *Queue) Close() {
	if err := q.conn.Drain(); err != nil {
		q.logger.Warn("queue.drain_error", "error", err)
	}
}

// PublishInbound puts one channel event on the wire for a worker to pick up.
func (q *Queue) PublishInbound(ev entity.InboundEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := q.conn.Publish(q.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// SubscribeInbound consumes events in a queue group so multiple workers
// share the load without double-processing.
func (q *Queue) SubscribeInbound(ctx context.Context, handler func(context.Context, entity.InboundEvent)) (*nats.Subscription, error) {
	sub, err := q.conn.QueueSubscribe(q.subject, "docproc-workers", func(msg *nats.Msg) {
		var ev entity.InboundEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			q.logger.Error("queue.decode_error", "error", err, "bytes", len(msg.Data))
			return
		}
		handler(ctx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q.subject, err)
	}
	return sub, nil
}

// PublishLedgerRecord emits the bookkeeping handoff for an approved document.
func (q *Queue) PublishLedgerRecord(_ context.Context, rec entity.LedgerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}
	if err := q.conn.Publish(q.subject+".ledger", data); err != nil {
		return fmt.Errorf("publish ledger record: %w", err)
	}
	q.logger.Info("queue.ledger.published", "document_id", rec.DocumentID)
	return nil
}
