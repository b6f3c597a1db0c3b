package entity

import (
	"time"

	"github.com/google/uuid"

	"docproc/constants"
)

// Session is the short-lived conversational intake state for one sender.
// Keyed by channel identity; cleared on workflow completion or explicit reset.
type Session struct {
	ChannelIdentity   string                 `json:"channel_identity"`
	ClientID          uuid.UUID              `json:"client_id"`
	State             constants.SessionState `json:"state"`
	DocumentKind      constants.DocumentKind `json:"document_kind,omitempty"`
	PendingDocumentID *uuid.UUID             `json:"pending_document_id,omitempty"`
	Context           map[string]string      `json:"context,omitempty"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// InboundEventType classifies channel events consumed by the intake machine.
type InboundEventType string

const (
	EventText        InboundEventType = "text"
	EventImage       InboundEventType = "image"
	EventDocument    InboundEventType = "document"
	EventButtonClick InboundEventType = "button_click"
)

// InboundEvent is one message from the channel transport.
type InboundEvent struct {
	SenderIdentity string           `json:"sender_identity"`
	ClientID       uuid.UUID        `json:"client_id"`
	Type           InboundEventType `json:"type"`
	Text           string           `json:"text,omitempty"`
	ActionID       string           `json:"action_id,omitempty"` // opaque button id
	Filename       string           `json:"filename,omitempty"`
	MimeType       string           `json:"mime_type,omitempty"`
	Payload        []byte           `json:"payload,omitempty"`
	ReceivedAt     time.Time        `json:"received_at"`
}

// IsDocumentShaped reports whether the event can enter the pipeline.
func (e InboundEvent) IsDocumentShaped() bool {
	return (e.Type == EventDocument || e.Type == EventImage) && len(e.Payload) > 0
}
