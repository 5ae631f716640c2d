package message

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies the inbound payload shape.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// ProcessingStatus tracks a message through the pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Message is a persisted inbound message. MessageID is the provider's
// identifier and is unique across deliveries; redelivered webhooks map
// to the same row.
type Message struct {
	ID                    uuid.UUID        `json:"id"`
	SessionID             uuid.UUID        `json:"session_id"`
	OwnerID               *uuid.UUID       `json:"owner_id,omitempty"`
	MessageID             string           `json:"message_id"`
	Kind                  Kind             `json:"kind"`
	Content               string           `json:"content"`
	MediaURL              string           `json:"media_url,omitempty"`
	MediaRef              string           `json:"media_ref,omitempty"`
	ProcessingStatus      ProcessingStatus `json:"processing_status"`
	Response              string           `json:"response,omitempty"`
	AudioTranscript       string           `json:"audio_transcript,omitempty"`
	SenderName            string           `json:"sender_name,omitempty"`
	Source                string           `json:"source,omitempty"`
	RawPayload            []byte           `json:"-"`
	ReceivedWhileInactive bool             `json:"received_while_inactive"`
	ReceivedAt            *time.Time       `json:"received_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Draft carries the fields known at ingest time.
type Draft struct {
	SessionID             uuid.UUID
	OwnerID               *uuid.UUID
	MessageID             string
	Kind                  Kind
	Content               string
	MediaURL              string
	SenderName            string
	Source                string
	RawPayload            []byte
	ReceivedWhileInactive bool
	ReceivedAt            *time.Time
}
