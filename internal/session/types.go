package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the conversation routing state. Sessions in ai or human are
// "active"; closed is terminal and never reopened.
type Status string

const (
	StatusAI     Status = "ai"
	StatusHuman  Status = "human"
	StatusClosed Status = "closed"
)

// Active reports whether the session still routes inbound traffic.
func (s Status) Active() bool {
	return s == StatusAI || s == StatusHuman
}

// Session is one conversation with a WhatsApp contact.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	InstanceID *uuid.UUID `json:"instance_id,omitempty"`
	OwnerID    *uuid.UUID `json:"owner_id,omitempty"`
	FromNumber string     `json:"from_number"`
	ToNumber   string     `json:"to_number"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
