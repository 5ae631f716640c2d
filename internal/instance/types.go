package instance

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus values mirror the gateway's connection states.
const (
	StatusConnected    = "connected"
	StatusConnecting   = "connecting"
	StatusDisconnected = "disconnected"
)

// Instance is a registered WhatsApp transport instance on the Evolution
// gateway.
type Instance struct {
	ID                uuid.UUID  `json:"id"`
	EvolutionID       string     `json:"evolution_id"`
	Name              string     `json:"name"`
	InstanceName      string     `json:"instance_name"`
	BaseURL           string     `json:"base_url"`
	APIKey            string     `json:"-"`
	Status            string     `json:"status"`
	PhoneNumber       string     `json:"phone_number"`
	ProfileName       string     `json:"profile_name"`
	ProfilePicURL     string     `json:"profile_pic_url,omitempty"`
	IsActive          bool       `json:"is_active"`
	IgnoreOwnMessages bool       `json:"ignore_own_messages"`
	AuthorizedNumbers string     `json:"authorized_numbers,omitempty"`
	LastConnection    *time.Time `json:"last_connection,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AllowedNumbers parses the comma-separated allow list.
func (i Instance) AllowedNumbers() []string {
	raw := strings.Split(i.AuthorizedNumbers, ",")
	numbers := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n != "" {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// Allows reports whether the sender number passes the allow list.
// An empty list allows everyone.
func (i Instance) Allows(number string) bool {
	allowed := i.AllowedNumbers()
	if len(allowed) == 0 {
		return true
	}
	for _, n := range allowed {
		if n == number {
			return true
		}
	}
	return false
}

// ConnectionInfo is the subset of gateway state refreshed by the
// periodic sync.
type ConnectionInfo struct {
	PhoneNumber   string
	ProfileName   string
	ProfilePicURL string
	Status        string
	Connected     bool
}

// MapGatewayStatus converts an Evolution connection state into ours.
func MapGatewayStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StatusConnected
	case "connecting":
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}
