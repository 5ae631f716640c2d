package inbound

import (
	"strings"
	"time"

	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/wacrypt"
)

// Message is the channel-agnostic form of one inbound webhook event.
type Message struct {
	MessageID    string
	From         string
	PushName     string
	Source       string
	Timestamp    time.Time
	Kind         message.Kind
	Text         string
	Media        *MediaDescriptor
	InstanceName string
	InstanceID   string
	Owner        string
	Raw          []byte
}

// HasMedia reports whether an encrypted media descriptor is attached.
func (m *Message) HasMedia() bool {
	return m.Media != nil && m.Media.URL != ""
}

// MediaDescriptor points at an encrypted CDN blob and carries the key
// needed to decrypt it.
type MediaDescriptor struct {
	URL      string
	MediaKey []byte
	Mime     string
	Kind     wacrypt.MediaKind
	FileName string
}

// CleanNumber strips WhatsApp JID suffixes, leaving the bare number.
func CleanNumber(jid string) string {
	jid = strings.TrimSpace(jid)
	jid = strings.TrimSuffix(jid, "@s.whatsapp.net")
	jid = strings.TrimSuffix(jid, "@c.us")
	return jid
}
