// Package inbound normalizes Evolution webhook payloads into a
// channel-agnostic message form.
package inbound

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/wacrypt"
)

var (
	// ErrMalformedPayload indicates a body that is not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMissingEnvelope indicates the payload has no data object.
	ErrMissingEnvelope = errors.New("payload missing data envelope")
	// ErrNotAMessage indicates a structurally valid event that carries no
	// user message (connection updates, status events).
	ErrNotAMessage = errors.New("event is not a message")
)

type envelope struct {
	Event    string     `json:"event"`
	Instance string     `json:"instance"`
	Data     *eventData `json:"data"`
}

type eventData struct {
	Key              eventKey     `json:"key"`
	PushName         string       `json:"pushName"`
	MessageTimestamp flexInt64    `json:"messageTimestamp"`
	Source           string       `json:"source"`
	Owner            string       `json:"owner"`
	InstanceID       string       `json:"instanceId"`
	Message          *messageBody `json:"message"`
}

type eventKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type messageBody struct {
	Conversation        string     `json:"conversation"`
	ExtendedTextMessage *extended  `json:"extendedTextMessage"`
	ImageMessage        *mediaNode `json:"imageMessage"`
	AudioMessage        *mediaNode `json:"audioMessage"`
	VideoMessage        *mediaNode `json:"videoMessage"`
	DocumentMessage     *mediaNode `json:"documentMessage"`
}

type extended struct {
	Text string `json:"text"`
}

type mediaNode struct {
	URL      string `json:"url"`
	MediaKey string `json:"mediaKey"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
}

// flexInt64 tolerates both numeric and quoted timestamps.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	*f = flexInt64(n)
	return nil
}

// extractor probes one payload shape. Ordering matters: the first
// matching shape wins.
type extractor func(*eventData, *Message) bool

var extractors = []extractor{
	extractConversation,
	extractExtendedText,
	extractImage,
	extractAudio,
	extractVideo,
	extractDocument,
}

// Normalize parses a raw webhook body. It returns ErrMissingEnvelope
// when the data object is absent and ErrNotAMessage for events that
// carry no user message.
func Normalize(raw []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Data == nil {
		return nil, ErrMissingEnvelope
	}
	data := env.Data
	if data.Message == nil || data.Key.RemoteJID == "" {
		return nil, ErrNotAMessage
	}

	msg := &Message{
		MessageID:    data.Key.ID,
		From:         CleanNumber(data.Key.RemoteJID),
		PushName:     data.PushName,
		Source:       data.Source,
		InstanceName: env.Instance,
		InstanceID:   data.InstanceID,
		Owner:        CleanNumber(data.Owner),
		Raw:          raw,
	}
	if data.MessageTimestamp > 0 {
		msg.Timestamp = time.Unix(int64(data.MessageTimestamp), 0).UTC()
	}

	for _, extract := range extractors {
		if extract(data, msg) {
			return msg, nil
		}
	}
	return nil, ErrNotAMessage
}

func extractConversation(data *eventData, msg *Message) bool {
	if data.Message.Conversation == "" {
		return false
	}
	msg.Kind = message.KindText
	msg.Text = data.Message.Conversation
	return true
}

func extractExtendedText(data *eventData, msg *Message) bool {
	ext := data.Message.ExtendedTextMessage
	if ext == nil || ext.Text == "" {
		return false
	}
	msg.Kind = message.KindText
	msg.Text = ext.Text
	return true
}

func extractImage(data *eventData, msg *Message) bool {
	return extractMedia(data.Message.ImageMessage, message.KindImage, wacrypt.KindImage, msg)
}

func extractAudio(data *eventData, msg *Message) bool {
	return extractMedia(data.Message.AudioMessage, message.KindAudio, wacrypt.KindAudio, msg)
}

// Video carries a decryptable thumbnail-style payload and a caption, so
// it follows the image path downstream.
func extractVideo(data *eventData, msg *Message) bool {
	return extractMedia(data.Message.VideoMessage, message.KindVideo, wacrypt.KindVideo, msg)
}

func extractDocument(data *eventData, msg *Message) bool {
	return extractMedia(data.Message.DocumentMessage, message.KindDocument, wacrypt.KindDocument, msg)
}

func extractMedia(node *mediaNode, kind message.Kind, cryptoKind wacrypt.MediaKind, msg *Message) bool {
	if node == nil {
		return false
	}
	msg.Kind = kind
	msg.Text = node.Caption
	desc := &MediaDescriptor{
		URL:      node.URL,
		Mime:     node.Mimetype,
		Kind:     cryptoKind,
		FileName: node.FileName,
	}
	if node.MediaKey != "" {
		if key, err := base64.StdEncoding.DecodeString(node.MediaKey); err == nil {
			desc.MediaKey = key
		}
	}
	msg.Media = desc
	return true
}
