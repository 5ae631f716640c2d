package inbound

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/wacrypt"
)

func TestNormalize_Conversation(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"event": "messages.upsert",
		"instance": "support-line",
		"data": {
			"key": {"remoteJid": "5511999998888@s.whatsapp.net", "fromMe": false, "id": "BAE5F4A0"},
			"pushName": "Maria",
			"source": "android",
			"owner": "5511911112222@s.whatsapp.net",
			"instanceId": "inst-abc",
			"messageTimestamp": 1756300000,
			"message": {"conversation": "oi, preciso de ajuda"}
		}
	}`)

	msg, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "BAE5F4A0", msg.MessageID)
	assert.Equal(t, "5511999998888", msg.From)
	assert.Equal(t, "Maria", msg.PushName)
	assert.Equal(t, "android", msg.Source)
	assert.Equal(t, "support-line", msg.InstanceName)
	assert.Equal(t, "inst-abc", msg.InstanceID)
	assert.Equal(t, "5511911112222", msg.Owner)
	assert.Equal(t, message.KindText, msg.Kind)
	assert.Equal(t, "oi, preciso de ajuda", msg.Text)
	assert.Equal(t, time.Unix(1756300000, 0).UTC(), msg.Timestamp)
	assert.False(t, msg.HasMedia())
}

func TestNormalize_ExtendedText(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"data": {
		"key": {"remoteJid": "5511999998888@c.us", "id": "M2"},
		"message": {"extendedTextMessage": {"text": "segue o link"}}
	}}`)

	msg, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, message.KindText, msg.Kind)
	assert.Equal(t, "segue o link", msg.Text)
	assert.Equal(t, "5511999998888", msg.From)
}

func TestNormalize_ConversationWinsOverMedia(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"data": {
		"key": {"remoteJid": "1@s.whatsapp.net", "id": "M3"},
		"message": {
			"conversation": "texto",
			"imageMessage": {"url": "https://cdn/x.enc", "mediaKey": "a2V5"}
		}
	}}`)

	msg, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, message.KindText, msg.Kind)
	assert.False(t, msg.HasMedia())
}

func TestNormalize_MediaShapes(t *testing.T) {
	t.Parallel()

	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	cases := []struct {
		node     string
		kind     message.Kind
		crypto   wacrypt.MediaKind
		withText string
	}{
		{node: "imageMessage", kind: message.KindImage, crypto: wacrypt.KindImage, withText: "legenda"},
		{node: "audioMessage", kind: message.KindAudio, crypto: wacrypt.KindAudio},
		{node: "videoMessage", kind: message.KindVideo, crypto: wacrypt.KindVideo, withText: "olha isso"},
		{node: "documentMessage", kind: message.KindDocument, crypto: wacrypt.KindDocument},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()
			raw := fmt.Appendf(nil, `{"data": {
				"key": {"remoteJid": "1@s.whatsapp.net", "id": "M-%s"},
				"message": {"%s": {
					"url": "https://mmg.whatsapp.net/d/x.enc",
					"mediaKey": "%s",
					"mimetype": "application/octet-stream",
					"caption": "%s"
				}}
			}}`, tc.kind, tc.node, key, tc.withText)

			msg, err := Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, msg.Kind)
			assert.Equal(t, tc.withText, msg.Text)
			require.True(t, msg.HasMedia())
			assert.Equal(t, tc.crypto, msg.Media.Kind)
			assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), msg.Media.MediaKey)
		})
	}
}

func TestNormalize_MissingEnvelope(t *testing.T) {
	t.Parallel()

	_, err := Normalize([]byte(`{"event": "connection.update"}`))
	assert.ErrorIs(t, err, ErrMissingEnvelope)
}

func TestNormalize_NonMessageEvent(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"data": {"key": {"remoteJid": "1@s.whatsapp.net", "id": "X"}}}`,
		`{"data": {"key": {"remoteJid": "1@s.whatsapp.net", "id": "X"}, "message": {}}}`,
		`{"data": {"message": {"conversation": "hi"}, "key": {"id": "X"}}}`,
	}
	for _, raw := range cases {
		_, err := Normalize([]byte(raw))
		assert.ErrorIs(t, err, ErrNotAMessage, raw)
	}
}

func TestNormalize_StringTimestamp(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"data": {
		"key": {"remoteJid": "1@s.whatsapp.net", "id": "M4"},
		"messageTimestamp": "1756300000",
		"message": {"conversation": "oi"}
	}}`)

	msg, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1756300000, 0).UTC(), msg.Timestamp)
}

func TestCleanNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5511999998888", CleanNumber("5511999998888@s.whatsapp.net"))
	assert.Equal(t, "5511999998888", CleanNumber("5511999998888@c.us"))
	assert.Equal(t, "5511999998888", CleanNumber(" 5511999998888 "))
	assert.Equal(t, "", CleanNumber(""))
}
