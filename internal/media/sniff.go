package media

import "bytes"

// Format describes a sniffed media container.
type Format struct {
	Ext  string
	Mime string
}

// DetectImageFormat sniffs the leading magic bytes of an image payload.
// Decryption with a wrong key variant can still yield bytes that
// unpad cleanly, so callers must not trust payloads that fail this.
func DetectImageFormat(b []byte) (Format, bool) {
	switch {
	case len(b) >= 3 && bytes.Equal(b[:3], []byte{0xff, 0xd8, 0xff}):
		return Format{Ext: ".jpg", Mime: "image/jpeg"}, true
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}):
		return Format{Ext: ".png", Mime: "image/png"}, true
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("GIF8")):
		return Format{Ext: ".gif", Mime: "image/gif"}, true
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return Format{Ext: ".webp", Mime: "image/webp"}, true
	}
	return Format{}, false
}

// DetectAudioFormat sniffs common voice-note containers.
func DetectAudioFormat(b []byte) (Format, bool) {
	switch {
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("OggS")):
		return Format{Ext: ".ogg", Mime: "audio/ogg"}, true
	case len(b) >= 3 && bytes.Equal(b[:3], []byte("ID3")):
		return Format{Ext: ".mp3", Mime: "audio/mpeg"}, true
	case len(b) >= 2 && b[0] == 0xff && b[1]&0xe0 == 0xe0:
		return Format{Ext: ".mp3", Mime: "audio/mpeg"}, true
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return Format{Ext: ".wav", Mime: "audio/wav"}, true
	}
	return Format{}, false
}
