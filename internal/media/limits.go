package media

import (
	"errors"
	"fmt"
	"io"
)

// MaxAssetBytes caps any single inbound or outbound media payload.
// WhatsApp voice notes and images stay well under 16MB; 64MB leaves
// headroom for documents without letting a bad CDN response buffer
// unbounded.
const MaxAssetBytes int64 = 64 << 20

// ReadAllWithLimit reads reader to the end, rejecting payloads larger
// than maxBytes with ErrAssetTooLarge.
func ReadAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if reader == nil {
		return nil, errors.New("reader is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("max bytes must be positive")
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	return data, nil
}
