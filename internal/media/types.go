package media

import (
	"context"
	"io"
)

// StorageProvider abstracts object storage operations.
type StorageProvider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// AccessPath returns a consumer-accessible reference for a storage key.
	AccessPath(key string) string
}

// Transcriber converts an audio payload to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime string) (string, error)
}

// Resolution is the outcome of resolving one media descriptor.
type Resolution struct {
	// StorageKey locates the decrypted payload in the provider.
	StorageKey string
	// Mime is the detected container type.
	Mime string
	// Transcript is set for audio payloads when transcription succeeds.
	Transcript string
	// Fallback reports that the encrypted path failed and the payload
	// came from a direct download instead.
	Fallback bool
}
