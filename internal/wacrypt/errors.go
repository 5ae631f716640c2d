package wacrypt

import "errors"

var (
	// ErrUnknownKind indicates a media kind with no HKDF info string.
	ErrUnknownKind = errors.New("unknown media kind")
	// ErrEmptyMediaKey indicates a missing or empty media key.
	ErrEmptyMediaKey = errors.New("empty media key")
	// ErrCiphertextTooShort indicates a blob too small to hold a MAC tag and one cipher block.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	// ErrInvalidMAC indicates neither MAC construction matched the trailer tag.
	ErrInvalidMAC = errors.New("media MAC verification failed")
	// ErrInvalidPadding indicates a malformed PKCS#7 trailer after decryption.
	ErrInvalidPadding = errors.New("invalid padding")
)
