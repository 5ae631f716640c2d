// Package wacrypt implements the WhatsApp media encryption scheme:
// HKDF-SHA256 key expansion from the per-message media key, AES-256-CBC
// for the payload and a truncated HMAC-SHA256 trailer for integrity.
package wacrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MediaKind selects the HKDF info string used for key expansion.
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindAudio    MediaKind = "audio"
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
)

// MACVariant reports which integrity check accepted the payload.
// Most senders MAC over iv||ciphertext; some older ones MAC over the
// ciphertext alone.
type MACVariant string

const (
	MACOverIVCiphertext MACVariant = "iv+ciphertext"
	MACOverCiphertext   MACVariant = "ciphertext"
)

const (
	macTagSize      = 10
	expandedKeySize = 112
)

var hkdfInfo = map[MediaKind]string{
	KindImage:    "WhatsApp Image Keys",
	KindAudio:    "WhatsApp Audio Keys",
	KindVideo:    "WhatsApp Video Keys",
	KindDocument: "WhatsApp Document Keys",
}

type mediaKeys struct {
	iv        []byte
	cipherKey []byte
	macKey    []byte
}

func deriveKeys(mediaKey []byte, kind MediaKind) (mediaKeys, error) {
	info, ok := hkdfInfo[kind]
	if !ok {
		return mediaKeys{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if len(mediaKey) == 0 {
		return mediaKeys{}, ErrEmptyMediaKey
	}
	expanded := make([]byte, expandedKeySize)
	r := hkdf.New(sha256.New, mediaKey, nil, []byte(info))
	if _, err := io.ReadFull(r, expanded); err != nil {
		return mediaKeys{}, fmt.Errorf("expand media key: %w", err)
	}
	// Bytes 80..112 are a ref key the transport never uses.
	return mediaKeys{
		iv:        expanded[0:16],
		cipherKey: expanded[16:48],
		macKey:    expanded[48:80],
	}, nil
}

// Decrypt verifies and decrypts an encrypted media blob downloaded from
// the WhatsApp CDN. The blob layout is ciphertext followed by a 10-byte
// truncated HMAC tag. The returned variant tells which MAC construction
// matched.
func Decrypt(data, mediaKey []byte, kind MediaKind) ([]byte, MACVariant, error) {
	keys, err := deriveKeys(mediaKey, kind)
	if err != nil {
		return nil, "", err
	}
	if len(data) < macTagSize+aes.BlockSize {
		return nil, "", ErrCiphertextTooShort
	}
	ciphertext := data[:len(data)-macTagSize]
	tag := data[len(data)-macTagSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, "", ErrCiphertextTooShort
	}

	variant, ok := checkMAC(keys, ciphertext, tag)
	if !ok {
		return nil, "", ErrInvalidMAC
	}

	block, err := aes.NewCipher(keys.cipherKey)
	if err != nil {
		return nil, "", fmt.Errorf("init cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, keys.iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := stripPadding(plaintext)
	if err != nil {
		return nil, "", err
	}
	return unpadded, variant, nil
}

// Encrypt produces a blob Decrypt accepts, using the standard MAC over
// iv||ciphertext. The IV is derived from the media key, so output is
// deterministic for a given key and payload.
func Encrypt(plaintext, mediaKey []byte, kind MediaKind) ([]byte, error) {
	keys, err := deriveKeys(mediaKey, kind)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keys.cipherKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	padded := applyPadding(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, keys.iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, keys.macKey)
	mac.Write(keys.iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)[:macTagSize]
	return append(ciphertext, tag...), nil
}

func checkMAC(keys mediaKeys, ciphertext, tag []byte) (MACVariant, bool) {
	mac := hmac.New(sha256.New, keys.macKey)
	mac.Write(keys.iv)
	mac.Write(ciphertext)
	if hmac.Equal(tag, mac.Sum(nil)[:macTagSize]) {
		return MACOverIVCiphertext, true
	}
	mac = hmac.New(sha256.New, keys.macKey)
	mac.Write(ciphertext)
	if hmac.Equal(tag, mac.Sum(nil)[:macTagSize]) {
		return MACOverCiphertext, true
	}
	return "", false
}

func stripPadding(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrInvalidPadding
	}
	pad := int(plaintext[len(plaintext)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(plaintext) {
		return nil, ErrInvalidPadding
	}
	for _, b := range plaintext[len(plaintext)-pad:] {
		if int(b) != pad {
			return nil, ErrInvalidPadding
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}

func applyPadding(plaintext []byte) []byte {
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}
