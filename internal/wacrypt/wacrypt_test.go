package wacrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMediaKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	kinds := []MediaKind{KindImage, KindAudio, KindVideo, KindDocument}
	for _, kind := range kinds {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()
			key := testMediaKey(t)
			payload := []byte("ogg-or-jpeg-bytes: not a multiple of the block size")

			blob, err := Encrypt(payload, key, kind)
			require.NoError(t, err)

			got, variant, err := Decrypt(blob, key, kind)
			require.NoError(t, err)
			assert.Equal(t, MACOverIVCiphertext, variant)
			assert.Equal(t, payload, got)
		})
	}
}

func TestDecrypt_AcceptsCiphertextOnlyMAC(t *testing.T) {
	t.Parallel()

	key := testMediaKey(t)
	payload := []byte("legacy sender payload")

	blob, err := Encrypt(payload, key, KindImage)
	require.NoError(t, err)

	// Rewrite the trailer with the MAC computed over the ciphertext alone.
	keys, err := deriveKeys(key, KindImage)
	require.NoError(t, err)
	ciphertext := blob[:len(blob)-macTagSize]
	mac := hmac.New(sha256.New, keys.macKey)
	mac.Write(ciphertext)
	legacy := append(bytes.Clone(ciphertext), mac.Sum(nil)[:macTagSize]...)

	got, variant, err := Decrypt(legacy, key, KindImage)
	require.NoError(t, err)
	assert.Equal(t, MACOverCiphertext, variant)
	assert.Equal(t, payload, got)
}

func TestDecrypt_TamperedTag(t *testing.T) {
	t.Parallel()

	key := testMediaKey(t)
	blob, err := Encrypt([]byte("payload"), key, KindAudio)
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, _, err = Decrypt(blob, key, KindAudio)
	assert.ErrorIs(t, err, ErrInvalidMAC)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	t.Parallel()

	key := testMediaKey(t)
	blob, err := Encrypt([]byte("payload"), key, KindAudio)
	require.NoError(t, err)

	blob[0] ^= 0xff
	_, _, err = Decrypt(blob, key, KindAudio)
	assert.ErrorIs(t, err, ErrInvalidMAC)
}

func TestDecrypt_WrongKind(t *testing.T) {
	t.Parallel()

	key := testMediaKey(t)
	blob, err := Encrypt([]byte("payload"), key, KindImage)
	require.NoError(t, err)

	// Audio keys derive differently, so the MAC cannot match.
	_, _, err = Decrypt(blob, key, KindAudio)
	assert.ErrorIs(t, err, ErrInvalidMAC)

	_, _, err = Decrypt(blob, key, MediaKind("sticker"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecrypt_TooShort(t *testing.T) {
	t.Parallel()

	key := testMediaKey(t)
	_, _, err := Decrypt(make([]byte, macTagSize+aes.BlockSize-1), key, KindImage)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	// Ciphertext not block aligned.
	_, _, err = Decrypt(make([]byte, macTagSize+aes.BlockSize+1), key, KindImage)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestDecrypt_EmptyMediaKey(t *testing.T) {
	t.Parallel()

	_, _, err := Decrypt(make([]byte, 64), nil, KindImage)
	assert.ErrorIs(t, err, ErrEmptyMediaKey)
}

func TestStripPadding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      []byte
		want    []byte
		wantErr bool
	}{
		{name: "single byte", in: append([]byte("abcdefghijklmno"), 1), want: []byte("abcdefghijklmno")},
		{name: "full block", in: bytes.Repeat([]byte{16}, 16), want: []byte{}},
		{name: "zero pad byte", in: append(bytes.Repeat([]byte{0}, 15), 0), wantErr: true},
		{name: "pad exceeds block", in: append(bytes.Repeat([]byte{0}, 15), 17), wantErr: true},
		{name: "inconsistent fill", in: append([]byte{1, 2, 3}, 3, 9, 3), wantErr: true},
		{name: "empty", in: nil, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := stripPadding(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPadding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
