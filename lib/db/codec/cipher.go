package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Seal layout constants. Both supported AEADs use a 12-byte nonce and a
// 16-byte tag, so the per-record overhead is a fixed 28 bytes.
const (
	NonceSize    = 12
	TagSize      = 16
	SealOverhead = NonceSize + TagSize

	// MinKeyLength is the minimum accepted passphrase length.
	MinKeyLength = 16

	keySize          = 32 // both AEADs take a 256-bit key
	pbkdf2Iterations = 4096
)

// keySalt is a fixed salt: the same passphrase must derive the same key on
// every open of the same file.
var keySalt = []byte("fsKV/key-derivation/v1")

// ErrAuthFailed is returned when an AEAD tag rejects, which usually means
// the file was opened with the wrong key.
var ErrAuthFailed = errors.New("ciphertext authentication failed")

// DeriveKey stretches a passphrase to a 256-bit key with PBKDF2-SHA256.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), keySalt, pbkdf2Iterations, keySize, sha256.New)
}

// newAEAD constructs the AEAD cipher for an encryption ID. The passphrase
// must be at least MinKeyLength characters long.
func newAEAD(id EncryptionID, passphrase string) (cipher.AEAD, error) {
	if len(passphrase) < MinKeyLength {
		return nil, fmt.Errorf("encryption key must be at least %d characters", MinKeyLength)
	}

	key := DeriveKey(passphrase)

	switch id {
	case EncryptionAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case EncryptionChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("unknown encryption id %d", id)
	}
}

// Seal encrypts and authenticates plaintext.
// Output layout: nonce(12) || ciphertext || tag(16).
func Seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a sealed record produced by Seal.
func Open(aead cipher.AEAD, sealed []byte) ([]byte, error) {
	if len(sealed) < SealOverhead {
		return nil, ErrAuthFailed
	}
	plaintext, err := aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
