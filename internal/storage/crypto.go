package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// gcmMagic prefixes every encrypted object.
const gcmMagic = "GCM3NCR0"

const (
	saltSize   = 16
	nonceSize  = 12
	tagSize    = 16
	kdfRounds  = 100000
	keySize    = 32
	headerSize = len(gcmMagic) + saltSize + nonceSize
)

// ErrNotEncrypted is returned by Open for data without the GCM header.
var ErrNotEncrypted = errors.New("data is not encrypted")

// IsEncrypted reports whether data carries the GCM header.
func IsEncrypted(data []byte) bool { return bytes.HasPrefix(data, []byte(gcmMagic)) }

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfRounds, keySize, sha256.New)
}

// Seal encrypts data with AES-256-GCM.
// Format: magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
func Seal(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("encryption password is empty")
	}
	header := make([]byte, headerSize)
	copy(header, gcmMagic)
	salt := header[len(gcmMagic) : len(gcmMagic)+saltSize]
	nonce := header[len(gcmMagic)+saltSize:]
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(header, nonce, data, nil), nil
}

// Open decrypts data produced by Seal.
func Open(data []byte, password string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	if len(data) < headerSize+tagSize {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt := data[len(gcmMagic) : len(gcmMagic)+saltSize]
	nonce := data[len(gcmMagic)+saltSize : headerSize]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
