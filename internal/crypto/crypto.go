package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Package crypto implements the at-rest transform for vault payloads:
// AES-256-CBC with PKCS#7 padding and a fresh random IV prepended to every
// ciphertext. The on-disk layout is IV (16 bytes) followed by the CBC
// ciphertext. The whole payload is transformed in one pass; size limits are
// enforced by the caller.

const (
	// KeySize is the required raw key length (AES-256).
	KeySize = 32
	// IVSize is the CBC initialization vector length prepended to ciphertext.
	IVSize = aes.BlockSize
)

var (
	// ErrInvalidKeySize is returned when the key is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrDecryptionFailed is returned for any undecryptable input: shorter
	// than the IV, ciphertext not a multiple of the block size, or invalid
	// padding after decryption.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// ParseKey decodes a hex-encoded key and enforces the exact raw length.
// Startup should fail fast on an error from here.
func ParseKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	return key, nil
}

// Encrypt encrypts plaintext under AES-256-CBC and returns IV || ciphertext.
// The IV is freshly drawn from crypto/rand on every call; it is never cached
// or derived from the content.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)

	out := make([]byte, IVSize+len(padded))
	iv := out[:IVSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], padded)
	return out, nil
}

// Decrypt splits data into IV and ciphertext, decrypts, and strips padding.
func Decrypt(key, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	if len(data) < IVSize {
		return nil, fmt.Errorf("%w: input shorter than iv", ErrDecryptionFailed)
	}

	iv, ciphertext := data[:IVSize], data[IVSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not a block multiple", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext, aes.BlockSize)
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length", ErrDecryptionFailed)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding byte", ErrDecryptionFailed)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrDecryptionFailed)
		}
	}
	return b[:len(b)-n], nil
}
