package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello")},
		{"exact block", make([]byte, 16)},
		{"pdf-ish", append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{0xab}, 1000)...)},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"large", make([]byte, 1<<20)},
	}

	key := testKey(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := Encrypt(key, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			// IV plus at least one padded block, always block aligned.
			if len(ct) < IVSize+16 || (len(ct)-IVSize)%16 != 0 {
				t.Fatalf("ciphertext length = %d", len(ct))
			}

			pt, err := Decrypt(key, ct)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(pt, tt.plaintext) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(pt), len(tt.plaintext))
			}
		})
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same payload twice")

	a, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(a[:IVSize], b[:IVSize]) {
		t.Error("IV reused across encryptions")
	}
	if bytes.Equal(a, b) {
		t.Error("identical ciphertext for identical plaintext")
	}
}

func TestDecrypt_Tamper(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("tamper detection payload, long enough for several blocks")

	ct, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatal(err)
	}

	for i := range ct {
		flipped := append([]byte{}, ct...)
		flipped[i] ^= 0x01

		pt, err := Decrypt(key, flipped)
		if err == nil && bytes.Equal(pt, plaintext) {
			t.Fatalf("byte %d: tampered ciphertext decrypted to original plaintext", i)
		}
	}
}

func TestDecrypt_MalformedInput(t *testing.T) {
	key := testKey(t)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"shorter than iv", make([]byte, IVSize-1)},
		{"iv only", make([]byte, IVSize)},
		{"not block multiple", make([]byte, IVSize+15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(key, tt.data); !errors.Is(err, ErrDecryptionFailed) {
				t.Errorf("expected ErrDecryptionFailed, got %v", err)
			}
		})
	}
}

func TestDecrypt_Truncated(t *testing.T) {
	key := testKey(t)
	ct, err := Encrypt(key, []byte("truncate me"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(key, ct[:len(ct)-1]); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestEncryptDecrypt_InvalidKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, size)
		if _, err := Encrypt(key, []byte("x")); !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("Encrypt with %d-byte key: expected ErrInvalidKeySize, got %v", size, err)
		}
		if _, err := Decrypt(key, make([]byte, IVSize+16)); !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("Decrypt with %d-byte key: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
}

func TestParseKey(t *testing.T) {
	raw := testKey(t)

	key, err := ParseKey(hex.EncodeToString(raw))
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !bytes.Equal(key, raw) {
		t.Error("parsed key differs from source")
	}

	if _, err := ParseKey(""); err == nil {
		t.Error("empty key accepted")
	}
	if _, err := ParseKey("zz"); err == nil {
		t.Error("non-hex key accepted")
	}
	if _, err := ParseKey(hex.EncodeToString(raw[:16])); !errors.Is(err, ErrInvalidKeySize) {
		t.Error("short key accepted")
	}
}
