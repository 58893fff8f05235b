package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Cipher mode codepoints negotiated in the 3-bit mode field of the
// signalling word. Only ModeAES256CBC is ever selected by a Link;
// ModeReservedHPKE exists so the codec stays extensible (§9 Design
// Notes) and is rejected by both validate_request and validate_proof.
type Mode uint8

const (
	ModeAES256CBC    Mode = 0
	ModeReservedHPKE Mode = 1
)

// KeySize returns the derived symmetric key length for a mode: 32
// bytes for AES-128 class ciphers, 64 for AES-256-CBC+HMAC (half the
// bytes go to the AES key, half to the HMAC key).
func (m Mode) KeySize() int {
	switch m {
	case ModeAES256CBC:
		return 64
	case ModeReservedHPKE:
		return 32
	default:
		return 0
	}
}

// Supported reports whether a Link is allowed to negotiate this mode.
func (m Mode) Supported() bool {
	return m == ModeAES256CBC
}

// DeriveLinkKey runs HKDF-SHA256 over the DH shared secret, salted
// with the link_id, to produce the symmetric key material a Token is
// constructed from. info is left empty per §6.
func DeriveLinkKey(sharedSecret, linkID []byte, mode Mode) ([]byte, error) {
	size := mode.KeySize()
	if size == 0 {
		return nil, fmt.Errorf("crypto: mode %d has no derived key size", mode)
	}
	h := hkdf.New(sha256.New, sharedSecret, linkID, nil)
	key := make([]byte, size)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("hkdf derive link key: %w", err)
	}
	return key, nil
}
