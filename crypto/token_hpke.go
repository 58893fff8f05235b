package crypto

import (
	"crypto/ecdh"
	"fmt"

	"github.com/cloudflare/circl/hpke"
)

// hpkeSuite is the cipher suite backing ModeReservedHPKE. Nothing in
// the Link handshake currently negotiates this mode — validate_request
// and validate_proof both reject it (§9 Design Notes: "reject unknown
// modes") — but the codec is kept real and exercised by tests rather
// than left as a dangling constant, so that enabling it later is a
// one-line change to Mode.Supported.
var hpkeSuite = hpke.NewSuite(
	hpke.KEM_X25519_HKDF_SHA256,
	hpke.KDF_HKDF_SHA256,
	hpke.AEAD_ChaCha20Poly1305,
)

// SealReservedHPKE encapsulates to the peer's X25519 public key and
// seals plaintext under the resulting HPKE context in one shot,
// returning enc || ciphertext. Only reachable from tests and from a
// future Mode.Supported() flip — not from the handshake state machine.
func SealReservedHPKE(peerPublic *ecdh.PublicKey, info, plaintext []byte) ([]byte, error) {
	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	recipient, err := kem.UnmarshalBinaryPublicKey(peerPublic.Bytes())
	if err != nil {
		return nil, fmt.Errorf("hpke: unmarshal recipient public key: %w", err)
	}
	sender, err := hpkeSuite.NewSender(recipient, info)
	if err != nil {
		return nil, fmt.Errorf("hpke: new sender: %w", err)
	}
	enc, sealer, err := sender.Setup(nil)
	if err != nil {
		return nil, fmt.Errorf("hpke: sender setup: %w", err)
	}
	ciphertext, err := sealer.Seal(plaintext, info)
	if err != nil {
		return nil, fmt.Errorf("hpke: seal: %w", err)
	}
	return append(append([]byte{}, enc...), ciphertext...), nil
}

// OpenReservedHPKE reverses SealReservedHPKE given the recipient's
// private key.
func OpenReservedHPKE(priv *ecdh.PrivateKey, info, packet []byte) ([]byte, error) {
	const encLen = 32 // X25519 KEM encapsulated-key length
	if len(packet) < encLen {
		return nil, fmt.Errorf("hpke: packet shorter than encapsulation length")
	}
	enc, ciphertext := packet[:encLen], packet[encLen:]

	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	skR, err := kem.UnmarshalBinaryPrivateKey(priv.Bytes())
	if err != nil {
		return nil, fmt.Errorf("hpke: unmarshal private key: %w", err)
	}
	receiver, err := hpkeSuite.NewReceiver(skR, info)
	if err != nil {
		return nil, fmt.Errorf("hpke: new receiver: %w", err)
	}
	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, fmt.Errorf("hpke: receiver setup: %w", err)
	}
	plaintext, err := opener.Open(ciphertext, info)
	if err != nil {
		return nil, fmt.Errorf("hpke: open: %w", err)
	}
	return plaintext, nil
}
