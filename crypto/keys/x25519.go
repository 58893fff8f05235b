// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package keys

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	linkcrypto "github.com/arcmesh/link/crypto"
	"github.com/arcmesh/link/internal/metrics"
)

// X25519KeyPair holds an X25519 private key and its corresponding
// public key. Both sides of a Link generate one of these for the
// ephemeral Diffie-Hellman half of the handshake.
type X25519KeyPair struct {
	privateKey *ecdh.PrivateKey
	publicKey  *ecdh.PublicKey
	id         string
}

// GenerateX25519KeyPair generates a new ephemeral X25519 key pair.
func GenerateX25519KeyPair() (linkcrypto.KeyPair, error) {
	privateKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral x25519 key: %w", err)
	}
	publicKey := privateKey.PublicKey()

	hash := sha256.Sum256(publicKey.Bytes())
	id := hex.EncodeToString(hash[:8])

	return &X25519KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         id,
	}, nil
}

// NewX25519KeyPairFromPrivate reconstructs a keypair from an existing
// private key.
func NewX25519KeyPairFromPrivate(privateKey *ecdh.PrivateKey) *X25519KeyPair {
	publicKey := privateKey.PublicKey()
	hash := sha256.Sum256(publicKey.Bytes())
	return &X25519KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         hex.EncodeToString(hash[:8]),
	}
}

func (kp *X25519KeyPair) PublicKey() crypto.PublicKey   { return kp.publicKey }
func (kp *X25519KeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey }
func (kp *X25519KeyPair) Type() linkcrypto.KeyType       { return linkcrypto.KeyTypeX25519 }
func (kp *X25519KeyPair) ID() string                     { return kp.id }

// PublicBytes returns the 32-byte wire form of the public key, as sent
// in LINKREQUEST/LRPROOF.
func (kp *X25519KeyPair) PublicBytes() []byte {
	return kp.publicKey.Bytes()
}

// Sign and Verify are not supported: X25519 is a key-agreement
// algorithm only. Use Ed25519KeyPair for signing.
func (kp *X25519KeyPair) Sign(message []byte) ([]byte, error) {
	return nil, linkcrypto.ErrSignNotSupported
}

func (kp *X25519KeyPair) Verify(message, signature []byte) error {
	return linkcrypto.ErrVerifyNotSupported
}

// DeriveSharedSecret performs the X25519 Diffie-Hellman exchange
// against a peer's 32-byte public key and returns the raw shared
// secret (before HKDF). Callers must still run the result through
// crypto.DeriveLinkKey before use.
func (kp *X25519KeyPair) DeriveSharedSecret(peerPublic []byte) (shared []byte, err error) {
	started := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("ecdh", "x25519").Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.CryptoErrors.WithLabelValues("ecdh").Inc()
			return
		}
		metrics.CryptoOperations.WithLabelValues("ecdh", "x25519").Inc()
	}()

	curve := ecdh.X25519()
	peer, err := curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("parse peer x25519 public key: %w", err)
	}
	shared, err = kp.privateKey.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("compute x25519 shared secret: %w", err)
	}
	return shared, nil
}
