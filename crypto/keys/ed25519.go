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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	linkcrypto "github.com/arcmesh/link/crypto"
	"github.com/arcmesh/link/internal/metrics"
)

// Ed25519KeyPair holds an Ed25519 signing key. A Link uses two of
// these: an ephemeral one the initiator generates purely for wire
// entropy (§9 Open Question), and a long-term one identities hold and
// responders sign LRPROOF with.
type Ed25519KeyPair struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	id         string
}

// GenerateEd25519KeyPair generates a new signing keypair.
func GenerateEd25519KeyPair() (linkcrypto.KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return newEd25519KeyPair(priv, pub), nil
}

// NewEd25519KeyPairFromSeed reconstructs a keypair deterministically
// from a 32-byte seed, used to load a long-term identity from storage.
func NewEd25519KeyPairFromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return newEd25519KeyPair(priv, pub), nil
}

func newEd25519KeyPair(priv ed25519.PrivateKey, pub ed25519.PublicKey) *Ed25519KeyPair {
	hash := sha256.Sum256(pub)
	return &Ed25519KeyPair{
		privateKey: priv,
		publicKey:  pub,
		id:         hex.EncodeToString(hash[:8]),
	}
}

func (kp *Ed25519KeyPair) PublicKey() crypto.PublicKey   { return kp.publicKey }
func (kp *Ed25519KeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey }
func (kp *Ed25519KeyPair) Type() linkcrypto.KeyType       { return linkcrypto.KeyTypeEd25519 }
func (kp *Ed25519KeyPair) ID() string                     { return kp.id }

// PublicBytes returns the 32-byte wire form of the public key.
func (kp *Ed25519KeyPair) PublicBytes() []byte {
	return []byte(kp.publicKey)
}

func (kp *Ed25519KeyPair) Sign(message []byte) ([]byte, error) {
	started := time.Now()
	sig := ed25519.Sign(kp.privateKey, message)
	metrics.CryptoOperationDuration.WithLabelValues("sign", "ed25519").Observe(time.Since(started).Seconds())
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	return sig, nil
}

func (kp *Ed25519KeyPair) Verify(message, signature []byte) error {
	return verifyEd25519(kp.publicKey, message, signature)
}

// VerifyWithPublicBytes verifies a signature against a raw 32-byte
// Ed25519 public key without constructing a full keypair, used to
// check LRPROOF against a destination's known long-term identity.
func VerifyWithPublicBytes(pub, message, signature []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("ed25519: bad public key length %d", len(pub))
	}
	return verifyEd25519(ed25519.PublicKey(pub), message, signature)
}

func verifyEd25519(pub ed25519.PublicKey, message, signature []byte) error {
	started := time.Now()
	ok := ed25519.Verify(pub, message, signature)
	metrics.CryptoOperationDuration.WithLabelValues("verify", "ed25519").Observe(time.Since(started).Seconds())
	if !ok {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return linkcrypto.ErrInvalidSignature
	}
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
	return nil
}
