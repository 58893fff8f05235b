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

// Package crypto provides the cryptographic primitives a Link needs:
// ephemeral X25519/Ed25519 keypairs, HKDF key derivation, and the
// AEAD token used to encrypt everything after the handshake.
package crypto

import (
	"crypto"
	"errors"
)

// KeyType identifies the algorithm a KeyPair implements.
type KeyType string

const (
	KeyTypeX25519  KeyType = "X25519"
	KeyTypeEd25519 KeyType = "Ed25519"
)

// KeyPair is the minimal surface a Link needs from a cryptographic
// keypair, regardless of whether it signs or merely agrees on a secret.
type KeyPair interface {
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	Type() KeyType
	// Sign and Verify return ErrSignNotSupported / ErrVerifyNotSupported
	// for key-agreement-only types such as X25519.
	Sign(message []byte) ([]byte, error)
	Verify(message, signature []byte) error
	// ID is a short, stable identifier derived from the public key,
	// used only for logs and metrics labels.
	ID() string
}

var (
	ErrSignNotSupported   = errors.New("crypto: key type does not support signing")
	ErrVerifyNotSupported = errors.New("crypto: key type does not support verification")
	ErrInvalidSignature   = errors.New("crypto: invalid signature")
)
