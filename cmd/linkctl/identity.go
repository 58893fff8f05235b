package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/arcmesh/link/identity"
)

// loadOrGenerateIdentity reads a hex-encoded seed from seedFile, or
// generates and persists a fresh one if the file does not exist yet —
// the same "first run provisions itself" convenience as a dev-mode
// TLS cert.
func loadOrGenerateIdentity(seedFile string) (*identity.Identity, error) {
	if seedFile == "" {
		return identity.Generate()
	}

	raw, err := os.ReadFile(seedFile)
	if err == nil {
		seed, decErr := hex.DecodeString(strings.TrimSpace(string(raw)))
		if decErr != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", seedFile, decErr)
		}
		return identity.FromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read seed file %s: %w", seedFile, err)
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	id, err := identity.FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("derive identity: %w", err)
	}
	if err := os.WriteFile(seedFile, []byte(hex.EncodeToString(seed)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write seed file %s: %w", seedFile, err)
	}
	return id, nil
}

// parsePeerPublicKey decodes a hex-encoded Ed25519 public key supplied
// on the command line.
func parsePeerPublicKey(hexKey string) ([]byte, error) {
	pub, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parse peer public key: %w", err)
	}
	if len(pub) != 32 {
		return nil, fmt.Errorf("peer public key must be 32 bytes, got %d", len(pub))
	}
	return pub, nil
}
