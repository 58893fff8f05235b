package main

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateIdentityPersistsAndReloads(t *testing.T) {
	seedFile := filepath.Join(t.TempDir(), "id.seed")

	first, err := loadOrGenerateIdentity(seedFile)
	require.NoError(t, err)

	second, err := loadOrGenerateIdentity(seedFile)
	require.NoError(t, err)

	assert.Equal(t, first.Hash(), second.Hash())
	assert.Equal(t, first.PublicBytes(), second.PublicBytes())
}

func TestLoadOrGenerateIdentityNoSeedFileGeneratesEphemeral(t *testing.T) {
	first, err := loadOrGenerateIdentity("")
	require.NoError(t, err)
	second, err := loadOrGenerateIdentity("")
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash(), second.Hash())
}

func TestParsePeerPublicKey(t *testing.T) {
	valid := hex.EncodeToString(make([]byte, 32))
	pub, err := parsePeerPublicKey(valid)
	require.NoError(t, err)
	assert.Len(t, pub, 32)

	_, err = parsePeerPublicKey("not-hex")
	assert.Error(t, err)

	_, err = parsePeerPublicKey(hex.EncodeToString(make([]byte, 16)))
	assert.Error(t, err)
}
