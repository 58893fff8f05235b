package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenReservedHPKE(t *testing.T) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub := priv.PublicKey()

	info := []byte("link-reserved-mode")
	plaintext := []byte("this mode is not yet negotiable")

	packet, err := SealReservedHPKE(pub, info, plaintext)
	require.NoError(t, err)

	opened, err := OpenReservedHPKE(priv, info, packet)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenReservedHPKERejectsShortPacket(t *testing.T) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = OpenReservedHPKE(priv, []byte("info"), []byte("short"))
	assert.Error(t, err)
}
