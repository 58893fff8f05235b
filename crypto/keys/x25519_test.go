package keys

import (
	"testing"

	linkcrypto "github.com/arcmesh/link/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestX25519KeyPair(t *testing.T) {
	t.Run("GenerateKeyPair", func(t *testing.T) {
		kp, err := GenerateX25519KeyPair()
		require.NoError(t, err)
		assert.Equal(t, linkcrypto.KeyTypeX25519, kp.Type())
		assert.Len(t, kp.(*X25519KeyPair).PublicBytes(), 32)
		assert.NotEmpty(t, kp.ID())
	})

	t.Run("SignAndVerifyUnsupported", func(t *testing.T) {
		kp, err := GenerateX25519KeyPair()
		require.NoError(t, err)

		_, err = kp.Sign([]byte("hello"))
		assert.ErrorIs(t, err, linkcrypto.ErrSignNotSupported)

		err = kp.Verify([]byte("hello"), []byte("sig"))
		assert.ErrorIs(t, err, linkcrypto.ErrVerifyNotSupported)
	})

	t.Run("DeriveSharedSecret", func(t *testing.T) {
		aKP, err := GenerateX25519KeyPair()
		require.NoError(t, err)
		bKP, err := GenerateX25519KeyPair()
		require.NoError(t, err)

		a := aKP.(*X25519KeyPair)
		b := bKP.(*X25519KeyPair)

		secretAB, err := a.DeriveSharedSecret(b.PublicBytes())
		require.NoError(t, err)
		secretBA, err := b.DeriveSharedSecret(a.PublicBytes())
		require.NoError(t, err)

		assert.Equal(t, secretAB, secretBA)
		assert.Len(t, secretAB, 32)
	})

	t.Run("DeriveSharedSecretRejectsBadPeerKey", func(t *testing.T) {
		kp, err := GenerateX25519KeyPair()
		require.NoError(t, err)
		a := kp.(*X25519KeyPair)

		_, err = a.DeriveSharedSecret([]byte("too-short"))
		assert.Error(t, err)
	})
}
