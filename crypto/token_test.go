package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	key := make([]byte, 64)
	for i := range key {
		key[i] = byte(i)
	}
	tok, err := NewToken(key)
	require.NoError(t, err)

	for _, size := range []int{0, 1, 15, 16, 17, 1000} {
		plaintext := make([]byte, size)
		for i := range plaintext {
			plaintext[i] = byte(i % 251)
		}
		ct, err := tok.Encrypt(plaintext)
		require.NoError(t, err)

		pt, err := tok.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, pt)
	}
}

func TestTokenRejectsTamperedCiphertext(t *testing.T) {
	tok, err := NewToken(make([]byte, 64))
	require.NoError(t, err)

	ct, err := tok.Encrypt([]byte("hello"))
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xFF

	_, err = tok.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrTokenAuth)
}

func TestTokenRejectsWrongKey(t *testing.T) {
	keyA := make([]byte, 64)
	keyB := make([]byte, 64)
	keyB[63] = 1

	tokA, err := NewToken(keyA)
	require.NoError(t, err)
	tokB, err := NewToken(keyB)
	require.NoError(t, err)

	ct, err := tokA.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = tokB.Decrypt(ct)
	assert.ErrorIs(t, err, ErrTokenAuth)
}

func TestNewTokenRejectsBadKeyLength(t *testing.T) {
	_, err := NewToken(make([]byte, 32))
	assert.ErrorIs(t, err, ErrTokenKeyLength)
}

func TestDeriveLinkKeySizes(t *testing.T) {
	shared := make([]byte, 32)
	linkID := make([]byte, 16)

	key, err := DeriveLinkKey(shared, linkID, ModeAES256CBC)
	require.NoError(t, err)
	assert.Len(t, key, 64)

	key, err = DeriveLinkKey(shared, linkID, ModeReservedHPKE)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestModeSupported(t *testing.T) {
	assert.True(t, ModeAES256CBC.Supported())
	assert.False(t, ModeReservedHPKE.Supported())
}
