package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncatedHashIsStableAndShort(t *testing.T) {
	a := TruncatedHash([]byte("hello"))
	b := TruncatedHash([]byte("hello"))
	c := TruncatedHash([]byte("world"))

	assert.Len(t, a, TruncatedHashSize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerateAndSignVerify(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	assert.NotEmpty(t, id.Hash())

	message := []byte("link_id||peer_dh_pub||peer_sig_pub||signalling")
	sig, err := id.Sign(message)
	require.NoError(t, err)

	assert.NoError(t, id.Verify(message, sig))
	assert.Error(t, id.Verify([]byte("tampered"), sig))
}

func TestVerifyRemoteMatchesKnownPublicKey(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	message := []byte("proof payload")
	sig, err := id.Sign(message)
	require.NoError(t, err)

	remote := NewRemoteIdentity(id.PublicBytes())
	assert.NoError(t, remote.Verify(message, sig))
	assert.Equal(t, id.Hash(), remote.Hash())
}

func TestAllowPolicy(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	remote := NewRemoteIdentity(id.PublicBytes())

	assert.False(t, AllowNone.Permits(remote, nil))
	assert.True(t, AllowAll.Permits(remote, nil))
	assert.False(t, AllowList.Permits(remote, map[string]struct{}{}))
	assert.True(t, AllowList.Permits(remote, map[string]struct{}{remote.Hash(): {}}))
	assert.False(t, AllowList.Permits(nil, map[string]struct{}{remote.Hash(): {}}))
}

func TestFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i * 7)
	}
	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, a.PublicBytes(), b.PublicBytes())
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestStaticResolver(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	destHash := TruncatedHash(id.PublicBytes())

	r := &StaticResolver{
		DestHash: destHash,
		Remote:   NewRemoteIdentity(id.PublicBytes()),
	}

	remote, err := r.Resolve(destHash)
	require.NoError(t, err)
	assert.Equal(t, id.Hash(), remote.Hash())

	_, err = r.Resolve(TruncatedHash([]byte("some-other-destination")))
	assert.ErrorIs(t, err, ErrUnknownDestination)
}

func TestShortIDIsBase58OfPublicKey(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	short := id.ShortID()
	assert.NotEmpty(t, short)
	assert.NotContains(t, short, "0") // base58 excludes the digit zero

	remote := NewRemoteIdentity(id.PublicBytes())
	assert.Equal(t, short, remote.ShortID())
}
