// Package identity is the minimal long-term identity abstraction a
// Link needs: a stable Ed25519 signing keypair, a short hash used for
// allow-list policies, and a lookup contract for resolving a peer's
// known public key during proof validation. Key storage, rotation,
// and export are out of scope — a Link only ever signs, verifies, and
// compares hashes.
package identity

import (
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"

	"github.com/arcmesh/link/crypto/keys"
)

// Identity is a long-term Ed25519 signing identity. The responder
// signs LRPROOF with one; the initiator may volunteer one via the
// identify sub-protocol.
type Identity struct {
	signing *keys.Ed25519KeyPair
	hash    string
}

// New wraps an existing Ed25519 keypair as a long-term Identity.
func New(signing *keys.Ed25519KeyPair) *Identity {
	return &Identity{
		signing: signing,
		hash:    hex.EncodeToString(TruncatedHash(signing.PublicBytes())),
	}
}

// Generate creates a fresh long-term identity, used by tests and by
// linkctl when no seed file is given.
func Generate() (*Identity, error) {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, err
	}
	ed, ok := kp.(*keys.Ed25519KeyPair)
	if !ok {
		return nil, errors.New("identity: unexpected keypair implementation")
	}
	return New(ed), nil
}

// FromSeed reconstructs a long-term identity deterministically, used
// to load one from configuration or a keystore file.
func FromSeed(seed []byte) (*Identity, error) {
	ed, err := keys.NewEd25519KeyPairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return New(ed), nil
}

// PublicBytes returns the 32-byte Ed25519 public key.
func (id *Identity) PublicBytes() []byte { return id.signing.PublicBytes() }

// Hash returns the hex-encoded truncated hash used in allow-list
// policies and the identify sub-protocol's remote_identity.hash.
func (id *Identity) Hash() string { return id.hash }

// ShortID renders this identity's public key as base58, the form
// operators read off a terminal or log line rather than the hex used
// on the wire and in allow lists.
func (id *Identity) ShortID() string { return base58.Encode(id.signing.PublicBytes()) }

// SigningKeyPair returns the underlying long-term Ed25519 keypair, for
// callers (the Link handshake) that need to sign with it directly
// rather than through Identity's thin Sign/Verify wrappers.
func (id *Identity) SigningKeyPair() *keys.Ed25519KeyPair { return id.signing }

// Sign produces a signature over message using the long-term key.
func (id *Identity) Sign(message []byte) ([]byte, error) {
	return id.signing.Sign(message)
}

// Verify checks a signature produced by this identity's private key.
func (id *Identity) Verify(message, signature []byte) error {
	return id.signing.Verify(message, signature)
}

// VerifyRemote checks a signature against a peer's known public key
// bytes, used by the initiator to validate LRPROOF without needing a
// full Identity for the peer.
func VerifyRemote(peerPublic, message, signature []byte) error {
	return keys.VerifyWithPublicBytes(peerPublic, message, signature)
}

// HashOf computes the allow-list hash for an arbitrary public key,
// used when a RemoteIdentity is learned via the identify sub-protocol
// rather than looked up from a local Resolver.
func HashOf(publicKey []byte) string {
	return hex.EncodeToString(TruncatedHash(publicKey))
}

// RemoteIdentity is what a Link learns about its peer, either from the
// identify sub-protocol (§4.5) or, for the initiator, from resolving
// the destination ahead of the handshake.
type RemoteIdentity struct {
	PublicKey []byte
	hash      string
}

// NewRemoteIdentity wraps a peer's public key, computing its hash.
func NewRemoteIdentity(publicKey []byte) *RemoteIdentity {
	return &RemoteIdentity{
		PublicKey: append([]byte(nil), publicKey...),
		hash:      HashOf(publicKey),
	}
}

// Hash returns the hex-encoded truncated hash of the remote's public
// key, compared against ALLOW_LIST entries.
func (r *RemoteIdentity) Hash() string { return r.hash }

// ShortID renders the remote's public key as base58, for operator-
// facing output (logs, CLI) in place of the raw hex key.
func (r *RemoteIdentity) ShortID() string { return base58.Encode(r.PublicKey) }

// Verify checks a signature allegedly produced by this remote identity.
func (r *RemoteIdentity) Verify(message, signature []byte) error {
	return VerifyRemote(r.PublicKey, message, signature)
}

// Resolver looks up a destination's known long-term signing public key
// ahead of handshake completion — the initiator needs this to validate
// LRPROOF, since the responder signs with its long-term identity, not
// the ephemeral key carried in the proof (§9 Design Notes).
type Resolver interface {
	Resolve(destinationHash []byte) (*RemoteIdentity, error)
}

// StaticResolver resolves exactly one destination hash to a known
// RemoteIdentity, the shape a caller gets when it already knows the
// peer's long-term public key out of band (e.g. `linkctl dial
// --peer-pubkey`) rather than through a live directory lookup.
type StaticResolver struct {
	DestHash []byte
	Remote   *RemoteIdentity
}

// ErrUnknownDestination is returned by StaticResolver.Resolve for any
// hash other than the one it was built with.
var ErrUnknownDestination = errors.New("identity: unknown destination")

func (r *StaticResolver) Resolve(destinationHash []byte) (*RemoteIdentity, error) {
	if string(destinationHash) != string(r.DestHash) {
		return nil, ErrUnknownDestination
	}
	return r.Remote, nil
}

// AllowPolicy governs which remote identities a server-side request
// handler accepts, per §4.4's handle_request allow-policy.
type AllowPolicy int

const (
	AllowNone AllowPolicy = iota
	AllowList
	AllowAll
)

// Permits reports whether remote is allowed to invoke a handler
// guarded by this policy, given the configured allow-list of identity
// hashes (only consulted for AllowList).
func (p AllowPolicy) Permits(remote *RemoteIdentity, allowList map[string]struct{}) bool {
	switch p {
	case AllowAll:
		return true
	case AllowList:
		if remote == nil {
			return false
		}
		_, ok := allowList[remote.Hash()]
		return ok
	default:
		return false
	}
}
