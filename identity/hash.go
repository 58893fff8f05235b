package identity

import "crypto/sha256"

// TruncatedHashSize is the width of every short hash used across the
// Link protocol: link_id, path_hash, request_id, and identity hashes
// are all 16 bytes (128 bits) of a SHA-256 digest.
const TruncatedHashSize = 16

// TruncatedHash returns the first TruncatedHashSize bytes of the
// SHA-256 digest of data. It backs link_id derivation, RPC path_hash,
// request_id, and identity allow-list hashes — every place the
// protocol needs a short, collision-resistant, non-reversible label.
func TruncatedHash(data []byte) []byte {
	sum := sha256.Sum256(data)
	out := make([]byte, TruncatedHashSize)
	copy(out, sum[:TruncatedHashSize])
	return out
}
