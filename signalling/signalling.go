// Package signalling packs and unpacks the 3-byte (MTU, mode) tail
// carried on LINKREQUEST and LRPROOF packets. The word is big-endian,
// 24 bits wide: the low 21 bits hold the MTU, the high 3 bits hold the
// cipher mode codepoint.
package signalling

import (
	"errors"

	linkcrypto "github.com/arcmesh/link/crypto"
)

const (
	// Size is the wire length of a signalling word in bytes.
	Size = 3

	mtuMask  = 0x001FFFFF // low 21 bits
	modeMask = 0x00E00000 // high 3 bits of the 24-bit word
	modeBit  = 21
)

// MaxMTU is the largest value the 21-bit MTU field can carry.
const MaxMTU = mtuMask

var (
	ErrTruncated    = errors.New("signalling: truncated 3-byte word")
	ErrMTUOutOfRange = errors.New("signalling: mtu exceeds 21-bit field")
)

// Signalling is the decoded form of the 3-byte word: a negotiated MTU
// and a cipher mode codepoint.
type Signalling struct {
	MTU  uint32
	Mode linkcrypto.Mode
}

// Pack encodes s into the 3-byte big-endian wire form.
func Pack(s Signalling) ([]byte, error) {
	if s.MTU > MaxMTU {
		return nil, ErrMTUOutOfRange
	}
	word := (s.MTU & mtuMask) | (uint32(s.Mode)<<modeBit)&modeMask
	return []byte{
		byte(word >> 16),
		byte(word >> 8),
		byte(word),
	}, nil
}

// Unpack decodes a 3-byte wire word back into a Signalling value. It
// does not reject unsupported modes — that is a handshake-level policy
// decision (validate_request/validate_proof reject ModeReservedHPKE),
// not a codec-level one.
func Unpack(wire []byte) (Signalling, error) {
	if len(wire) != Size {
		return Signalling{}, ErrTruncated
	}
	word := uint32(wire[0])<<16 | uint32(wire[1])<<8 | uint32(wire[2])
	return Signalling{
		MTU:  word & mtuMask,
		Mode: linkcrypto.Mode((word & modeMask) >> modeBit),
	}, nil
}
