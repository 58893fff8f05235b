package signalling

import "errors"

// ErrMTUTooSmall is returned when an MTU leaves no room for a single
// block-aligned payload byte after headers and token overhead.
var ErrMTUTooSmall = errors.New("signalling: mtu too small for header and token overhead")

// Overhead bundles the per-packet bytes an MDU computation must
// subtract from the MTU before block-aligning what remains.
type Overhead struct {
	// HeaderSize is the fixed packet header (type, context, flags…).
	HeaderSize int
	// InterfaceOverhead is the attached interface's framing cost
	// (IFAC), zero for interfaces that don't use one.
	InterfaceOverhead int
	// TokenOverhead is the Token envelope's fixed cost: IV + HMAC tag.
	TokenOverhead int
	// BlockSize is the cipher's block size; the MDU must be congruent
	// to -1 mod BlockSize so that a full block of padding is always
	// available for PKCS#7.
	BlockSize int
}

// DeriveMDU computes the largest block-aligned payload that fits in
// mtu once hdr, ifac, and token overhead are subtracted, per
// mdu = floor((mtu − hdr − ifac − token_overhead) / block_size) × block_size − 1.
func DeriveMDU(mtu uint32, o Overhead) (uint32, error) {
	fixed := o.HeaderSize + o.InterfaceOverhead + o.TokenOverhead
	if int(mtu) <= fixed || o.BlockSize <= 0 {
		return 0, ErrMTUTooSmall
	}
	available := int(mtu) - fixed
	blocks := available / o.BlockSize
	if blocks <= 0 {
		return 0, ErrMTUTooSmall
	}
	mdu := blocks*o.BlockSize - 1
	if mdu < 0 {
		return 0, ErrMTUTooSmall
	}
	return uint32(mdu), nil
}
