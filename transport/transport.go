// Package transport defines the contract a Link consumes from its
// underlying router: link (de)registration, hop-count and MTU lookups
// for the destination, and inbound packet delivery. The router itself
// — forwarding, interface selection, IFAC — is out of scope; Transport
// is an explicit dependency injected at Link construction so a Link is
// unit-testable against a fake.
package transport

import (
	"errors"
	"time"
)

// ErrUnknownDestination is returned by Transport lookups for a
// destination hash the router has no path to.
var ErrUnknownDestination = errors.New("transport: unknown destination")

// Receiver is the inbound half of the contract: a Transport delivers a
// raw packet to a Link by invoking Receive. Link implements this.
type Receiver interface {
	Receive(packet *Packet)
}

// Transport is everything a Link needs from the router underneath it.
type Transport interface {
	// RegisterLink makes link reachable by its LinkID for the duration
	// of the handshake (PENDING/HANDSHAKE).
	RegisterLink(link Receiver, linkID []byte) error
	// ActivateLink marks a previously registered link as fully
	// established, a no-op for most fakes but meaningful to a router
	// that treats pending vs. active links differently.
	ActivateLink(linkID []byte) error
	// DeregisterLink removes a link's routing entry, called on
	// teardown.
	DeregisterLink(linkID []byte) error
	// HopsTo returns the number of hops to reach destinationHash.
	HopsTo(destinationHash []byte) (int, error)
	// NextHopInterfaceHWMTU returns the hardware MTU of the interface
	// the next hop toward destinationHash is reachable over, or
	// (0, false) if the interface imposes no fixed MTU.
	NextHopInterfaceHWMTU(destinationHash []byte) (int, bool, error)
	// GetFirstHopTimeout returns the round-trip budget for the first
	// hop toward destinationHash, used to seed PER_HOP timeouts.
	GetFirstHopTimeout(destinationHash []byte) (time.Duration, error)
	// Send hands an outbound packet to the router for delivery.
	Send(packet *Packet) error
}

// PacketType distinguishes the handshake/control packets from the
// generic DATA envelope that every post-handshake payload rides in.
type PacketType int

const (
	TypeData PacketType = iota
	TypeLinkRequest
	TypeProof
)

// Context identifies the sub-protocol a DATA (or PROOF) packet
// belongs to, the second half of the dispatcher's (type, context) key.
type Context int

const (
	ContextNone Context = iota
	ContextLinkIdentify
	ContextRequest
	ContextResponse
	ContextLRRTT
	ContextLinkClose
	ContextResourceAdv
	ContextResourceReq
	ContextResourceHMU
	ContextResourceICL
	ContextResourceRCL
	ContextResource
	ContextKeepalive
	ContextChannel
	ContextResourcePRF
)

// Packet is the wire unit a Transport delivers to a Link and a Link
// hands back to a Transport for sending. Payload is whatever bytes the
// packet type carries — plaintext for LINKREQUEST/LRPROOF, ciphertext
// for everything under DATA.
type Packet struct {
	Type              PacketType
	Context           Context
	LinkID            []byte
	Payload           []byte
	ReceivingInterface string
}
