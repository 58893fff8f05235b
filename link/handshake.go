package link

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	linkcrypto "github.com/arcmesh/link/crypto"
	"github.com/arcmesh/link/crypto/keys"
	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/signalling"
	"github.com/arcmesh/link/transport"
)

// canonicalHashable reproduces the "hashable portion of the original
// link-request packet" both peers hash to derive link_id (§3): the
// ephemeral DH public, ephemeral signing public, and signalling bytes,
// in wire order, independent of whether signalling was actually sent.
func canonicalHashable(dhPub, sigPub []byte, sig signalling.Signalling) ([]byte, error) {
	word, err := signalling.Pack(sig)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(dhPub)+len(sigPub)+len(word))
	buf = append(buf, dhPub...)
	buf = append(buf, sigPub...)
	buf = append(buf, word...)
	return buf, nil
}

func computeLinkID(dhPub, sigPub []byte, sig signalling.Signalling) ([]byte, error) {
	hashable, err := canonicalHashable(dhPub, sigPub, sig)
	if err != nil {
		return nil, err
	}
	return identity.TruncatedHash(hashable), nil
}

// NewInitiator begins establishing a Link to destHash: generates
// ephemeral DH and signing keypairs, sends LINKREQUEST, registers
// itself with Transport under the locally computed link_id, and
// starts the watchdog. resolver is consulted during proof validation
// to fetch the destination's long-term signing key (§4.1: "the
// responder's ephemeral sig key is NOT used").
func NewInitiator(t transport.Transport, destHash []byte, resolver identity.Resolver, cfg Config, cb Callbacks) (out *Link, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.LinksCreated.WithLabelValues("initiator", status).Inc()
	}()

	l := newBase(t, cfg, cb)
	l.initiator = true
	l.destHash = append([]byte(nil), destHash...)
	l.resolver = resolver

	dhKP, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("link: generate ephemeral dh key: %w", err)
	}
	sigKP, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("link: generate ephemeral sig key: %w", err)
	}
	l.ownDH = dhKP.(*keys.X25519KeyPair)
	l.ownSig = sigKP.(*keys.Ed25519KeyPair)

	signalledMTU := l.mtu
	if hwmtu, ok, err := t.NextHopInterfaceHWMTU(destHash); err == nil && ok && hwmtu > 0 {
		signalledMTU = uint32(hwmtu)
	}
	sig := signalling.Signalling{MTU: signalledMTU, Mode: l.mode}
	linkID, err := computeLinkID(l.ownDH.PublicBytes(), l.ownSig.PublicBytes(), sig)
	if err != nil {
		return nil, err
	}
	l.linkID = linkID
	l.requestTime = time.Now()

	hops, err := t.HopsTo(destHash)
	if err != nil {
		hops = 1
	}
	firstHopTimeout, err := t.GetFirstHopTimeout(destHash)
	if err != nil {
		firstHopTimeout = 0
	}
	l.establishTimeout = firstHopTimeout + cfg.PerHop*time.Duration(max(1, hops))

	if err := t.RegisterLink(l, l.linkID); err != nil {
		return nil, fmt.Errorf("link: register with transport: %w", err)
	}

	payload, err := buildLinkRequestPayload(l.ownDH.PublicBytes(), l.ownSig.PublicBytes(), sig)
	if err != nil {
		return nil, err
	}
	if err := t.Send(&transport.Packet{Type: transport.TypeLinkRequest, LinkID: destHash, Payload: payload}); err != nil {
		return nil, fmt.Errorf("link: send link request: %w", err)
	}

	l.startWatchdog()
	return l, nil
}

func buildLinkRequestPayload(dhPub, sigPub []byte, sig signalling.Signalling) ([]byte, error) {
	word, err := signalling.Pack(sig)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(dhPub)+len(sigPub)+len(word))
	buf = append(buf, dhPub...)
	buf = append(buf, sigPub...)
	buf = append(buf, word...)
	return buf, nil
}

// Listener accepts inbound LINKREQUEST packets addressed to a
// destination identity and constructs a responder Link for each one,
// implementing the "Responder path" half of §4.1.
type Listener struct {
	transport     transport.Transport
	identity      *identity.Identity
	destHash      []byte
	cfg           Config
	callbacks     Callbacks
	onIncoming    func(*Link)
}

// NewListener registers identity as a destination on t and returns a
// Listener that builds a new responder Link for every inbound
// LINKREQUEST. onIncoming, if non-nil, is invoked synchronously after
// the responder Link has been built and its LRPROOF sent, so the caller
// can track it. Over a Transport that delivers synchronously, such as
// MemoryTransport, the Link may already be ACTIVE by then.
func NewListener(t transport.Transport, destHash []byte, id *identity.Identity, cfg Config, cb Callbacks, onIncoming func(*Link)) *Listener {
	lst := &Listener{
		transport:  t,
		identity:   id,
		destHash:   append([]byte(nil), destHash...),
		cfg:        cfg,
		callbacks:  cb,
		onIncoming: onIncoming,
	}
	if reg, ok := t.(destinationRegistrar); ok {
		reg.RegisterDestination(destHash, lst)
	}
	return lst
}

// destinationRegistrar is implemented by Transports that maintain
// their own destination registry in addition to the per-link routing
// table (MemoryTransport, WSTransport). A Transport without one is
// expected to route inbound LINKREQUESTs to the Listener by some
// out-of-band means (e.g. a real router dispatching by destination
// hash read off the wire).
type destinationRegistrar interface {
	RegisterDestination(destinationHash []byte, listener transport.Receiver)
}

// Receive implements transport.Receiver for inbound LINKREQUESTs.
func (lst *Listener) Receive(packet *transport.Packet) {
	if packet.Type != transport.TypeLinkRequest {
		return
	}
	l, err := lst.validateRequest(packet)
	if err != nil {
		return
	}
	if lst.onIncoming != nil {
		lst.onIncoming(l)
	}
}

// validateRequest implements §4.1's validate_request.
func (lst *Listener) validateRequest(packet *transport.Packet) (out *Link, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.LinksCreated.WithLabelValues("responder", status).Inc()
	}()

	payload := packet.Payload
	if len(payload) != ecPubSize*2 && len(payload) != ecPubSize*2+signalling.Size {
		return nil, fmt.Errorf("link: bad link request length %d", len(payload))
	}

	peerDH := payload[0:32]
	peerSig := payload[32:64]
	sig := signalling.Signalling{MTU: lst.cfg.MTU, Mode: lst.cfg.Mode}
	if len(payload) == ecPubSize*2+signalling.Size {
		parsed, err := signalling.Unpack(payload[64:67])
		if err == nil {
			sig = parsed
		}
	}
	if !sig.Mode.Supported() {
		return nil, fmt.Errorf("link: unsupported mode %d", sig.Mode)
	}

	linkID, err := computeLinkID(peerDH, peerSig, sig)
	if err != nil {
		return nil, err
	}

	l := newBase(lst.transport, lst.cfg, lst.callbacks)
	l.initiator = false
	l.linkID = linkID
	l.peerDH = append([]byte(nil), peerDH...)
	l.mtu = sig.MTU
	l.mode = sig.Mode
	l.recomputeMDU()
	l.localIdentity = lst.identity
	l.ownSig = lst.identity.SigningKeyPair()
	l.attachedInterface = packet.ReceivingInterface

	hops, herr := lst.transport.HopsTo(lst.destHash)
	if herr != nil {
		hops = 1
	}
	l.establishTimeout = lst.cfg.PerHop*time.Duration(max(1, hops)) + KeepaliveMin
	l.requestTime = time.Now()
	l.status = StatusHandshake

	dhKP, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("link: generate own dh key: %w", err)
	}
	l.ownDH = dhKP.(*keys.X25519KeyPair)

	shared, err := l.ownDH.DeriveSharedSecret(peerDH)
	if err != nil {
		return nil, fmt.Errorf("link: derive shared secret: %w", err)
	}
	derived, err := linkcrypto.DeriveLinkKey(shared, linkID, sig.Mode)
	if err != nil {
		return nil, fmt.Errorf("link: derive link key: %w", err)
	}
	l.sharedKey = derived
	tok, err := linkcrypto.NewToken(derived)
	if err != nil {
		return nil, fmt.Errorf("link: construct token: %w", err)
	}
	l.token = tok

	if err := lst.transport.RegisterLink(l, linkID); err != nil {
		return nil, fmt.Errorf("link: register with transport: %w", err)
	}
	l.startWatchdog()

	proofPayload, err := buildProofPayload(l, sig)
	if err != nil {
		l.mu.Lock()
		l.status = StatusClosed
		l.reason = ReasonTimeout
		l.mu.Unlock()
		return nil, err
	}
	if err := l.sendRaw(&transport.Packet{Type: transport.TypeProof, LinkID: linkID, Payload: proofPayload}); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.lastProof = time.Now()
	l.mu.Unlock()

	return l, nil
}

func buildProofPayload(l *Link, sig signalling.Signalling) ([]byte, error) {
	word, err := signalling.Pack(sig)
	if err != nil {
		return nil, err
	}
	message := make([]byte, 0, 16+32+32+3)
	message = append(message, l.linkID...)
	message = append(message, l.ownDH.PublicBytes()...)
	message = append(message, l.ownSig.PublicBytes()...)
	message = append(message, word...)

	signature, err := l.ownSig.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("link: sign proof: %w", err)
	}

	buf := make([]byte, 0, len(signature)+32+len(word))
	buf = append(buf, signature...)
	buf = append(buf, l.ownDH.PublicBytes()...)
	buf = append(buf, word...)
	return buf, nil
}

// handleProof implements the initiator's half of §4.1: "Initiator
// proof validation".
func (l *Link) handleProof(packet *transport.Packet) {
	payload := packet.Payload
	if len(payload) != 64+32 && len(payload) != 64+32+signalling.Size {
		l.closeSilently()
		return
	}
	signature := payload[0:64]
	peerDH := payload[64:96]

	l.mu.Lock()
	sig := signalling.Signalling{MTU: l.mtu, Mode: l.mode}
	l.mu.Unlock()
	if len(payload) == 64+32+signalling.Size {
		parsed, err := signalling.Unpack(payload[96:99])
		if err != nil {
			l.closeSilently()
			return
		}
		if parsed.Mode != sig.Mode {
			l.closeSilently()
			return
		}
		sig = parsed
	}
	if !sig.Mode.Supported() {
		l.closeSilently()
		return
	}

	l.mu.Lock()
	destHash := append([]byte(nil), l.destHash...)
	resolver := l.resolver
	linkID := append([]byte(nil), l.linkID...)
	ownDH := l.ownDH
	l.attachedInterface = packet.ReceivingInterface
	l.mu.Unlock()

	remote, err := resolver.Resolve(destHash)
	if err != nil {
		l.closeSilently()
		return
	}

	message := make([]byte, 0, 16+32+32+3)
	message = append(message, linkID...)
	message = append(message, peerDH...)
	message = append(message, remote.PublicKey...)
	word, _ := signalling.Pack(sig)
	message = append(message, word...)

	if err := identity.VerifyRemote(remote.PublicKey, message, signature); err != nil {
		l.closeSilently()
		return
	}

	shared, err := ownDH.DeriveSharedSecret(peerDH)
	if err != nil {
		l.closeSilently()
		return
	}
	derived, err := linkcrypto.DeriveLinkKey(shared, linkID, sig.Mode)
	if err != nil {
		l.closeSilently()
		return
	}
	tok, err := linkcrypto.NewToken(derived)
	if err != nil {
		l.closeSilently()
		return
	}

	now := time.Now()
	l.mu.Lock()
	l.peerDH = append([]byte(nil), peerDH...)
	l.peerSig = append([]byte(nil), remote.PublicKey...)
	l.sharedKey = derived
	l.token = tok
	l.mtu = sig.MTU
	l.recomputeMDU()
	l.rtt = now.Sub(l.requestTime)
	l.keepalive = clampKeepalive(l.rtt * KeepaliveTimeoutFactor)
	l.staleTime = 2 * l.keepalive
	l.status = StatusActive
	l.activatedAt = now
	l.lastProof = now
	l.mu.Unlock()

	_ = l.transport.ActivateLink(linkID)
	l.wakeWatchdog()

	metrics.LinksActive.Inc()
	metrics.LinkRTT.Observe(l.rtt.Seconds())

	rttPayload := encodeFloat64(l.rtt.Seconds())
	_ = l.sendEncrypted(transport.ContextLRRTT, rttPayload)
	l.fireLinkEstablished()
}

func clampKeepalive(d time.Duration) time.Duration {
	if d < KeepaliveMin {
		return KeepaliveMin
	}
	if d > KeepaliveMax {
		return KeepaliveMax
	}
	return d
}

// handleRTT implements the responder's "Responder RTT reception".
func (l *Link) handleRTT(payload []byte) {
	peerRTT, err := decodeFloat64(payload)
	if err != nil {
		return
	}
	now := time.Now()
	l.mu.Lock()
	ownMeasured := l.rtt
	peer := time.Duration(peerRTT * float64(time.Second))
	if peer > ownMeasured {
		l.rtt = peer
	} else {
		l.rtt = ownMeasured
	}
	if l.rtt == 0 {
		l.rtt = now.Sub(l.requestTime)
	}
	l.keepalive = clampKeepalive(l.rtt * KeepaliveTimeoutFactor)
	l.staleTime = 2 * l.keepalive
	l.status = StatusActive
	l.activatedAt = now
	l.mu.Unlock()

	_ = l.transport.ActivateLink(l.LinkID())
	l.wakeWatchdog()

	metrics.LinksActive.Inc()
	metrics.LinkRTT.Observe(l.rtt.Seconds())

	l.fireLinkEstablished()
}

// closeSilently implements the "Failure policy" of §4.1: any
// handshake validation failure sets CLOSED and emits no packet.
func (l *Link) closeSilently() {
	l.mu.Lock()
	if l.status == StatusClosed {
		l.mu.Unlock()
		return
	}
	createdAt := l.createdAt
	l.status = StatusClosed
	l.reason = ReasonTimeout
	l.zeroKeys()
	l.mu.Unlock()

	metrics.LinksClosed.WithLabelValues("timeout").Inc()
	metrics.LinkDuration.WithLabelValues("timeout").Observe(time.Since(createdAt).Seconds())

	l.fireLinkClosed(ReasonTimeout)
}

func encodeFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeFloat64(payload []byte) (float64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("link: expected 8-byte packed float, got %d bytes", len(payload))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
}
