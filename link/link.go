// Package link implements the Link state machine: an end-to-end
// encrypted, authenticated virtual circuit built on top of an
// arbitrary packet Transport. It owns the handshake, key derivation,
// watchdog-driven liveness, packet dispatch, request/response RPC, and
// the identify sub-protocol.
package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	linkcrypto "github.com/arcmesh/link/crypto"
	"github.com/arcmesh/link/crypto/keys"
	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/signalling"
	"github.com/arcmesh/link/transport"
)

// Status is a Link's position in its lifecycle. Transitions are
// monotonic except STALE <-> ACTIVE; once CLOSED a Link never leaves
// it.
type Status int

const (
	StatusPending Status = iota
	StatusHandshake
	StatusActive
	StatusStale
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusHandshake:
		return "HANDSHAKE"
	case StatusActive:
		return "ACTIVE"
	case StatusStale:
		return "STALE"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CloseReason records why a Link entered CLOSED, surfaced to the
// application via the link_closed callback.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonTimeout
	ReasonInitiatorClosed
	ReasonDestinationClosed
)

func (r CloseReason) String() string {
	switch r {
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonInitiatorClosed:
		return "INITIATOR_CLOSED"
	case ReasonDestinationClosed:
		return "DESTINATION_CLOSED"
	default:
		return "NONE"
	}
}

// ResourceStrategy governs whether a Link accepts inbound resource
// advertisements from its peer.
type ResourceStrategy int

const (
	AcceptNone ResourceStrategy = iota
	AcceptApp
	AcceptAll
)

// Timing and sizing constants from §9 Design Notes / §3 invariants.
const (
	KeepaliveMin     = 5 * time.Second
	KeepaliveMax     = 360 * time.Second
	WatchdogMaxSleep = 5 * time.Second
	StaleGrace       = 2 * time.Second

	// TrafficTimeoutFactor and ResponseMaxGrace size request timeouts
	// per §4.4 step 3: rtt * TrafficTimeoutFactor + ResponseMaxGrace * 1.125.
	TrafficTimeoutFactor   = 6.0
	ResponseMaxGrace       = 10 * time.Second
	KeepaliveTimeoutFactor = 4.0

	// HeaderSize, TokenOverhead, BlockSize feed signalling.DeriveMDU.
	HeaderSize    = 2
	TokenOverhead = 16 + 32 // IV + HMAC tag, crypto.Token's wire overhead
	BlockSize     = 16

	ecPubSize = 32
)

// Config bundles the tunable parameters a Link is constructed with.
type Config struct {
	MTU              uint32
	Mode             linkcrypto.Mode
	PerHop           time.Duration
	ResourceStrategy ResourceStrategy
}

// DefaultConfig returns the values a Link uses when the caller doesn't
// override them.
func DefaultConfig() Config {
	return Config{
		MTU:              500,
		Mode:             linkcrypto.ModeAES256CBC,
		PerHop:           2 * time.Second,
		ResourceStrategy: AcceptApp,
	}
}

// Callbacks is the application hook surface (§6). Every field is
// optional; nil hooks are simply not invoked. Hooks run on the bounded
// worker pool described in §9 ("thread-per-callback"), not on the
// ingress goroutine, and must tolerate concurrent invocation. The one
// exception is Resource, which runs synchronously on the goroutine that
// delivered the advertisement because its accept/reject answer is
// needed at once.
type Callbacks struct {
	LinkEstablished  func(l *Link)
	LinkClosed       func(l *Link, reason CloseReason)
	Packet           func(l *Link, payload []byte)
	Resource         func(l *Link, advertisement *ResourceAdvertisement) bool
	ResourceStarted  func(l *Link, res *IncomingResource)
	ResourceConcluded func(l *Link, res *IncomingResource)
	RemoteIdentified func(l *Link, remote *identity.RemoteIdentity)
}

// Link is the central entity: an authenticated, encrypted circuit to
// exactly one peer. All mutable state is guarded by mu — the
// single-writer discipline required by §5 — which also serves as the
// explicit mutex §9 asks to replace the cooperative watchdog_lock with:
// the dispatcher holds it for the duration of receive(), and the
// watchdog simply acquires the same lock rather than busy-polling a
// boolean.
type Link struct {
	mu sync.Mutex

	initiator bool
	status    Status
	reason    CloseReason

	linkID []byte

	mode linkcrypto.Mode
	mtu  uint32
	mdu  uint32

	ownDH     *keys.X25519KeyPair
	ownSig    *keys.Ed25519KeyPair // ephemeral for initiator, long-term identity's key for responder
	peerDH    []byte
	peerSig   []byte // long-term signing key used to validate LRPROOF (initiator only)
	sharedKey []byte
	token     *linkcrypto.Token

	localIdentity *identity.Identity // responder's long-term identity; nil for a bare initiator
	resolver      identity.Resolver  // initiator's way of looking up the destination's long-term key
	destHash      []byte             // destination identity hash the initiator is connecting to

	rtt            time.Duration
	keepalive      time.Duration
	staleTime      time.Duration
	establishTimeout time.Duration

	tx, rx               uint64
	txBytes, rxBytes     uint64
	establishmentCost    time.Duration

	requestTime    time.Time
	activatedAt    time.Time
	lastInbound    time.Time
	lastOutbound   time.Time
	lastKeepalive  time.Time
	lastData       time.Time
	lastProof      time.Time

	attachedInterface string

	remoteIdentity   *identity.RemoteIdentity
	resourceStrategy ResourceStrategy

	resources  *resourceMultiplex
	requests   map[string]*RequestReceipt
	handlers   map[string]RequestHandler
	allowPolicy identity.AllowPolicy
	allowList   map[string]struct{}

	transport transport.Transport
	callbacks Callbacks
	pool      *workerPool

	watchdogWake     chan struct{}
	watchdogDone     chan struct{}
	watchdogOnce     sync.Once
	lastWatchdogTick time.Time

	createdAt time.Time
}

// newBase constructs the fields shared by initiator and responder
// construction paths.
func newBase(t transport.Transport, cfg Config, cb Callbacks) *Link {
	l := &Link{
		status:           StatusPending,
		mode:             cfg.Mode,
		mtu:              cfg.MTU,
		resourceStrategy: cfg.ResourceStrategy,
		resources:        newResourceMultiplex(),
		requests:         make(map[string]*RequestReceipt),
		handlers:         make(map[string]RequestHandler),
		allowList:        make(map[string]struct{}),
		transport:        t,
		callbacks:        cb,
		pool:             newWorkerPool(8),
		watchdogWake:     make(chan struct{}, 1),
		watchdogDone:     make(chan struct{}),
		createdAt:        time.Now(),
	}
	l.recomputeMDU()
	return l
}

func (l *Link) recomputeMDU() {
	mdu, err := signalling.DeriveMDU(l.mtu, signalling.Overhead{
		HeaderSize:        HeaderSize,
		InterfaceOverhead: 0,
		TokenOverhead:     TokenOverhead,
		BlockSize:         BlockSize,
	})
	if err != nil {
		l.mdu = 0
		return
	}
	l.mdu = mdu
}

// Status returns the Link's current lifecycle status.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// LinkID returns the 16-byte circuit identifier, nil before the
// handshake has produced one.
func (l *Link) LinkID() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.linkID...)
}

// String renders the link_id as base58, the form operators see in log
// lines and CLI output rather than the hex used on the wire.
func (l *Link) String() string {
	id := l.LinkID()
	if len(id) == 0 {
		return "link:pending"
	}
	return "link:" + base58.Encode(id)
}

// RTT returns the measured round-trip time, zero before it has been
// measured.
func (l *Link) RTT() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rtt
}

// MDU returns the current max data unit.
func (l *Link) MDU() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mdu
}

// IsInitiator reports whether this Link initiated the handshake.
func (l *Link) IsInitiator() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initiator
}

// RemoteIdentity returns the peer's volunteered identity, or nil if
// none has been disclosed yet.
func (l *Link) RemoteIdentity() *identity.RemoteIdentity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remoteIdentity
}

// LastWatchdogTick returns the timestamp of the watchdog's most recent
// pass over this Link's state, for liveness probes.
func (l *Link) LastWatchdogTick() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastWatchdogTick
}

// SetAllowPolicy configures the server-side allow-policy enforced by
// handle_request (§4.4).
func (l *Link) SetAllowPolicy(policy identity.AllowPolicy, allowed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowPolicy = policy
	l.allowList = make(map[string]struct{}, len(allowed))
	for _, h := range allowed {
		l.allowList[h] = struct{}{}
	}
}

// zeroKeys clears cryptographic material on entering CLOSED (§3
// invariant 2).
func (l *Link) zeroKeys() {
	zero(l.sharedKey)
	l.sharedKey = nil
	l.token = nil
	if l.ownDH != nil {
		l.ownDH = nil
	}
	l.peerDH = nil
	l.peerSig = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (l *Link) errClosed() error {
	return fmt.Errorf("link: closed (reason=%s)", l.reason)
}
