package link

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcmesh/link/identity"
)

// hashOfBytes computes the dedup key for a resource sub-packet body,
// used to drop retransmitted RESOURCE_REQ chunks (§4.2).
func hashOfBytes(data []byte) []byte {
	return identity.TruncatedHash(data)
}

// ResourceAdvertisement is what a peer sends to announce an inbound
// chunked transfer before the Link's Resource callback decides whether
// to accept it. The full chunking/reassembly engine is an external
// collaborator (§1 scope); Link only tracks enough to dedupe
// sub-packets and bind a response resource to its pending request.
type ResourceAdvertisement struct {
	Hash       []byte
	Size       uint64
	IsResponse bool
	RequestID  []byte // set when IsResponse is true
}

// IncomingResource tracks one resource transfer this Link is
// receiving: dedup state by packet hash, byte/part counters, and a
// rate estimate for progress reporting.
type IncomingResource struct {
	Hash       []byte
	Size       uint64
	received   uint64
	startedAt  time.Time
	lastPart   time.Time
	seenHashes map[string]struct{}
	IsResponse bool
	RequestID  []byte

	// TraceID is a process-local correlation ID for log lines about
	// this transfer; it never appears on the wire.
	TraceID string
}

// Progress returns a 0.0-1.0 completion fraction.
func (r *IncomingResource) Progress() float64 {
	if r.Size == 0 {
		return 0
	}
	return float64(r.received) / float64(r.Size)
}

// Rate returns the average receive rate in bytes/second since the
// resource started.
func (r *IncomingResource) Rate() float64 {
	elapsed := time.Since(r.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(r.received) / elapsed
}

// OutgoingResource tracks one resource transfer this Link is sending.
type OutgoingResource struct {
	Hash       []byte
	Size       uint64
	sent       uint64
	startedAt  time.Time
	IsResponse bool
	RequestID  []byte

	// TraceID is a process-local correlation ID for log lines about
	// this transfer; it never appears on the wire.
	TraceID string
}

// resourceMultiplex owns the incoming/outgoing resource collections
// and the part-hash dedup set RESOURCE_REQ forwarding relies on (§4.2:
// "dedupe by packet hash").
type resourceMultiplex struct {
	mu       sync.Mutex
	incoming map[string]*IncomingResource
	outgoing map[string]*OutgoingResource
}

func newResourceMultiplex() *resourceMultiplex {
	return &resourceMultiplex{
		incoming: make(map[string]*IncomingResource),
		outgoing: make(map[string]*OutgoingResource),
	}
}

func hashKey(h []byte) string { return hex.EncodeToString(h) }

func (m *resourceMultiplex) startIncoming(adv *ResourceAdvertisement) *IncomingResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &IncomingResource{
		Hash:       adv.Hash,
		Size:       adv.Size,
		startedAt:  time.Now(),
		lastPart:   time.Now(),
		seenHashes: make(map[string]struct{}),
		IsResponse: adv.IsResponse,
		RequestID:  adv.RequestID,
		TraceID:    uuid.NewString(),
	}
	m.incoming[hashKey(adv.Hash)] = res
	return res
}

func (m *resourceMultiplex) incomingByHash(hash []byte) (*IncomingResource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.incoming[hashKey(hash)]
	return res, ok
}

// acceptPart applies a deduped data chunk to res, returning false if
// partHash has already been seen (a retransmit to ignore).
func (m *resourceMultiplex) acceptPart(res *IncomingResource, partHash []byte, n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hashKey(partHash)
	if _, seen := res.seenHashes[key]; seen {
		return false
	}
	res.seenHashes[key] = struct{}{}
	res.received += uint64(n)
	res.lastPart = time.Now()
	return true
}

func (m *resourceMultiplex) concludeIncoming(hash []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.incoming, hashKey(hash))
}

func (m *resourceMultiplex) registerOutgoing(res *OutgoingResource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outgoing[hashKey(res.Hash)] = res
}

func (m *resourceMultiplex) outgoingByHash(hash []byte) (*OutgoingResource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.outgoing[hashKey(hash)]
	return res, ok
}

func (m *resourceMultiplex) concludeOutgoing(hash []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outgoing, hashKey(hash))
}

// cancelAll drops every tracked resource, used on teardown (§4.6:
// "in-flight resources and requests are cancelled synchronously").
func (m *resourceMultiplex) cancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incoming = make(map[string]*IncomingResource)
	m.outgoing = make(map[string]*OutgoingResource)
}
