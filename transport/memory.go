package transport

import (
	"encoding/hex"
	"sync"
	"time"
)

// MemoryTransport is an in-process fake Transport: it routes packets
// between Links registered on the same instance by LinkID, with no
// network, interface, or hop simulation beyond what tests configure.
// It exists so the Link state machine is unit-testable without a real
// router.
type MemoryTransport struct {
	mu           sync.Mutex
	links        map[string]Receiver
	destinations map[string]Receiver

	// Hops, HWMTU, and FirstHopTimeout let a test script the values
	// HopsTo/NextHopInterfaceHWMTU/GetFirstHopTimeout return for a
	// given destination hash (hex-encoded). Missing entries fall back
	// to DefaultHops/DefaultTimeout/no fixed MTU.
	Hops            map[string]int
	HWMTU           map[string]int
	FirstHopTimeout map[string]time.Duration

	DefaultHops    int
	DefaultTimeout time.Duration

	// SendFunc, if set, is consulted before default in-process
	// delivery — it can drop, delay, or mutate a packet to simulate
	// network faults (used by tampering/partition tests).
	SendFunc func(packet *Packet) error

	// Sent records every packet handed to Send, for test assertions.
	Sent []*Packet
}

// NewMemoryTransport constructs an empty MemoryTransport with sane
// defaults: 1 hop, a 2s first-hop timeout.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		links:           make(map[string]Receiver),
		destinations:    make(map[string]Receiver),
		Hops:            make(map[string]int),
		HWMTU:           make(map[string]int),
		FirstHopTimeout: make(map[string]time.Duration),
		DefaultHops:     1,
		DefaultTimeout:  2 * time.Second,
	}
}

func key(id []byte) string { return hex.EncodeToString(id) }

// RegisterDestination makes a listener reachable for inbound
// LINKREQUEST packets addressed to destinationHash. This models the
// responder side of a real Transport's destination registry, which
// sits above per-link routing: a link_id only exists once a request
// has been received and a Link constructed for it.
func (m *MemoryTransport) RegisterDestination(destinationHash []byte, listener Receiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations[key(destinationHash)] = listener
}

func (m *MemoryTransport) RegisterLink(link Receiver, linkID []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[key(linkID)] = link
	return nil
}

func (m *MemoryTransport) ActivateLink(linkID []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[key(linkID)]; !ok {
		return ErrUnknownDestination
	}
	return nil
}

func (m *MemoryTransport) DeregisterLink(linkID []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, key(linkID))
	return nil
}

func (m *MemoryTransport) HopsTo(destinationHash []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.Hops[key(destinationHash)]; ok {
		return n, nil
	}
	return m.DefaultHops, nil
}

func (m *MemoryTransport) NextHopInterfaceHWMTU(destinationHash []byte) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mtu, ok := m.HWMTU[key(destinationHash)]; ok {
		return mtu, true, nil
	}
	return 0, false, nil
}

func (m *MemoryTransport) GetFirstHopTimeout(destinationHash []byte) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.FirstHopTimeout[key(destinationHash)]; ok {
		return d, nil
	}
	return m.DefaultTimeout, nil
}

// Send delivers packet synchronously on the caller's goroutine. A
// TypeLinkRequest packet is routed by packet.LinkID interpreted as a
// destination hash (no link exists yet); everything else is routed by
// packet.LinkID interpreted as an established link_id. Tests that need
// asynchronous delivery should wrap MemoryTransport or spawn their own
// goroutine around Send.
func (m *MemoryTransport) Send(packet *Packet) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(packet); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.Sent = append(m.Sent, packet)
	var receiver Receiver
	var ok bool
	if packet.Type == TypeLinkRequest {
		receiver, ok = m.destinations[key(packet.LinkID)]
	} else {
		receiver, ok = m.links[key(packet.LinkID)]
	}
	m.mu.Unlock()

	if !ok {
		return ErrUnknownDestination
	}
	receiver.Receive(packet)
	return nil
}
