package link

import (
	"time"

	"github.com/arcmesh/link/internal/logger"
	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/transport"
)

// Receive implements transport.Receiver. It is the single entry point
// for every inbound packet once a Link has been registered, enforcing
// §4.2's pre-dispatch checks before routing on (type, context).
//
// The Link's mutex is held for the duration of receive() per §9's
// replacement for the cooperative watchdog_lock: the watchdog acquires
// the same mutex rather than polling a boolean, so it can never
// observe a torn status transition.
func (l *Link) Receive(packet *transport.Packet) {
	l.mu.Lock()
	closed := l.status == StatusClosed
	initiator := l.initiator
	attached := l.attachedInterface
	active := l.status == StatusActive || l.status == StatusStale
	l.mu.Unlock()

	if closed {
		return
	}

	if packet.Context == transport.ContextKeepalive && initiator && isKeepalivePing(packet.Payload) {
		// Initiators never reply to keep-alives; ignore self-echo pings.
		return
	}

	if active && attached != "" && packet.ReceivingInterface != attached {
		logger.Warn("dropping packet on mismatched interface",
			logger.HexID("link_id", l.LinkID()),
			logger.String("receiving_interface", packet.ReceivingInterface),
			logger.String("pinned_interface", attached))
		metrics.InterfaceMismatchDrops.Inc()
		return
	}

	l.mu.Lock()
	l.lastInbound = time.Now()
	if packet.Context != transport.ContextKeepalive {
		l.lastData = time.Now()
	}
	l.rx++
	l.rxBytes += uint64(len(packet.Payload))
	if l.status == StatusStale {
		l.status = StatusActive
	}
	l.mu.Unlock()
	l.wakeWatchdog()

	metrics.PacketSize.Observe(float64(len(packet.Payload)))

	switch packet.Type {
	case transport.TypeProof:
		if packet.Context == transport.ContextResourcePRF {
			l.handleResourceProof(packet.Payload)
			return
		}
		if !l.IsInitiator() {
			return
		}
		l.handleProof(packet)
	case transport.TypeData:
		l.dispatchData(packet)
	}
}

func isKeepalivePing(payload []byte) bool {
	return len(payload) == 1 && payload[0] == 0xFF
}

func contextLabel(c transport.Context) string {
	switch c {
	case transport.ContextNone:
		return "data"
	case transport.ContextLinkIdentify:
		return "identify"
	case transport.ContextRequest:
		return "request"
	case transport.ContextResponse:
		return "response"
	case transport.ContextLRRTT:
		return "rtt"
	case transport.ContextLinkClose:
		return "close"
	case transport.ContextResourceAdv, transport.ContextResourceReq, transport.ContextResourceHMU,
		transport.ContextResourceICL, transport.ContextResourceRCL, transport.ContextResource, transport.ContextResourcePRF:
		return "resource"
	case transport.ContextKeepalive:
		return "keepalive"
	case transport.ContextChannel:
		return "channel"
	default:
		return "unknown"
	}
}

func (l *Link) dispatchData(packet *transport.Packet) {
	metrics.PacketsProcessed.WithLabelValues(contextLabel(packet.Context), "delivered").Inc()

	switch packet.Context {
	case transport.ContextNone:
		l.handleDataPacket(packet.Payload)
	case transport.ContextLinkIdentify:
		l.handleIdentify(packet.Payload)
	case transport.ContextRequest:
		l.handleEncrypted(packet.Payload, l.handleRequestPacket)
	case transport.ContextResponse:
		l.handleEncrypted(packet.Payload, l.handleResponsePacket)
	case transport.ContextLRRTT:
		if l.IsInitiator() {
			return
		}
		l.handleEncrypted(packet.Payload, l.handleRTT)
	case transport.ContextLinkClose:
		l.handleEncrypted(packet.Payload, l.handleLinkClose)
	case transport.ContextResourceAdv:
		l.handleEncrypted(packet.Payload, l.handleResourceAdvertisement)
	case transport.ContextResourceReq:
		l.handleEncrypted(packet.Payload, l.handleResourceReq)
	case transport.ContextResourceHMU, transport.ContextResourceICL, transport.ContextResourceRCL, transport.ContextResource:
		l.handleEncrypted(packet.Payload, l.forwardToResource)
	case transport.ContextKeepalive:
		l.handleKeepalive(packet.Payload)
	case transport.ContextChannel:
		l.handleEncrypted(packet.Payload, l.forwardToChannel)
	}
}

// handleEncrypted decrypts payload with the Link's Token and, on
// success, invokes fn with the plaintext. Decryption failure is a
// silent drop per §7 error #3 — last_inbound is NOT rolled back since
// it was already updated by Receive: last_inbound updates before
// dispatch, regardless of payload validity.
func (l *Link) handleEncrypted(ciphertext []byte, fn func(plaintext []byte)) {
	tok := l.currentToken()
	if tok == nil {
		return
	}
	plaintext, err := tok.Decrypt(ciphertext)
	if err != nil {
		return
	}
	fn(plaintext)
}

func (l *Link) handleDataPacket(ciphertext []byte) {
	l.handleEncrypted(ciphertext, func(plaintext []byte) {
		metrics.LinkMessageSize.WithLabelValues("inbound").Observe(float64(len(plaintext)))
		l.firePacket(plaintext)
	})
}

func (l *Link) handleKeepalive(payload []byte) {
	if l.IsInitiator() {
		return
	}
	if !isKeepalivePing(payload) {
		return
	}
	metrics.LinkKeepalives.WithLabelValues("replied").Inc()
	_ = l.sendRaw(&transport.Packet{
		Type:    transport.TypeData,
		Context: transport.ContextKeepalive,
		LinkID:  l.LinkID(),
		Payload: []byte{0xFE},
	})
}

func (l *Link) handleLinkClose(plaintext []byte) {
	l.mu.Lock()
	linkID := l.linkID
	match := len(plaintext) == len(linkID)
	if match {
		for i := range plaintext {
			if plaintext[i] != linkID[i] {
				match = false
				break
			}
		}
	}
	initiator := l.initiator
	l.mu.Unlock()
	if !match {
		return
	}

	reason := ReasonInitiatorClosed
	if initiator {
		reason = ReasonDestinationClosed
	}
	l.closeWithReason(reason, false)
}

func (l *Link) handleResourceAdvertisement(plaintext []byte) {
	adv, err := decodeAdvertisement(plaintext)
	if err != nil {
		return
	}
	if adv.IsResponse {
		l.mu.Lock()
		receipt, ok := l.requests[hashKey(adv.RequestID)]
		l.mu.Unlock()
		if !ok {
			return
		}
		l.setRequestStatus(receipt, RequestReceiving)
		l.resources.startIncoming(adv)
		if receipt.progressFn != nil {
			l.pool.dispatch(func() { receipt.progressFn(receipt) })
		}
		return
	}
	if !l.resourceAllowed(adv) {
		return
	}
	res := l.resources.startIncoming(adv)
	l.fireResourceStarted(res)
}

func (l *Link) handleResourceReq(plaintext []byte) {
	hash, data, err := decodeResourceReq(plaintext)
	if err != nil {
		return
	}
	res, ok := l.resources.incomingByHash(hash)
	if !ok {
		return
	}
	partHash := hashOfBytes(data)
	if !l.resources.acceptPart(res, partHash, len(data)) {
		return
	}

	if res.IsResponse {
		l.mu.Lock()
		receipt, ok := l.requests[hashKey(res.RequestID)]
		l.mu.Unlock()
		if ok {
			requestID, response, err := unpackResponse(data)
			if err == nil && hashKey(requestID) == hashKey(res.RequestID) {
				l.resources.concludeIncoming(hash)
				l.completeRequest(receipt, response)
				l.fireResourceConcluded(res)
				return
			}
		}
		return
	}

	l.resources.concludeIncoming(hash)
	l.fireResourceConcluded(res)
	l.handleRequestPacket(data)
}

func (l *Link) handleResourceProof(payload []byte) {
	// Out of scope: the external Resource engine owns per-chunk
	// proof verification. Link only needs the routing hook to exist
	// so PROOF/RESOURCE_PRF packets are not silently misrouted to the
	// handshake's proof handler.
	_ = payload
}

func (l *Link) forwardToResource(plaintext []byte) {
	_ = plaintext
}

func (l *Link) forwardToChannel(plaintext []byte) {
	l.firePacket(plaintext)
}
