package link

import (
	"strings"
	"time"

	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/transport"
)

// Teardown implements §4.6: local closure. Issuing it twice is a
// no-op, satisfying the idempotence property in §8.
func (l *Link) Teardown() {
	reason := ReasonInitiatorClosed
	if !l.IsInitiator() {
		reason = ReasonDestinationClosed
	}
	l.closeWithReason(reason, true)
}

// closeWithReason transitions the Link to CLOSED, optionally sending a
// proof-of-ownership LINKCLOSE first (local teardown does; a validated
// inbound LINKCLOSE does not echo one back). It cancels in-flight
// resources and requests synchronously and fires link_closed exactly
// once.
func (l *Link) closeWithReason(reason CloseReason, sendClose bool) {
	l.mu.Lock()
	if l.status == StatusClosed {
		l.mu.Unlock()
		return
	}

	wasActive := l.status == StatusActive || l.status == StatusStale
	linkID := append([]byte(nil), l.linkID...)
	tok := l.token
	createdAt := l.createdAt
	l.status = StatusClosed
	l.reason = reason
	l.zeroKeys()
	l.mu.Unlock()

	reasonLabel := strings.ToLower(reason.String())
	metrics.LinksClosed.WithLabelValues(reasonLabel).Inc()
	metrics.LinkDuration.WithLabelValues(reasonLabel).Observe(time.Since(createdAt).Seconds())
	if wasActive {
		metrics.LinksActive.Dec()
	}

	if sendClose && tok != nil {
		if ciphertext, err := tok.Encrypt(linkID); err == nil {
			_ = l.transport.Send(&transport.Packet{
				Type:    transport.TypeData,
				Context: transport.ContextLinkClose,
				LinkID:  linkID,
				Payload: ciphertext,
			})
		}
	}

	l.cancelPendingRequests()
	l.resources.cancelAll()
	_ = l.transport.DeregisterLink(linkID)

	select {
	case <-l.watchdogDone:
	default:
		close(l.watchdogDone)
	}

	l.fireLinkClosed(reason)
}

func (l *Link) cancelPendingRequests() {
	l.mu.Lock()
	pending := make([]*RequestReceipt, 0, len(l.requests))
	for _, r := range l.requests {
		pending = append(pending, r)
	}
	l.requests = make(map[string]*RequestReceipt)
	l.mu.Unlock()

	for _, r := range pending {
		if r.timeoutTimer != nil {
			r.timeoutTimer.Stop()
		}
		r.Status = RequestFailed
		if r.failedFn != nil {
			l.pool.dispatch(func() { r.failedFn(r) })
		}
	}
}
