package link

import (
	"time"

	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/transport"
)

// startWatchdog launches the per-Link timer agent described in §4.3.
// It is started once, from either handshake construction path.
func (l *Link) startWatchdog() {
	l.watchdogOnce.Do(func() {
		go l.watchdogLoop()
	})
}

// wakeWatchdog nudges the watchdog to re-examine state immediately
// rather than waiting out its current sleep — used after any event
// that could shorten the next wake (status transition, inbound
// packet).
func (l *Link) wakeWatchdog() {
	select {
	case l.watchdogWake <- struct{}{}:
	default:
	}
}

// watchdogLoop implements the state-driven schedule of §4.3. Sleep is
// always bounded by WatchdogMaxSleep so a status change becomes
// observable within 5s even if nothing else wakes the loop.
func (l *Link) watchdogLoop() {
	for {
		sleep := l.watchdogTick()
		if sleep < 0 {
			return // CLOSED; nothing left to schedule
		}
		if sleep > WatchdogMaxSleep {
			sleep = WatchdogMaxSleep
		}
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-l.watchdogWake:
			timer.Stop()
		case <-l.watchdogDone:
			timer.Stop()
			return
		}
	}
}

// watchdogTick examines current state under the Link's single mutex —
// the same lock Receive holds for the duration of packet handling —
// performs whatever action is due, and returns how long until the next
// tick is worth taking. A negative return means the Link is CLOSED and
// the loop should exit.
func (l *Link) watchdogTick() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.lastWatchdogTick = now

	switch l.status {
	case StatusClosed:
		return -1

	case StatusPending, StatusHandshake:
		deadline := l.requestTime.Add(l.establishTimeout)
		if !now.Before(deadline) {
			l.status = StatusClosed
			l.reason = ReasonTimeout
			l.zeroKeys()
			metrics.LinksClosed.WithLabelValues("timeout").Inc()
			metrics.LinkDuration.WithLabelValues("timeout").Observe(now.Sub(l.createdAt).Seconds())
			go l.fireLinkClosed(ReasonTimeout)
			return -1
		}
		return time.Until(deadline)

	case StatusActive:
		lastAny := l.lastInbound
		if l.lastProof.After(lastAny) {
			lastAny = l.lastProof
		}
		if l.activatedAt.After(lastAny) {
			lastAny = l.activatedAt
		}

		if !now.Before(lastAny.Add(l.keepalive)) {
			if l.initiator && !now.Before(l.lastKeepalive.Add(l.keepalive)) {
				l.lastKeepalive = now
				go l.sendKeepalivePing()
			}
			if !now.Before(lastAny.Add(l.staleTime)) {
				l.status = StatusStale
				return l.rtt*time.Duration(KeepaliveTimeoutFactor) + StaleGrace
			}
		}
		return time.Until(lastAny.Add(l.keepalive))

	case StatusStale:
		l.status = StatusClosed
		l.reason = ReasonTimeout
		linkID := append([]byte(nil), l.linkID...)
		var closePacket []byte
		if l.token != nil {
			closePacket, _ = l.token.Encrypt(linkID)
		}
		l.zeroKeys()
		metrics.LinksActive.Dec()
		metrics.LinksClosed.WithLabelValues("timeout").Inc()
		metrics.LinkDuration.WithLabelValues("timeout").Observe(now.Sub(l.createdAt).Seconds())
		if closePacket != nil {
			go func() {
				_ = l.transport.Send(&transport.Packet{Type: transport.TypeData, Context: transport.ContextLinkClose, LinkID: linkID, Payload: closePacket})
			}()
		}
		go l.fireLinkClosed(ReasonTimeout)
		return -1
	}

	return WatchdogMaxSleep
}

func (l *Link) sendKeepalivePing() {
	metrics.LinkKeepalives.WithLabelValues("sent").Inc()
	_ = l.sendRaw(&transport.Packet{
		Type:    transport.TypeData,
		Context: transport.ContextKeepalive,
		LinkID:  l.LinkID(),
		Payload: []byte{0xFF},
	})
}
