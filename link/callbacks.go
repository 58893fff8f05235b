package link

import (
	"context"

	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/internal/logger"
	"golang.org/x/sync/semaphore"
)

// workerPool dispatches application callbacks off the ingress
// goroutine on a bounded set of workers, replacing the "thread per
// callback" approach §9 Design Notes calls out as needing a typed
// rework. A panicking callback is recovered and logged rather than
// propagating into the packet path (§7 error #7).
type workerPool struct {
	sem *semaphore.Weighted
}

func newWorkerPool(maxConcurrent int64) *workerPool {
	return &workerPool{sem: semaphore.NewWeighted(maxConcurrent)}
}

func (p *workerPool) dispatch(fn func()) {
	if fn == nil {
		return
	}
	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("application callback panicked",
					logger.Any("recovered", r))
			}
		}()
		fn()
	}()
}

func (l *Link) fireLinkEstablished() {
	cb := l.callbacks.LinkEstablished
	if cb == nil {
		return
	}
	l.pool.dispatch(func() { cb(l) })
}

func (l *Link) fireLinkClosed(reason CloseReason) {
	cb := l.callbacks.LinkClosed
	if cb == nil {
		return
	}
	l.pool.dispatch(func() { cb(l, reason) })
}

func (l *Link) firePacket(payload []byte) {
	cb := l.callbacks.Packet
	if cb == nil {
		return
	}
	data := append([]byte(nil), payload...)
	l.pool.dispatch(func() { cb(l, data) })
}

func (l *Link) fireResourceStarted(res *IncomingResource) {
	cb := l.callbacks.ResourceStarted
	if cb == nil {
		return
	}
	l.pool.dispatch(func() { cb(l, res) })
}

func (l *Link) fireResourceConcluded(res *IncomingResource) {
	cb := l.callbacks.ResourceConcluded
	if cb == nil {
		return
	}
	l.pool.dispatch(func() { cb(l, res) })
}

func (l *Link) fireRemoteIdentified(remote *identity.RemoteIdentity) {
	cb := l.callbacks.RemoteIdentified
	if cb == nil {
		return
	}
	l.pool.dispatch(func() { cb(l, remote) })
}

// resourceAllowed enforces resourceStrategy, consulting the Resource
// callback synchronously only under AcceptApp — the application must
// answer accept/reject before the advertisement can be bound, so that
// one hook runs on the caller's goroutine rather than the worker pool,
// matching §4.2's RESOURCE_ADV handling which needs an immediate
// answer. Under AcceptNone/AcceptAll the callback is not invoked at
// all.
func (l *Link) resourceAllowed(adv *ResourceAdvertisement) bool {
	switch l.resourceStrategy {
	case AcceptNone:
		return false
	case AcceptAll:
		return true
	default: // AcceptApp
		cb := l.callbacks.Resource
		if cb == nil {
			return false
		}
		return cb(l, adv)
	}
}
