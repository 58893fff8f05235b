package link

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/transport"
)

// RequestStatus tracks an in-flight RPC's lifecycle (§3: RequestReceipt).
type RequestStatus int

const (
	RequestSent RequestStatus = iota
	RequestDelivered
	RequestReceiving
	RequestReady
	RequestFailed
)

// RequestReceipt is returned by Request and updated as the RPC
// progresses. One receipt exists per in-flight RPC, removed from the
// Link's pending_requests once concluded or timed out.
type RequestReceipt struct {
	RequestID []byte
	Path      string
	Status    RequestStatus
	Progress  float64
	Response  []byte
	Metadata  map[string]string

	// TraceID is a process-local correlation ID for log lines about
	// this request; it never appears on the wire.
	TraceID string

	sentAt       time.Time
	timeout      time.Duration
	responseFn   func(receipt *RequestReceipt)
	failedFn     func(receipt *RequestReceipt)
	progressFn   func(receipt *RequestReceipt)
	timeoutTimer *time.Timer
}

// ResponseTime returns how long the request took once it reached
// RequestReady, or zero if it hasn't.
func (r *RequestReceipt) ResponseTime() time.Duration {
	if r.Status != RequestReady {
		return 0
	}
	return time.Since(r.sentAt)
}

// RequestHandlerArgs is passed to a server-side RPC handler; it
// bundles the arity-5/6 parameter set §4.4 describes, collapsed into a
// single struct since Go has no optional-arity dispatch (§9 Design
// Notes: "model this as two explicit handler variants").
type RequestHandlerArgs struct {
	Path          string
	Data          []byte
	RequestID     []byte
	LinkID        []byte
	RemoteIdentity *identity.RemoteIdentity
	RequestedAt   time.Time
}

// RequestHandler produces a response for an inbound REQUEST. Returning
// a non-nil error fails the request silently from the caller's
// perspective (no RESPONSE packet is sent); handler-error wire
// behavior is otherwise unspecified, so Link treats it the same as
// "no response yet" and lets the client time out.
type RequestHandler func(args RequestHandlerArgs) (response []byte, err error)

// RegisterHandler binds path to handler in this Link's request
// registry, keyed by path_hash per §4.4 step 1 / handle_request.
func (l *Link) RegisterHandler(path string, handler RequestHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[hex.EncodeToString(pathHash(path))] = func(args RequestHandlerArgs) ([]byte, error) {
		args.Path = path
		return handler(args)
	}
}

func pathHash(path string) []byte {
	return identity.TruncatedHash([]byte(path))
}

// packRequest implements the compact binary serializer referenced in
// §4.4 step 2: [timestamp:float64][path_hash:16][data].
func packRequest(now time.Time, path string, data []byte) []byte {
	buf := make([]byte, 8+16+len(data))
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(float64(now.UnixNano())/1e9))
	copy(buf[8:24], pathHash(path))
	copy(buf[24:], data)
	return buf
}

func unpackRequest(payload []byte) (timestamp float64, pathHash []byte, data []byte, err error) {
	if len(payload) < 24 {
		return 0, nil, nil, fmt.Errorf("link: request payload too short")
	}
	timestamp = math.Float64frombits(binary.BigEndian.Uint64(payload[0:8]))
	pathHash = payload[8:24]
	data = payload[24:]
	return timestamp, pathHash, data, nil
}

// packResponse implements [request_id:16][response].
func packResponse(requestID, response []byte) []byte {
	buf := make([]byte, 16+len(response))
	copy(buf[0:16], requestID)
	copy(buf[16:], response)
	return buf
}

func unpackResponse(payload []byte) (requestID, response []byte, err error) {
	if len(payload) < 16 {
		return nil, nil, fmt.Errorf("link: response payload too short")
	}
	return payload[0:16], payload[16:], nil
}

// defaultRequestTimeout implements §4.4 step 3.
func (l *Link) defaultRequestTimeout() time.Duration {
	l.mu.Lock()
	rtt := l.rtt
	l.mu.Unlock()
	return time.Duration(float64(rtt)*TrafficTimeoutFactor) + time.Duration(float64(ResponseMaxGrace)*1.125)
}

// Request issues an RPC over this Link, sending inline if the packed
// request fits within mdu and as a Resource otherwise (§4.4 steps
// 4-5). onResponse, onFailed and onProgress may each be nil.
func (l *Link) Request(path string, data []byte, timeout time.Duration, onResponse, onFailed, onProgress func(*RequestReceipt)) (*RequestReceipt, error) {
	l.mu.Lock()
	if l.status != StatusActive {
		l.mu.Unlock()
		return nil, fmt.Errorf("link: request requires an ACTIVE link, have %s", l.status)
	}
	mdu := l.mdu
	l.mu.Unlock()

	packed := packRequest(time.Now(), path, data)
	if timeout <= 0 {
		timeout = l.defaultRequestTimeout()
	}

	receipt := &RequestReceipt{
		RequestID:  identity.TruncatedHash(packed),
		Path:       path,
		Status:     RequestSent,
		TraceID:    uuid.NewString(),
		sentAt:     time.Now(),
		timeout:    timeout,
		responseFn: onResponse,
		failedFn:   onFailed,
		progressFn: onProgress,
	}

	l.mu.Lock()
	l.requests[hashKey(receipt.RequestID)] = receipt
	l.mu.Unlock()

	receipt.timeoutTimer = time.AfterFunc(timeout, func() { l.failRequest(receipt) })

	if len(packed) <= int(mdu) {
		if err := l.sendEncrypted(transport.ContextRequest, packed); err != nil {
			l.failRequest(receipt)
			return receipt, err
		}
		l.setRequestStatus(receipt, RequestDelivered)
		return receipt, nil
	}

	// Oversized request: hand off to the resource multiplex (§4.4 step 5).
	out := &OutgoingResource{Hash: receipt.RequestID, Size: uint64(len(packed)), startedAt: time.Now(), TraceID: receipt.TraceID}
	l.resources.registerOutgoing(out)
	if err := l.sendResourceAdvertisement(out, packed); err != nil {
		l.failRequest(receipt)
		return receipt, err
	}
	l.setRequestStatus(receipt, RequestDelivered)
	return receipt, nil
}

func (l *Link) setRequestStatus(r *RequestReceipt, status RequestStatus) {
	l.mu.Lock()
	r.Status = status
	l.mu.Unlock()
}

func (l *Link) failRequest(r *RequestReceipt) {
	l.mu.Lock()
	if r.Status == RequestReady || r.Status == RequestFailed {
		l.mu.Unlock()
		return
	}
	r.Status = RequestFailed
	delete(l.requests, hashKey(r.RequestID))
	l.mu.Unlock()

	metrics.RequestDuration.WithLabelValues("failed").Observe(time.Since(r.sentAt).Seconds())

	if r.timeoutTimer != nil {
		r.timeoutTimer.Stop()
	}
	if r.failedFn != nil {
		l.pool.dispatch(func() { r.failedFn(r) })
	}
}

func (l *Link) completeRequest(r *RequestReceipt, response []byte) {
	l.mu.Lock()
	if r.Status == RequestReady || r.Status == RequestFailed {
		l.mu.Unlock()
		return
	}
	r.Status = RequestReady
	r.Response = response
	r.Progress = 1.0
	delete(l.requests, hashKey(r.RequestID))
	l.mu.Unlock()

	metrics.RequestDuration.WithLabelValues("ready").Observe(time.Since(r.sentAt).Seconds())

	if r.timeoutTimer != nil {
		r.timeoutTimer.Stop()
	}
	if r.responseFn != nil {
		l.pool.dispatch(func() { r.responseFn(r) })
	}
}

// handleRequestPacket implements the server side of §4.4
// (handle_request): locate handler, enforce allow-policy, invoke, and
// send a RESPONSE (inline or as a resource).
func (l *Link) handleRequestPacket(payload []byte) {
	_, ph, data, err := unpackRequest(payload)
	if err != nil {
		return
	}

	l.mu.Lock()
	handler, ok := l.handlers[hex.EncodeToString(ph)]
	policy := l.allowPolicy
	allowList := l.allowList
	remote := l.remoteIdentity
	linkID := append([]byte(nil), l.linkID...)
	mdu := l.mdu
	l.mu.Unlock()

	if !ok {
		return
	}
	if !policy.Permits(remote, allowList) {
		return
	}

	response, err := handler(RequestHandlerArgs{
		Data:          data,
		RequestID:     identity.TruncatedHash(payload),
		LinkID:        linkID,
		RemoteIdentity: remote,
		RequestedAt:   time.Now(),
	})
	if err != nil {
		return
	}

	requestID := identity.TruncatedHash(payload)
	packed := packResponse(requestID, response)
	if len(packed) <= int(mdu) {
		_ = l.sendEncrypted(transport.ContextResponse, packed)
		return
	}

	out := &OutgoingResource{Hash: requestID, Size: uint64(len(packed)), IsResponse: true, RequestID: requestID, startedAt: time.Now(), TraceID: uuid.NewString()}
	l.resources.registerOutgoing(out)
	_ = l.sendResourceAdvertisement(out, packed)
}

// handleResponsePacket implements the client side of §4.4: deliver a
// DATA/RESPONSE to the matching pending request.
func (l *Link) handleResponsePacket(payload []byte) {
	requestID, response, err := unpackResponse(payload)
	if err != nil {
		return
	}
	l.mu.Lock()
	receipt, ok := l.requests[hashKey(requestID)]
	l.mu.Unlock()
	if !ok {
		return
	}
	l.completeRequest(receipt, response)
}
