package link

import (
	"errors"
	"testing"
	"time"

	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnknownTestDestination = errors.New("link: unknown test destination")

// staticResolver resolves exactly one destination to a known identity,
// the shape a real Link would get from a local keystore.
type staticResolver struct {
	destHash []byte
	remote   *identity.RemoteIdentity
}

func (r *staticResolver) Resolve(destinationHash []byte) (*identity.RemoteIdentity, error) {
	if string(destinationHash) != string(r.destHash) {
		return nil, errUnknownTestDestination
	}
	return r.remote, nil
}

func establishPair(t *testing.T) (mt *transport.MemoryTransport, initiatorLink, responderLink *Link) {
	t.Helper()
	mt = transport.NewMemoryTransport()

	respIdentity, err := identity.Generate()
	require.NoError(t, err)
	destHash := []byte("responder-destination-1")

	var responderCh = make(chan *Link, 1)
	_ = NewListener(mt, destHash, respIdentity, DefaultConfig(), Callbacks{
		LinkEstablished: func(l *Link) { responderCh <- l },
	}, nil)

	resolver := &staticResolver{
		destHash: destHash,
		remote:   identity.NewRemoteIdentity(respIdentity.PublicBytes()),
	}

	var initiatorEstablished = make(chan struct{}, 1)
	initLink, err := NewInitiator(mt, destHash, resolver, DefaultConfig(), Callbacks{
		LinkEstablished: func(l *Link) { initiatorEstablished <- struct{}{} },
	})
	require.NoError(t, err)

	select {
	case <-initiatorEstablished:
	case <-time.After(2 * time.Second):
		t.Fatal("initiator never reached ACTIVE")
	}

	var respLink *Link
	select {
	case respLink = <-responderCh:
	case <-time.After(2 * time.Second):
		t.Fatal("responder never reached ACTIVE")
	}

	return mt, initLink, respLink
}

func TestHandshakeReachesActiveOnBothSides(t *testing.T) {
	_, initLink, respLink := establishPair(t)

	assert.Equal(t, StatusActive, initLink.Status())
	assert.Equal(t, StatusActive, respLink.Status())
	assert.Equal(t, initLink.LinkID(), respLink.LinkID())
	assert.Greater(t, initLink.MDU(), uint32(0))
}

func TestStringRendersLinkIDAsBase58(t *testing.T) {
	_, initLink, respLink := establishPair(t)

	assert.Equal(t, initLink.String(), respLink.String())
	assert.Contains(t, initLink.String(), "link:")
	assert.NotContains(t, initLink.String(), "link:pending")

	pending := &Link{}
	assert.Equal(t, "link:pending", pending.String())
}

func TestDataPacketDeliveredToPeerCallback(t *testing.T) {
	mt := transport.NewMemoryTransport()

	respIdentity, err := identity.Generate()
	require.NoError(t, err)
	destHash := []byte("dest-data-test")

	received := make(chan []byte, 1)
	_ = NewListener(mt, destHash, respIdentity, DefaultConfig(), Callbacks{
		Packet: func(l *Link, payload []byte) { received <- payload },
	}, nil)

	resolver := &staticResolver{destHash: destHash, remote: identity.NewRemoteIdentity(respIdentity.PublicBytes())}
	established := make(chan struct{}, 1)
	initLink, err := NewInitiator(mt, destHash, resolver, DefaultConfig(), Callbacks{
		LinkEstablished: func(l *Link) { established <- struct{}{} },
	})
	require.NoError(t, err)

	select {
	case <-established:
	case <-time.After(2 * time.Second):
		t.Fatal("never established")
	}

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, initLink.Send(payload))

	select {
	case got := <-received:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received packet")
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	mt, initLink, respLink := establishPair(t)
	_ = mt

	respLink.RegisterHandler("echo", func(args RequestHandlerArgs) ([]byte, error) {
		return append([]byte("echo:"), args.Data...), nil
	})
	respLink.SetAllowPolicy(identity.AllowAll, nil)

	responseCh := make(chan *RequestReceipt, 1)
	failedCh := make(chan *RequestReceipt, 1)
	_, err := initLink.Request("echo", []byte("hi"), time.Second, func(r *RequestReceipt) {
		responseCh <- r
	}, func(r *RequestReceipt) {
		failedCh <- r
	}, nil)
	require.NoError(t, err)

	select {
	case r := <-responseCh:
		assert.Equal(t, RequestReady, r.Status)
		assert.Equal(t, "echo:hi", string(r.Response))
	case r := <-failedCh:
		t.Fatalf("request failed unexpectedly: %+v", r)
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}
}

func TestTeardownIsIdempotentAndClosesPeer(t *testing.T) {
	_, initLink, respLink := establishPair(t)

	closed := make(chan CloseReason, 1)
	respLink.mu.Lock()
	respLink.callbacks.LinkClosed = func(l *Link, reason CloseReason) { closed <- reason }
	respLink.mu.Unlock()

	initLink.Teardown()
	initLink.Teardown() // no-op, must not panic or double-fire

	assert.Equal(t, StatusClosed, initLink.Status())

	select {
	case reason := <-closed:
		assert.Equal(t, ReasonInitiatorClosed, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("responder never observed link_closed")
	}
	assert.Equal(t, StatusClosed, respLink.Status())
}

func TestInterfacePinningDropsMismatchedInterface(t *testing.T) {
	mt, initLink, respLink := establishPair(t)
	_ = initLink

	received := make(chan []byte, 1)
	respLink.mu.Lock()
	respLink.callbacks.Packet = func(l *Link, payload []byte) { received <- payload }
	respLink.attachedInterface = "if0"
	respLink.mu.Unlock()

	tok := respLink.currentToken()
	ciphertext, err := tok.Encrypt([]byte("spoofed"))
	require.NoError(t, err)

	respLink.Receive(&transport.Packet{
		Type:               transport.TypeData,
		Context:            transport.ContextNone,
		LinkID:             respLink.LinkID(),
		Payload:            ciphertext,
		ReceivingInterface: "if1",
	})

	select {
	case <-received:
		t.Fatal("packet on wrong interface must be dropped")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, StatusActive, respLink.Status())
	_ = mt
}
