package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSTransportRoutesDataByLinkID(t *testing.T) {
	accepted := make(chan *WSTransport, 1)
	handler := WSUpgradeHandler(func(wt *WSTransport) {
		accepted <- wt
	})
	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWS(ctx, wsURL)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	linkID := []byte("0123456789abcdef")
	receiver := &recordingReceiver{}
	require.NoError(t, server.RegisterLink(receiver, linkID))

	err = client.Send(&Packet{Type: TypeData, LinkID: linkID, Payload: []byte("data")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(receiver.received) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte("data"), receiver.received[0].Payload)
}

func TestWSTransportRoutesLinkRequestByDestination(t *testing.T) {
	accepted := make(chan *WSTransport, 1)
	handler := WSUpgradeHandler(func(wt *WSTransport) {
		accepted <- wt
	})
	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWS(ctx, wsURL)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	destHash := []byte("destination-hash-16b")
	responder := &recordingReceiver{}
	server.RegisterDestination(destHash, responder)

	err = client.Send(&Packet{Type: TypeLinkRequest, LinkID: destHash, Payload: []byte("req")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(responder.received) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte("req"), responder.received[0].Payload)
}

func TestWSTransportScriptedLookups(t *testing.T) {
	wt := newWSTransport()
	dest := []byte("dest")
	wt.Hops[key(dest)] = 2
	wt.HWMTU[key(dest)] = 500

	hops, err := wt.HopsTo(dest)
	require.NoError(t, err)
	assert.Equal(t, 2, hops)

	mtu, ok, err := wt.NextHopInterfaceHWMTU(dest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 500, mtu)
}
