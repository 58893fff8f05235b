package transport

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wirePacket is the WebSocket wire format for Packet: a JSON-framed
// envelope with a hex-encoded LinkID.
type wirePacket struct {
	Type               int    `json:"type"`
	Context            int    `json:"context"`
	LinkID             string `json:"link_id"`
	Payload            []byte `json:"payload"`
	ReceivingInterface string `json:"receiving_interface,omitempty"`
}

func toWirePacket(p *Packet) *wirePacket {
	return &wirePacket{
		Type:               int(p.Type),
		Context:            int(p.Context),
		LinkID:             hex.EncodeToString(p.LinkID),
		Payload:            p.Payload,
		ReceivingInterface: p.ReceivingInterface,
	}
}

func fromWirePacket(w *wirePacket) (*Packet, error) {
	linkID, err := hex.DecodeString(w.LinkID)
	if err != nil {
		return nil, fmt.Errorf("transport: bad wire link_id: %w", err)
	}
	return &Packet{
		Type:               PacketType(w.Type),
		Context:            Context(w.Context),
		LinkID:             linkID,
		Payload:            w.Payload,
		ReceivingInterface: w.ReceivingInterface,
	}, nil
}

// WSTransport is a Transport over a single persistent WebSocket
// connection to one peer, the unit a real Reticulum-style interface
// would provide per link over TCP/WS. It keeps the same in-process
// link/destination registries as MemoryTransport and an identical
// Hops/HWMTU/FirstHopTimeout scripting surface, but serializes Send
// over the wire and dispatches inbound frames from a read loop.
type WSTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn

	dialTimeout  time.Duration
	writeTimeout time.Duration
	readTimeout  time.Duration

	links        map[string]Receiver
	destinations map[string]Receiver

	Hops            map[string]int
	HWMTU           map[string]int
	FirstHopTimeout map[string]time.Duration
	DefaultHops     int
	DefaultTimeout  time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSTransport() *WSTransport {
	return &WSTransport{
		dialTimeout:     30 * time.Second,
		writeTimeout:    10 * time.Second,
		readTimeout:     90 * time.Second,
		links:           make(map[string]Receiver),
		destinations:    make(map[string]Receiver),
		Hops:            make(map[string]int),
		HWMTU:           make(map[string]int),
		FirstHopTimeout: make(map[string]time.Duration),
		DefaultHops:     1,
		DefaultTimeout:  2 * time.Second,
		closed:          make(chan struct{}),
	}
}

// DialWS dials url and returns a WSTransport driving the connection.
func DialWS(ctx context.Context, url string) (*WSTransport, error) {
	t := newWSTransport()
	dialer := &websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: ws dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: ws dial failed: %w", err)
	}
	t.conn = conn
	go t.readLoop()
	return t, nil
}

// WSUpgradeHandler upgrades an incoming HTTP request to a WebSocket
// and returns a WSTransport driving the accepted connection, one per
// remote peer. The caller registers destinations/links on the result
// exactly as it would for a MemoryTransport.
func WSUpgradeHandler(onAccept func(*WSTransport)) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("transport: ws upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		t := newWSTransport()
		t.conn = conn
		onAccept(t)
		go t.readLoop()
	})
}

func (t *WSTransport) readLoop() {
	defer t.Close()
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return
		}
		var w wirePacket
		if err := conn.ReadJSON(&w); err != nil {
			return
		}
		packet, err := fromWirePacket(&w)
		if err != nil {
			continue
		}
		t.dispatch(packet)
	}
}

func (t *WSTransport) dispatch(packet *Packet) {
	t.mu.Lock()
	var receiver Receiver
	var ok bool
	if packet.Type == TypeLinkRequest {
		receiver, ok = t.destinations[key(packet.LinkID)]
	} else {
		receiver, ok = t.links[key(packet.LinkID)]
	}
	t.mu.Unlock()
	if ok {
		receiver.Receive(packet)
	}
}

// RegisterDestination makes listener reachable for inbound
// LINKREQUEST frames addressed to destinationHash, mirroring
// MemoryTransport.RegisterDestination.
func (t *WSTransport) RegisterDestination(destinationHash []byte, listener Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destinations[key(destinationHash)] = listener
}

func (t *WSTransport) RegisterLink(link Receiver, linkID []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.links[key(linkID)] = link
	return nil
}

func (t *WSTransport) ActivateLink(linkID []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.links[key(linkID)]; !ok {
		return ErrUnknownDestination
	}
	return nil
}

func (t *WSTransport) DeregisterLink(linkID []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.links, key(linkID))
	return nil
}

func (t *WSTransport) HopsTo(destinationHash []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.Hops[key(destinationHash)]; ok {
		return n, nil
	}
	return t.DefaultHops, nil
}

func (t *WSTransport) NextHopInterfaceHWMTU(destinationHash []byte) (int, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mtu, ok := t.HWMTU[key(destinationHash)]; ok {
		return mtu, true, nil
	}
	return 0, false, nil
}

func (t *WSTransport) GetFirstHopTimeout(destinationHash []byte) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.FirstHopTimeout[key(destinationHash)]; ok {
		return d, nil
	}
	return t.DefaultTimeout, nil
}

// Send serializes packet as JSON and writes it to the wire.
func (t *WSTransport) Send(packet *Packet) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: ws connection closed")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := conn.WriteJSON(toWirePacket(packet)); err != nil {
		return fmt.Errorf("transport: ws write failed: %w", err)
	}
	return nil
}

// Close closes the underlying connection. Safe to call multiple times.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.conn != nil {
			_ = t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			err = t.conn.Close()
			t.conn = nil
		}
		close(t.closed)
	})
	return err
}

// Done is closed once the connection has been torn down, for callers
// that want to wait on it without polling.
func (t *WSTransport) Done() <-chan struct{} {
	return t.closed
}
