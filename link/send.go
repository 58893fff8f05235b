package link

import (
	"fmt"
	"time"

	linkcrypto "github.com/arcmesh/link/crypto"
	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/transport"
)

// Send transmits an application payload as a plain DATA packet
// (context NONE), delivered to the peer's packet callback.
func (l *Link) Send(payload []byte) error {
	metrics.LinkMessageSize.WithLabelValues("outbound").Observe(float64(len(payload)))
	return l.sendEncrypted(transport.ContextNone, payload)
}

// sendEncrypted wraps payload in the Link's Token and sends it as a
// DATA packet under the given context, updating tx counters and
// last_outbound.
func (l *Link) sendEncrypted(ctx transport.Context, payload []byte) error {
	l.mu.Lock()
	if l.status == StatusClosed {
		l.mu.Unlock()
		return l.errClosed()
	}
	tok := l.token
	linkID := append([]byte(nil), l.linkID...)
	l.mu.Unlock()

	if tok == nil {
		return fmt.Errorf("link: no token established")
	}
	ciphertext, err := tok.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("link: encrypt: %w", err)
	}
	return l.sendRaw(&transport.Packet{
		Type:    transport.TypeData,
		Context: ctx,
		LinkID:  linkID,
		Payload: ciphertext,
	})
}

// sendRaw hands packet to Transport and updates tx counters; it never
// blocks beyond what Transport.Send does (§5: "non-blocking at the
// Link layer").
func (l *Link) sendRaw(packet *transport.Packet) error {
	if err := l.transport.Send(packet); err != nil {
		return fmt.Errorf("link: transport send: %w", err)
	}
	l.mu.Lock()
	l.tx++
	l.txBytes += uint64(len(packet.Payload))
	l.lastOutbound = time.Now()
	l.mu.Unlock()
	return nil
}

// sendResourceAdvertisement announces an outgoing resource and
// immediately follows with its full payload as RESOURCE_REQ framing.
// A real Resource engine would chunk this; Link's job per scope is
// only to advertise, dedupe, and forward (§4.2) — so for payloads that
// don't fit inline, a single RESOURCE_REQ sub-packet carries the whole
// packed payload, keeping the wire contract exercised without
// reimplementing the external chunking engine.
func (l *Link) sendResourceAdvertisement(out *OutgoingResource, payload []byte) error {
	l.mu.Lock()
	linkID := append([]byte(nil), l.linkID...)
	l.mu.Unlock()

	tok := l.currentToken()
	if tok == nil {
		return fmt.Errorf("link: no token established")
	}

	advPayload, err := encodeAdvertisement(&ResourceAdvertisement{
		Hash:       out.Hash,
		Size:       out.Size,
		IsResponse: out.IsResponse,
		RequestID:  out.RequestID,
	})
	if err != nil {
		return err
	}
	advCipher, err := tok.Encrypt(advPayload)
	if err != nil {
		return err
	}
	if err := l.sendRaw(&transport.Packet{Type: transport.TypeData, Context: transport.ContextResourceAdv, LinkID: linkID, Payload: advCipher}); err != nil {
		return err
	}

	reqPayload := encodeResourceReq(out.Hash, payload)
	reqCipher, err := tok.Encrypt(reqPayload)
	if err != nil {
		return err
	}
	return l.sendRaw(&transport.Packet{Type: transport.TypeData, Context: transport.ContextResourceReq, LinkID: linkID, Payload: reqCipher})
}

func (l *Link) currentToken() *linkcrypto.Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}
