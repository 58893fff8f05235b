package link

import (
	"fmt"

	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/transport"
)

// Identify implements §4.5: only the initiator may volunteer its
// identity, and only on an ACTIVE Link. It reveals nothing on the wire
// beyond what the link key already protects.
func (l *Link) Identify(id *identity.Identity) error {
	if !l.IsInitiator() {
		return fmt.Errorf("link: only the initiator may identify")
	}
	l.mu.Lock()
	if l.status != StatusActive {
		l.mu.Unlock()
		return fmt.Errorf("link: identify requires an ACTIVE link, have %s", l.status)
	}
	linkID := append([]byte(nil), l.linkID...)
	l.mu.Unlock()

	signed := append(append([]byte(nil), linkID...), id.PublicBytes()...)
	sig, err := id.Sign(signed)
	if err != nil {
		return fmt.Errorf("link: sign identify payload: %w", err)
	}

	payload := append(append([]byte(nil), id.PublicBytes()...), sig...)
	return l.sendEncrypted(transport.ContextLinkIdentify, payload)
}

// handleIdentify implements the responder's half of §4.5: a decrypted
// DATA/LINKIDENTIFY carries `pub ‖ sig(link_id ‖ pub)`.
func (l *Link) handleIdentify(ciphertext []byte) {
	l.handleEncrypted(ciphertext, func(plaintext []byte) {
		if len(plaintext) != 32+64 {
			return
		}
		pub := plaintext[0:32]
		sig := plaintext[32:96]

		l.mu.Lock()
		linkID := append([]byte(nil), l.linkID...)
		l.mu.Unlock()

		signed := append(append([]byte(nil), linkID...), pub...)
		if err := identity.VerifyRemote(pub, signed, sig); err != nil {
			return
		}

		remote := identity.NewRemoteIdentity(pub)
		l.mu.Lock()
		l.remoteIdentity = remote
		l.mu.Unlock()

		l.fireRemoteIdentified(remote)
	})
}
