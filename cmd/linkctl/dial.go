package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/internal/logger"
	"github.com/arcmesh/link/link"
	"github.com/arcmesh/link/transport"
)

var (
	dialURL        string
	dialPeerPubkey string
	dialSeedFile   string
	dialMessage    string
	dialRequest    bool
	dialTimeout    time.Duration
)

var dialCmd = &cobra.Command{
	Use:   "dial",
	Short: "Dial a Link listener over WebSocket",
	Long: `dial connects to a "linkctl listen" instance, runs the Link
handshake, and sends one message: either a raw Send (the default,
echoed straight back by the listener) or, with --request, an "echo"
RPC request/response round trip.`,
	Example: `  linkctl dial --url ws://localhost:8443/link --peer-pubkey <hex> --message hello
  linkctl dial --url ws://localhost:8443/link --peer-pubkey <hex> --message hello --request`,
	RunE: runDial,
}

func init() {
	rootCmd.AddCommand(dialCmd)
	dialCmd.Flags().StringVarP(&dialURL, "url", "u", "ws://localhost:8443/link", "listener WebSocket URL")
	dialCmd.Flags().StringVarP(&dialPeerPubkey, "peer-pubkey", "p", "", "hex-encoded Ed25519 public key of the listener (required)")
	dialCmd.Flags().StringVarP(&dialSeedFile, "seed-file", "s", "", "seed file for this dialer's own identity (generated if absent)")
	dialCmd.Flags().StringVarP(&dialMessage, "message", "m", "hello", "payload to send once the Link is active")
	dialCmd.Flags().BoolVar(&dialRequest, "request", false, "send an echo RPC request instead of a raw packet")
	dialCmd.Flags().DurationVar(&dialTimeout, "timeout", 10*time.Second, "time to wait for handshake and reply")
	_ = dialCmd.MarkFlagRequired("peer-pubkey")
}

func runDial(cmd *cobra.Command, args []string) error {
	log := logger.NewDefaultLogger()

	peerPub, err := parsePeerPublicKey(dialPeerPubkey)
	if err != nil {
		return err
	}
	// The dialer's own identity is only relevant once the identify
	// sub-protocol volunteers it to the peer; loading it here just
	// ensures --seed-file is provisioned on first run.
	if _, err := loadOrGenerateIdentity(dialSeedFile); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	t, err := transport.DialWS(ctx, dialURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer t.Close()

	destHash := identity.TruncatedHash(peerPub)
	resolver := &identity.StaticResolver{
		DestHash: destHash,
		Remote:   identity.NewRemoteIdentity(peerPub),
	}

	established := make(chan struct{}, 1)
	closed := make(chan link.CloseReason, 1)
	received := make(chan []byte, 1)

	l, err := link.NewInitiator(t, destHash, resolver, link.DefaultConfig(), link.Callbacks{
		LinkEstablished: func(l *link.Link) { established <- struct{}{} },
		LinkClosed:      func(l *link.Link, reason link.CloseReason) { closed <- reason },
		Packet:          func(l *link.Link, payload []byte) { received <- payload },
	})
	if err != nil {
		return fmt.Errorf("start handshake: %w", err)
	}
	select {
	case <-established:
		log.Info("link active", logger.String("link", l.String()), logger.Duration("rtt", l.RTT()))
	case reason := <-closed:
		return fmt.Errorf("link closed before becoming active: %s", reason)
	case <-time.After(dialTimeout):
		return fmt.Errorf("handshake timed out after %s", dialTimeout)
	}

	if dialRequest {
		done := make(chan *link.RequestReceipt, 1)
		failed := make(chan *link.RequestReceipt, 1)
		_, err := l.Request("echo", []byte(dialMessage), dialTimeout,
			func(r *link.RequestReceipt) { done <- r },
			func(r *link.RequestReceipt) { failed <- r },
			nil,
		)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		select {
		case r := <-done:
			fmt.Printf("response: %s\n", string(r.Response))
			return nil
		case <-failed:
			return fmt.Errorf("request failed")
		case <-time.After(dialTimeout):
			return fmt.Errorf("request timed out")
		}
	}

	if err := l.Send([]byte(dialMessage)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	select {
	case payload := <-received:
		fmt.Printf("received: %s\n", string(payload))
	case <-time.After(dialTimeout):
		return fmt.Errorf("no reply within %s", dialTimeout)
	}
	return nil
}
