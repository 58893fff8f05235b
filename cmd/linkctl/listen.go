package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcmesh/link/health"
	"github.com/arcmesh/link/identity"
	"github.com/arcmesh/link/internal/logger"
	"github.com/arcmesh/link/internal/metrics"
	"github.com/arcmesh/link/link"
	"github.com/arcmesh/link/transport"
)

const watchdogMaxSilence = 30 * time.Second

var (
	listenAddr     string
	listenPath     string
	listenSeedFile string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept inbound Links over WebSocket",
	Long: `listen starts an HTTP server, upgrades every connection on --path to
a WebSocket-backed Transport, and registers a Link Listener under the
identity's destination hash. Established Links echo every received
packet back to the sender and expose a single "echo" RPC handler.`,
	Example: `  linkctl listen --addr :8443 --seed-file ./server.seed`,
	RunE:    runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVarP(&listenAddr, "addr", "a", ":8443", "address to listen on")
	listenCmd.Flags().StringVar(&listenPath, "path", "/link", "HTTP path to accept WebSocket upgrades on")
	listenCmd.Flags().StringVarP(&listenSeedFile, "seed-file", "s", "", "seed file to load/persist the listener's identity (generated if absent)")
}

func runListen(cmd *cobra.Command, args []string) error {
	log := logger.NewDefaultLogger()

	id, err := loadOrGenerateIdentity(listenSeedFile)
	if err != nil {
		return err
	}
	log.Info("identity ready", logger.String("hash", id.Hash()), logger.String("short_id", id.ShortID()))

	checker := health.NewHealthChecker(5 * time.Second)
	checker.SetLogger(log)

	cfg := link.DefaultConfig()
	onAccept := func(t *transport.WSTransport) {
		callbacks := link.Callbacks{
			LinkEstablished: func(l *link.Link) {
				log.Info("link established", logger.String("link", l.String()))
				l.RegisterHealthCheck(checker, l.String(), watchdogMaxSilence)
			},
			LinkClosed: func(l *link.Link, reason link.CloseReason) {
				log.Info("link closed", logger.String("link", l.String()), logger.String("reason", reason.String()))
				checker.UnregisterCheck(l.String())
			},
			Packet: func(l *link.Link, payload []byte) {
				log.Info("packet received", logger.String("link", l.String()), logger.Int("bytes", len(payload)))
				if err := l.Send(payload); err != nil {
					log.Warn("echo send failed", logger.Error(err))
				}
			},
		}
		destHash := identity.TruncatedHash(id.PublicBytes())
		link.NewListener(t, destHash, id, cfg, callbacks, func(l *link.Link) {
			l.RegisterHandler("echo", func(a link.RequestHandlerArgs) ([]byte, error) {
				return a.Data, nil
			})
		})
	}

	mux := http.NewServeMux()
	mux.Handle(listenPath, transport.WSUpgradeHandler(onAccept))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sys := checker.GetSystemHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if sys.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(sys)
	})

	log.Info("listening", logger.String("addr", listenAddr), logger.String("path", listenPath))
	return http.ListenAndServe(listenAddr, mux)
}
