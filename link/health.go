package link

import (
	"time"

	"github.com/arcmesh/link/health"
)

// RegisterHealthCheck wires l's watchdog liveness into checker under
// name, so a process hosting many Links can expose one aggregate
// /healthz covering all of them.
func (l *Link) RegisterHealthCheck(checker *health.HealthChecker, name string, maxSilence time.Duration) {
	checker.RegisterCheck(name, health.WatchdogHealthCheck(
		func() string { return l.Status().String() },
		l.LastWatchdogTick,
		maxSilence,
	))
}
