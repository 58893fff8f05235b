// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import "time"

// Config is the root configuration for a Link node: everything needed
// to bring up a listener or dial out, plus the ambient logging,
// metrics and health-check surfaces.
type Config struct {
	Environment string         `yaml:"environment" json:"environment"`
	Link        *LinkConfig    `yaml:"link" json:"link"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig  `yaml:"health" json:"health"`
}

// LinkConfig holds the tunables §3 and §4.3 leave as per-destination or
// per-deployment knobs rather than protocol constants. The link package
// does not read LinkConfig: a Link runs with link.Config and the link
// package's own timing constants.
type LinkConfig struct {
	// MTU is the outgoing interface MTU advertised in LRPROOF/LINKREQUEST
	// signalling when the transport doesn't report one of its own.
	MTU uint32 `yaml:"mtu" json:"mtu"`

	// Mode selects the Token cipher suite (0 = AES-256-CBC+HMAC, 1 =
	// reserved HPKE) used to derive the link key.
	Mode uint8 `yaml:"mode" json:"mode"`

	// PerHop records whether timeouts scale by the path's hop count
	// rather than assuming a single hop. link.Config.PerHop is a
	// per-hop duration that always scales the establishment timeout
	// by hop count.
	PerHop bool `yaml:"per_hop" json:"per_hop"`

	// ResourceStrategy controls which inbound resource advertisements
	// are auto-accepted: "none", "app" (ask the application callback)
	// or "all".
	ResourceStrategy string `yaml:"resource_strategy" json:"resource_strategy"`

	// KeepaliveMin/KeepaliveMax bound the RTT-derived keepalive interval
	// per §4.3's clamp.
	KeepaliveMin time.Duration `yaml:"keepalive_min" json:"keepalive_min"`
	KeepaliveMax time.Duration `yaml:"keepalive_max" json:"keepalive_max"`

	// StaleGrace is the grace added to the STALE wait (rtt times the
	// keepalive timeout factor) before a stale Link is closed, as
	// link.StaleGrace is in the watchdog.
	StaleGrace time.Duration `yaml:"stale_grace" json:"stale_grace"`

	// EstablishTimeout bounds how long a Link may sit in PENDING or
	// HANDSHAKE before the watchdog closes it unilaterally.
	EstablishTimeout time.Duration `yaml:"establish_timeout" json:"establish_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`       // debug, info, warn, error
	Format   string `yaml:"format" json:"format"`      // json, text
	Output   string `yaml:"output" json:"output"`      // stdout, stderr, file
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health-check HTTP endpoint.
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// ValidationError describes a single configuration problem found by
// ValidateConfiguration. Level is either "error" (fails loading) or
// "warning" (logged but tolerated).
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
