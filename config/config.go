// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config provides configuration management for Link nodes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a Config from path, detecting YAML vs JSON by
// extension and falling back to YAML parsing for extensions it
// doesn't recognize.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse json %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path as YAML or JSON depending on extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// HeaderAndTokenFloor is the smallest MTU that could plausibly carry a
// single AEAD-wrapped data block; used only to sanity-check config.
const HeaderAndTokenFloor = 64

// setDefaults fills in the zero-value sections of cfg with the
// defaults a freshly dialed or listened Link should use when a
// deployment's config file omits them.
func setDefaults(cfg *Config) {
	if cfg.Link == nil {
		cfg.Link = &LinkConfig{}
	}
	if cfg.Link.MTU == 0 {
		cfg.Link.MTU = 500
	}
	if cfg.Link.ResourceStrategy == "" {
		cfg.Link.ResourceStrategy = "app"
	}
	if cfg.Link.KeepaliveMin == 0 {
		cfg.Link.KeepaliveMin = 5 * time.Second
	}
	if cfg.Link.KeepaliveMax == 0 {
		cfg.Link.KeepaliveMax = 360 * time.Second
	}
	if cfg.Link.StaleGrace == 0 {
		cfg.Link.StaleGrace = 2 * time.Second
	}
	if cfg.Link.EstablishTimeout == 0 {
		cfg.Link.EstablishTimeout = 15 * time.Second
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{Enabled: true}
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8081
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
	if len(cfg.Health.Checks) == 0 {
		cfg.Health.Checks = []string{"watchdog"}
	}
}

// ValidateConfiguration checks cfg for problems that would make it
// unsafe or meaningless to run with. Entries at level "error" should
// stop loading; "warning" entries are informational only.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Link != nil {
		if cfg.Link.MTU < uint32(HeaderAndTokenFloor) {
			errs = append(errs, ValidationError{
				Field:   "link.mtu",
				Message: fmt.Sprintf("mtu %d is too small to carry a single data block", cfg.Link.MTU),
				Level:   "error",
			})
		}
		if cfg.Link.Mode > 1 {
			errs = append(errs, ValidationError{
				Field:   "link.mode",
				Message: fmt.Sprintf("unsupported token mode %d", cfg.Link.Mode),
				Level:   "error",
			})
		}
		if cfg.Link.KeepaliveMin > cfg.Link.KeepaliveMax {
			errs = append(errs, ValidationError{
				Field:   "link.keepalive_min",
				Message: "keepalive_min must not exceed keepalive_max",
				Level:   "error",
			})
		}
		switch cfg.Link.ResourceStrategy {
		case "none", "app", "all":
		default:
			errs = append(errs, ValidationError{
				Field:   "link.resource_strategy",
				Message: fmt.Sprintf("unknown resource_strategy %q, defaulting to app", cfg.Link.ResourceStrategy),
				Level:   "warning",
			})
			cfg.Link.ResourceStrategy = "app"
		}
	}

	if cfg.Metrics != nil && cfg.Health != nil && cfg.Metrics.Enabled && cfg.Health.Enabled && cfg.Metrics.Port == cfg.Health.Port {
		errs = append(errs, ValidationError{
			Field:   "metrics.port",
			Message: "metrics and health endpoints must not share a port",
			Level:   "error",
		})
	}

	return errs
}
