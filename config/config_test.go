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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "link.yaml")

	content := `environment: staging
link:
  mtu: 1024
  resource_strategy: all
  keepalive_min: 10s
  keepalive_max: 120s
logging:
  level: debug
  format: text
metrics:
  enabled: true
  port: 9191
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, uint32(1024), cfg.Link.MTU)
	assert.Equal(t, "all", cfg.Link.ResourceStrategy)
	assert.Equal(t, 10*time.Second, cfg.Link.KeepaliveMin)
	assert.Equal(t, 120*time.Second, cfg.Link.KeepaliveMax)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	// Unset fields still get defaults applied.
	assert.Equal(t, 2*time.Second, cfg.Link.StaleGrace)
	assert.True(t, cfg.Health.Enabled)
}

func TestLoadFromFileJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "link.json")

	content := `{"environment":"production","link":{"mtu":700}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, uint32(700), cfg.Link.MTU)
	// Defaults still fill in the rest.
	assert.Equal(t, "app", cfg.Link.ResourceStrategy)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/link.yaml")
	assert.Error(t, err)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "link.yaml")

	cfg := &Config{Environment: "test", Link: &LinkConfig{MTU: 800}}
	setDefaults(cfg)
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Link.MTU, loaded.Link.MTU)
	assert.Equal(t, cfg.Environment, loaded.Environment)
}

func TestSetDefaultsFillsEveryField(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	require.NotNil(t, cfg.Link)
	assert.Equal(t, uint32(500), cfg.Link.MTU)
	assert.Equal(t, "app", cfg.Link.ResourceStrategy)
	assert.Equal(t, 5*time.Second, cfg.Link.KeepaliveMin)
	assert.Equal(t, 360*time.Second, cfg.Link.KeepaliveMax)

	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, 9090, cfg.Metrics.Port)

	require.NotNil(t, cfg.Health)
	assert.Equal(t, 8081, cfg.Health.Port)
	assert.Contains(t, cfg.Health.Checks, "watchdog")
}

func TestValidateConfigurationCatchesErrors(t *testing.T) {
	cfg := &Config{
		Link:    &LinkConfig{MTU: 10, Mode: 5, KeepaliveMin: time.Minute, KeepaliveMax: time.Second},
		Metrics: &MetricsConfig{Enabled: true, Port: 8081},
		Health:  &HealthConfig{Enabled: true, Port: 8081},
	}

	errs := ValidateConfiguration(cfg)
	var fields []string
	for _, e := range errs {
		if e.Level == "error" {
			fields = append(fields, e.Field)
		}
	}
	assert.Contains(t, fields, "link.mtu")
	assert.Contains(t, fields, "link.mode")
	assert.Contains(t, fields, "link.keepalive_min")
	assert.Contains(t, fields, "metrics.port")
}

func TestValidateConfigurationAcceptsDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	errs := ValidateConfiguration(cfg)
	for _, e := range errs {
		assert.NotEqual(t, "error", e.Level, e.Message)
	}
}
