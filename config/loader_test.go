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

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFallsBackToDefaultYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "environment: fallback\nlink:\n  mtu: 900\n")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "nosuchenv"})
	require.NoError(t, err)
	assert.Equal(t, uint32(900), cfg.Link.MTU)
}

func TestLoadReturnsDefaultsWhenNoFileFound(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "doesnotexist"})
	require.NoError(t, err)
	assert.Equal(t, "doesnotexist", cfg.Environment)
	assert.Equal(t, uint32(500), cfg.Link.MTU)
}

func TestLoadPrefersEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 100\n")
	writeConfigFile(t, dir, "staging.yaml", "link:\n  mtu: 200\n")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, uint32(200), cfg.Link.MTU)
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 100\n")

	os.Setenv("LINK_MTU", "1500")
	os.Setenv("LINK_RESOURCE_STRATEGY", "none")
	os.Setenv("LINK_LOG_LEVEL", "warn")
	defer os.Unsetenv("LINK_MTU")
	defer os.Unsetenv("LINK_RESOURCE_STRATEGY")
	defer os.Unsetenv("LINK_LOG_LEVEL")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "default"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1500), cfg.Link.MTU)
	assert.Equal(t, "none", cfg.Link.ResourceStrategy)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFailsValidationOnBadMode(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 500\n  mode: 9\n")

	_, err := Load(LoaderOptions{ConfigDir: dir, Environment: "default"})
	assert.Error(t, err)
}

func TestLoadSkipValidation(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 500\n  mode: 9\n")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "default", SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, uint8(9), cfg.Link.Mode)
}

func TestLoadForEnvironment(t *testing.T) {
	cfg, err := LoadForEnvironment("development")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}

func TestMustLoadPanicsOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 1\n")

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir, Environment: "default"})
	})
}

func TestDefaultLoaderOptions(t *testing.T) {
	opts := DefaultLoaderOptions()
	assert.Equal(t, "config", opts.ConfigDir)
	assert.Equal(t, ".env", opts.DotEnvFile)
	assert.False(t, opts.SkipValidation)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 500\n")
	envFile := writeConfigFile(t, dir, "test.env", "LINK_MTU=1200\n")
	os.Unsetenv("LINK_MTU")
	t.Cleanup(func() { os.Unsetenv("LINK_MTU") })

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "default", DotEnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, uint32(1200), cfg.Link.MTU)
}

func TestLoadIgnoresMissingDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  mtu: 500\n")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "default", DotEnvFile: filepath.Join(dir, "nope.env")})
	require.NoError(t, err)
	assert.Equal(t, uint32(500), cfg.Link.MTU)
}

func TestLoaderOptionsRespectsDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "default.yaml", "link:\n  keepalive_min: 1s\n  keepalive_max: 2s\n")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "default"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Link.KeepaliveMin)
	assert.Equal(t, 2*time.Second, cfg.Link.KeepaliveMax)
}
