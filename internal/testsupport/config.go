// Package testsupport provides shared helpers for package tests: temp-dir
// configs, opened stores, and stub engine scripts.
package testsupport

import (
	"path/filepath"
	"testing"

	"spectra/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Engine.Interpreter = "/bin/sh"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithRemoteMode switches the config to remote dispatch.
func WithRemoteMode() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.Mode = config.ModeRemote
	}
}

// WithAPIToken sets the bearer token requirement on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}
