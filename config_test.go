/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a valid config with logging discarded.
func testConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{
		bind:           "127.0.0.1",
		inviteTTL:      time.Hour,
		maxMessageSize: 4096,
		pingInterval:   time.Second,
		pongTimeout:    2 * time.Second,
		port:           8080,
		logger:         zerolog.Nop(),
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"port zero", func(c *Config) { c.port = 0 }, true},
		{"port too large", func(c *Config) { c.port = 70000 }, true},
		{"ping not below pong", func(c *Config) { c.pingInterval = c.pongTimeout }, true},
		{"zero ping", func(c *Config) { c.pingInterval = 0 }, true},
		{"tiny frames", func(c *Config) { c.maxMessageSize = 64 }, true},
		{"zero invite ttl", func(c *Config) { c.inviteTTL = 0 }, true},
		{"negative session timeout", func(c *Config) { c.sessionTimeout = -time.Second }, true},
		{"session timeout", func(c *Config) { c.sessionTimeout = time.Hour }, false},
		{"sub-second session timeout", func(c *Config) { c.sessionTimeout = time.Nanosecond }, true},
		{"one second session timeout", func(c *Config) { c.sessionTimeout = time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("PLANNINGPOKER_PORT", "9999")
	t.Setenv("PLANNINGPOKER_SESSION_TIMEOUT", "90m")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NotNil(t, cmd)

	assert.Equal(t, 9999, cfg.port)
	assert.Equal(t, 90*time.Minute, cfg.sessionTimeout)
	assert.Equal(t, 24*time.Hour, cfg.inviteTTL)
}

func TestNewCmdRejectsInvalidFlags(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--port", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
