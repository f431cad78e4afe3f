/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.port = 0 }, errMsg: "invalid port"},
		{name: "half tls", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, errMsg: "--tls-cert and --tls-key"},
		{name: "negative retries", mutate: func(c *Config) { c.nlpRetries = -1 }, errMsg: "nlp retries"},
		{name: "max retries", mutate: func(c *Config) { c.nlpRetries = 2 }},
		{name: "too many retries", mutate: func(c *Config) { c.nlpRetries = 3 }, errMsg: "nlp retries"},
		{name: "zero feed timeout", mutate: func(c *Config) { c.feedTimeout = 0 }, errMsg: "feed timeout"},
		{name: "zero timeout", mutate: func(c *Config) { c.nlpTimeout = 0 }, errMsg: "nlp timeout"},
		{name: "bad default word", mutate: func(c *Config) { c.defaultWord = "apple" }, errMsg: "--default-word"},
		{name: "bad timezone", mutate: func(c *Config) { c.timezone = "Mars/Olympus" }, errMsg: "--timezone"},
		{name: "empty db", mutate: func(c *Config) { c.db = "" }, errMsg: "--db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestConfigLocationAndPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.timezone = "Asia/Seoul"
	cfg.prefix = "/yementuel/"

	require.NoError(t, cfg.validate())
	assert.Equal(t, "Asia/Seoul", cfg.location.String())
	assert.Equal(t, "/yementuel", cfg.prefix)
}

func TestFlagsReadEnvironment(t *testing.T) {
	t.Setenv("YEMENTUEL_PORT", "9090")
	t.Setenv("YEMENTUEL_NLP_URL", "http://nlp:8000")
	t.Setenv("YEMENTUEL_PROBE_INTERVAL", "45s")
	t.Setenv("YEMENTUEL_DEFAULT_WORD", "포도")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "http://nlp:8000", cfg.nlpURL)
	assert.Equal(t, 45*time.Second, cfg.probeInterval)
	assert.Equal(t, "포도", cfg.defaultWord)
	assert.Equal(t, "UTC", cfg.timezone)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("YEMENTUEL_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "7070"}))

	assert.Equal(t, 7070, cfg.port)
}
