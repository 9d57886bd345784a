// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtn7/commlink/pkg/comm"
)

const testConfig = `
[client]
address = "quic://example.org:5555"
label = "Tester"
connect-timeout = "3s"
handshake-timeout = "500ms"
insecure = true

[logging]
level = "debug"
report-caller = false
format = "json"

[metrics]
listen = "127.0.0.1:9100"
`

func TestParseConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "commclient.toml")
	if err := os.WriteFile(filename, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	conf, err := parseConfig(filename)
	if err != nil {
		t.Fatal(err)
	}

	if conf.Metrics.Listen != "127.0.0.1:9100" || conf.Logging.Format != "json" {
		t.Fatalf("unexpected configuration %v", conf)
	}

	c := moduleConfig(conf.Client)
	if c.Address != "quic://example.org:5555" || c.Label != "Tester" {
		t.Fatalf("unexpected client configuration %v", c)
	}
	if c.ConnectTimeout != 3*time.Second || c.HandshakeTimeout != 500*time.Millisecond {
		t.Fatalf("unexpected timeouts %v, %v", c.ConnectTimeout, c.HandshakeTimeout)
	}
	if c.TLSConfig == nil || !c.TLSConfig.InsecureSkipVerify {
		t.Fatal("insecure was not applied")
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	conf, err := parseConfig("")
	if err != nil {
		t.Fatal(err)
	}

	c := moduleConfig(conf.Client)
	if c.Label != comm.DefaultLabel || c.ConnectTimeout != 10*time.Second {
		t.Fatalf("defaults were not applied: %v", c)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(filename, []byte("[client]\nconnect-timeout = \"soon\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := parseConfig(filename); err == nil {
		t.Fatal("invalid duration was accepted")
	}
}

func TestStatusRouter(t *testing.T) {
	reg := prometheus.NewRegistry()

	conf := comm.DefaultConfig("localhost:5555")
	conf.Registerer = reg
	m, err := comm.New(conf)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Dispose()

	srv := httptest.NewServer(statusRouter(m, reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Session != m.ID().String() || status.State != "connecting" {
		t.Fatalf("unexpected status %v", status)
	}

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = metricsResp.Body.Close() }()

	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics returned %s", metricsResp.Status)
	}
}
