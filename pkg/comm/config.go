// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtn7/commlink/pkg/channel"
)

// DefaultLabel identifies this client within its ClientHello.
const DefaultLabel = "GoClient"

// Config for a Module.
type Config struct {
	// Address of the server, e.g., "localhost:5555", "ws://host/comm" or "quic://host:5555".
	Address string

	// Label sent to the server during the handshake.
	Label string

	// ConnectTimeout bounds all connection attempts of Connect together.
	ConnectTimeout time.Duration

	// RetryPause between two failed connection attempts. Zero retries immediately.
	RetryPause time.Duration

	// HandshakeTimeout bounds the key exchange on an established transport.
	HandshakeTimeout time.Duration

	// Limits for received and sent frames.
	Limits channel.Limits

	// TLSConfig for "wss" and "quic" addresses. A nil value uses the system's defaults.
	TLSConfig *tls.Config

	// Registerer for the Module's metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// DefaultConfig for the given address.
func DefaultConfig(address string) Config {
	return Config{
		Address:          address,
		Label:            DefaultLabel,
		ConnectTimeout:   10 * time.Second,
		RetryPause:       0,
		HandshakeTimeout: 5 * time.Second,
		Limits:           channel.DefaultLimits(),
	}
}

// Validate this Config and return all found problems at once.
func (c Config) Validate() (err error) {
	if addrErr := channel.ValidateAddress(c.Address); addrErr != nil {
		err = multierror.Append(err, addrErr)
	}
	if strings.TrimSpace(c.Label) == "" {
		err = multierror.Append(err, fmt.Errorf("label must not be empty"))
	}
	if c.ConnectTimeout <= 0 {
		err = multierror.Append(err, fmt.Errorf("connect timeout must be positive, not %v", c.ConnectTimeout))
	}
	if c.RetryPause < 0 {
		err = multierror.Append(err, fmt.Errorf("retry pause must not be negative, not %v", c.RetryPause))
	}
	if c.HandshakeTimeout < 0 {
		err = multierror.Append(err, fmt.Errorf("handshake timeout must not be negative, not %v", c.HandshakeTimeout))
	}
	if c.Limits.MaxFrameBytes < uint32(channel.FrameHeaderLen) {
		err = multierror.Append(err, fmt.Errorf("frame limit of %d bytes is too small", c.Limits.MaxFrameBytes))
	}
	return
}
