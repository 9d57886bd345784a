// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
)

// ALPN is the application protocol negotiated for TLS based transports.
const ALPN = "commlink"

// Transport is a reliable, ordered byte stream to the server.
type Transport interface {
	io.ReadWriteCloser

	// SetDeadline for both pending and future reads and writes. A zero value disables the deadline.
	SetDeadline(t time.Time) error

	// String describes the remote end, e.g., "tcp://127.0.0.1:5555".
	String() string
}

// DialOptions for a single dial attempt.
type DialOptions struct {
	// Timeout limits one attempt. Zero means no limit besides the context.
	Timeout time.Duration

	// TLSConfig is used for "wss" and "quic" addresses. A nil value uses the system's defaults.
	TLSConfig *tls.Config
}

// Dial opens a Transport to the address. The address's scheme selects the transport:
//
//	host:port, tcp://host:port  plain TCP
//	ws://host:port/path         WebSocket, wss:// for TLS
//	quic://host:port            QUIC, a single bidirectional stream
func Dial(ctx context.Context, address string, opts DialOptions) (Transport, error) {
	scheme, rest := splitScheme(address)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	switch scheme {
	case "", "tcp":
		return dialTCP(ctx, rest)

	case "ws", "wss":
		return dialWebSocket(ctx, address, opts)

	case "quic":
		return dialQUIC(ctx, rest, opts)

	default:
		return nil, fmt.Errorf("channel: unsupported transport %q in address %q", scheme, address)
	}
}

// ValidateAddress checks if Dial would accept this address, without dialing.
func ValidateAddress(address string) error {
	scheme, rest := splitScheme(address)

	switch scheme {
	case "", "tcp", "quic":
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return fmt.Errorf("channel: invalid address %q: %w", address, err)
		}
		return nil

	case "ws", "wss":
		u, err := url.Parse(address)
		if err != nil {
			return fmt.Errorf("channel: invalid address %q: %w", address, err)
		} else if u.Host == "" {
			return fmt.Errorf("channel: address %q has no host", address)
		}
		return nil

	default:
		return fmt.Errorf("channel: unsupported transport %q in address %q", scheme, address)
	}
}

func splitScheme(address string) (scheme, rest string) {
	if i := strings.Index(address, "://"); i >= 0 {
		return strings.ToLower(address[:i]), address[i+3:]
	}
	return "", address
}

func tlsConfig(opts DialOptions, serverName string) *tls.Config {
	var conf *tls.Config
	if opts.TLSConfig != nil {
		conf = opts.TLSConfig.Clone()
	} else {
		conf = &tls.Config{}
	}

	if len(conf.NextProtos) == 0 {
		conf.NextProtos = []string{ALPN}
	}
	if conf.ServerName == "" && !conf.InsecureSkipVerify {
		conf.ServerName = serverName
	}
	return conf
}

// tcpTransport wraps a plain net.Conn.
type tcpTransport struct {
	net.Conn
}

func dialTCP(ctx context.Context, address string) (Transport, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &tcpTransport{conn}, nil
}

// NewConnTransport wraps an established net.Conn, e.g., one side of net.Pipe or an accepted
// connection.
func NewConnTransport(conn net.Conn) Transport {
	return &tcpTransport{conn}
}

func (t *tcpTransport) String() string {
	return fmt.Sprintf("tcp://%v", t.Conn.RemoteAddr())
}
