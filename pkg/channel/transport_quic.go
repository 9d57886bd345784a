// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	// QUICApplicationShutdown is the QUIC application error code sent when a Transport is closed.
	QUICApplicationShutdown quic.ApplicationErrorCode = 5

	// QUICStreamError is the QUIC application error code sent when no stream could be opened.
	QUICStreamError quic.ApplicationErrorCode = 3
)

// QUICConfig returns the QUIC configuration used by both the client and the test peer.
func QUICConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: 1 * time.Second,
		MaxIdleTimeout:  15 * time.Second,
	}
}

// quicTransport carries the byte stream over a single bidirectional QUIC stream.
type quicTransport struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func dialQUIC(ctx context.Context, address string, opts DialOptions) (Transport, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	conn, err := quic.DialAddr(ctx, address, tlsConfig(opts, host), QUICConfig())
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(QUICStreamError, "opening stream failed")
		return nil, err
	}

	return NewQUICTransport(conn, stream), nil
}

// NewQUICTransport wraps an established QUIC connection and its stream, e.g., on the server side.
func NewQUICTransport(conn *quic.Conn, stream *quic.Stream) Transport {
	return &quicTransport{
		conn:   conn,
		stream: stream,
	}
}

func (t *quicTransport) Read(p []byte) (n int, err error) {
	n, err = t.stream.Read(p)

	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.Remote && appErr.ErrorCode == QUICApplicationShutdown {
		err = io.EOF
	}
	return
}

func (t *quicTransport) Write(p []byte) (int, error) {
	return t.stream.Write(p)
}

func (t *quicTransport) SetDeadline(d time.Time) error {
	return t.stream.SetDeadline(d)
}

func (t *quicTransport) Close() error {
	_ = t.stream.Close()
	return t.conn.CloseWithError(QUICApplicationShutdown, "connection closed")
}

func (t *quicTransport) String() string {
	return fmt.Sprintf("quic://%v", t.conn.RemoteAddr())
}
