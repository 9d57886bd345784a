// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport exchanges bytes over binary WebSocket messages. Each Write becomes one message, and
// Read continues with the next message when the current one is exhausted. Thus, a frame written
// at once travels within a single message, while the reader still sees a continuous stream.
type wsTransport struct {
	conn    *websocket.Conn
	address string

	reader io.Reader

	writeMutex sync.Mutex
}

func dialWebSocket(ctx context.Context, address string, opts DialOptions) (Transport, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.Timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = tlsConfig(opts, u.Hostname())
	}

	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocketTransport(conn, address), nil
}

// NewWebSocketTransport wraps an established *websocket.Conn, e.g., on the server side.
func NewWebSocketTransport(conn *websocket.Conn, address string) Transport {
	return &wsTransport{
		conn:    conn,
		address: address,
	}
}

func (t *wsTransport) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}

	for n == 0 && err == nil {
		if t.reader == nil {
			var mt int
			if mt, t.reader, err = t.conn.NextReader(); err != nil {
				t.reader = nil
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = io.EOF
				}
				return
			} else if mt != websocket.BinaryMessage {
				t.reader = nil
				err = fmt.Errorf("expected binary message, got %d", mt)
				return
			}
		}

		n, err = t.reader.Read(p)
		if err == io.EOF {
			// continue with the next message
			t.reader = nil
			err = nil
		}
	}
	return
}

func (t *wsTransport) Write(p []byte) (int, error) {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) SetDeadline(d time.Time) error {
	if err := t.conn.SetReadDeadline(d); err != nil {
		return err
	}
	return t.conn.SetWriteDeadline(d)
}

func (t *wsTransport) Close() error {
	t.writeMutex.Lock()
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(100*time.Millisecond))
	t.writeMutex.Unlock()

	return t.conn.Close()
}

func (t *wsTransport) String() string {
	return t.address
}
