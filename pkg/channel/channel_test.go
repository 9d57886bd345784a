// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtn7/commlink/pkg/message"
	"github.com/dtn7/commlink/pkg/secure"
)

func channelPair(t *testing.T) (client, server *Channel) {
	key, err := secure.NewSessionKey()
	if err != nil {
		t.Fatal(err)
	}

	c1, c2 := net.Pipe()
	if client, err = New(NewConnTransport(c1), key, DefaultLimits()); err != nil {
		t.Fatal(err)
	}
	if server, err = New(NewConnTransport(c2), key, DefaultLimits()); err != nil {
		t.Fatal(err)
	}
	return
}

func TestChannelResponses(t *testing.T) {
	client, server := channelPair(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	responses := []message.Response{
		message.NewResponse(message.User, message.TextPayload("alice")),
		message.NewResponse(message.Score, message.UIntPayload(10)),
		message.NewResponse(message.Score, message.UIntPayload(20)),
		message.NewResponse(message.Time, message.FloatPayload(123456789.0)),
	}

	errCh := make(chan error, 1)
	go func() {
		for _, r := range responses {
			if err := server.WriteResponse(r); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()

	for _, expected := range responses {
		r, err := client.ReadResponse()
		if err != nil {
			t.Fatal(err)
		}
		if !r.Equal(expected) {
			t.Fatalf("expected %v, got %v", expected, r)
		}
	}

	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func TestChannelRequests(t *testing.T) {
	client, server := channelPair(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	req := message.Request{Time: 1.5, Endpoint: "LOGIN", Args: []string{"alice", "pw"}}
	go func() { _ = client.WriteMessage(&req) }()

	got, err := server.ReadRequest()
	if err != nil {
		t.Fatal(err)
	}
	if got.Endpoint != req.Endpoint || got.Time != req.Time || len(got.Args) != 2 {
		t.Fatalf("expected %v, got %v", req, got)
	}
}

func TestChannelWrongKey(t *testing.T) {
	key1, _ := secure.NewSessionKey()
	key2, _ := secure.NewSessionKey()

	c1, c2 := net.Pipe()
	client, _ := New(NewConnTransport(c1), key1, DefaultLimits())
	server, _ := New(NewConnTransport(c2), key2, DefaultLimits())
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	go func() { _ = server.WriteResponse(message.NewResponse(message.Chat, message.TextPayload("hi"))) }()

	if _, err := client.ReadResponse(); !errors.Is(err, secure.ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestChannelMalformedResponse(t *testing.T) {
	client, server := channelPair(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	go func() { _ = server.WriteFrame([]byte("no cbor")) }()

	_, err := client.ReadResponse()
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}

	// The decoding error stays part of the chain.
	multi, ok := err.(interface{ Unwrap() []error })
	if !ok || len(multi.Unwrap()) != 2 || multi.Unwrap()[1] == nil {
		t.Fatalf("decoding error is not wrapped: %#v", err)
	}
}

func TestChannelCloseUnblocksRead(t *testing.T) {
	client, server := channelPair(t)
	defer func() { _ = server.Close() }()

	errCh := make(chan error)
	go func() {
		_, err := client.ReadResponse()
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close returned %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("read on closed Channel succeeded")
		}
	case <-time.After(time.Second):
		t.Fatal("read was not unblocked by Close")
	}
}

func TestChannelPeerClosed(t *testing.T) {
	client, server := channelPair(t)
	defer func() { _ = client.Close() }()

	_ = server.Close()
	if _, err := client.ReadResponse(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

// handshakePeer answers a ClientHello on the server side of a net.Pipe.
func handshakePeer(conn net.Conn, key secure.SessionKey, reject string) error {
	var hello ClientHello
	if err := ReadPlain(conn, &hello, DefaultLimits()); err != nil {
		return err
	}

	offer := SessionOffer{Error: reject}
	if reject == "" {
		sealed, err := secure.SealSessionKey(key, hello.PublicKey)
		if err != nil {
			return err
		}
		offer.SealedKey = sealed
	}
	return WritePlain(conn, &offer, DefaultLimits())
}

func TestClientHandshake(t *testing.T) {
	kp, _ := secure.GenerateKeypair(nil)
	key, _ := secure.NewSessionKey()

	c1, c2 := net.Pipe()
	defer func() { _ = c1.Close() }()
	defer func() { _ = c2.Close() }()

	errCh := make(chan error, 1)
	go func() { errCh <- handshakePeer(c2, key, "") }()

	got, err := ClientHandshake(NewConnTransport(c1), kp, "GoClient", time.Second, DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if got != key {
		t.Fatal("handshake resulted in a different session key")
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func TestClientHandshakeRejected(t *testing.T) {
	kp, _ := secure.GenerateKeypair(nil)

	c1, c2 := net.Pipe()
	defer func() { _ = c1.Close() }()
	defer func() { _ = c2.Close() }()

	go func() { _ = handshakePeer(c2, secure.SessionKey{}, "unsupported client") }()

	_, err := ClientHandshake(NewConnTransport(c1), kp, "GoClient", time.Second, DefaultLimits())
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
}

func TestClientHandshakeTimeout(t *testing.T) {
	kp, _ := secure.GenerateKeypair(nil)

	c1, c2 := net.Pipe()
	defer func() { _ = c1.Close() }()
	defer func() { _ = c2.Close() }()

	// Read the ClientHello, but never answer.
	go func() { _, _ = ReadFrame(c2, DefaultLimits()) }()

	start := time.Now()
	_, err := ClientHandshake(NewConnTransport(c1), kp, "GoClient", 100*time.Millisecond, DefaultLimits())
	if err == nil {
		t.Fatal("handshake without answer succeeded")
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected a timeout error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("handshake deadline was not enforced")
	}
}

func TestDialUnsupportedScheme(t *testing.T) {
	if _, err := Dial(context.Background(), "carrier-pigeon://coop:1", DialOptions{}); err == nil {
		t.Fatal("unknown scheme was dialed")
	}
}

// A server accepting connections but never answering is given up on after the dial timeout.
func TestDialTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer func() { _ = conn.Close() }()
		}
	}()

	start := time.Now()
	_, err = Dial(context.Background(), "ws://"+ln.Addr().String()+"/comm", DialOptions{Timeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatal("silent server was dialed")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Dial returned after %v", elapsed)
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"localhost:5555", true},
		{"tcp://127.0.0.1:5555", true},
		{"quic://example.org:443", true},
		{"ws://localhost:8080/comm", true},
		{"wss://example.org/comm", true},
		{"localhost", false},
		{"ws:///comm", false},
		{"udp://localhost:1", false},
	}

	for _, test := range tests {
		if err := ValidateAddress(test.address); (err == nil) != test.valid {
			t.Fatalf("%s: expected valid=%t, got %v", test.address, test.valid, err)
		}
	}
}

func TestTCPTransport(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		if data, err := ReadFrame(conn, DefaultLimits()); err == nil {
			_ = WriteFrame(conn, data, DefaultLimits())
		}
	}()

	tr, err := Dial(context.Background(), "tcp://"+ln.Addr().String(), DialOptions{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tr.Close() }()

	if !strings.HasPrefix(tr.String(), "tcp://") {
		t.Fatalf("unexpected transport name %s", tr.String())
	}

	if err := WriteFrame(tr, []byte("echo"), DefaultLimits()); err != nil {
		t.Fatal(err)
	}
	if data, err := ReadFrame(tr, DefaultLimits()); err != nil {
		t.Fatal(err)
	} else if string(data) != "echo" {
		t.Fatalf("expected echo, got %q", data)
	}
}

func TestWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		tr := NewWebSocketTransport(conn, "peer")
		defer func() { _ = tr.Close() }()

		// Split one frame across three messages to verify the stream semantics.
		data, err := ReadFrame(tr, DefaultLimits())
		if err != nil {
			return
		}
		buff := new(bytes.Buffer)
		_ = WriteFrame(buff, data, DefaultLimits())
		raw := buff.Bytes()
		_, _ = tr.Write(raw[:2])
		_, _ = tr.Write(raw[2:5])
		_, _ = tr.Write(raw[5:])
	}))
	defer srv.Close()

	address := "ws" + strings.TrimPrefix(srv.URL, "http") + "/comm"
	tr, err := Dial(context.Background(), address, DialOptions{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tr.Close() }()

	if err := WriteFrame(tr, []byte("split me"), DefaultLimits()); err != nil {
		t.Fatal(err)
	}
	if data, err := ReadFrame(tr, DefaultLimits()); err != nil {
		t.Fatal(err)
	} else if string(data) != "split me" {
		t.Fatalf("expected \"split me\", got %q", data)
	}

	// The server closes the connection afterwards.
	if _, err := ReadFrame(tr, DefaultLimits()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}
