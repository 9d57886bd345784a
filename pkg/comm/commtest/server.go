// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package commtest provides a loopback peer speaking the server's side of the protocol, to test
// clients against.
package commtest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/commlink/pkg/channel"
)

// Options for a Server.
type Options struct {
	// Reject every ClientHello with this message, if set.
	Reject string

	// Silent accepts transports, but never answers a ClientHello.
	Silent bool

	// Limits for the Sessions' Channels. The zero value uses channel.DefaultLimits.
	Limits channel.Limits
}

func (opts Options) limits() channel.Limits {
	if opts.Limits.MaxFrameBytes == 0 {
		return channel.DefaultLimits()
	}
	return opts.Limits
}

// Server accepts clients on a loopback address and performs the handshake with each of them. The
// established Sessions can be received by Accept.
type Server struct {
	// Address to be used by the clients.
	Address string

	opts     Options
	sessions chan *Session
	closer   func() error

	mutex      sync.Mutex
	transports []channel.Transport
	closed     bool
}

func newServer(opts Options) *Server {
	return &Server{
		opts:     opts,
		sessions: make(chan *Session, 16),
	}
}

func (s *Server) log() *log.Entry {
	return log.WithField("commtest", s.Address)
}

// ListenTCP starts a Server on a random TCP port.
func ListenTCP(opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := newServer(opts)
	s.Address = "tcp://" + ln.Addr().String()
	s.closer = ln.Close

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				s.log().WithError(err).Debug("Listener stopped")
				return
			}
			go s.handle(channel.NewConnTransport(conn))
		}
	}()

	return s, nil
}

// ListenWebSocket starts a Server accepting WebSocket connections on a random port.
func ListenWebSocket(opts Options) (*Server, error) {
	s := newServer(opts)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log().WithError(err).Warn("Upgrading HTTP request failed")
			return
		}
		go s.handle(channel.NewWebSocketTransport(conn, conn.RemoteAddr().String()))
	}))

	s.Address = "ws" + strings.TrimPrefix(srv.URL, "http") + "/comm"
	s.closer = func() error {
		srv.Close()
		return nil
	}
	return s, nil
}

// ListenQUIC starts a Server on a random UDP port, using a self-signed certificate. Clients must
// use ClientTLSConfig.
func ListenQUIC(opts Options) (*Server, error) {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return nil, err
	}

	ln, err := quic.ListenAddr("127.0.0.1:0", tlsConf, channel.QUICConfig())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := newServer(opts)
	s.Address = "quic://" + ln.Addr().String()
	s.closer = func() error {
		cancel()
		return ln.Close()
	}

	go func() {
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				s.log().WithError(err).Debug("Listener stopped")
				return
			}

			go func() {
				stream, err := conn.AcceptStream(ctx)
				if err != nil {
					s.log().WithError(err).Warn("Accepting QUIC stream failed")
					_ = conn.CloseWithError(channel.QUICStreamError, "no stream")
					return
				}
				s.handle(channel.NewQUICTransport(conn, stream))
			}()
		}
	}()

	return s, nil
}

// handle the handshake of a fresh transport.
func (s *Server) handle(t channel.Transport) {
	if !s.track(t) {
		_ = t.Close()
		return
	}

	logger := s.log().WithField("peer", t.String())

	var hello channel.ClientHello
	if err := channel.ReadPlain(t, &hello, s.opts.limits()); err != nil {
		logger.WithError(err).Warn("Reading ClientHello failed")
		_ = t.Close()
		return
	}

	if s.opts.Silent {
		logger.Debug("Ignoring ClientHello")
		return
	}

	if s.opts.Reject != "" {
		offer := channel.SessionOffer{Error: s.opts.Reject}
		if err := channel.WritePlain(t, &offer, s.opts.limits()); err != nil {
			logger.WithError(err).Warn("Sending rejection failed")
		}
		_ = t.Close()
		return
	}

	sess, err := newSession(t, hello, s.opts.limits())
	if err != nil {
		logger.WithError(err).Warn("Handshake failed")
		_ = t.Close()
		return
	}

	logger.WithField("label", hello.Label).Debug("Established session")
	s.sessions <- sess
}

func (s *Server) track(t channel.Transport) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false
	}
	s.transports = append(s.transports, t)
	return true
}

// Accept blocks until the next client finished its handshake.
func (s *Server) Accept(ctx context.Context) (*Session, error) {
	select {
	case sess := <-s.sessions:
		return sess, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("commtest: no session on %s: %w", s.Address, ctx.Err())
	}
}

// Close the listener and all transports.
func (s *Server) Close() (err error) {
	s.mutex.Lock()
	s.closed = true
	transports := s.transports
	s.transports = nil
	s.mutex.Unlock()

	if closeErr := s.closer(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}
	for _, t := range transports {
		_ = t.Close()
	}
	return
}

// ClientTLSConfig accepts the self-signed certificate of a QUIC Server.
func ClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{channel.ALPN},
	}
}
