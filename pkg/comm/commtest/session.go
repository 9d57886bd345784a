// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package commtest

import (
	"context"
	"fmt"

	"github.com/dtn7/commlink/pkg/channel"
	"github.com/dtn7/commlink/pkg/message"
	"github.com/dtn7/commlink/pkg/secure"
)

// Session is the server's end of an established session.
type Session struct {
	// Hello as sent by the client.
	Hello channel.ClientHello

	transport channel.Transport
	limits    channel.Limits
	ch        *channel.Channel

	requests chan message.Request
	readErr  error
}

func newSession(t channel.Transport, hello channel.ClientHello, limits channel.Limits) (*Session, error) {
	key, err := secure.NewSessionKey()
	if err != nil {
		return nil, err
	}
	defer secure.Wipe(key[:])

	sealed, err := secure.SealSessionKey(key, hello.PublicKey)
	if err != nil {
		return nil, err
	}

	offer := channel.SessionOffer{SealedKey: sealed}
	if err := channel.WritePlain(t, &offer, limits); err != nil {
		return nil, err
	}

	ch, err := channel.New(t, key, limits)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Hello:     hello,
		transport: t,
		limits:    limits,
		ch:        ch,
		requests:  make(chan message.Request, 64),
	}
	go sess.read()
	return sess, nil
}

func (sess *Session) read() {
	for {
		req, err := sess.ch.ReadRequest()
		if err != nil {
			sess.readErr = err
			close(sess.requests)
			return
		}
		sess.requests <- req
	}
}

// Send a Response to the client.
func (sess *Session) Send(r message.Response) error {
	return sess.ch.WriteResponse(r)
}

// SendFrame writes an unencrypted frame, which the client cannot open.
func (sess *Session) SendFrame(payload []byte) error {
	return channel.WriteFrame(sess.transport, payload, sess.limits)
}

// Receive blocks until the next Request of the client arrives.
func (sess *Session) Receive(ctx context.Context) (message.Request, error) {
	select {
	case req, ok := <-sess.requests:
		if !ok {
			return message.Request{}, sess.readErr
		}
		return req, nil
	case <-ctx.Done():
		return message.Request{}, fmt.Errorf("commtest: no request: %w", ctx.Err())
	}
}

// Closed blocks until the client closed the session or the context is done. It returns the
// error which ended reading, e.g., channel.ErrEndOfStream.
func (sess *Session) Closed(ctx context.Context) error {
	for {
		select {
		case _, ok := <-sess.requests:
			if !ok {
				return sess.readErr
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close the session from the server's side.
func (sess *Session) Close() error {
	return sess.ch.Close()
}
