// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/commlink/pkg/channel"
	"github.com/dtn7/commlink/pkg/secure"
)

// Connect establishes the session. Failed transport connections and handshakes are retried until
// the Config's ConnectTimeout has passed or the context is done; the returned error matches
// ErrConnectionTimeout then, and additionally ErrHandshakeFailure if the last attempt not cut short by
// the deadline failed within the key exchange. The Module stays in the Connecting state in this case.
//
// On success, the Module becomes Connected and starts receiving in the background.
func (m *Module) Connect(ctx context.Context) error {
	switch m.State() {
	case Connected:
		return ErrConnected
	case Disposed:
		return ErrDisposed
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	var lastErr error
	attempts := 0
	for ctx.Err() == nil {
		attempts++
		m.metrics.connectAttempts.Inc()

		ch, err := m.establish(ctx)
		if err == nil {
			return m.start(ch)
		}

		// An attempt cut short by the deadline does not replace a previous cause.
		if lastErr == nil || !cutShort(ctx, err) {
			lastErr = err
		}
		m.log().WithError(err).WithField("attempt", attempts).Debug("Connection attempt failed")

		if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
			break
		}

		if m.config.RetryPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(m.config.RetryPause):
			}
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	fault := newFault(ErrConnectionTimeout,
		fmt.Sprintf("no session with %s after %d attempts in %v", m.config.Address, attempts, time.Since(start).Round(time.Millisecond)),
		lastErr)

	m.log().WithFields(log.Fields{
		"attempts": attempts,
		"error":    fault,
	}).Warn("Failed to establish a connection")
	return fault
}

// establish a transport and perform the handshake on it.
func (m *Module) establish(ctx context.Context) (*channel.Channel, error) {
	timeout := m.attemptTimeout(ctx)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	opts := channel.DialOptions{Timeout: timeout, TLSConfig: m.config.TLSConfig}
	transport, err := channel.Dial(ctx, m.config.Address, opts)
	if err != nil {
		return nil, err
	}

	if timeout = m.attemptTimeout(ctx); timeout <= 0 {
		_ = transport.Close()
		return nil, context.DeadlineExceeded
	}

	key, err := channel.ClientHandshake(transport, m.keypair, m.config.Label, timeout, m.config.Limits)
	defer secure.Wipe(key[:])
	if err != nil {
		_ = transport.Close()
		return nil, newFault(ErrHandshakeFailure, fmt.Sprintf("key exchange with %s failed", transport), err)
	}

	ch, err := channel.New(transport, key, m.config.Limits)
	if err != nil {
		_ = transport.Close()
		return nil, newFault(ErrHandshakeFailure, "session cipher", err)
	}
	return ch, nil
}

// attemptTimeout is the HandshakeTimeout, clipped to the time left until the context's deadline.
func (m *Module) attemptTimeout(ctx context.Context) time.Duration {
	timeout := m.config.HandshakeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// cutShort reports if an attempt failed because the connect deadline was reached.
func cutShort(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return true
	}
	if errors.Is(err, ErrHandshakeFailure) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}

// start the receiver for an established Channel.
func (m *Module) start(ch *channel.Channel) error {
	m.lifecycleMutex.Lock()
	defer m.lifecycleMutex.Unlock()

	if !m.state.CompareAndSwap(int32(Connecting), int32(Connected)) {
		_ = ch.Close()
		return ErrDisposed
	}
	m.channel = ch

	m.log().WithField("channel", ch.String()).Info("Established session")

	go m.receive(ch)
	return nil
}
