// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// State of a Module. A Module only moves forward: Connecting, Connected, Disposed. Connecting
// might also directly lead to Disposed.
type State int32

const (
	// Connecting is the initial State, also kept after a failed Connect.
	Connecting State = iota

	// Connected after a successful handshake. Responses are being received.
	Connected

	// Disposed Modules neither receive nor deliver Responses.
	Disposed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// receiverStopTimeout bounds how long Dispose waits for the receiver to notice the closed
// transport.
const receiverStopTimeout = 2 * time.Second

// Dispose ends the session. Responses already received are pumped one last time before all
// Listeners and shelved Responses are dropped. Calling Dispose again has no effect.
//
// Dispose must be called from the goroutine owning the Module, as it might invoke Listeners.
// Called from within a Listener, the final pump happens when the running Pump returns.
func (m *Module) Dispose() {
	if m.teardown(nil) {
		select {
		case <-m.done:
		case <-time.After(receiverStopTimeout):
			m.log().Warn("Receiver did not stop in time")
		}
	}

	if !m.enterPump() {
		return
	}
	defer m.leavePump()

	m.drain()
}

// Close is Dispose, for use as an io.Closer.
func (m *Module) Close() error {
	m.Dispose()
	return nil
}

// teardown switches to Disposed and releases the Channel. It is safe to be called from the
// receiver; no Listener is invoked here. The final drain happens in the next Pump or Dispose.
//
// The reason is stored as the Module's Err, nil for a regular disposal. Only the first call has
// an effect, which is reported by the return value.
func (m *Module) teardown(reason error) bool {
	m.lifecycleMutex.Lock()
	defer m.lifecycleMutex.Unlock()

	previous := State(m.state.Swap(int32(Disposed)))
	if previous == Disposed {
		return false
	}
	m.err = reason

	closeErrFuncs := []func() error{
		func() error {
			if m.channel != nil {
				return m.channel.Close()
			}
			return nil
		},
	}

	var closeErr error
	for _, errFunc := range closeErrFuncs {
		if err := errFunc(); err != nil {
			closeErr = multierror.Append(closeErr, err)
		}
	}
	if closeErr != nil {
		m.log().WithError(newFault(ErrDisposalFault, "releasing resources failed", closeErr)).Warn("Error occurred while closing")
	}

	if previous == Connecting {
		m.closeDone()
	}

	m.metrics.disposals.WithLabelValues(disposalReason(reason)).Inc()
	m.log().WithFields(log.Fields{
		"previous": previous,
		"reason":   reason,
	}).Info("Disposed")
	return true
}

func disposalReason(reason error) string {
	switch {
	case reason == nil:
		return "dispose"
	case errors.Is(reason, ErrAuthentication):
		return "authentication"
	case errors.Is(reason, ErrStreamFault):
		return "stream"
	default:
		return "other"
	}
}
