// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/commlink/pkg/channel"
	"github.com/dtn7/commlink/pkg/message"
	"github.com/dtn7/commlink/pkg/secure"
)

// Listener is invoked by Pump for each Response of the Type it was registered for. Listeners are
// only ever called from the goroutine calling Pump.
type Listener func(t message.Type, p message.Payload)

// Module is a client's secure session with a server. Responses are received in the background,
// but only passed to their Listeners when the owning application calls Pump.
//
// Connect, SetListener, Pump, Send and Dispose are meant to be called from the same goroutine,
// the one owning the Module.
type Module struct {
	config  Config
	id      uuid.UUID
	keypair *secure.Keypair
	metrics *metrics

	state atomic.Int32

	// lifecycleMutex guards the state transitions, channel and err.
	lifecycleMutex sync.Mutex
	channel        *channel.Channel
	err            error

	done     chan struct{}
	doneOnce sync.Once

	queue eventQueue

	// dispatchMutex guards the fields below.
	dispatchMutex sync.Mutex
	listeners     map[message.Type]Listener
	shelf         map[message.Type][]message.Response
	startNanoTime float64
	pumping       bool
	cleared       bool
}

// New creates a Module for the Config. Its keypair is generated right away, but no connection is
// made before Connect is called.
func New(config Config) (*Module, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	kp, err := secure.GenerateKeypair(nil)
	if err != nil {
		return nil, err
	}

	m := &Module{
		config:    config,
		id:        uuid.New(),
		keypair:   kp,
		done:      make(chan struct{}),
		listeners: make(map[message.Type]Listener),
		shelf:     make(map[message.Type][]message.Response),
	}
	m.state.Store(int32(Connecting))

	m.metrics = newMetrics(m.id.String(), func() float64 { return float64(m.queue.len()) })
	if config.Registerer != nil {
		if err := m.metrics.register(config.Registerer); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	m.log().WithField("key", kp.Fingerprint()).Debug("Created Module")
	return m, nil
}

// Dial creates a new Module and connects it. If connecting fails, the Module is disposed.
func Dial(ctx context.Context, config Config) (*Module, error) {
	m, err := New(config)
	if err != nil {
		return nil, err
	}

	if err := m.Connect(ctx); err != nil {
		m.Dispose()
		return nil, err
	}
	return m, nil
}

func (m *Module) String() string {
	return fmt.Sprintf("Comm(address=%s, state=%v)", m.config.Address, m.State())
}

func (m *Module) log() *log.Entry {
	return log.WithFields(log.Fields{
		"comm":    m.config.Address,
		"session": m.id.String(),
	})
}

// ID identifies this Module within logs and metrics.
func (m *Module) ID() uuid.UUID {
	return m.id
}

// State of this Module.
func (m *Module) State() State {
	return State(m.state.Load())
}

// IsConnected reports if the session is established and not yet disposed.
func (m *Module) IsConnected() bool {
	return m.State() == Connected
}

// StartNanoTime is the server's clock value, as received in the latest Time Response that was
// pumped. It is zero until then.
func (m *Module) StartNanoTime() float64 {
	m.dispatchMutex.Lock()
	defer m.dispatchMutex.Unlock()

	return m.startNanoTime
}

// Err returns the Fault which disposed this Module. It is nil while connected or after a regular
// Dispose.
func (m *Module) Err() error {
	m.lifecycleMutex.Lock()
	defer m.lifecycleMutex.Unlock()

	return m.err
}

// Done is closed when the background receiver has terminated, or on disposal if it never ran.
func (m *Module) Done() <-chan struct{} {
	return m.done
}

func (m *Module) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}
