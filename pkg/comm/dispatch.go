// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"github.com/dtn7/commlink/pkg/message"
)

// SetListener registers the Listener for all Responses of this Type, replacing a previous one. A
// nil Listener removes the registration. Unless the Module is Connected, nothing happens.
//
// Shelved Responses of this Type are delivered by the next Pump.
func (m *Module) SetListener(t message.Type, l Listener) {
	if !m.IsConnected() {
		return
	}

	m.dispatchMutex.Lock()
	defer m.dispatchMutex.Unlock()

	if l == nil {
		delete(m.listeners, t)
	} else {
		m.listeners[t] = l
	}
}

// Pump passes the Responses received since the last Pump to their Listeners, on the calling
// goroutine, and returns the number of delivered Responses.
//
// Only Responses already queued when Pump is called are handled. A Response without a Listener is
// shelved until one is registered; shelved Responses are delivered before newer ones of the same
// Type. Time Responses update StartNanoTime and are never shelved.
//
// After the Module was disposed, the first Pump delivers the remaining Responses and drops all
// Listeners. Later calls do nothing. Calls from within a Listener return zero.
func (m *Module) Pump() int {
	if !m.enterPump() {
		return 0
	}
	defer m.leavePump()

	delivered := m.dispatch(m.queue.len())
	if m.State() == Disposed {
		delivered += m.drain()
	}
	return delivered
}

// enterPump marks the start of a dispatch. It fails for nested calls and after the final drain.
func (m *Module) enterPump() bool {
	m.dispatchMutex.Lock()
	defer m.dispatchMutex.Unlock()

	if m.pumping || m.cleared {
		return false
	}
	m.pumping = true
	return true
}

func (m *Module) leavePump() {
	m.dispatchMutex.Lock()
	m.pumping = false
	m.dispatchMutex.Unlock()
}

type delivery struct {
	listener Listener
	response message.Response
	replay   bool
}

// dispatch pops n Responses and delivers them together with all shelved Responses which have a
// Listener by now. The deliveries are planned while holding the lock and performed without it.
func (m *Module) dispatch(n int) int {
	m.dispatchMutex.Lock()

	var plan []delivery
	for _, t := range message.Types() {
		if l, ok := m.listeners[t]; ok {
			plan = m.takeShelf(plan, t, l)
		}
	}

	for _, r := range m.queue.pop(n) {
		if r.Type() == message.Time {
			m.captureTime(r)
		}

		l, ok := m.listeners[r.Type()]
		if !ok {
			if r.Type() != message.Time {
				m.shelf[r.Type()] = append(m.shelf[r.Type()], r)
				m.metrics.shelved.Inc()
			}
			continue
		}

		plan = m.takeShelf(plan, r.Type(), l)
		plan = append(plan, delivery{listener: l, response: r})
	}

	m.dispatchMutex.Unlock()

	for _, d := range plan {
		d.listener(d.response.Type(), d.response.Payload())

		m.metrics.delivered.Inc()
		if d.replay {
			m.metrics.replayed.Inc()
		}
	}
	return len(plan)
}

// takeShelf appends the shelved Responses of this Type to the plan and empties the shelf. The
// dispatchMutex must be held.
func (m *Module) takeShelf(plan []delivery, t message.Type, l Listener) []delivery {
	for _, r := range m.shelf[t] {
		plan = append(plan, delivery{listener: l, response: r, replay: true})
	}
	delete(m.shelf, t)
	return plan
}

// captureTime stores a Time Response's value. The dispatchMutex must be held.
func (m *Module) captureTime(r message.Response) {
	v, ok := r.Payload().Float()
	if !ok {
		m.log().WithField("response", r).Warn("Time response without a numeric value")
		return
	}
	m.startNanoTime = v
}

// drain pumps the Responses queued so far once more and drops all Listeners, shelved Responses
// and later arrivals afterwards. The Module's metrics are unregistered.
func (m *Module) drain() (delivered int) {
	delivered = m.dispatch(m.queue.len())

	m.dispatchMutex.Lock()
	m.listeners = make(map[message.Type]Listener)
	m.shelf = make(map[message.Type][]message.Response)
	m.cleared = true
	m.dispatchMutex.Unlock()

	if dropped := m.queue.clear(); dropped > 0 {
		m.log().WithField("dropped", dropped).Debug("Dropped responses queued during the final pump")
	}
	if m.config.Registerer != nil {
		m.metrics.unregister(m.config.Registerer)
	}

	m.log().WithField("delivered", delivered).Debug("Final pump finished")
	return
}
