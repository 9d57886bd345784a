// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"fmt"

	"github.com/dtn7/commlink/pkg/message"
)

// Send a Request to the server. The first value is the request's time, the second its endpoint,
// all following values are the endpoint's arguments.
//
// Send reports false if the Module is not Connected, the values do not form a Request or writing
// failed. A failed write disposes the Module.
func (m *Module) Send(data ...string) bool {
	if !m.IsConnected() {
		return false
	}

	req, err := message.ParseRequest(data...)
	if err != nil {
		m.log().WithError(err).Warn("Refusing to send an invalid request")
		return false
	}

	m.lifecycleMutex.Lock()
	ch := m.channel
	m.lifecycleMutex.Unlock()

	if err := ch.WriteMessage(&req); err != nil {
		if m.IsConnected() {
			m.log().WithError(err).WithField("request", req).Error("Sending failed, disposing")
			m.teardown(newFault(ErrStreamFault, fmt.Sprintf("writing to %s failed", ch), err))
		}
		return false
	}

	m.metrics.requestsSent.Inc()
	m.log().WithField("request", req).Debug("Sent request")
	return true
}
