// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/commlink/pkg/channel"
	"github.com/dtn7/commlink/pkg/message"
)

// receive Responses from the Channel into the event queue until the Module is disposed or the
// stream fails. An AuthError Response is still queued, but disposes the Module afterwards.
func (m *Module) receive(ch *channel.Channel) {
	defer m.closeDone()

	logger := m.log().WithField("channel", ch.String())
	logger.Debug("Receiver started")

	for m.IsConnected() {
		r, err := ch.ReadResponse()
		if err != nil {
			if !m.IsConnected() {
				logger.WithError(err).Debug("Receiver stopped after disposal")
				return
			}

			logger.WithFields(log.Fields{
				"error": err,
				"queue": m.queue.len(),
			}).Error("Reading from the stream failed, disposing")
			m.teardown(newFault(ErrStreamFault, fmt.Sprintf("reading from %s failed", ch), err))
			return
		}

		if !m.IsConnected() {
			logger.WithField("response", r).Debug("Dropping response received during disposal")
			return
		}

		m.metrics.responsesReceived.Inc()
		logger.WithField("response", r).Debug("Received response")
		m.queue.push(r)

		if r.Type() == message.AuthError {
			logger.WithField("response", r).Warn("Server rejected the authentication, disposing")
			m.teardown(newFault(ErrAuthentication, fmt.Sprintf("server sent %v", r), nil))
			return
		}
	}
}
