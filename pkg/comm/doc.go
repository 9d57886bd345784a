// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package comm provides the client's communication Module.
//
// A Module connects to a server, exchanges a session key and afterwards receives Responses on a
// background goroutine. Received Responses are queued and only passed to the registered
// Listeners when the application calls Pump. Thus, Listeners are always executed on the
// application's goroutine and need no synchronization of their own.
//
//	m, err := comm.Dial(ctx, comm.DefaultConfig("localhost:5555"))
//	if err != nil {
//		// ...
//	}
//	defer m.Dispose()
//
//	m.SetListener(message.Chat, func(t message.Type, p message.Payload) {
//		// ...
//	})
//
//	for m.IsConnected() {
//		m.Pump()
//		// ...
//	}
//
// Errors while receiving never surface from Pump or SetListener; they dispose the Module. The
// cause is available through Err.
package comm
