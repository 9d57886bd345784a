// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"sync"

	"github.com/dtn7/commlink/pkg/message"
)

// eventQueue is the FIFO between the receiver and Pump. Its mutex is only held for the slice
// operation itself, so pushing never waits for a running listener.
type eventQueue struct {
	mutex   sync.Mutex
	entries []message.Response
}

func (q *eventQueue) push(r message.Response) {
	q.mutex.Lock()
	q.entries = append(q.entries, r)
	q.mutex.Unlock()
}

// pop removes up to n entries from the head.
func (q *eventQueue) pop(n int) []message.Response {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if n > len(q.entries) {
		n = len(q.entries)
	}

	head := make([]message.Response, n)
	copy(head, q.entries[:n])

	// Release the references to allow the backing array to shrink over time.
	for i := 0; i < n; i++ {
		q.entries[i] = message.Response{}
	}
	q.entries = q.entries[n:]
	if len(q.entries) == 0 {
		q.entries = nil
	}
	return head
}

func (q *eventQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.entries)
}

// clear drops all entries and returns their number.
func (q *eventQueue) clear() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	n := len(q.entries)
	q.entries = nil
	return n
}
