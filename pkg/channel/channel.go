// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/dtn7/cboring"

	"github.com/dtn7/commlink/pkg/message"
	"github.com/dtn7/commlink/pkg/secure"
)

// ErrMalformedResponse is returned if a decrypted frame does not contain a valid Response.
var ErrMalformedResponse = errors.New("channel: malformed response")

// Channel exchanges encrypted frames over a Transport. Each frame's payload is sealed with the
// session's Cipher.
//
// Reading is meant to happen from a single goroutine, while writes might be issued concurrently.
type Channel struct {
	transport Transport
	cipher    *secure.Cipher
	limits    Limits

	reader     *bufio.Reader
	writeMutex sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New creates a Channel on an established Transport, protected by the session key.
func New(t Transport, key secure.SessionKey, limits Limits) (*Channel, error) {
	c, err := secure.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &Channel{
		transport: t,
		cipher:    c,
		limits:    limits,
		reader:    bufio.NewReader(t),
	}, nil
}

func (c *Channel) String() string {
	return c.transport.String()
}

// WriteFrame encrypts the payload and writes it as one frame.
func (c *Channel) WriteFrame(payload []byte) error {
	sealed, err := c.cipher.Seal(payload)
	if err != nil {
		return err
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	return WriteFrame(c.transport, sealed, c.limits)
}

// ReadFrame blocks until the next frame is received and returns its decrypted payload.
func (c *Channel) ReadFrame() ([]byte, error) {
	sealed, err := ReadFrame(c.reader, c.limits)
	if err != nil {
		return nil, err
	}

	plain, err := c.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("channel: frame of %d bytes: %w", len(sealed), err)
	}
	return plain, nil
}

// WriteMessage serializes a message and writes it as one encrypted frame.
func (c *Channel) WriteMessage(msg cboring.CborMarshaler) error {
	buff := new(bytes.Buffer)
	if err := cboring.Marshal(msg, buff); err != nil {
		return err
	}
	return c.WriteFrame(buff.Bytes())
}

// WriteResponse writes a Response. Clients only receive Responses; this is the peer's direction.
func (c *Channel) WriteResponse(r message.Response) error {
	return c.WriteMessage(&r)
}

// ReadResponse blocks until the next frame is received and decodes it into a Response.
func (c *Channel) ReadResponse() (message.Response, error) {
	plain, err := c.ReadFrame()
	if err != nil {
		return message.Response{}, err
	}

	r, err := message.UnmarshalResponse(plain)
	if err != nil {
		return message.Response{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return r, nil
}

// ReadRequest blocks until the next frame is received and decodes it into a Request. This is the
// peer's direction.
func (c *Channel) ReadRequest() (req message.Request, err error) {
	plain, err := c.ReadFrame()
	if err != nil {
		return
	}

	err = cboring.Unmarshal(&req, bytes.NewReader(plain))
	return
}

// Close the underlying Transport. Further calls return the first call's result. A blocked
// ReadFrame will fail afterwards.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.transport.Close()
	})
	return c.closeErr
}
