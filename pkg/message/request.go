// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dtn7/cboring"
)

// Request is an outgoing client message addressed to one of the server's endpoints.
type Request struct {
	// Time is the client's current time, as sent within the first argument of a send call.
	Time float64

	// Endpoint names the server side handler, e.g., "LOGIN" or "CHAT".
	Endpoint string

	// Args are the endpoint specific arguments; might be empty.
	Args []string
}

// ParseRequest builds a Request from a list of strings: a timestamp, the endpoint and the
// endpoint's arguments.
func ParseRequest(data ...string) (req Request, err error) {
	if len(data) < 2 {
		err = fmt.Errorf("request: expected at least a timestamp and an endpoint, got %d values", len(data))
		return
	}

	if req.Time, err = strconv.ParseFloat(strings.TrimSpace(data[0]), 64); err != nil {
		err = fmt.Errorf("request: invalid timestamp %q: %w", data[0], err)
		return
	}

	req.Endpoint = strings.TrimSpace(data[1])
	if req.Endpoint == "" {
		err = fmt.Errorf("request: empty endpoint")
		return
	}

	req.Args = append([]string{}, data[2:]...)
	return
}

func (req Request) String() string {
	return fmt.Sprintf("Request(%s, time=%v, args=%d)", req.Endpoint, req.Time, len(req.Args))
}

// MarshalCbor writes a CBOR array of the time, the endpoint and the arguments.
func (req *Request) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := cboring.WriteFloat64(req.Time, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(req.Endpoint, w); err != nil {
		return err
	}
	if err := cboring.WriteArrayLength(uint64(len(req.Args)), w); err != nil {
		return err
	}
	for _, arg := range req.Args {
		if err := cboring.WriteTextString(arg, w); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalCbor reads a Request's CBOR representation.
func (req *Request) UnmarshalCbor(r io.Reader) (err error) {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 3 {
		return fmt.Errorf("request: expected array of 3 elements, got %d", n)
	}

	if req.Time, err = cboring.ReadFloat64(r); err != nil {
		return
	}
	if req.Endpoint, err = cboring.ReadTextString(r); err != nil {
		return
	}

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return
	}
	req.Args = []string{}
	for i := uint64(0); i < n; i++ {
		arg, argErr := cboring.ReadTextString(r)
		if argErr != nil {
			return argErr
		}
		req.Args = append(req.Args, arg)
	}
	return
}
