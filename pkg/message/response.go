// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// Response is one decoded unit of server-to-client data. A Response is immutable once created.
type Response struct {
	typ     Type
	payload Payload
}

// NewResponse creates a Response of the given Type and Payload.
func NewResponse(t Type, p Payload) Response {
	return Response{typ: t, payload: p}
}

// Type of this Response.
func (r Response) Type() Type { return r.typ }

// Payload of this Response.
func (r Response) Payload() Payload { return r.payload }

// Equal reports whether both Responses share their Type and Payload.
func (r Response) Equal(o Response) bool {
	return r.typ == o.typ && r.payload.Equal(o.payload)
}

func (r Response) String() string {
	return fmt.Sprintf("Response(%v, %v)", r.typ, r.payload)
}

// MarshalCbor writes a CBOR array of the Type code and the Payload.
func (r *Response) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(r.typ), w); err != nil {
		return err
	}
	return cboring.Marshal(&r.payload, w)
}

// UnmarshalCbor reads a Response. Unknown Type codes are rejected.
func (r *Response) UnmarshalCbor(rd io.Reader) error {
	if n, err := cboring.ReadArrayLength(rd); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("response: expected array of 2 elements, got %d", n)
	}

	code, err := cboring.ReadUInt(rd)
	if err != nil {
		return err
	}
	t := Type(code)
	if !t.Valid() {
		return fmt.Errorf("response: unknown type code %d", code)
	}

	var p Payload
	if err := cboring.Unmarshal(&p, rd); err != nil {
		return err
	}

	r.typ = t
	r.payload = p
	return nil
}

// MarshalResponse returns the serialized bytes of a Response.
func MarshalResponse(r Response) ([]byte, error) {
	buff := new(bytes.Buffer)
	if err := cboring.Marshal(&r, buff); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// UnmarshalResponse parses serialized bytes into a Response. Trailing bytes are an error.
func UnmarshalResponse(data []byte) (r Response, err error) {
	buff := bytes.NewReader(data)
	if err = cboring.Unmarshal(&r, buff); err != nil {
		return
	}
	if buff.Len() != 0 {
		err = fmt.Errorf("response: %d trailing bytes", buff.Len())
	}
	return
}
