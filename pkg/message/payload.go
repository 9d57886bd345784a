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

// Kind of the value stored within a Payload.
type Kind uint64

const (
	KindNone Kind = iota
	KindBool
	KindUInt
	KindFloat
	KindText
	KindBytes
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint64(k))
	}
}

// maxPayloadDepth limits the nesting of list Payloads while unmarshalling.
const maxPayloadDepth = 32

// Payload is the immutable data part of a Response. Its semantics depend on the Response's Type.
//
// A Payload is serialized as a CBOR array of two elements, the Kind and the value.
type Payload struct {
	kind  Kind
	b     bool
	u     uint64
	f     float64
	s     string
	raw   []byte
	items []Payload
}

// NoPayload is the empty Payload.
func NoPayload() Payload { return Payload{} }

func BoolPayload(v bool) Payload { return Payload{kind: KindBool, b: v} }

func UIntPayload(v uint64) Payload { return Payload{kind: KindUInt, u: v} }

func FloatPayload(v float64) Payload { return Payload{kind: KindFloat, f: v} }

func TextPayload(v string) Payload { return Payload{kind: KindText, s: v} }

// BytesPayload creates a Payload of a copy of the given bytes.
func BytesPayload(v []byte) Payload {
	return Payload{kind: KindBytes, raw: append([]byte{}, v...)}
}

// ListPayload creates a Payload containing the given Payloads in order.
func ListPayload(items ...Payload) Payload {
	return Payload{kind: KindList, items: append([]Payload{}, items...)}
}

// Kind of this Payload's value.
func (p Payload) Kind() Kind { return p.kind }

// Bool returns the value of a KindBool Payload.
func (p Payload) Bool() (v bool, ok bool) { return p.b, p.kind == KindBool }

// UInt returns the value of a KindUInt Payload.
func (p Payload) UInt() (v uint64, ok bool) { return p.u, p.kind == KindUInt }

// Float returns the value of a KindFloat Payload. A KindUInt Payload is converted.
func (p Payload) Float() (v float64, ok bool) {
	switch p.kind {
	case KindFloat:
		return p.f, true
	case KindUInt:
		return float64(p.u), true
	default:
		return 0, false
	}
}

// Text returns the value of a KindText Payload.
func (p Payload) Text() (v string, ok bool) { return p.s, p.kind == KindText }

// Bytes returns a copy of a KindBytes Payload's value.
func (p Payload) Bytes() (v []byte, ok bool) {
	if p.kind != KindBytes {
		return nil, false
	}
	return append([]byte{}, p.raw...), true
}

// List returns a copy of a KindList Payload's items.
func (p Payload) List() (v []Payload, ok bool) {
	if p.kind != KindList {
		return nil, false
	}
	return append([]Payload{}, p.items...), true
}

// Data returns the plain Go value: nil, bool, uint64, float64, string, []byte or []interface{}.
func (p Payload) Data() interface{} {
	switch p.kind {
	case KindBool:
		return p.b
	case KindUInt:
		return p.u
	case KindFloat:
		return p.f
	case KindText:
		return p.s
	case KindBytes:
		return append([]byte{}, p.raw...)
	case KindList:
		data := make([]interface{}, len(p.items))
		for i, item := range p.items {
			data[i] = item.Data()
		}
		return data
	default:
		return nil
	}
}

// Equal reports whether both Payloads hold the same Kind and value.
func (p Payload) Equal(o Payload) bool {
	if p.kind != o.kind {
		return false
	}

	switch p.kind {
	case KindNone:
		return true
	case KindBool:
		return p.b == o.b
	case KindUInt:
		return p.u == o.u
	case KindFloat:
		return p.f == o.f
	case KindText:
		return p.s == o.s
	case KindBytes:
		return bytes.Equal(p.raw, o.raw)
	case KindList:
		if len(p.items) != len(o.items) {
			return false
		}
		for i := range p.items {
			if !p.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (p Payload) String() string {
	switch p.kind {
	case KindNone:
		return "none"
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(p.raw))
	default:
		return fmt.Sprintf("%v", p.Data())
	}
}

// MarshalCbor writes this Payload's CBOR representation.
func (p *Payload) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(p.kind), w); err != nil {
		return err
	}

	switch p.kind {
	case KindNone:
		return cboring.WriteUInt(0, w)
	case KindBool:
		return cboring.WriteBoolean(p.b, w)
	case KindUInt:
		return cboring.WriteUInt(p.u, w)
	case KindFloat:
		return cboring.WriteFloat64(p.f, w)
	case KindText:
		return cboring.WriteTextString(p.s, w)
	case KindBytes:
		return cboring.WriteByteString(p.raw, w)
	case KindList:
		if err := cboring.WriteArrayLength(uint64(len(p.items)), w); err != nil {
			return err
		}
		for i := range p.items {
			if err := p.items[i].MarshalCbor(w); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("payload: cannot marshal %v", p.kind)
	}
}

// UnmarshalCbor reads a CBOR representation into this Payload.
func (p *Payload) UnmarshalCbor(r io.Reader) error {
	return p.unmarshalCbor(r, 0)
}

func (p *Payload) unmarshalCbor(r io.Reader, depth int) error {
	if depth > maxPayloadDepth {
		return fmt.Errorf("payload: nesting exceeds %d levels", maxPayloadDepth)
	}

	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("payload: expected array of 2 elements, got %d", n)
	}

	kind, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}

	var tmp Payload
	tmp.kind = Kind(kind)

	switch tmp.kind {
	case KindNone:
		if _, err := cboring.ReadUInt(r); err != nil {
			return err
		}
	case KindBool:
		if tmp.b, err = cboring.ReadBoolean(r); err != nil {
			return err
		}
	case KindUInt:
		if tmp.u, err = cboring.ReadUInt(r); err != nil {
			return err
		}
	case KindFloat:
		if tmp.f, err = cboring.ReadFloat64(r); err != nil {
			return err
		}
	case KindText:
		if tmp.s, err = cboring.ReadTextString(r); err != nil {
			return err
		}
	case KindBytes:
		if tmp.raw, err = cboring.ReadByteString(r); err != nil {
			return err
		}
		if tmp.raw == nil {
			tmp.raw = []byte{}
		}
	case KindList:
		n, err := cboring.ReadArrayLength(r)
		if err != nil {
			return err
		}
		tmp.items = []Payload{}
		for i := uint64(0); i < n; i++ {
			var item Payload
			if err := item.unmarshalCbor(r, depth+1); err != nil {
				return err
			}
			tmp.items = append(tmp.items, item)
		}
	default:
		return fmt.Errorf("payload: unknown kind %d", kind)
	}

	*p = tmp
	return nil
}
