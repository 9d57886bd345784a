// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/dtn7/cboring"
)

func TestResponseCbor(t *testing.T) {
	tests := []Response{
		NewResponse(AuthSuccess, NoPayload()),
		NewResponse(AuthError, TextPayload("wrong password")),
		NewResponse(User, TextPayload("alice")),
		NewResponse(Time, FloatPayload(1.5e18)),
		NewResponse(Score, UIntPayload(20)),
		NewResponse(GameState, BoolPayload(true)),
		NewResponse(WorldData, BytesPayload([]byte{0x00, 0xff, 0x23})),
		NewResponse(WorldData, BytesPayload(nil)),
		NewResponse(UsersLoggedIn, ListPayload(TextPayload("alice"), TextPayload("bob"))),
		NewResponse(VoteBallot, ListPayload(
			UIntPayload(1),
			ListPayload(FloatPayload(0.25), NoPayload()),
			ListPayload())),
	}

	for _, r1 := range tests {
		data, err := MarshalResponse(r1)
		if err != nil {
			t.Fatalf("marshalling %v failed: %v", r1, err)
		}

		r2, err := UnmarshalResponse(data)
		if err != nil {
			t.Fatalf("unmarshalling %v failed: %v", r1, err)
		}

		if !r1.Equal(r2) {
			t.Fatalf("Responses differ: %v, %v", r1, r2)
		}
	}
}

func TestResponseUnknownType(t *testing.T) {
	buff := new(bytes.Buffer)
	_ = cboring.WriteArrayLength(2, buff)
	_ = cboring.WriteUInt(uint64(typeSentinel), buff)
	p := NoPayload()
	_ = cboring.Marshal(&p, buff)

	if _, err := UnmarshalResponse(buff.Bytes()); err == nil {
		t.Fatal("unknown type code was accepted")
	}
}

func TestResponseTrailingBytes(t *testing.T) {
	data, err := MarshalResponse(NewResponse(Chat, TextPayload("hi")))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := UnmarshalResponse(append(data, 0x00)); err == nil {
		t.Fatal("trailing bytes were accepted")
	}
	if _, err := UnmarshalResponse(data[:len(data)-1]); err == nil {
		t.Fatal("truncated Response was accepted")
	}
}

func TestPayloadNesting(t *testing.T) {
	p := TextPayload("leaf")
	for i := 0; i < maxPayloadDepth+2; i++ {
		p = ListPayload(p)
	}

	buff := new(bytes.Buffer)
	if err := cboring.Marshal(&p, buff); err != nil {
		t.Fatal(err)
	}

	var p2 Payload
	if err := cboring.Unmarshal(&p2, buff); err == nil {
		t.Fatal("deeply nested Payload was accepted")
	}
}

func TestPayloadImmutable(t *testing.T) {
	raw := []byte("abc")
	p := BytesPayload(raw)
	raw[0] = 'x'

	if v, ok := p.Bytes(); !ok || string(v) != "abc" {
		t.Fatalf("Payload changed with its input: %q", v)
	}

	v, _ := p.Bytes()
	v[1] = 'x'
	if v2, _ := p.Bytes(); string(v2) != "abc" {
		t.Fatalf("Payload changed with its output: %q", v2)
	}
}

func TestPayloadData(t *testing.T) {
	p := ListPayload(TextPayload("a"), UIntPayload(2), BoolPayload(false), NoPayload())
	expected := []interface{}{"a", uint64(2), false, nil}

	if data := p.Data(); !reflect.DeepEqual(data, expected) {
		t.Fatalf("expected %v, got %v", expected, data)
	}

	if f, ok := UIntPayload(10).Float(); !ok || f != 10 {
		t.Fatalf("UInt Payload should convert to a float, got %v %t", f, ok)
	}
	if _, ok := TextPayload("10").UInt(); ok {
		t.Fatal("text Payload returned an uint")
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		data    []string
		valid   bool
		request Request
	}{
		{[]string{"12.5", "LOGIN", "alice", "secret"}, true, Request{12.5, "LOGIN", []string{"alice", "secret"}}},
		{[]string{"0", "READY"}, true, Request{0, "READY", []string{}}},
		{[]string{" 3 ", " CHAT ", "hi"}, true, Request{3, "CHAT", []string{"hi"}}},
		{[]string{"now", "LOGIN"}, false, Request{}},
		{[]string{"1", "  "}, false, Request{}},
		{[]string{"1"}, false, Request{}},
		{nil, false, Request{}},
	}

	for _, test := range tests {
		req, err := ParseRequest(test.data...)
		if (err == nil) != test.valid {
			t.Fatalf("%v: expected valid=%t, got error %v", test.data, test.valid, err)
		}
		if test.valid && !reflect.DeepEqual(req, test.request) {
			t.Fatalf("%v: expected %v, got %v", test.data, test.request, req)
		}
	}
}

func TestRequestCbor(t *testing.T) {
	req1 := Request{Time: 42.25, Endpoint: "VOTE", Args: []string{"card-3", "yes"}}

	buff := new(bytes.Buffer)
	if err := cboring.Marshal(&req1, buff); err != nil {
		t.Fatal(err)
	}

	var req2 Request
	if err := cboring.Unmarshal(&req2, buff); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(req1, req2) {
		t.Fatalf("Requests differ: %v, %v", req1, req2)
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		if parsed, err := ParseType(typ.String()); err != nil {
			t.Fatal(err)
		} else if parsed != typ {
			t.Fatalf("expected %v, got %v", typ, parsed)
		}
	}

	if typ, err := ParseType("score"); err != nil || typ != Score {
		t.Fatalf("case insensitive lookup failed: %v %v", typ, err)
	}
	if _, err := ParseType("NOPE"); err == nil {
		t.Fatal("unknown name was parsed")
	}
	if Type(0).Valid() || typeSentinel.Valid() {
		t.Fatal("out of range Type is valid")
	}
}
