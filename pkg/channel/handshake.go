// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dtn7/cboring"

	"github.com/dtn7/commlink/pkg/secure"
)

// ProtocolVersion is sent within each ClientHello.
const ProtocolVersion uint64 = 1

// ErrHandshakeRejected is returned if the peer refused the ClientHello.
var ErrHandshakeRejected = errors.New("channel: handshake rejected by peer")

// ClientHello is the first, plaintext frame sent by a client. It introduces the client and
// carries the public key the session key should be sealed for.
type ClientHello struct {
	Version   uint64
	Label     string
	PublicKey []byte
}

func (ch *ClientHello) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(ch.Version, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(ch.Label, w); err != nil {
		return err
	}
	return cboring.WriteByteString(ch.PublicKey, w)
}

func (ch *ClientHello) UnmarshalCbor(r io.Reader) (err error) {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 3 {
		return fmt.Errorf("ClientHello: expected array of 3 elements, got %d", n)
	}

	if ch.Version, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if ch.Label, err = cboring.ReadTextString(r); err != nil {
		return
	}
	ch.PublicKey, err = cboring.ReadByteString(r)
	return
}

// SessionOffer is the peer's plaintext answer to a ClientHello. Either SealedKey holds the session
// key sealed for the client's public key or Error explains the rejection.
type SessionOffer struct {
	SealedKey []byte
	Error     string
}

func (so *SessionOffer) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteByteString(so.SealedKey, w); err != nil {
		return err
	}
	return cboring.WriteTextString(so.Error, w)
}

func (so *SessionOffer) UnmarshalCbor(r io.Reader) (err error) {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("SessionOffer: expected array of 2 elements, got %d", n)
	}

	if so.SealedKey, err = cboring.ReadByteString(r); err != nil {
		return
	}
	so.Error, err = cboring.ReadTextString(r)
	return
}

// WritePlain serializes a message into one unencrypted frame. This is only used for the handshake.
func WritePlain(w io.Writer, msg cboring.CborMarshaler, limits Limits) error {
	buff := new(bytes.Buffer)
	if err := cboring.Marshal(msg, buff); err != nil {
		return err
	}
	return WriteFrame(w, buff.Bytes(), limits)
}

// ReadPlain reads one unencrypted frame into a message. This is only used for the handshake.
func ReadPlain(r io.Reader, msg cboring.CborMarshaler, limits Limits) error {
	data, err := ReadFrame(r, limits)
	if err != nil {
		return err
	}
	return cboring.Unmarshal(msg, bytes.NewReader(data))
}

// ClientHandshake performs the client's side of the key exchange on a fresh Transport: send a
// ClientHello, receive a SessionOffer and open its sealed key. The exchange must finish within the
// timeout; a zero timeout disables the deadline.
func ClientHandshake(t Transport, kp *secure.Keypair, label string, timeout time.Duration, limits Limits) (key secure.SessionKey, err error) {
	if timeout > 0 {
		if err = t.SetDeadline(time.Now().Add(timeout)); err != nil {
			return
		}
		defer func() {
			if dlErr := t.SetDeadline(time.Time{}); dlErr != nil && err == nil {
				err = dlErr
			}
		}()
	}

	hello := ClientHello{
		Version:   ProtocolVersion,
		Label:     label,
		PublicKey: kp.PublicKey(),
	}
	if err = WritePlain(t, &hello, limits); err != nil {
		err = fmt.Errorf("sending ClientHello: %w", err)
		return
	}

	var offer SessionOffer
	if err = ReadPlain(t, &offer, limits); err != nil {
		err = fmt.Errorf("receiving SessionOffer: %w", err)
		return
	}
	if offer.Error != "" {
		err = fmt.Errorf("%w: %s", ErrHandshakeRejected, offer.Error)
		return
	}

	key, err = kp.OpenSessionKey(offer.SealedKey)
	return
}
