// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionTimeout is returned by Connect if no session was established within the bound.
	ErrConnectionTimeout = errors.New("comm: connection timeout")

	// ErrHandshakeFailure marks a failed key exchange on an established transport.
	ErrHandshakeFailure = errors.New("comm: handshake failure")

	// ErrAuthentication marks a disposal caused by an AuthError response.
	ErrAuthentication = errors.New("comm: authentication rejected")

	// ErrStreamFault marks a disposal caused by an I/O, decryption or decoding error.
	ErrStreamFault = errors.New("comm: stream fault")

	// ErrDisposalFault marks errors while releasing the transport. The module is disposed anyway.
	ErrDisposalFault = errors.New("comm: disposal fault")

	// ErrDisposed is returned by Connect on a disposed Module.
	ErrDisposed = errors.New("comm: module disposed")

	// ErrConnected is returned by Connect on an already connected Module.
	ErrConnected = errors.New("comm: module already connected")
)

// Fault describes a failure of a Module. Kind is one of the sentinel errors of this package and
// Cause the underlying error, if any. Both can be inspected with errors.Is and errors.As.
type Fault struct {
	Kind  error
	Msg   string
	Cause error
}

func newFault(kind error, msg string, cause error) *Fault {
	return &Fault{
		Kind:  kind,
		Msg:   msg,
		Cause: cause,
	}
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", f.Kind, f.Msg, f.Cause)
	}
	return fmt.Sprintf("%v: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is reports whether the target is this Fault's Kind.
func (f *Fault) Is(target error) bool {
	return target == f.Kind
}
