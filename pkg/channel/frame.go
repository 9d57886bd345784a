// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameHeaderLen is the length of a frame's big-endian length prefix.
const FrameHeaderLen = 4

var (
	// ErrEndOfStream signals a stream which ended before or within a frame's length prefix.
	ErrEndOfStream = errors.New("channel: end of stream")

	// ErrFrameTooLarge is returned for frames exceeding the Limits.
	ErrFrameTooLarge = errors.New("channel: frame too large")
)

// Limits constrains frame sizes.
type Limits struct {
	// MaxFrameBytes is the largest accepted frame payload.
	MaxFrameBytes uint32
}

// DefaultLimits allows frames up to 16 MiB.
func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 16 * 1024 * 1024}
}

// WriteFrame writes the payload prefixed by its length. The whole frame is passed to the Writer
// within one call.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if uint64(len(payload)) > uint64(limits.MaxFrameBytes) {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, FrameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[:FrameHeaderLen], uint32(len(payload)))
	copy(buf[FrameHeaderLen:], payload)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads exactly one frame and returns its payload. A stream ending within the length
// prefix results in ErrEndOfStream; ending within the payload in io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var header [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrEndOfStream
		}
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > limits.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
