// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package secure

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// SessionKeySize is the length of a SessionKey in bytes.
	SessionKeySize = chacha20poly1305.KeySize

	// NonceSize is the length of the random nonce prefixed to each sealed message.
	NonceSize = chacha20poly1305.NonceSizeX

	// Overhead is the number of bytes a sealed message is longer than its plaintext.
	Overhead = NonceSize + chacha20poly1305.Overhead
)

// ErrDecrypt is returned if a message cannot be authenticated and decrypted.
var ErrDecrypt = errors.New("secure: message authentication failed")

// SessionKey is the symmetric key shared by both peers for one connection.
type SessionKey [SessionKeySize]byte

// NewSessionKey creates a random SessionKey.
func NewSessionKey() (key SessionKey, err error) {
	_, err = rand.Read(key[:])
	return
}

// Cipher seals and opens messages with a SessionKey using XChaCha20-Poly1305. The same
// construction is used for both directions. A Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher for the SessionKey.
func NewCipher(key SessionKey) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("secure: creating cipher failed: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext. The result is the random nonce followed by the
// ciphertext and its tag.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Open authenticates and decrypts a message created by Seal.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, fmt.Errorf("%w: message of %d bytes is too short", ErrDecrypt, len(sealed))
	}

	plain, err := c.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// Wipe zeroes the provided buffer.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
