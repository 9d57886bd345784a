// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// PublicKeySize is the length of a Keypair's public key in bytes.
const PublicKeySize = 32

var (
	// ErrSealedKey is returned if a sealed session key cannot be opened.
	ErrSealedKey = errors.New("secure: sealed session key cannot be opened")

	// ErrPublicKey is returned for a malformed peer public key.
	ErrPublicKey = errors.New("secure: malformed public key")
)

// Keypair is a Curve25519 keypair used for the session key exchange. A peer seals the session key
// for this Keypair's public key, which can only be opened with the private key.
type Keypair struct {
	public  *[32]byte
	private *[32]byte
}

// GenerateKeypair creates a new Keypair from the given source of randomness. A nil reader falls
// back to crypto/rand.
func GenerateKeypair(rnd io.Reader) (*Keypair, error) {
	if rnd == nil {
		rnd = rand.Reader
	}

	pub, priv, err := box.GenerateKey(rnd)
	if err != nil {
		return nil, fmt.Errorf("secure: generating keypair failed: %w", err)
	}
	return &Keypair{public: pub, private: priv}, nil
}

// PublicKey returns a copy of the public key.
func (kp *Keypair) PublicKey() []byte {
	return append([]byte{}, kp.public[:]...)
}

// Fingerprint returns a short, printable fingerprint of the public key.
func (kp *Keypair) Fingerprint() string {
	sum := sha256.Sum256(kp.public[:])
	return hex.EncodeToString(sum[:8])
}

// OpenSessionKey opens a session key which was sealed for this Keypair, e.g., by SealSessionKey.
func (kp *Keypair) OpenSessionKey(sealed []byte) (key SessionKey, err error) {
	plain, ok := box.OpenAnonymous(nil, sealed, kp.public, kp.private)
	if !ok {
		err = ErrSealedKey
		return
	}
	defer Wipe(plain)

	if len(plain) != SessionKeySize {
		err = fmt.Errorf("%w: key has %d bytes instead of %d", ErrSealedKey, len(plain), SessionKeySize)
		return
	}

	copy(key[:], plain)
	return
}

// SealSessionKey encrypts a session key for the owner of the given public key. This is the peer's
// side of the key exchange.
func SealSessionKey(key SessionKey, peerPublicKey []byte) ([]byte, error) {
	if len(peerPublicKey) != PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPublicKey, len(peerPublicKey))
	}

	var peer [32]byte
	copy(peer[:], peerPublicKey)

	return box.SealAnonymous(nil, key[:], &peer, rand.Reader)
}
