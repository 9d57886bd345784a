// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package secure provides the cryptographic primitives of a session: an ephemeral Curve25519 Keypair
// to receive a sealed SessionKey and the symmetric Cipher protecting every following frame.
package secure
