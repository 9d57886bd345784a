// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package channel implements the framed, encrypted byte stream between client and server.
//
// Every unit on the wire is a frame: a four byte big-endian length, followed by exactly that many
// payload bytes. The first two frames form the handshake and are plaintext CBOR, a ClientHello and
// the peer's SessionOffer. All following frames carry CBOR messages sealed by the session's Cipher.
//
// The frames can be exchanged over different Transports, selected by the address scheme passed to
// Dial: plain TCP, WebSockets or a QUIC stream.
package channel
