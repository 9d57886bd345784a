// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package message defines the units exchanged with a server: the typed Response, its Payload and the
// outgoing Request. All of them are serialized as CBOR.
package message
