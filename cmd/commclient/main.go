// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// commclient connects to a server, logs its Responses and sends Requests.
package main

import (
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("commclient failed")
	}
}
