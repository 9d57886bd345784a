// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func listenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Connect and log all Responses until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptContext()
			defer cancel()

			m, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer m.Dispose()

			if opts.conf.Metrics.Listen != "" {
				srv := newStatusServer(opts.conf.Metrics.Listen, m, opts.registry)
				defer srv.Close()
			}

			logResponses(m)
			pumpUntil(ctx, m, opts.interval)

			if err := m.Err(); err != nil {
				return err
			}
			log.Info("Shutting down..")
			return nil
		},
	}
}
