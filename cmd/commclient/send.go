// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func sendCmd(opts *options) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send ENDPOINT [ARGS...]",
		Short: "Send one Request and log the Responses for a while",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptContext()
			defer cancel()

			m, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer m.Dispose()

			logResponses(m)

			now := strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', -1, 64)
			if !m.Send(append([]string{now}, args...)...) {
				if err := m.Err(); err != nil {
					return err
				}
				return fmt.Errorf("sending %v failed", args)
			}
			log.WithField("endpoint", args[0]).Info("Sent request")

			waitCtx, waitCancel := context.WithTimeout(ctx, wait)
			defer waitCancel()
			pumpUntil(waitCtx, m, opts.interval)

			return m.Err()
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 2*time.Second, "time to wait for Responses")
	return cmd
}
