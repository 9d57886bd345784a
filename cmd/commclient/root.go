// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dtn7/commlink/pkg/comm"
	"github.com/dtn7/commlink/pkg/message"
)

// options shared by all commands, from the configuration file and the flags.
type options struct {
	configFile string
	address    string
	label      string
	logLevel   string
	insecure   bool
	interval   time.Duration

	conf     tomlConfig
	registry *prometheus.Registry
}

func rootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "commclient",
		Short:         "Client for encrypted sessions with a commlink server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			if opts.conf, err = parseConfig(opts.configFile); err != nil {
				return
			}

			if opts.address != "" {
				opts.conf.Client.Address = opts.address
			}
			if opts.label != "" {
				opts.conf.Client.Label = opts.label
			}
			if opts.logLevel != "" {
				opts.conf.Logging.Level = opts.logLevel
			}
			if opts.insecure {
				opts.conf.Client.Insecure = true
			}

			setupLogging(opts.conf.Logging)
			return
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().StringVarP(&opts.address, "address", "a", "", "server address, e.g., localhost:5555 or quic://host:5555")
	root.PersistentFlags().StringVar(&opts.label, "label", "", "label sent within the handshake")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "one of panic,fatal,error,warn,info,debug,trace")
	root.PersistentFlags().BoolVar(&opts.insecure, "insecure", false, "skip TLS certificate verification")
	root.PersistentFlags().DurationVar(&opts.interval, "interval", 50*time.Millisecond, "pump interval")

	root.AddCommand(listenCmd(opts), sendCmd(opts))
	return root
}

// connect a Module for the configuration. The context is cancelled by SIGINT.
func (opts *options) connect(ctx context.Context) (*comm.Module, error) {
	config := moduleConfig(opts.conf.Client)

	opts.registry = prometheus.NewRegistry()
	config.Registerer = opts.registry

	return comm.Dial(ctx, config)
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// logResponses registers a Listener for every Type, logging each Response.
func logResponses(m *comm.Module) {
	for _, typ := range message.Types() {
		m.SetListener(typ, func(t message.Type, p message.Payload) {
			log.WithFields(log.Fields{
				"type":    t,
				"payload": p,
			}).Info("Received response")
		})
	}
}

// pumpUntil pumps the Module in the given interval until the context is done or the Module was
// disposed. The final Pump after a disposal is included.
func pumpUntil(ctx context.Context, m *comm.Module, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.Pump()
		if !m.IsConnected() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
