// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/commlink/pkg/comm"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Client  clientConf
	Logging logConf
	Metrics metricsConf
}

// clientConf describes the Client-configuration block.
type clientConf struct {
	Address          string
	Label            string
	ConnectTimeout   duration `toml:"connect-timeout"`
	RetryPause       duration `toml:"retry-pause"`
	HandshakeTimeout duration `toml:"handshake-timeout"`
	MaxFrameBytes    uint32   `toml:"max-frame-bytes"`
	Insecure         bool
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// metricsConf describes the Metrics-configuration block.
type metricsConf struct {
	Listen string
}

// duration is a time.Duration, written as a string like "10s" within TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// parseConfig reads the TOML file. An empty filename results in an empty configuration.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if filename == "" {
		return
	}

	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		err = fmt.Errorf("parsing %s: %w", filename, err)
	}
	return
}

// setupLogging configures logrus based on the Logging-configuration block.
func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.WithField("format", conf.Format).Warn("Unknown logging format")
	}
}

// moduleConfig derives the comm.Config from the Client-configuration block. Unset values keep
// their defaults.
func moduleConfig(conf clientConf) comm.Config {
	c := comm.DefaultConfig(conf.Address)

	if conf.Label != "" {
		c.Label = conf.Label
	}
	if conf.ConnectTimeout.Duration > 0 {
		c.ConnectTimeout = conf.ConnectTimeout.Duration
	}
	if conf.RetryPause.Duration > 0 {
		c.RetryPause = conf.RetryPause.Duration
	}
	if conf.HandshakeTimeout.Duration > 0 {
		c.HandshakeTimeout = conf.HandshakeTimeout.Duration
	}
	if conf.MaxFrameBytes > 0 {
		c.Limits.MaxFrameBytes = conf.MaxFrameBytes
	}
	if conf.Insecure {
		c.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return c
}
