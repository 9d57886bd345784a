// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/commlink/pkg/comm"
)

// statusResponse is served at /status.
type statusResponse struct {
	Session       string  `json:"session"`
	State         string  `json:"state"`
	StartNanoTime float64 `json:"start_nano_time"`
	Error         string  `json:"error,omitempty"`
}

// statusRouter serves the Module's metrics at /metrics and its state at /status.
func statusRouter(m *comm.Module, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Session:       m.ID().String(),
			State:         m.State().String(),
			StartNanoTime: m.StartNanoTime(),
		}
		if err := m.Err(); err != nil {
			resp.Error = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.WithError(err).Warn("Failed to write status response")
		}
	}).Methods(http.MethodGet)

	return router
}

func newStatusServer(listen string, m *comm.Module, gatherer prometheus.Gatherer) *http.Server {
	srv := &http.Server{
		Addr:              listen,
		Handler:           statusRouter(m, gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).WithField("listen", listen).Warn("Status server failed")
		}
	}()

	log.WithField("listen", listen).Info("Serving metrics and status")
	return srv
}
