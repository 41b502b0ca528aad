// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics exposes the agent's Prometheus counters and the optional
// /metrics endpoint. The daemon runs unattended; these counters are how an
// operator notices it quietly failing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

var (
	// CyclesTotal counts completed poll cycles, successful or not.
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apstra_backup_cycles_total",
		Help: "Number of poll cycles run.",
	})

	// CycleErrorsTotal counts cycles aborted by auth or poll failures.
	CycleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apstra_backup_cycle_errors_total",
		Help: "Number of poll cycles aborted by an error.",
	})

	// ChangedBlueprintsTotal counts blueprints flagged as changed.
	ChangedBlueprintsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apstra_backup_changed_blueprints_total",
		Help: "Number of blueprint change detections.",
	})

	// BackupsTotal counts backup-plus-transfer attempts by result.
	BackupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apstra_backup_runs_total",
		Help: "Number of backup and transfer attempts.",
	}, []string{"result"})

	// LastSuccessTimestamp records when a backup last made it to retention.
	LastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apstra_backup_last_success_timestamp_seconds",
		Help: "Unix time of the last successful backup and transfer.",
	})
)

// RecordBackup updates the backup counters for one attempt.
func RecordBackup(err error) {
	if err != nil {
		BackupsTotal.WithLabelValues("failure").Inc()
		return
	}
	BackupsTotal.WithLabelValues("success").Inc()
	LastSuccessTimestamp.SetToCurrentTime()
}

// Serve exposes /metrics on listen until ctx is cancelled. It runs in its
// own goroutine and never takes the daemon down with it.
func Serve(ctx context.Context, listen string) {
	if listen == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	go func() {
		logging.Infof("metrics endpoint listening on %s", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}
