// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Scanner
// =============================================================================

var (
	// filesTotal counts scanned files.
	// Labels: kind (script, markup, unknown), status (ok, skipped, error)
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addonlint",
		Subsystem: "scanner",
		Name:      "files_total",
		Help:      "Total files scanned by content kind and status",
	}, []string{"kind", "status"})

	// findingsTotal counts findings emitted during scans, before de-duplication.
	// Labels: severity (error, warning, notice)
	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addonlint",
		Subsystem: "scanner",
		Name:      "findings_total",
		Help:      "Total findings emitted by severity",
	}, []string{"severity"})

	// scanDurationSeconds measures time spent scanning one file.
	// Labels: kind
	scanDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "addonlint",
		Subsystem: "scanner",
		Name:      "duration_seconds",
		Help:      "Time spent scanning a single file",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind"})

	// ruleHitsTotal counts regex rule hits by rule ID.
	// Labels: rule
	ruleHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addonlint",
		Subsystem: "scanner",
		Name:      "rule_hits_total",
		Help:      "Total regex rule hits by rule ID",
	}, []string{"rule"})
)

func recordFile(kind, status string) {
	filesTotal.WithLabelValues(kind, status).Inc()
}
