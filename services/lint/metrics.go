// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rateLimitedTotal counts requests rejected by the rate limiter.
	// Labels: route
	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addonlint",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Total HTTP requests rejected by the rate limiter",
	}, []string{"route"})

	// scanRequestsTotal counts scan requests by outcome.
	// Labels: status (ok, failed, invalid, error)
	scanRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addonlint",
		Subsystem: "http",
		Name:      "scan_requests_total",
		Help:      "Total scan requests by outcome",
	}, []string{"status"})
)
