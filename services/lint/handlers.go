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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/addonlint/services/lint/rules"
)

// Handlers serves the /v1/lint endpoints.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleScan handles POST /v1/lint/scan.
//
// Description:
//
//	Scans the submitted files and returns the report. A failing scan (one
//	with errors, or with warnings unless fail_on_warnings is false) is
//	still a 200; the report's "failed" field carries the verdict.
//
// Request Body:
//
//	ScanRequest
//
// Response:
//
//	200 OK: report.Result
//	400 Bad Request: Malformed body or supported_apps
//	503 Service Unavailable: Request canceled mid-scan
//	500 Internal Server Error: Unexpected scanner failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleScan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleScan")

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		scanRequestsTotal.WithLabelValues("invalid").Inc()
		logger.Warn("invalid scan request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "INVALID_REQUEST",
			RequestID: requestID,
		})
		return
	}

	result, err := h.svc.Scan(c.Request.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidRequest):
		scanRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "INVALID_SUPPORTED_APPS",
			RequestID: requestID,
		})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		scanRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "scan canceled",
			Code:      "SCAN_CANCELED",
			RequestID: requestID,
		})
		return
	default:
		scanRequestsTotal.WithLabelValues("error").Inc()
		logger.Error("scan failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "scan failed",
			Code:      "SCAN_FAILED",
			RequestID: requestID,
		})
		return
	}

	status := "ok"
	if result.Failed {
		status = "failed"
	}
	scanRequestsTotal.WithLabelValues(status).Inc()
	c.JSON(http.StatusOK, result)
}

// HandleRules handles GET /v1/lint/rules.
//
// Query Parameters:
//
//	kind: script, markup or any (optional, default any)
//
// Response:
//
//	200 OK: RulesResponse
//	400 Bad Request: Unknown kind
func (h *Handlers) HandleRules(c *gin.Context) {
	kind, err := rules.ParseContentKind(c.Query("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "INVALID_PARAMETER",
			RequestID: getOrCreateRequestID(c),
		})
		return
	}
	list := h.svc.Rules(kind)
	c.JSON(http.StatusOK, RulesResponse{Rules: list, Count: len(list)})
}

// HandleEntities handles GET /v1/lint/entities.
//
// Query Parameters:
//
//	q: substring filter on the entity path (optional)
func (h *Handlers) HandleEntities(c *gin.Context) {
	paths := h.svc.Entities(c.Query("q"))
	c.JSON(http.StatusOK, EntitiesResponse{Paths: paths, Count: len(paths)})
}

// HandleHealth handles GET /v1/lint/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	n, e := h.svc.Counts()
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Rules:     n,
		Entities:  e,
		Timestamp: time.Now().UnixMilli(),
	})
}
