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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// ServiceName names the HTTP server in traces.
const ServiceName = "addonlint"

// RegisterRoutes registers the lint routes with the router.
//
// Description:
//
//	Registers all /v1/lint/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/lint/scan - Scan files
//	GET  /v1/lint/rules - List catalog rules
//	GET  /v1/lint/entities - List registered entity paths
//	GET  /v1/lint/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	lint := rg.Group("/lint")
	{
		lint.POST("/scan", handlers.HandleScan)
		lint.GET("/rules", handlers.HandleRules)
		lint.GET("/entities", handlers.HandleEntities)
		lint.GET("/health", handlers.HandleHealth)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Limiter rate limits /v1. Nil disables limiting.
	Limiter *rate.Limiter

	// MaxBodyBytes caps request bodies. Zero means no cap.
	MaxBodyBytes int64

	// AccessLog enables gin's request logger.
	AccessLog bool
}

// NewRouter builds the complete HTTP handler: tracing, request IDs, the
// rate-limited /v1 API and /metrics.
//
// Example:
//
//	svc := lint.NewService(scanner.New(cat), logger)
//	router := lint.NewRouter(lint.NewHandlers(svc), lint.RouterOptions{})
//	http.ListenAndServe(":8090", router)
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(RequestIDMiddleware())
	if opts.AccessLog {
		router.Use(gin.Logger())
	}
	if opts.MaxBodyBytes > 0 {
		limit := opts.MaxBodyBytes
		router.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(RateLimitMiddleware(opts.Limiter))
	RegisterRoutes(v1, handlers)
	return router
}
