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
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// NewRateLimiter returns a token bucket allowing perSec requests per second
// with the given burst, or nil when perSec is not positive.
func NewRateLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// RequestIDMiddleware assigns every request an ID, reusing a valid
// client-supplied X-Request-ID, and echoes it in the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RateLimitMiddleware rejects requests with 429 once limiter is exhausted.
//
// Description:
//
//	A single limiter is shared by every route the middleware is attached
//	to. A nil limiter disables limiting. Rejections set Retry-After in
//	whole seconds and are counted in addonlint_http_rate_limited_total.
//
// Thread Safety: Safe for concurrent use; rate.Limiter is synchronized.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		r := limiter.Reserve()
		if !r.OK() {
			reject(c, 1)
			return
		}
		if d := r.Delay(); d > 0 {
			r.Cancel()
			reject(c, int(math.Ceil(d.Seconds())))
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	rateLimitedTotal.WithLabelValues(route).Inc()

	requestID := getOrCreateRequestID(c)
	slog.Warn("request rate limited",
		slog.String("request_id", requestID),
		slog.String("path", c.Request.URL.Path),
	)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded",
		Code:      "RATE_LIMITED",
		RequestID: requestID,
	})
}

// getOrCreateRequestID returns the request ID set by RequestIDMiddleware,
// creating one when the middleware is not installed.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Set(requestIDKey, id)
	return id
}
