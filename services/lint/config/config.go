// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads addonlint runtime settings from the environment.
package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime settings shared by the CLI and the HTTP service.
//
// Description:
//
//	Loaded from environment variables via Load(). Every field has a usable
//	default, so a zero environment yields a working configuration.
//
// Thread Safety: Config is a value type. Safe to copy and share after loading.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	// Env: ADDONLINT_LOG_LEVEL (default: "info")
	LogLevel string

	// LogFormat is "text" or "json".
	// Env: ADDONLINT_LOG_FORMAT (default: "text")
	LogFormat string

	// Workers bounds concurrent file scans.
	// Env: ADDONLINT_WORKERS (default: 4)
	Workers int

	// MaxFileSize is the largest file scanned, in bytes.
	// Env: ADDONLINT_MAX_FILE_SIZE (default: 10485760)
	MaxFileSize int

	// HTTPAddr is the listen address of `addonlint serve`.
	// Env: ADDONLINT_HTTP_ADDR (default: ":8090")
	HTTPAddr string

	// RatePerSec is the sustained request rate of the HTTP service. Zero or
	// negative disables rate limiting.
	// Env: ADDONLINT_RATE_PER_SEC (default: 20)
	RatePerSec float64

	// RateBurst is the burst size of the HTTP rate limiter.
	// Env: ADDONLINT_RATE_BURST (default: 40)
	RateBurst int

	// RulesFile replaces the embedded rule catalog when set.
	// Env: ADDONLINT_RULES_FILE (default: "")
	RulesFile string

	// TraceStdout exports spans to stdout when true.
	// Env: ADDONLINT_TRACE_STDOUT (default: "false")
	TraceStdout bool
}

// Defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultWorkers     = 4
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultHTTPAddr    = ":8090"
	DefaultRatePerSec  = 20
	DefaultRateBurst   = 40
)

// Load reads configuration from ADDONLINT_* environment variables.
//
// Description:
//
//	Unparseable or out-of-range values fall back to the default for that
//	field rather than failing startup.
//
// Outputs:
//   - Config: Fully populated configuration.
func Load() Config {
	cfg := Config{
		LogLevel:    strings.ToLower(envString("ADDONLINT_LOG_LEVEL", DefaultLogLevel)),
		LogFormat:   strings.ToLower(envString("ADDONLINT_LOG_FORMAT", DefaultLogFormat)),
		Workers:     envInt("ADDONLINT_WORKERS", DefaultWorkers),
		MaxFileSize: envInt("ADDONLINT_MAX_FILE_SIZE", DefaultMaxFileSize),
		HTTPAddr:    envString("ADDONLINT_HTTP_ADDR", DefaultHTTPAddr),
		RatePerSec:  envFloat("ADDONLINT_RATE_PER_SEC", DefaultRatePerSec),
		RateBurst:   envInt("ADDONLINT_RATE_BURST", DefaultRateBurst),
		RulesFile:   envString("ADDONLINT_RULES_FILE", ""),
		TraceStdout: envBool("ADDONLINT_TRACE_STDOUT", false),
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	return cfg
}

// Level maps LogLevel to a slog level. Unknown names map to info.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to stderr in the configured format.
func NewLogger(cfg Config) *slog.Logger {
	return NewLoggerTo(os.Stderr, cfg)
}

// NewLoggerTo builds a logger writing to w.
func NewLoggerTo(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envFloat reads a float64 environment variable with a default value.
func envFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
