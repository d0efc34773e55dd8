// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"ADDONLINT_LOG_LEVEL", "ADDONLINT_LOG_FORMAT", "ADDONLINT_WORKERS",
		"ADDONLINT_MAX_FILE_SIZE", "ADDONLINT_HTTP_ADDR", "ADDONLINT_RATE_PER_SEC",
		"ADDONLINT_RATE_BURST", "ADDONLINT_RULES_FILE", "ADDONLINT_TRACE_STDOUT",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	want := Config{
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Workers:     DefaultWorkers,
		MaxFileSize: DefaultMaxFileSize,
		HTTPAddr:    DefaultHTTPAddr,
		RatePerSec:  DefaultRatePerSec,
		RateBurst:   DefaultRateBurst,
	}
	if cfg != want {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ADDONLINT_LOG_LEVEL", "DEBUG")
	t.Setenv("ADDONLINT_LOG_FORMAT", "json")
	t.Setenv("ADDONLINT_WORKERS", "8")
	t.Setenv("ADDONLINT_MAX_FILE_SIZE", "1024")
	t.Setenv("ADDONLINT_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("ADDONLINT_RATE_PER_SEC", "2.5")
	t.Setenv("ADDONLINT_RATE_BURST", "5")
	t.Setenv("ADDONLINT_RULES_FILE", "/etc/addonlint/rules.yaml")
	t.Setenv("ADDONLINT_TRACE_STDOUT", "true")

	cfg := Load()
	if cfg.LogLevel != "debug" || cfg.Level() != slog.LevelDebug {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" || cfg.Workers != 8 || cfg.MaxFileSize != 1024 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.RatePerSec != 2.5 || cfg.RateBurst != 5 {
		t.Errorf("unexpected http config %+v", cfg)
	}
	if cfg.RulesFile != "/etc/addonlint/rules.yaml" || !cfg.TraceStdout {
		t.Errorf("unexpected rules/trace config %+v", cfg)
	}
}

func TestLoad_InvalidFallsBack(t *testing.T) {
	t.Setenv("ADDONLINT_WORKERS", "many")
	t.Setenv("ADDONLINT_MAX_FILE_SIZE", "-1")
	t.Setenv("ADDONLINT_RATE_BURST", "0")
	t.Setenv("ADDONLINT_TRACE_STDOUT", "maybe")
	t.Setenv("ADDONLINT_RATE_PER_SEC", "fast")

	cfg := Load()
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.RateBurst != DefaultRateBurst {
		t.Errorf("RateBurst = %d", cfg.RateBurst)
	}
	if cfg.TraceStdout {
		t.Error("TraceStdout should default to false")
	}
	if cfg.RatePerSec != DefaultRatePerSec {
		t.Errorf("RatePerSec = %v", cfg.RatePerSec)
	}
}

func TestLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			if got := (Config{LogLevel: name}).Level(); got != want {
				t.Errorf("Level() = %v, want %v", got, want)
			}
		})
	}
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, Config{LogLevel: "warn", LogFormat: "json"})
	logger.Info("dropped")
	logger.Warn("kept", slog.Int("n", 1))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["n"] != float64(1) {
		t.Errorf("unexpected record %v", rec)
	}

	buf.Reset()
	NewLoggerTo(&buf, Config{LogFormat: "text"}).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
