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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/addonlint/services/lint/catalog"
	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/report"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cat, err := catalog.Default(context.Background())
	require.NoError(t, err)
	return NewService(scanner.New(cat), nil)
}

func setupTestRouter(t *testing.T, opts RouterOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandlers(newTestService(t)), opts)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) report.Result {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var r report.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestHandleScan_Findings(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	w := doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{
		Files: []ScanFileInput{
			{Name: "content/main.js", Content: "var x = 'network.http.';"},
			{Name: "icon.png", Content: "\x89PNG"},
		},
	})
	r := decodeResult(t, w)

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, 1, r.Files)
	assert.Equal(t, 1, r.Summary.Warnings)
	assert.True(t, r.Failed)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, "icon.png", r.Skipped[0].Name)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "content/main.js", r.Findings[0].Location.File)
	assert.Equal(t, 1, r.SigningSummary[findings.SigningLow])
}

func TestHandleScan_FailOnWarnings(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})
	files := []ScanFileInput{{Name: "a.js", Content: "var x = 'network.http.';"}}
	on, off := true, false

	w := doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{Files: files})
	assert.True(t, decodeResult(t, w).Failed)

	w = doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{Files: files, FailOnWarnings: &on})
	assert.True(t, decodeResult(t, w).Failed)

	w = doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{Files: files, FailOnWarnings: &off})
	assert.False(t, decodeResult(t, w).Failed)
}

func TestHandleScan_Bootstrapped(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})
	src := `nsIObserverService.addObserver(obs, "newtab-url-changed", false);`

	plain := decodeResult(t, doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{
		Files: []ScanFileInput{{Name: "bootstrap.js", Content: src}},
	}))
	boot := decodeResult(t, doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{
		Files:        []ScanFileInput{{Name: "bootstrap.js", Content: src}},
		Bootstrapped: true,
	}))
	assert.Len(t, plain.Findings, 1)
	assert.Len(t, boot.Findings, 2)
}

func TestHandleScan_SupportedApps(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})
	src := "db.nsIPK11TokenDB.listTokens();"

	all := decodeResult(t, doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{
		Files: []ScanFileInput{{Name: "a.js", Content: src}},
	}))
	assert.Equal(t, 1, all.CompatSummary[findings.CompatError])

	old := decodeResult(t, doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{
		Files:         []ScanFileInput{{Name: "a.js", Content: src}},
		SupportedApps: compat.SupportedApps{"firefox": {Min: "38.0", Max: "46.*"}},
	}))
	assert.Equal(t, 0, old.CompatSummary[findings.CompatError])
	assert.Empty(t, old.Findings)
}

func TestHandleScan_BadRequests(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"files": [`, "INVALID_REQUEST"},
		{"no files", `{"files": []}`, "INVALID_REQUEST"},
		{"missing name", `{"files": [{"content": "x"}]}`, "INVALID_REQUEST"},
		{"unknown app", `{"files": [{"name": "a.js"}], "supported_apps": {"netscape": {"min": "1.0", "max": "2.0"}}}`, "INVALID_SUPPORTED_APPS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/lint/scan", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestService_ScanCanceled(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Scan(ctx, ScanRequest{Files: []ScanFileInput{{Name: "a.js"}}})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	_, err = svc.Scan(context.Background(), ScanRequest{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestHandleRules(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})
	svc := newTestService(t)

	w := doJSON(t, router, http.MethodGet, "/v1/lint/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all RulesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	total, _ := svc.Counts()
	assert.Equal(t, total, all.Count)
	assert.Equal(t, "regex/banned_pref", all.Rules[0].ID)

	w = doJSON(t, router, http.MethodGet, "/v1/lint/rules?kind=markup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var markup RulesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &markup))
	assert.Less(t, markup.Count, all.Count)
	var splitmenu *RuleInfo
	for i := range markup.Rules {
		assert.NotEqual(t, "script", markup.Rules[i].AppliesTo)
		if markup.Rules[i].ID == "regex/splitmenu" {
			splitmenu = &markup.Rules[i]
		}
	}
	require.NotNil(t, splitmenu)
	assert.Equal(t, "warning", splitmenu.CompatibilityType)
	assert.Contains(t, splitmenu.GateApps, compat.FirefoxGUID)

	w = doJSON(t, router, http.MethodGet, "/v1/lint/rules?kind=binary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEntities(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	w := doJSON(t, router, http.MethodGet, "/v1/lint/entities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp EntitiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Paths, "document.write")
	assert.Contains(t, resp.Paths, "nsIDOMWindowUtils.sendKeyEvent")

	w = doJSON(t, router, http.MethodGet, "/v1/lint/entities?q=PK11", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"nsIPK11TokenDB.listTokens"}, resp.Paths)
}

func TestHandleHealth(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})
	w := doJSON(t, router, http.MethodGet, "/v1/lint/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Greater(t, resp.Rules, 0)
	assert.Greater(t, resp.Entities, 0)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/lint/health", nil)
	req.Header.Set(RequestIDHeader, "5f0c8a2e-2b7d-4a59-9d0a-8f8f1d5f3b11")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "5f0c8a2e-2b7d-4a59-9d0a-8f8f1d5f3b11", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/v1/lint/health", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	got := w.Header().Get(RequestIDHeader)
	assert.NotEqual(t, "not a uuid", got)
	assert.Len(t, got, 36)
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{Limiter: rate.NewLimiter(rate.Limit(0.01), 1)})

	w := doJSON(t, router, http.MethodGet, "/v1/lint/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/lint/health", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)

	// Metrics are outside /v1 and never limited.
	w = doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "addonlint_http_rate_limited_total")
}

func TestNewRateLimiter(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0, 10))
	l := NewRateLimiter(5, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}

func TestMaxBodyBytes(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{MaxBodyBytes: 64})
	w := doJSON(t, router, http.MethodPost, "/v1/lint/scan", ScanRequest{
		Files: []ScanFileInput{{Name: "a.js", Content: strings.Repeat("x", 256)}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
