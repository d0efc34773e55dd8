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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/addonlint/services/lint/findings"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestScanFile_Spans(t *testing.T) {
	exporter := setupTestTracer(t)
	s := newScanner(t)

	require.NoError(t, s.ScanFile(context.Background(), "main.js", []byte("var x = 'network.http.';"), findings.NewBundle()))

	byName := map[string]tracetest.SpanStub{}
	for _, span := range exporter.GetSpans() {
		byName[span.Name] = span
	}
	fileSpan, ok := byName["scanner.Scanner.ScanFile"]
	require.True(t, ok, "missing ScanFile span")
	textSpan, ok := byName["scanner.Scanner.ScanText"]
	require.True(t, ok, "missing ScanText span")
	assert.Equal(t, fileSpan.SpanContext.SpanID(), textSpan.Parent.SpanID())

	attrs := map[string]any{}
	for _, kv := range textSpan.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "main.js", attrs["file"])
	assert.Equal(t, "script", attrs["kind"])
	assert.Equal(t, int64(1), attrs["hits"])
}
