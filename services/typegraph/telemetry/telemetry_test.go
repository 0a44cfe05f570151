// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "typegraph" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.TraceExporter != ExporterNone || cfg.MetricExporter != ExporterNone {
		t.Errorf("exporters = %q/%q, want none/none", cfg.TraceExporter, cfg.MetricExporter)
	}
}

func TestDefaultConfig_EnvOverride(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	cfg := DefaultConfig()

	if cfg.TraceExporter != "stdout" || cfg.OTLPEndpoint != "collector:4317" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if _, err := Init(nil, Config{}); !errors.Is(err, ErrNilContext) {
		t.Errorf("err = %v, want ErrNilContext", err)
	}
}

func TestInit_None(t *testing.T) {
	tel, err := Init(context.Background(), Config{TraceExporter: ExporterNone, MetricExporter: ExporterNone})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tel.MetricsHandler() != nil {
		t.Error("MetricsHandler should be nil without prometheus")
	}
	if err := tel.WriteMetricsFile(filepath.Join(t.TempDir(), "m.prom")); !errors.Is(err, ErrNoMetricRegistry) {
		t.Errorf("WriteMetricsFile err = %v", err)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	if _, err := Init(context.Background(), Config{TraceExporter: "zipkin"}); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("trace err = %v", err)
	}
	if _, err := Init(context.Background(), Config{MetricExporter: "statsd"}); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("metric err = %v", err)
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	tel, err := Init(context.Background(), Config{
		ServiceName:   "typegraph-test",
		TraceExporter: ExporterStdout,
		Output:        &buf,
		SyncExport:    true,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "stdout-span")
	span.End()

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "stdout-span") {
		t.Errorf("span not exported: %s", buf.String())
	}
}

func TestInit_PrometheusMetrics(t *testing.T) {
	tel, err := Init(context.Background(), Config{MetricExporter: ExporterPrometheus})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer tel.Shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("typegraph_test_runs")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(tel.MetricsHandler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "typegraph_test_runs") {
		t.Errorf("metric missing from scrape:\n%s", body)
	}

	path := filepath.Join(t.TempDir(), "typegraph.prom")
	if err := tel.WriteMetricsFile(path); err != nil {
		t.Fatalf("WriteMetricsFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "typegraph_test_runs") {
		t.Errorf("textfile missing metric:\n%s", data)
	}
	if tel.Registry() == nil {
		t.Error("Registry should be set")
	}
}
