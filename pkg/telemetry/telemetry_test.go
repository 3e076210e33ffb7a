// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/config"
)

func restoreProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInitDisabled(t *testing.T) {
	restoreProvider(t)
	ctx := context.Background()

	tp, shutdown, err := Init(ctx, config.Tracing{Enabled: false}, "test", nil)
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, tp)
	assert.NoError(t, shutdown(ctx))
}

func TestInitExporters(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Tracing
	}{
		{name: "none", cfg: config.Tracing{Enabled: true, Exporter: "none", SamplingRate: 1}},
		{name: "stdout", cfg: config.Tracing{Enabled: true, Exporter: "stdout", SamplingRate: 0.5}},
		// the OTLP exporter connects lazily, so an unreachable endpoint is fine
		{name: "otlp", cfg: config.Tracing{Enabled: true, Exporter: "otlp", Endpoint: "localhost:0", Insecure: true}},
		{name: "sampling rate clamped", cfg: config.Tracing{Enabled: true, Exporter: "none", SamplingRate: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreProvider(t)
			ctx := context.Background()

			tp, shutdown, err := Init(ctx, tt.cfg, "test", zap.NewNop().Sugar())
			require.NoError(t, err)
			t.Cleanup(func() { _ = shutdown(ctx) })

			assert.IsType(t, &sdktrace.TracerProvider{}, tp)
			assert.Same(t, tp, otel.GetTracerProvider())
		})
	}
}

func TestInitUnknownExporter(t *testing.T) {
	_, _, err := Init(context.Background(), config.Tracing{Enabled: true, Exporter: "zipkin"}, "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tracing exporter "zipkin"`)
}

func TestShutdownTwice(t *testing.T) {
	restoreProvider(t)
	ctx := context.Background()

	_, shutdown, err := Init(ctx, config.Tracing{Enabled: true, Exporter: "none"}, "test", nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
	_ = shutdown(ctx)
}
