// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package metrics exports the voice bridge's session and turn-pipeline
// counters via OpenTelemetry's metrics API with a Prometheus exporter,
// wiring in the otel/prometheus stack the way the sibling example
// services in this corpus do.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Counters holds every counter the voice bridge increments.
type Counters struct {
	SessionsCreated  metric.Int64Counter
	SessionsClosed   metric.Int64Counter
	TurnsProcessed   metric.Int64Counter
	TurnsDropped     metric.Int64Counter
	FallbackSTT      metric.Int64Counter
	FallbackLLM      metric.Int64Counter
	FallbackTTS      metric.Int64Counter
}

// Provider owns the metric.MeterProvider and its Prometheus registry.
type Provider struct {
	*sdkmetric.MeterProvider
	Counters Counters
}

// NewProvider builds a Prometheus-backed MeterProvider and the named
// counters this module increments.
func NewProvider() (*Provider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: new prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := mp.Meter("github.com/fridayvoice/bridge")

	counters, err := newCounters(meter)
	if err != nil {
		return nil, err
	}

	return &Provider{MeterProvider: mp, Counters: counters}, nil
}

func newCounters(meter metric.Meter) (Counters, error) {
	var c Counters
	var err error

	if c.SessionsCreated, err = meter.Int64Counter("voice_bridge_sessions_created_total"); err != nil {
		return c, err
	}
	if c.SessionsClosed, err = meter.Int64Counter("voice_bridge_sessions_closed_total"); err != nil {
		return c, err
	}
	if c.TurnsProcessed, err = meter.Int64Counter("voice_bridge_turns_processed_total"); err != nil {
		return c, err
	}
	if c.TurnsDropped, err = meter.Int64Counter("voice_bridge_turns_dropped_total"); err != nil {
		return c, err
	}
	if c.FallbackSTT, err = meter.Int64Counter("voice_bridge_stt_fallback_total"); err != nil {
		return c, err
	}
	if c.FallbackLLM, err = meter.Int64Counter("voice_bridge_llm_fallback_total"); err != nil {
		return c, err
	}
	if c.FallbackTTS, err = meter.Int64Counter("voice_bridge_tts_fallback_total"); err != nil {
		return c, err
	}
	return c, nil
}

// Shutdown flushes and stops the underlying MeterProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.MeterProvider.Shutdown(ctx)
}
