package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sketchforge"

// Metrics holds all sketchforge metric instruments.
type Metrics struct {
	TranspilesStarted   metric.Int64Counter
	TranspilesCompleted metric.Int64Counter
	TranspilesFailed    metric.Int64Counter
	TranspilesCoalesced metric.Int64Counter
	TranspileDuration   metric.Float64Histogram
	FilesResynced       metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates all metric instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TranspilesStarted, err = meter.Int64Counter("sketchforge.transpiles.started",
		metric.WithDescription("Number of transpile attempts sent to the assistant"))
	if err != nil {
		return nil, err
	}

	m.TranspilesCompleted, err = meter.Int64Counter("sketchforge.transpiles.completed",
		metric.WithDescription("Number of transpile attempts that wrote output"))
	if err != nil {
		return nil, err
	}

	m.TranspilesFailed, err = meter.Int64Counter("sketchforge.transpiles.failed",
		metric.WithDescription("Number of transpile attempts that failed or found the workspace not ready"))
	if err != nil {
		return nil, err
	}

	m.TranspilesCoalesced, err = meter.Int64Counter("sketchforge.transpiles.coalesced",
		metric.WithDescription("Number of saves rejected because a transpile was in flight"))
	if err != nil {
		return nil, err
	}

	m.TranspileDuration, err = meter.Float64Histogram("sketchforge.transpile.duration_seconds",
		metric.WithDescription("Transpile attempt duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.FilesResynced, err = meter.Int64Counter("sketchforge.resync.files",
		metric.WithDescription("Number of local files replaced in a vector store"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordAttempt records the end of one transpile attempt. Safe on a nil receiver.
func (m *Metrics) RecordAttempt(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if outcome == "written" {
		m.TranspilesCompleted.Add(ctx, 1, attrs)
	} else {
		m.TranspilesFailed.Add(ctx, 1, attrs)
	}
	m.TranspileDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStart counts a transpile attempt sent to the assistant. Safe on a nil receiver.
func (m *Metrics) RecordStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.TranspilesStarted.Add(ctx, 1)
}

// RecordCoalesced counts a save rejected while in flight. Safe on a nil receiver.
func (m *Metrics) RecordCoalesced(ctx context.Context) {
	if m == nil {
		return
	}
	m.TranspilesCoalesced.Add(ctx, 1)
}

// RecordResync counts files replaced by a resync. Safe on a nil receiver.
func (m *Metrics) RecordResync(ctx context.Context, files int) {
	if m == nil {
		return
	}
	m.FilesResynced.Add(ctx, int64(files))
}
