package internaltelemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// LedgerMetrics holds the metric instruments for one transaction ledger.
type LedgerMetrics struct {
	BeginCounter      metric.Int64Counter
	TransitionCounter metric.Int64Counter
	SyncLatency       metric.Float64Histogram
	FatalCounter      metric.Int64Counter
}

// NewLedgerMetrics creates and registers all ledger instruments on meter.
// A nil meter yields no-op instruments.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}

	beginCounter, err := meter.Int64Counter(
		"xidledger.begin_total",
		metric.WithDescription("Total number of transaction ids allocated."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	transitionCounter, err := meter.Int64Counter(
		"xidledger.transition_total",
		metric.WithDescription("Total number of commit and abort status writes."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	syncLatency, err := meter.Float64Histogram(
		"xidledger.sync.duration",
		metric.WithDescription("Latency of forcing ledger writes to stable storage."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	fatalCounter, err := meter.Int64Counter(
		"xidledger.fatal_total",
		metric.WithDescription("Unrecoverable ledger errors."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &LedgerMetrics{
		BeginCounter:      beginCounter,
		TransitionCounter: transitionCounter,
		SyncLatency:       syncLatency,
		FatalCounter:      fatalCounter,
	}, nil
}

// RecordBegin counts one allocation.
func (m *LedgerMetrics) RecordBegin() {
	m.BeginCounter.Add(context.Background(), 1)
}

// RecordTransition counts one commit or abort, labelled with the new state.
func (m *LedgerMetrics) RecordTransition(state string) {
	m.TransitionCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordSync records how long a sync took.
func (m *LedgerMetrics) RecordSync(d time.Duration) {
	m.SyncLatency.Record(context.Background(), float64(d.Microseconds())/1000)
}

// RecordFatal counts one fatal error raised by op.
func (m *LedgerMetrics) RecordFatal(op string) {
	m.FatalCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}
