package stats

// OTel metric instruments and the Prometheus exporter bridge, grounded
// on _examples/MrWong99-glyphoxa/internal/observe/metrics.go and
// provider.go's instrument-creation and MeterProvider-wiring pattern
// (tracing is dropped here: this module has no request/response spans
// worth tracing, only per-utterance gauges and counters).

import (
	"context"

	"github.com/kho/lvrec/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/kho/lvrec/stats"

// Instruments holds the OTel metric instruments the decoder publishes
// through. All fields are safe for concurrent use.
type Instruments struct {
	avgTokensPerSet   metric.Float64ObservableGauge
	avgActivePerFrame metric.Float64ObservableGauge
	activations       metric.Int64Counter
	deactivations     metric.Int64Counter
	lmlaCacheHits     metric.Int64Counter
	lmlaCacheMisses   metric.Int64Counter
	pruneStarvations  metric.Int64Counter
	decodeLatency     metric.Float64Histogram
}

// NewInstruments creates the metric instruments against mp. The two
// observable gauges read c's running Snapshot at collection time via a
// registered callback.
func NewInstruments(mp metric.MeterProvider, c *Collector) (*Instruments, error) {
	m := mp.Meter(meterName)
	var err error
	in := &Instruments{}

	if in.avgTokensPerSet, err = m.Float64ObservableGauge("lvrec.decode.avg_tokens_per_set",
		metric.WithDescription("Average surviving RelTokens per TokenSet."),
	); err != nil {
		return nil, err
	}
	if in.avgActivePerFrame, err = m.Float64ObservableGauge("lvrec.decode.avg_active_per_frame",
		metric.WithDescription("Average active LexNode instances per frame, averaged over utterances so far."),
	); err != nil {
		return nil, err
	}
	if in.activations, err = m.Int64Counter("lvrec.decode.activations",
		metric.WithDescription("Total LexNode instance activations."),
	); err != nil {
		return nil, err
	}
	if in.deactivations, err = m.Int64Counter("lvrec.decode.deactivations",
		metric.WithDescription("Total LexNode instance deactivations."),
	); err != nil {
		return nil, err
	}
	if in.lmlaCacheHits, err = m.Int64Counter("lvrec.lmla.cache_hits",
		metric.WithDescription("LM look-ahead cache hits."),
	); err != nil {
		return nil, err
	}
	if in.lmlaCacheMisses, err = m.Int64Counter("lvrec.lmla.cache_misses",
		metric.WithDescription("LM look-ahead cache misses."),
	); err != nil {
		return nil, err
	}
	if in.pruneStarvations, err = m.Int64Counter("lvrec.decode.prune_starvations",
		metric.WithDescription("Utterances where all tokens were pruned before the end (RuntimePruneStarvation)."),
	); err != nil {
		return nil, err
	}
	if in.decodeLatency, err = m.Float64Histogram("lvrec.decode.latency",
		metric.WithDescription("Per-utterance decode wall-clock time."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		snap := c.Snapshot(nil)
		o.ObserveFloat64(in.avgTokensPerSet, snap.AvgTokensPerSet)
		o.ObserveFloat64(in.avgActivePerFrame, snap.AvgActivePerFrame)
		return nil
	}, in.avgTokensPerSet, in.avgActivePerFrame)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Publish reports one utterance's delta search.Stats, LM look-ahead
// cache counters, and decode wall-clock time (seconds) to in.
func (in *Instruments) Publish(ctx context.Context, delta search.Stats, lmlaHits, lmlaMisses int64, latencySeconds float64, starved bool) {
	in.activations.Add(ctx, delta.NumActivations)
	in.deactivations.Add(ctx, delta.NumDeactivations)
	in.lmlaCacheHits.Add(ctx, lmlaHits)
	in.lmlaCacheMisses.Add(ctx, lmlaMisses)
	in.decodeLatency.Record(ctx, latencySeconds)
	if starved {
		in.pruneStarvations.Add(ctx, 1)
	}
}

// InitMeterProvider creates a Prometheus-backed global MeterProvider,
// the metrics half of observe.InitProvider, returning a shutdown
// function to flush and close it.
func InitMeterProvider(serviceName string) (shutdown func(context.Context) error, err error) {
	if serviceName == "" {
		serviceName = "lvrec"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}
	exp, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
