package mclens

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("mclens.project")
	meter  = otel.Meter("mclens.project")
)

var (
	analysisTotal    metric.Int64Counter
	analysisDuration metric.Float64Histogram
	batchSize        metric.Int64Histogram
	queryDuration    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisTotal, err = meter.Int64Counter(
			"mclens_analysis_total",
			metric.WithDescription("Analysis jobs by mode and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisDuration, err = meter.Float64Histogram(
			"mclens_analysis_duration_seconds",
			metric.WithDescription("Duration of analysis jobs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchSize, err = meter.Int64Histogram(
			"mclens_batch_size",
			metric.WithDescription("Changes per analysis job"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryDuration, err = meter.Float64Histogram(
			"mclens_query_duration_seconds",
			metric.WithDescription("Duration of symbol queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordAnalysis(ctx context.Context, mode, outcome string, d time.Duration, changes int) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
	analysisDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("mode", mode)))
	batchSize.Record(ctx, int64(changes))
}

func recordQuery(ctx context.Context, query string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	queryDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("query", query)))
}

func startJobSpan(ctx context.Context, runID, mode string, changes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Project.analyze",
		trace.WithAttributes(
			attribute.String("mclens.run_id", runID),
			attribute.String("mclens.mode", mode),
			attribute.Int("mclens.changes", changes),
		),
	)
}
