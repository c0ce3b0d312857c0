package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// JobInstrumenter wraps background jobs (reaper ticks, janitor runs) in a
// span and records their duration and outcome.
type JobInstrumenter struct {
	tracer      trace.Tracer
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

// NewJobInstrumenter creates an instrumenter from the global providers.
func NewJobInstrumenter(serviceName string) (*JobInstrumenter, error) {
	return NewJobInstrumenterWith(otel.Tracer(serviceName), otel.Meter(serviceName))
}

// NewJobInstrumenterWith creates an instrumenter from explicit providers.
func NewJobInstrumenterWith(tracer trace.Tracer, meter metric.Meter) (*JobInstrumenter, error) {
	jobDuration, err := meter.Float64Histogram(
		"listen_job_duration_seconds",
		metric.WithDescription("Background job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		"listen_jobs_total",
		metric.WithDescription("Total background jobs run"),
	)
	if err != nil {
		return nil, err
	}

	return &JobInstrumenter{
		tracer:      tracer,
		jobDuration: jobDuration,
		jobsTotal:   jobsTotal,
	}, nil
}

// Run executes fn under a span named after jobType.
func (j *JobInstrumenter) Run(ctx context.Context, jobType string, fn func(context.Context) error) error {
	ctx, span := j.tracer.Start(ctx, fmt.Sprintf("job.%s", jobType),
		trace.WithAttributes(attribute.String("job.type", jobType)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("job.type", jobType),
		attribute.String("status", status),
	)
	j.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	j.jobsTotal.Add(ctx, 1, attrs)
	return err
}
