// Package metrics exports pipeline counters to an OTEL collector.
package metrics

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/runnerr0/focuslens/internal/domain"
)

const serviceName = "focuslens"

// Reporter receives pipeline events worth counting.
type Reporter interface {
	VisitRecorded(ctx context.Context, v domain.SiteVisit)
	VisitRejected(ctx context.Context, reason string)
	InterventionTriggered(ctx context.Context, iv domain.Intervention)
	OutcomeRecorded(ctx context.Context, iv domain.Intervention)
	Evaluation(ctx context.Context, result string)
	Close(ctx context.Context) error
}

// Exporter exports focuslens metrics to an OTEL Collector.
type Exporter struct {
	provider      *sdkmetric.MeterProvider
	visitsTotal   metric.Int64Counter
	visitTime     metric.Int64Counter
	rejectedTotal metric.Int64Counter
	triggered     metric.Int64Counter
	outcomes      metric.Int64Counter
	evaluations   metric.Int64Counter
}

// New returns an OTLP exporter when cfg enables one, and a no-op otherwise.
// Exporter setup failures degrade to the no-op and are logged.
func New(ctx context.Context, cfg Config, version string, logger hclog.Logger) Reporter {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return NewNoOp()
	}
	exp, err := NewExporter(ctx, cfg, version)
	if err != nil {
		logger.Warn("otel exporter unavailable, metrics disabled", "endpoint", cfg.Endpoint, "error", err)
		return NewNoOp()
	}
	logger.Info("exporting metrics", "endpoint", cfg.Endpoint)
	return exp
}

// NewExporter creates an OTLP/gRPC metrics exporter.
func NewExporter(ctx context.Context, cfg Config, version string) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)
	e := &Exporter{provider: provider}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&e.visitsTotal, "focuslens_visits_total", "Visits recorded", "{visit}"},
		{&e.visitTime, "focuslens_visit_time_ms_total", "Attention time recorded", "ms"},
		{&e.rejectedTotal, "focuslens_visits_rejected_total", "Visits dropped before persistence", "{visit}"},
		{&e.triggered, "focuslens_interventions_triggered_total", "Interventions delivered to the sink", "{intervention}"},
		{&e.outcomes, "focuslens_intervention_outcomes_total", "Intervention outcomes applied", "{outcome}"},
		{&e.evaluations, "focuslens_evaluations_total", "Evaluation ticks by result", "{evaluation}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}
	return e, nil
}

func (e *Exporter) VisitRecorded(ctx context.Context, v domain.SiteVisit) {
	opt := metric.WithAttributes(
		attribute.String("category", string(v.Category)),
		attribute.String("subcategory", string(v.Subcategory)),
	)
	e.visitsTotal.Add(ctx, 1, opt)
	e.visitTime.Add(ctx, v.DurationMs, opt)
}

func (e *Exporter) VisitRejected(ctx context.Context, reason string) {
	e.rejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (e *Exporter) InterventionTriggered(ctx context.Context, iv domain.Intervention) {
	e.triggered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(iv.Type)),
		attribute.String("priority", string(iv.Priority)),
	))
}

func (e *Exporter) OutcomeRecorded(ctx context.Context, iv domain.Intervention) {
	e.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(iv.Type)),
		attribute.String("outcome", string(iv.Outcome)),
	))
}

func (e *Exporter) Evaluation(ctx context.Context, result string) {
	e.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
