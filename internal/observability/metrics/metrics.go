package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	fetchRequests  metric.Int64Counter
	storesSaved    metric.Int64Counter
	scrapeErrors   metric.Int64Counter
	domainsSkipped metric.Int64Counter
	runTransitions metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "nectar"
	}
	meter := provider.Meter(name)

	fetchRequests, err := meter.Int64Counter("nectar_fetch_requests_total")
	if err != nil {
		return nil, err
	}
	storesSaved, err := meter.Int64Counter("nectar_stores_saved_total")
	if err != nil {
		return nil, err
	}
	scrapeErrors, err := meter.Int64Counter("nectar_scrape_errors_total")
	if err != nil {
		return nil, err
	}
	domainsSkipped, err := meter.Int64Counter("nectar_domains_skipped_total")
	if err != nil {
		return nil, err
	}
	runTransitions, err := meter.Int64Counter("nectar_run_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fetchRequests:  fetchRequests,
		storesSaved:    storesSaved,
		scrapeErrors:   scrapeErrors,
		domainsSkipped: domainsSkipped,
		runTransitions: runTransitions,
	}, nil
}

// RecordFetch increments fetch request counts per operation and outcome.
func (m *Metrics) RecordFetch(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.fetchRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStoreSaved increments saved store counts.
func (m *Metrics) RecordStoreSaved(ctx context.Context) {
	if m == nil {
		return
	}
	m.storesSaved.Add(ctx, 1)
}

// RecordScrapeError increments scrape error counts per error kind.
func (m *Metrics) RecordScrapeError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.scrapeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDomainSkipped increments skipped domain counts.
func (m *Metrics) RecordDomainSkipped(ctx context.Context) {
	if m == nil {
		return
	}
	m.domainsSkipped.Add(ctx, 1)
}

// RecordRunTransition increments run state transition counts.
func (m *Metrics) RecordRunTransition(ctx context.Context, state string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("state", strings.TrimSpace(state)))
	m.runTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"operation":   {},
	"outcome":     {},
	"kind":        {},
	"state":       {},
	"route":       {},
	"method":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
