package observability

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"arcade/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the engine. A nil
// provider is valid and records nothing, so callers never branch on
// metrics being enabled.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	commandsHandledCounter  metric.Int64Counter
	commandFailuresCounter  metric.Int64Counter
	sessionsStartedCounter  metric.Int64Counter
	sessionsFinishedCounter metric.Int64Counter
	actionsFiredCounter     metric.Int64Counter
	sweepDurationHist       metric.Float64Histogram
	eventsPublishedCounter  metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Println("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Println("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	// Create resource with service information
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	// Create appropriate exporter based on config
	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Println("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Using OTLP metric exporter: %s", mp.config.OTelOTLPEndpoint)

	case "none":
		log.Println("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	// Create meter provider with periodic reader
	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)

	// Set as global meter provider
	otel.SetMeterProvider(mp.meterProvider)

	// Get meter for creating instruments
	mp.meter = mp.meterProvider.Meter("arcade")

	// Create metric instruments
	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Println("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.commandsHandledCounter, err = mp.meter.Int64Counter(
		CommandsHandledTotal,
		metric.WithDescription("Total number of commands handled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create commands handled counter: %w", err)
	}

	mp.commandFailuresCounter, err = mp.meter.Int64Counter(
		CommandFailuresTotal,
		metric.WithDescription("Total number of commands that failed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create command failures counter: %w", err)
	}

	mp.sessionsStartedCounter, err = mp.meter.Int64Counter(
		SessionsStartedTotal,
		metric.WithDescription("Total number of game sessions started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions started counter: %w", err)
	}

	mp.sessionsFinishedCounter, err = mp.meter.Int64Counter(
		SessionsFinishedTotal,
		metric.WithDescription("Total number of game sessions finished"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions finished counter: %w", err)
	}

	mp.actionsFiredCounter, err = mp.meter.Int64Counter(
		ActionsFiredTotal,
		metric.WithDescription("Total number of scheduled actions fired"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create actions fired counter: %w", err)
	}

	mp.sweepDurationHist, err = mp.meter.Float64Histogram(
		SweepDuration,
		metric.WithDescription("Duration of scheduler sweeps in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep duration histogram: %w", err)
	}

	mp.eventsPublishedCounter, err = mp.meter.Int64Counter(
		EventsPublishedTotal,
		metric.WithDescription("Total number of events published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create events published counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordCommandHandled records one handled command
func (mp *MetricsProvider) RecordCommandHandled(command string) {
	if !mp.isEnabled() {
		return
	}

	mp.commandsHandledCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelCommand, command),
		),
	)
}

// RecordCommandFailure records a command that returned an error
func (mp *MetricsProvider) RecordCommandFailure(command, errorKind string) {
	if !mp.isEnabled() {
		return
	}

	mp.commandFailuresCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelCommand, command),
			attribute.String(LabelErrorKind, errorKind),
		),
	)
}

// RecordSessionStarted records a game session being created
func (mp *MetricsProvider) RecordSessionStarted(variant string) {
	if !mp.isEnabled() {
		return
	}

	mp.sessionsStartedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelVariant, variant),
		),
	)
}

// RecordSessionFinished records a game session reaching a terminal state
func (mp *MetricsProvider) RecordSessionFinished(variant string) {
	if !mp.isEnabled() {
		return
	}

	mp.sessionsFinishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelVariant, variant),
		),
	)
}

// RecordActionFired records one scheduled action being fired
func (mp *MetricsProvider) RecordActionFired(action string) {
	if !mp.isEnabled() {
		return
	}

	mp.actionsFiredCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelAction, action),
		),
	)
}

// RecordSweep records the duration of one scheduler sweep
func (mp *MetricsProvider) RecordSweep(duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	mp.sweepDurationHist.Record(context.Background(), duration.Seconds())
}

// RecordEventPublished records an event going out on the bus
func (mp *MetricsProvider) RecordEventPublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.eventsPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled && mp.meterProvider != nil
}
