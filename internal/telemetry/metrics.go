package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/IliaW/page-capture/config"
	"github.com/google/uuid"
)

var meter metric.Meter

type MetricsProvider struct {
	KafkaConsumerMetrics *KafkaConsumerMetrics
	KafkaProducerMetrics *KafkaProducerMetrics
	AppMetrics           *AppMetrics
	Close                func()
}

type KafkaConsumerMetrics struct {
	SuccessfullyReadMsgCnt func(count int64)
	FailedReadMsgCnt       func(count int64)
}

type KafkaProducerMetrics struct {
	SuccessfullySendMsgCnt func(count int64)
	FailedSendMsgCnt       func(count int64)
}

type AppMetrics struct {
	CapturedCnt     func(count int64)
	SkippedCnt      func(count int64)
	FailedCnt       func(count int64)
	InvalidInputCnt func(count int64)
	CaptureTimeMs   func(ms int64)
}

// NoopMetrics returns counters that record nothing.
func NoopMetrics() *MetricsProvider {
	noop := func(int64) {}
	return &MetricsProvider{
		KafkaConsumerMetrics: &KafkaConsumerMetrics{SuccessfullyReadMsgCnt: noop, FailedReadMsgCnt: noop},
		KafkaProducerMetrics: &KafkaProducerMetrics{SuccessfullySendMsgCnt: noop, FailedSendMsgCnt: noop},
		AppMetrics: &AppMetrics{
			CapturedCnt:     noop,
			SkippedCnt:      noop,
			FailedCnt:       noop,
			InvalidInputCnt: noop,
			CaptureTimeMs:   noop,
		},
		Close: func() {},
	}
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	if !cfg.TelemetrySettings.Enabled {
		slog.Info("telemetry disabled.")
		return NoopMetrics()
	}

	r, err := newResource(cfg)
	if err != nil {
		slog.Error("failed to get resource.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
	if err != nil {
		slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	meterProvider := newMeterProvider(exporter, *r)
	otel.SetMeterProvider(meterProvider)
	meter = otel.Meter(cfg.ServiceName)

	metricsProvider := new(MetricsProvider)
	metricsProvider.Close = func() {
		err := meterProvider.Shutdown(ctx)
		if err != nil {
			slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
		}
	}

	var errs []error
	counter := func(name, description string) func(count int64) {
		c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{messages}"))
		if err != nil {
			errs = append(errs, err)
			return func(int64) {}
		}
		return func(count int64) {
			c.Add(ctx, count)
		}
	}

	// Set up kafka consumer metrics
	metricsProvider.KafkaConsumerMetrics = &KafkaConsumerMetrics{
		SuccessfullyReadMsgCnt: counter("page-capture.kafka.read.success",
			"The number of capture tasks that the kafka consumer successfully read"),
		FailedReadMsgCnt: counter("page-capture.kafka.read.fail",
			"The number of capture tasks that the kafka consumer could not read"),
	}

	// Set up kafka producer metrics
	metricsProvider.KafkaProducerMetrics = &KafkaProducerMetrics{
		SuccessfullySendMsgCnt: counter("page-capture.kafka.send.success",
			"The number of capture events that the kafka producer successfully sent"),
		FailedSendMsgCnt: counter("page-capture.kafka.send.fail",
			"The number of capture events that the kafka producer could not send"),
	}

	// Set up capture metrics
	captureTime, err := meter.Int64Histogram("page-capture.capture.duration",
		metric.WithDescription("Time spent in the browser per capture"),
		metric.WithUnit("ms"))
	if err != nil {
		errs = append(errs, err)
	}
	metricsProvider.AppMetrics = &AppMetrics{
		CapturedCnt: counter("page-capture.captures.success",
			"The number of artifacts captured and stored on S3"),
		SkippedCnt: counter("page-capture.captures.skipped",
			"The number of requests answered with an already stored artifact"),
		FailedCnt: counter("page-capture.captures.fail",
			"The number of captures that failed in the browser or in storage"),
		InvalidInputCnt: counter("page-capture.captures.invalid",
			"The number of requests rejected because of an invalid url"),
		CaptureTimeMs: func(ms int64) {
			if captureTime != nil {
				captureTime.Record(ctx, ms)
			}
		},
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("failed to create telemetry instruments.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return metricsProvider
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResourceDetector := ecs.NewResourceDetector()
	ecsResource, err := ecsResourceDetector.Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	keyValue, found := ecsResource.Set().Value("container.id")
	var serviceId string
	if found {
		serviceId = keyValue.AsString()
	} else {
		serviceId = uuid.New().String()
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
			semconv.ServiceVersion(cfg.Version),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, resource resource.Resource) *sdkmetric.MeterProvider {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(&resource),
	)
	return meterProvider
}
