package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"docvault/internal/logging"
)

const defaultServiceName = "docvault"

// tracingEnv is the subset of the OTEL_* environment this package reads.
// Exporter endpoints and headers are left to the exporters themselves.
type tracingEnv struct {
	disabled   bool
	service    string
	protocol   string
	endpoint   string
	sampler    string
	samplerArg string
}

func readEnv() tracingEnv {
	env := tracingEnv{
		disabled:   os.Getenv("OTEL_SDK_DISABLED") == "true",
		service:    os.Getenv("OTEL_SERVICE_NAME"),
		protocol:   os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		endpoint:   os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
		sampler:    os.Getenv("OTEL_TRACES_SAMPLER"),
		samplerArg: os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
	}
	if env.service == "" {
		env.service = defaultServiceName
	}
	if env.protocol == "" {
		env.protocol = "grpc"
	}
	if env.endpoint == "" {
		env.endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return env
}

// Init installs the global tracer provider with an OTLP exporter. With
// OTEL_SDK_DISABLED=true, or when the exporter cannot be built, spans are
// dropped and only propagation is configured.
func Init(ctx context.Context, log *logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Discard()
	}
	noop := func(context.Context) error { return nil }

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	env := readEnv()
	if env.disabled {
		log.Info("tracing_configured", logging.Fields{"tracing_enabled": false})
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(env.service)),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, env.protocol)
	if err != nil {
		log.Error("tracing_init_failed", logging.Fields{"otlp_protocol": env.protocol, "error": err})
		return noop, nil
	}

	smp := sampler(env.sampler, env.samplerArg)
	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(smp),
		trace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing_configured", logging.Fields{
		"tracing_enabled": true,
		"service":         env.service,
		"otlp_protocol":   env.protocol,
		"otlp_endpoint":   env.endpoint,
		"sampler":         smp.Description(),
	})
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, protocol string) (trace.SpanExporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

// sampler maps the standard OTEL_TRACES_SAMPLER values. Unknown names, and
// ratios that do not parse, fall back to sampling every root span.
func sampler(name, arg string) trace.Sampler {
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		ratio = 1
	}

	samplers := map[string]trace.Sampler{
		"always_on":                trace.AlwaysSample(),
		"always_off":               trace.NeverSample(),
		"traceidratio":             trace.TraceIDRatioBased(ratio),
		"parentbased_always_off":   trace.ParentBased(trace.NeverSample()),
		"parentbased_traceidratio": trace.ParentBased(trace.TraceIDRatioBased(ratio)),
	}
	if s, ok := samplers[name]; ok {
		return s
	}
	return trace.ParentBased(trace.AlwaysSample())
}
