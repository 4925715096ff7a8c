package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("COVERAGE_TRACING_ENABLED", "TRUE")
	t.Setenv("COVERAGE_TRACING_EXPORTER", "OTLP")
	t.Setenv("COVERAGE_TRACING_SERVICE_NAME", "coverage-test")
	t.Setenv("COVERAGE_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("COVERAGE_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("COVERAGE_OTLP_INSECURE", "false")
	t.Setenv("COVERAGE_TRACING_ATTRIBUTES", "site=seattle, region = us-west ,=orphan,novalue")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "coverage-test" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Insecure {
		t.Fatal("COVERAGE_OTLP_INSECURE=false should select TLS")
	}
	if len(cfg.Attributes) != 2 || cfg.Attributes["site"] != "seattle" || cfg.Attributes["region"] != "us-west" {
		t.Fatalf("attributes = %v", cfg.Attributes)
	}
}

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("COVERAGE_TRACING_ENABLED", "")
	t.Setenv("COVERAGE_TRACING_EXPORTER", "")
	t.Setenv("COVERAGE_TRACING_SERVICE_NAME", "")
	t.Setenv("COVERAGE_TRACING_SAMPLE_RATIO", "7")
	t.Setenv("COVERAGE_OTLP_INSECURE", "maybe")
	t.Setenv("COVERAGE_TRACING_ATTRIBUTES", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled || cfg.Exporter != "stdout" || cfg.ServiceName != "coverage-engine" || cfg.SampleRatio != 1 || !cfg.Insecure {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Attributes) != 0 {
		t.Fatalf("attributes = %v", cfg.Attributes)
	}
}

func TestResourceAttributesOrder(t *testing.T) {
	attrs := resourceAttributes(TracingConfig{
		ServiceName:    "svc",
		ServiceVersion: "1.2.3",
		Attributes:     map[string]string{"z": "last", "a": "first"},
	})
	var keys []string
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}
	want := "service.name,service.namespace,service.version,a,z"
	if got := strings.Join(keys, ","); got != want {
		t.Fatalf("keys = %s, want %s", got, want)
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "coverage-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Output:      &buf,
		Attributes:  map[string]string{"observer.name": "test-site"},
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "coverage.test-span")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), "coverage.test-span") {
		t.Fatalf("span not exported: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "test-site") {
		t.Fatalf("resource attribute missing: %s", buf.String())
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
