package observability

import (
	"context"
	"reflect"
	"testing"
)

func TestOtelConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-token=abc, broken ,=nokey,empty=")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.5")

	cfg := OtelConfigFromEnv("mlcompare-console", "production", "v1")
	if !cfg.Enabled || cfg.ServiceName != "mlcompare-console" || cfg.Endpoint != "collector:4318" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Headers, map[string]string{"x-token": "abc"}) {
		t.Fatalf("headers=%v", cfg.Headers)
	}
	if cfg.SampleRatio != 0.5 {
		t.Fatalf("ratio=%v", cfg.SampleRatio)
	}

	t.Setenv("OTEL_SAMPLER_RATIO", "most")
	if got := OtelConfigFromEnv("x", "", "").SampleRatio; got != defaultSampleRatio {
		t.Fatalf("ratio=%v", got)
	}
}

func TestInitOTelDisabledIsNoop(t *testing.T) {
	shutdown := InitOTel(context.Background(), nil, OtelConfig{})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
