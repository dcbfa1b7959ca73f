package observability

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tbourn/recipe-chat-backend/internal/config"
)

// keepGlobals restores the OTel globals after the test.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabledCfg(name string) config.OTELConfig {
	return config.OTELConfig{Enabled: true, Insecure: true, Endpoint: "localhost:4317", ServiceName: name, SampleRatio: 1}
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false, Endpoint: "ignored:4317"}, "v0")
	if err != nil || shutdown == nil {
		t.Fatalf("disabled setup: shutdown=%v err=%v", shutdown != nil, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled setup replaced the tracer provider")
	}
}

func TestSetupOTel_InstallsProviderAndPropagators(t *testing.T) {
	cases := []struct {
		name     string
		insecure bool
		ratio    float64
	}{
		{"plaintext always", true, 1},
		{"tls ratio", false, 0.5},
		{"plaintext never", true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepGlobals(t)
			cfg := enabledCfg("recipe-chat")
			cfg.Insecure, cfg.SampleRatio = tc.insecure, tc.ratio

			shutdown, err := SetupOTel(context.Background(), cfg, "v1.2.3")
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			t.Cleanup(func() { _ = shutdown(context.Background()) })

			if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
				t.Fatalf("expected *sdktrace.TracerProvider, got %T", otel.GetTracerProvider())
			}
			fields := otel.GetTextMapPropagator().Fields()
			for _, f := range []string{"traceparent", "baggage"} {
				if !slices.Contains(fields, f) {
					t.Fatalf("propagator fields %v missing %q", fields, f)
				}
			}
			_, span := otel.Tracer("chat").Start(context.Background(), "turn")
			span.End()
		})
	}
}

func TestSetupOTel_CanceledContext(t *testing.T) {
	keepGlobals(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the gRPC client dials lazily
	shutdown, err := SetupOTel(ctx, enabledCfg("svc"), "v0")
	if err != nil {
		t.Fatalf("setup with canceled ctx: %v", err)
	}
	_ = shutdown(context.Background())
}

func TestSetupOTel_SeamFailuresKeepGlobals(t *testing.T) {
	origExp, origRes := newOTLPExporterFn, newServiceResourceFn
	t.Cleanup(func() { newOTLPExporterFn, newServiceResourceFn = origExp, origRes })

	cases := []struct {
		name  string
		patch func()
		want  string
	}{
		{"exporter", func() {
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("exporter down")
			}
		}, "exporter down"},
		{"resource", func() {
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		}, "bad resource"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepGlobals(t)
			newOTLPExporterFn, newServiceResourceFn = origExp, origRes
			tc.patch()
			tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()

			_, err := SetupOTel(context.Background(), enabledCfg("svc"), "v0")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
			if otel.GetTracerProvider() != tp || otel.GetTextMapPropagator() != prop {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSetupOTel_ShutdownWithoutSpans(t *testing.T) {
	keepGlobals(t)
	shutdown, err := SetupOTel(context.Background(), enabledCfg("svc"), "v1")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestServiceResource_Attributes(t *testing.T) {
	res, err := newServiceResourceFn(context.Background(), "recipe-chat", "v2.0.0")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	set := res.Set()
	if v, ok := set.Value(semconv.ServiceNameKey); !ok || v.AsString() != "recipe-chat" {
		t.Fatalf("service.name = %v", v)
	}
	if v, ok := set.Value(semconv.ServiceVersionKey); !ok || v.AsString() != "v2.0.0" {
		t.Fatalf("service.version = %v", v)
	}
}

func TestSampler_Bounds(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{2, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{-1, "ParentBased{root:AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tc := range cases {
		if got := sampler(tc.ratio).Description(); !strings.HasPrefix(got, tc.want) {
			t.Fatalf("sampler(%v) = %q; want prefix %q", tc.ratio, got, tc.want)
		}
	}
}

func TestExporterOptions_TransportSecurity(t *testing.T) {
	insecure := exporterOptions(config.OTELConfig{Endpoint: "otel:4317", Insecure: true})
	secure := exporterOptions(config.OTELConfig{Endpoint: "otel:4317", Insecure: false})
	// endpoint + compressor + timeout + one transport option
	if len(insecure) != 4 || len(secure) != 4 {
		t.Fatalf("unexpected option counts: insecure=%d secure=%d", len(insecure), len(secure))
	}
}
