package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/genai-studio/internal/config"
)

func keepOTelGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func otelCfg(name string, insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_LeavesGlobals(t *testing.T) {
	keepOTelGlobals(t)
	before := otel.GetTracerProvider()

	cfg := otelCfg("studio", true)
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v0.0.0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("tracer provider replaced while disabled")
	}
}

func TestSetupOTel_InstallsProvider(t *testing.T) {
	cases := []struct {
		name     string
		insecure bool
	}{
		{"insecure", true},
		{"tls", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepOTelGlobals(t)

			shutdown, err := SetupOTel(context.Background(), otelCfg("studio-"+tc.name, tc.insecure), "v1.2.3")
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			t.Cleanup(func() { _ = shutdown(context.Background()) })

			if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
				t.Fatalf("expected *sdktrace.TracerProvider, got %T", otel.GetTracerProvider())
			}

			// W3C trace context must round-trip through the global propagator.
			ctx, span := otel.Tracer("test").Start(context.Background(), "span")
			defer span.End()
			carrier := propagation.MapCarrier{}
			otel.GetTextMapPropagator().Inject(ctx, carrier)
			if carrier.Get("traceparent") == "" {
				t.Fatalf("traceparent not injected: %v", carrier)
			}
		})
	}
}

func TestSetupOTel_CanceledContext_StillSucceeds(t *testing.T) {
	keepOTelGlobals(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	shutdown, err := SetupOTel(ctx, otelCfg("studio-canceled", true), "v0")
	if err != nil {
		t.Fatalf("unexpected err with canceled ctx: %v", err)
	}
	sctx, scancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer scancel()
	if err := shutdown(sctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestSetupOTel_SeamErrors_KeepGlobals(t *testing.T) {
	cases := []struct {
		name    string
		install func() func()
		want    string
	}{
		{
			name: "exporter",
			install: func() func() {
				orig := newExporter
				newExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
					return nil, errors.New("boom-exporter")
				}
				return func() { newExporter = orig }
			},
			want: "boom-exporter",
		},
		{
			name: "resource",
			install: func() func() {
				orig := newResource
				newResource = func(context.Context, string, string) (*resource.Resource, error) {
					return nil, errors.New("boom-resource")
				}
				return func() { newResource = orig }
			},
			want: "boom-resource",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepOTelGlobals(t)
			t.Cleanup(tc.install())

			prevTP := otel.GetTracerProvider()
			prevProp := otel.GetTextMapPropagator()

			_, err := SetupOTel(context.Background(), otelCfg("studio", true), "v0")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
			if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
				t.Fatal("globals changed on failure")
			}
		})
	}
}

func TestNewSampler_Clamps(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{-1, "AlwaysOffSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
		{1, "AlwaysOnSampler"},
		{7, "AlwaysOnSampler"},
	}
	for _, tc := range cases {
		got := newSampler(tc.ratio).Description()
		if !strings.Contains(got, tc.want) {
			t.Fatalf("ratio %v: description %q does not mention %q", tc.ratio, got, tc.want)
		}
	}
}
