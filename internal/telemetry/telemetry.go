// Package telemetry wraps request execution in OpenTelemetry client spans.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const redactedValue = "xxxxx"

const tracerName = "github.com/unkn0wn-root/commandpost/internal/telemetry"

const (
	attrRequestName = attribute.Key("commandpost.request.name")
	attrTimeout     = attribute.Key("commandpost.request.timeout_ms")
	attrFormParts   = attribute.Key("commandpost.request.form_parts")
	attrElapsed     = attribute.Key("commandpost.response.elapsed_ms")
	attrHost        = attribute.Key("http.host")
)

type Instrumenter interface {
	Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan)
	Shutdown(ctx context.Context) error
}

// RequestStart carries the descriptor fields recorded on a span. Name is the
// saved request name when the send came from a collection.
type RequestStart struct {
	Name      string
	Method    string
	URL       string
	TimeoutMs int
	FormParts int
}

type RequestResult struct {
	Err        error
	StatusCode int
	SizeBytes  int64
	Elapsed    time.Duration
}

type RequestSpan interface {
	End(result RequestResult)
}

type Option func(*[]sdktrace.TracerProviderOption)

// WithSpanProcessor adds a processor next to (or instead of) the exporter.
func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *[]sdktrace.TracerProviderOption) {
		if proc != nil {
			*opts = append(*opts, sdktrace.WithSpanProcessor(proc))
		}
	}
}

type tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New returns a no-op instrumenter unless cfg names an endpoint or a span
// processor is supplied.
func New(cfg Config, opts ...Option) (Instrumenter, error) {
	var tpOpts []sdktrace.TracerProviderOption
	for _, opt := range opts {
		opt(&tpOpts)
	}
	if !cfg.Enabled() && len(tpOpts) == 0 {
		return Noop(), nil
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if v := strings.TrimSpace(cfg.Version); v != "" {
		attrs = append(attrs, semconv.ServiceVersion(v))
	}
	tpOpts = append(tpOpts, sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)))

	if cfg.Enabled() {
		exp, err := newExporter(cfg)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &tracer{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	return exp, nil
}

func (t *tracer) Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan) {
	host := hostOf(info.URL)
	attrs := []attribute.KeyValue{
		semconv.HTTPMethodKey.String(info.Method),
		semconv.HTTPURLKey.String(RedactURL(info.URL)),
	}
	if host != "" {
		attrs = append(attrs, attrHost.String(host))
	}
	if info.Name != "" {
		attrs = append(attrs, attrRequestName.String(info.Name))
	}
	if info.TimeoutMs > 0 {
		attrs = append(attrs, attrTimeout.Int(info.TimeoutMs))
	}
	if info.FormParts > 0 {
		attrs = append(attrs, attrFormParts.Int(info.FormParts))
	}

	ctx, span := t.tracer.Start(ctx, spanName(info, host),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, requestSpan{span}
}

func (t *tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

type requestSpan struct {
	span trace.Span
}

func (rs requestSpan) End(result RequestResult) {
	if result.StatusCode > 0 {
		rs.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}
	if result.SizeBytes > 0 {
		rs.span.SetAttributes(semconv.HTTPResponseBodySize(int(result.SizeBytes)))
	}
	rs.span.SetAttributes(attrElapsed.Int64(result.Elapsed.Milliseconds()))

	switch {
	case result.Err != nil:
		rs.span.RecordError(result.Err)
		rs.span.SetStatus(codes.Error, result.Err.Error())
	case result.StatusCode >= 400:
		rs.span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", result.StatusCode))
	default:
		rs.span.SetStatus(codes.Ok, "")
	}
	rs.span.End()
}

// spanName is the saved request name, else "METHOD host".
func spanName(info RequestStart, host string) string {
	if info.Name != "" {
		return info.Name
	}
	if host == "" {
		return info.Method
	}
	return info.Method + " " + host
}

// RedactURL masks query values and userinfo passwords, since api keys may
// ride in the query. Keys are kept. Unparseable input loses its query.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		base, _, _ := strings.Cut(raw, "?")
		return base
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			for i := range q[k] {
				q[k][i] = redactedValue
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.Redacted()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func Noop() Instrumenter { return noop{} }

type noop struct{}

func (noop) Start(ctx context.Context, _ RequestStart) (context.Context, RequestSpan) {
	return ctx, noop{}
}

func (noop) Shutdown(context.Context) error { return nil }

func (noop) End(RequestResult) {}
