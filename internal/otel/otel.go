package otel

import (
	"context"
	"sync"
	"time"

	eventbus "github.com/hanpama/protofetch/internal/eventbus"
	events "github.com/hanpama/protofetch/internal/events"
	reqid "github.com/hanpama/protofetch/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(otel.Tracer("protofetch"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes tracer to request and projection events on the global
// bus and returns a function that removes the subscriptions.
func Register(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer          trace.Tracer
	httpSpans       sync.Map // rid -> trace.Span
	projectionSpans sync.Map // rid -> trace.Span
}

func (s *subscriber) httpParent(ctx context.Context) context.Context {
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) parent(ctx context.Context) context.Context {
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.projectionSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.httpSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.httpParent(ctx), "projection")
			span.SetAttributes(
				attribute.String("protobuf.message", e.Message),
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.projectionSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.projectionSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			if len(e.Errors) > 0 {
				span.SetStatus(codes.Error, e.Errors[0].Error())
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FieldResolved) {
			end := time.Now()
			_, span := s.tracer.Start(s.parent(ctx), "projection.field",
				trace.WithTimestamp(end.Add(-e.Duration)))
			span.SetAttributes(
				attribute.String("graphql.field.path", e.Path),
				attribute.String("protobuf.message", e.Message),
				attribute.String("protobuf.field", e.Field),
				attribute.Bool("protofetch.deferred", e.Deferred),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End(trace.WithTimestamp(end))
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.AccessorDiscovered) {
			span := trace.SpanFromContext(s.parent(ctx))
			attrs := []attribute.KeyValue{
				attribute.String("protobuf.field", e.Field),
				attribute.String("protofetch.accessor", e.Accessor),
				attribute.String("protofetch.source_type", e.SourceType),
			}
			if e.Err != nil {
				attrs = append(attrs, attribute.String("error", e.Err.Error()))
			}
			span.AddEvent("accessor.discovered", trace.WithAttributes(attrs...))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
