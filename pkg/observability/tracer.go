package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// OTelSink records one span per turn with trace events attached as span
// events. Spans are keyed by session so the six event types of a turn land
// on the same span.
type OTelSink struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

func NewOTelSink(tracer trace.Tracer) *OTelSink {
	if tracer == nil {
		tracer = otel.Tracer("scholar")
	}
	return &OTelSink{tracer: tracer, spans: make(map[string]trace.Span)}
}

func (s *OTelSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span, ok := s.spans[event.SessionID]

	switch event.Type {
	case EventTurnStarted:
		if ok {
			span.End()
		}
		_, span = s.tracer.Start(context.Background(), "turn",
			trace.WithAttributes(attribute.String("session_id", event.SessionID)))
		s.spans[event.SessionID] = span
		return
	case EventTurnEnded:
		if !ok {
			return
		}
		span.AddEvent(string(event.Type), trace.WithAttributes(toAttributes(event.Attrs)...))
		span.End()
		delete(s.spans, event.SessionID)
		return
	default:
		if !ok {
			return
		}
		span.AddEvent(string(event.Type), trace.WithAttributes(toAttributes(event.Attrs)...))
	}
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return out
}

// InitStdoutTracer installs a stdout span exporter and returns a shutdown
// function. Used by the CLI when tracing is enabled.
func InitStdoutTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

var _ Sink = (*OTelSink)(nil)
