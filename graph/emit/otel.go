package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter converts events into OpenTelemetry spans.
//
// Each event becomes a zero-duration span named after the event Msg, with
// thread, step, and node recorded as attributes and Meta fields flattened
// alongside. Wire a tracer provider with an OTLP or stdout exporter in the
// application and pass otel.Tracer("agent-builder") here.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter over the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as a span. Events whose Meta carries an "error"
// key mark the span status as error.
func (o *OTelEmitter) Emit(event Event) {
	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("workflow.thread_id", event.ThreadID),
		attribute.Int("workflow.step", event.Step),
	)
	if event.Node != "" {
		span.SetAttributes(attribute.String("workflow.node", event.Node))
	}
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute("workflow.meta."+key, value))
	}
	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, fmt.Sprintf("%v", errVal))
	}
}

func metaAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
