package telemetry

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headerCarrier exposes a kafka header slice through the TextMapCarrier
// shape the propagator expects. It holds a pointer so headers injected by
// the propagator survive the call.
type headerCarrier struct {
	list *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.list {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	existing := *c.list
	for i := range existing {
		if strings.EqualFold(existing[i].Key, key) {
			existing[i].Value = []byte(value)
			return
		}
	}
	*c.list = append(existing, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(*c.list))
	for i, h := range *c.list {
		keys[i] = h.Key
	}
	return keys
}

// InjectKafkaHeaders writes the active trace context into the message
// headers so the watcher can continue the producer's trace.
func InjectKafkaHeaders(ctx context.Context, headers *[]kafka.Header) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{list: headers})
}

// ExtractKafkaHeaders restores a trace context previously injected into
// message headers. With no propagation headers present the context comes
// back unchanged.
func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{list: &headers})
}
