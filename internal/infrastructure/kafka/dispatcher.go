package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"txbridge/internal/infrastructure/telemetry"
	"txbridge/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher hands track tasks to the watcher through Kafka, one topic per
// chain. The message key is the transaction hash so re-dispatches of the
// same transaction land on the same partition in order.
type Dispatcher struct {
	writer *kafka.Writer
	prefix string
}

type DispatcherConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "txbridge-tasks"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return &Dispatcher{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}

func (d *Dispatcher) DispatchTrack(ctx context.Context, task streaming.Task) error {
	tracer := otel.Tracer("txbridge/kafka")
	traceCtx, span := tracer.Start(ctx, "gateway.dispatch_track", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chain.id", int64(task.ChainID)),
		attribute.String("tx.hash", task.TxHash),
	)

	if task.TraceID == "" {
		if spanCtx := trace.SpanContextFromContext(traceCtx); spanCtx.HasTraceID() {
			task.TraceID = spanCtx.TraceID().String()
		}
	}

	payload, err := streaming.Encode(task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(traceCtx, &headers)

	err = d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   d.topicForChain(task.ChainID),
		Key:     []byte(task.TxHash),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *Dispatcher) topicForChain(chainID uint64) string {
	return fmt.Sprintf("%s-%d", d.prefix, chainID)
}
