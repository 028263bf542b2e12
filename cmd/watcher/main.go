package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txbridge/internal/application"
	"txbridge/internal/config"
	"txbridge/internal/contract"
	"txbridge/internal/domain"
	"txbridge/internal/infrastructure/clickhouse"
	"txbridge/internal/infrastructure/ethrpc"
	"txbridge/internal/infrastructure/logging"
	"txbridge/internal/infrastructure/mysql"
	"txbridge/internal/infrastructure/sqlite"
	"txbridge/internal/infrastructure/storage"
	"txbridge/internal/infrastructure/telemetry"
	"txbridge/internal/interfaces/httpapi"
	"txbridge/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/watcher.log"
	}
	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Component:  "watcher",
	}); err != nil {
		slog.Error("logger init error", "err", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}

	var audit *clickhouse.AuditRepository
	if cfg.ClickhouseDSN != "" {
		audit, err = clickhouse.NewRepository(cfg.ClickhouseDSN)
		if err != nil {
			slog.Warn("clickhouse unavailable, lifecycle auditing disabled", "err", err)
			audit = nil
		}
	}

	combinedRepo, err := storage.NewRepository(store, audit)
	if err != nil {
		slog.Error("storage error", "err", err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "txbridge-watcher", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{URL: cfg.RPCURL})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	contracts, err := contract.NewRegistry(cfg.ContractsDir)
	if err != nil {
		slog.Error("contract registry error", "err", err)
		os.Exit(1)
	}

	// The watcher never dispatches; every task it receives runs inline.
	provider, err := application.NewProvider(application.Config{
		ChainID:         cfg.ChainID,
		Confirmations:   cfg.Confirmations,
		GasLimitEnabled: cfg.GasLimitEnabled,
		GasMultiplier:   cfg.GasMultiplier,
		ReceiptTimeout:  cfg.ReceiptTimeout,
		PollInterval:    cfg.ConfirmPollInterval,
		RetryAttempts:   cfg.RetryAttempts,
		RetryDelay:      cfg.RetryDelay,
	}, rpcClient, contracts, combinedRepo, combinedRepo, nil, combinedRepo, nil)
	if err != nil {
		slog.Error("provider error", "err", err)
		os.Exit(1)
	}

	metrics := httpapi.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	topic := fmt.Sprintf("%s-%d", cfg.KafkaTopicPrefix, cfg.ChainID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		_ = reader.Close()
	}()

	go serveMetrics(ctx, cfg.HTTPAddr, metrics)

	slog.Info("watcher started", "topic", topic, "group", cfg.KafkaGroupID, "chain_id", cfg.ChainID)
	consumeTasks(ctx, reader, provider, combinedRepo, metrics, cfg.ChainID)
}

// serveMetrics exposes the watcher's counters on the configured HTTP
// address. Only health and metrics; the transaction API lives in the
// gateway.
func serveMetrics(ctx context.Context, addr string, metrics *httpapi.Metrics) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(w)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server error", "err", err)
	}
}

func consumeTasks(ctx context.Context, reader *kafka.Reader, provider *application.Provider, store *storage.Repository, metrics *httpapi.Metrics, chainID uint64) {
	tracer := otel.Tracer("txbridge/watcher")

	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			metrics.IncKafkaFetchErr()
			slog.Error("kafka fetch error", "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		metrics.ObserveKafkaMessage(message.Topic, message.Partition, message.Offset, message.Time)

		task, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("task decode error", "err", err)
			metrics.IncKafkaDecodeErr()
			if err := reader.CommitMessages(ctx, message); err != nil {
				metrics.IncKafkaCommitErr()
			}
			continue
		}
		if task.ChainID != chainID {
			slog.Warn("unexpected chain id on topic", "chain_id", task.ChainID)
		}

		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		if !trace.SpanContextFromContext(messageCtx).IsValid() && task.TraceID != "" {
			if ctxWithTrace, ok := telemetry.ContextWithTraceID(messageCtx, task.TraceID); ok {
				messageCtx = ctxWithTrace
			}
		}
		messageCtx, span := tracer.Start(messageCtx, "watcher.track_transaction", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("task.type", string(task.Type)),
			attribute.Int64("chain.id", int64(task.ChainID)),
			attribute.String("tx.hash", task.TxHash),
		)

		err = provider.Track(messageCtx, task.TxHash, application.TrackOptions{
			Hook:     task.Hook,
			HookArgs: task.HookArgs,
		})
		if err != nil {
			metrics.IncKafkaApplyErr()
			metrics.IncTrackErr()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			slog.Error("track error", "tx_hash", task.TxHash, "err", err)

			// The message stays uncommitted so the task is retried on the
			// next fetch. Re-running a finished track is a no-op, so the
			// at-least-once delivery is safe.
			time.Sleep(time.Second)
			continue
		}
		span.End()
		slog.Info("track task done", "tx_hash", task.TxHash)

		if record, ok, err := store.GetTransaction(ctx, chainID, task.TxHash); err == nil && ok && record.Status.Terminal() {
			metrics.OnConfirmation(record.Status == domain.StatusAccepted)
		}

		if err := reader.CommitMessages(ctx, message); err != nil {
			metrics.IncKafkaCommitErr()
			slog.Error("kafka commit error", "err", err)
		}
	}
}

func openStore(cfg config.Config) (storage.Store, error) {
	if cfg.DBDriver == "sqlite" {
		return sqlite.NewRepository(cfg.DBDSN)
	}
	base, err := mysql.NewRepository(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	cached, err := mysql.NewCachedRepository(base, mysql.CacheConfig{Addr: cfg.RedisAddr})
	if err != nil {
		slog.Warn("redis unavailable, transaction cache disabled", "err", err)
		return base, nil
	}
	return cached, nil
}
