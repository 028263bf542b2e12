package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txbridge/internal/application"
	"txbridge/internal/config"
	"txbridge/internal/contract"
	"txbridge/internal/infrastructure/clickhouse"
	"txbridge/internal/infrastructure/ethrpc"
	"txbridge/internal/infrastructure/kafka"
	"txbridge/internal/infrastructure/logging"
	"txbridge/internal/infrastructure/mysql"
	"txbridge/internal/infrastructure/sqlite"
	"txbridge/internal/infrastructure/storage"
	"txbridge/internal/infrastructure/telemetry"
	"txbridge/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/gateway.log"
	}
	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Component:  "gateway",
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

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "txbridge-gateway", cfg.OtelEndpoint)
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

	dispatcher, err := kafka.NewDispatcher(kafka.DispatcherConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopicPrefix,
	})
	if err != nil {
		slog.Error("kafka error", "err", err)
		os.Exit(1)
	}
	defer func() {
		_ = dispatcher.Close()
	}()

	provider, err := application.NewProvider(application.Config{
		ChainID:         cfg.ChainID,
		Confirmations:   cfg.Confirmations,
		GasLimitEnabled: cfg.GasLimitEnabled,
		GasMultiplier:   cfg.GasMultiplier,
		ReceiptTimeout:  cfg.ReceiptTimeout,
		PollInterval:    cfg.ConfirmPollInterval,
		RetryAttempts:   cfg.RetryAttempts,
		RetryDelay:      cfg.RetryDelay,
	}, rpcClient, contracts, combinedRepo, combinedRepo, dispatcher, combinedRepo, nil)
	if err != nil {
		slog.Error("provider error", "err", err)
		os.Exit(1)
	}

	metrics := httpapi.NewMetrics()
	httpServer, err := httpapi.NewServer(cfg, provider, combinedRepo, rpcClient, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("gateway listening",
		"addr", cfg.HTTPAddr,
		"chain_id", cfg.ChainID,
		"confirmations", cfg.Confirmations,
	)
	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server error", "err", err)
		os.Exit(1)
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
