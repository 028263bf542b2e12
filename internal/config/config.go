package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	RPCURL              string
	ChainID             uint64
	Confirmations       uint64
	ContractsDir        string
	GasLimitEnabled     bool
	GasMultiplier       uint64
	ReceiptTimeout      time.Duration
	ConfirmPollInterval time.Duration
	RetryAttempts       uint64
	RetryDelay          time.Duration
	DBDriver            string
	DBDSN               string
	ClickhouseDSN       string
	RedisAddr           string
	HTTPAddr            string
	OtelEndpoint        string
	KafkaBrokers        []string
	KafkaTopicPrefix    string
	KafkaGroupID        string
	LogLevel            string
	LogFile             string
	LogMaxSizeMB        int
	LogMaxBackups       int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

// LoadFromEnv reads the process environment, after merging a .env file in
// dev builds. Both binaries configure themselves through this.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL, ok := source.Lookup("RPC_URL")
	if !ok || rpcURL == "" {
		return Config{}, errors.New("RPC_URL is required")
	}

	chainID, err := parseUintEnv(source, "CHAIN_ID", 0)
	if err != nil {
		return Config{}, err
	}
	if chainID == 0 {
		return Config{}, errors.New("CHAIN_ID is required")
	}
	confirmations, err := parseUintEnv(source, "CONFIRMATIONS", 2)
	if err != nil {
		return Config{}, err
	}
	gasMultiplier, err := parseUintEnv(source, "GAS_MULTIPLIER", 2)
	if err != nil {
		return Config{}, err
	}
	retryAttempts, err := parseUintEnv(source, "RETRY_ATTEMPTS", 7)
	if err != nil {
		return Config{}, err
	}

	gasLimitEnabled := true
	if raw, ok := source.Lookup("GAS_LIMIT_ENABLED"); ok && raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GAS_LIMIT_ENABLED: %w", err)
		}
		gasLimitEnabled = parsed
	}

	receiptTimeout, err := parseDurationEnv(source, "RECEIPT_TIMEOUT", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "CONFIRM_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	retryDelay, err := parseDurationEnv(source, "RETRY_DELAY", 2*time.Second)
	if err != nil {
		return Config{}, err
	}

	contractsDir, ok := source.Lookup("CONTRACTS_DIR")
	if !ok || strings.TrimSpace(contractsDir) == "" {
		contractsDir = "./contracts"
	}

	dbDriver, ok := source.Lookup("DB_DRIVER")
	if !ok || strings.TrimSpace(dbDriver) == "" {
		dbDriver = "mysql"
	}
	dbDriver = strings.ToLower(strings.TrimSpace(dbDriver))
	if dbDriver != "mysql" && dbDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", dbDriver)
	}

	dbDSN, ok := source.Lookup("DB_DSN")
	if !ok || strings.TrimSpace(dbDSN) == "" {
		if dbDriver == "sqlite" {
			dbDSN = "txbridge.db"
		} else {
			dbDSN = "root:@tcp(127.0.0.1:3306)/txbridge?parseTime=true&multiStatements=true"
		}
	}

	clickhouseDSN, _ := source.Lookup("CLICKHOUSE_DSN")
	clickhouseDSN = strings.TrimSpace(clickhouseDSN)

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	redisAddr = strings.TrimSpace(redisAddr)

	httpAddr := ":8080"
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS", "localhost:9092")
	if err != nil {
		return Config{}, err
	}
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "txbridge-tasks"
	}
	kafkaGroupID, ok := source.Lookup("KAFKA_GROUP_ID")
	if !ok || kafkaGroupID == "" {
		kafkaGroupID = "txbridge-watcher"
	}

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		RPCURL:              rpcURL,
		ChainID:             chainID,
		Confirmations:       confirmations,
		ContractsDir:        contractsDir,
		GasLimitEnabled:     gasLimitEnabled,
		GasMultiplier:       gasMultiplier,
		ReceiptTimeout:      receiptTimeout,
		ConfirmPollInterval: pollInterval,
		RetryAttempts:       retryAttempts,
		RetryDelay:          retryDelay,
		DBDriver:            dbDriver,
		DBDSN:               dbDSN,
		ClickhouseDSN:       clickhouseDSN,
		RedisAddr:           redisAddr,
		HTTPAddr:            httpAddr,
		OtelEndpoint:        otelEndpoint,
		KafkaBrokers:        kafkaBrokers,
		KafkaTopicPrefix:    kafkaTopicPrefix,
		KafkaGroupID:        kafkaGroupID,
		LogLevel:            logLevel,
		LogFile:             logFile,
		LogMaxSizeMB:        int(logMaxSize),
		LogMaxBackups:       int(logMaxBackups),
	}, nil
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}
