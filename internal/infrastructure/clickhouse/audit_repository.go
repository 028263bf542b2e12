package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"txbridge/internal/domain"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// AuditRepository appends transaction lifecycle events to ClickHouse for
// diagnostics. The table is append-only; nothing in the transaction path
// reads it back.
type AuditRepository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*AuditRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db := clickhouse.OpenDB(options)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &AuditRepository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS tx_events (
		chain_id UInt64,
		tx_hash String,
		sender String,
		event String,
		detail String,
		at DateTime64(6)
	) ENGINE = MergeTree
	PARTITION BY chain_id
	ORDER BY (chain_id, at)`)
	return err
}

func (r *AuditRepository) RecordEvent(ctx context.Context, event domain.LifecycleEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO tx_events (chain_id, tx_hash, sender, event, detail, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ChainID, strings.ToLower(event.TxHash), strings.ToLower(event.Sender), string(event.Event), event.Detail, at)
	return err
}

func (r *AuditRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
