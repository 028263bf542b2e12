package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"txbridge/internal/application"
	"txbridge/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			chain_id BIGINT UNSIGNED NOT NULL,
			tx_hash VARCHAR(66) NOT NULL,
			sender VARCHAR(42) NOT NULL,
			key_ref VARCHAR(64) NOT NULL DEFAULT '',
			contract_name VARCHAR(128) NOT NULL,
			function_name VARCHAR(128) NOT NULL,
			args MEDIUMTEXT NOT NULL,
			nonce BIGINT UNSIGNED NOT NULL,
			status TINYINT UNSIGNED NOT NULL DEFAULT 0,
			gas_used BIGINT UNSIGNED NOT NULL DEFAULT 0,
			block_number BIGINT UNSIGNED NULL,
			contract_address VARCHAR(42) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (chain_id, tx_hash),
			KEY tx_sender_idx (chain_id, sender),
			KEY tx_status_idx (chain_id, status)
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			chain_id BIGINT UNSIGNED NOT NULL,
			block_number BIGINT UNSIGNED NOT NULL,
			PRIMARY KEY (chain_id, block_number)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("txbridge/mysql")
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attrs...)
	return ctx, span
}

func (r *Repository) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	ctx, span := startDBSpan(ctx, "mysql.CreateTransaction",
		attribute.String("tx.hash", tx.TxHash),
		attribute.String("tx.sender", tx.Sender),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	args, err := json.Marshal(tx.Args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	var blockNumber any
	if tx.BlockNumber != nil {
		blockNumber = *tx.BlockNumber
	}
	var contractAddress any
	if tx.ContractAddress != "" {
		contractAddress = strings.ToLower(tx.ContractAddress)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO transactions
		(chain_id, tx_hash, sender, key_ref, contract_name, function_name, args, nonce, status, gas_used, block_number, contract_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ChainID, strings.ToLower(tx.TxHash), strings.ToLower(tx.Sender), tx.KeyRef, tx.ContractName, tx.FunctionName,
		string(args), tx.Nonce, uint8(tx.Status), tx.GasUsed, blockNumber, contractAddress, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT chain_id, tx_hash, sender, key_ref, contract_name, function_name, args, nonce, status, gas_used, block_number, contract_address, created_at, updated_at
		FROM transactions WHERE chain_id = ? AND tx_hash = ?`, chainID, strings.ToLower(txHash))
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, false, nil
		}
		return domain.Transaction{}, false, err
	}
	return tx, true, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	ctx, span := startDBSpan(ctx, "mysql.UpdateTransaction",
		attribute.String("tx.hash", tx.TxHash),
		attribute.String("tx.status", tx.Status.String()),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var blockNumber any
	if tx.BlockNumber != nil {
		blockNumber = *tx.BlockNumber
	}
	var contractAddress any
	if tx.ContractAddress != "" {
		contractAddress = strings.ToLower(tx.ContractAddress)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET status = ?, gas_used = ?, block_number = ?, contract_address = ?, updated_at = ?
		WHERE chain_id = ? AND tx_hash = ?`,
		uint8(tx.Status), tx.GasUsed, blockNumber, contractAddress, tx.UpdatedAt, tx.ChainID, strings.ToLower(tx.TxHash))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) CountBySender(ctx context.Context, chainID uint64, sender string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var count uint64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE chain_id = ? AND sender = ?`,
		chainID, strings.ToLower(sender)).Scan(&count)
	return count, err
}

// GetOrCreateBlock inserts the block key if absent. INSERT IGNORE keeps the
// operation duplicate-safe under concurrent trackers observing the same
// block.
func (r *Repository) GetOrCreateBlock(ctx context.Context, chainID, blockNumber uint64) (domain.BlockRecord, error) {
	ctx, span := startDBSpan(ctx, "mysql.GetOrCreateBlock",
		attribute.Int64("block.number", int64(blockNumber)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO blocks (chain_id, block_number) VALUES (?, ?)`,
		chainID, blockNumber); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.BlockRecord{}, err
	}
	return domain.BlockRecord{ChainID: chainID, BlockNumber: blockNumber}, nil
}

func (r *Repository) QueryTransactions(ctx context.Context, filter application.TransactionQueryFilter) ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT chain_id, tx_hash, sender, key_ref, contract_name, function_name, args, nonce, status, gas_used, block_number, contract_address, created_at, updated_at
		FROM transactions WHERE 1=1`
	var args []any
	if filter.ChainID != nil {
		query += ` AND chain_id = ?`
		args = append(args, *filter.ChainID)
	}
	if filter.Sender != "" {
		query += ` AND sender = ?`
		args = append(args, strings.ToLower(filter.Sender))
	}
	if filter.TxHash != "" {
		query += ` AND tx_hash = ?`
		args = append(args, strings.ToLower(filter.TxHash))
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, uint8(*filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, normalizeLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx              domain.Transaction
		args            string
		status          uint8
		blockNumber     sql.NullInt64
		contractAddress sql.NullString
	)
	if err := row.Scan(&tx.ChainID, &tx.TxHash, &tx.Sender, &tx.KeyRef, &tx.ContractName, &tx.FunctionName,
		&args, &tx.Nonce, &status, &tx.GasUsed, &blockNumber, &contractAddress, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return domain.Transaction{}, err
	}
	if err := json.Unmarshal([]byte(args), &tx.Args); err != nil {
		return domain.Transaction{}, err
	}
	tx.Status = domain.TransactionStatus(status)
	if blockNumber.Valid {
		number := uint64(blockNumber.Int64)
		tx.BlockNumber = &number
	}
	if contractAddress.Valid {
		tx.ContractAddress = contractAddress.String
	}
	return tx, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
