package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"txbridge/internal/application"
	"txbridge/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository is the dev/local counterpart of the mysql store, behind the
// same application interfaces.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
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
			chain_id INTEGER NOT NULL,
			tx_hash TEXT NOT NULL,
			sender TEXT NOT NULL,
			key_ref TEXT NOT NULL DEFAULT '',
			contract_name TEXT NOT NULL,
			function_name TEXT NOT NULL,
			args TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			gas_used INTEGER NOT NULL DEFAULT 0,
			block_number INTEGER NULL,
			contract_address TEXT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (chain_id, tx_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS tx_sender_idx ON transactions (chain_id, sender)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			chain_id INTEGER NOT NULL,
			block_number INTEGER NOT NULL,
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

func (r *Repository) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	args, err := json.Marshal(tx.Args)
	if err != nil {
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

func (r *Repository) GetOrCreateBlock(ctx context.Context, chainID, blockNumber uint64) (domain.BlockRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `INSERT INTO blocks (chain_id, block_number) VALUES (?, ?)
		ON CONFLICT(chain_id, block_number) DO NOTHING`, chainID, blockNumber); err != nil {
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
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

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
