package storage

import (
	"context"
	"errors"

	"txbridge/internal/application"
	"txbridge/internal/domain"
	"txbridge/internal/infrastructure/clickhouse"
)

// Store is the relational surface the facade fronts. Both the mysql and
// sqlite repositories satisfy it.
type Store interface {
	application.TransactionStore
	application.BlockStore
	QueryTransactions(ctx context.Context, filter application.TransactionQueryFilter) ([]domain.Transaction, error)
	Ping(ctx context.Context) error
}

// Repository combines the transaction store with the optional ClickHouse
// audit sink behind one value the binaries can wire once.
type Repository struct {
	store Store
	audit *clickhouse.AuditRepository
}

func NewRepository(store Store, audit *clickhouse.AuditRepository) (*Repository, error) {
	if store == nil {
		return nil, errors.New("transaction store is required")
	}
	return &Repository{store: store, audit: audit}, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	return r.store.CreateTransaction(ctx, tx)
}

func (r *Repository) GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error) {
	return r.store.GetTransaction(ctx, chainID, txHash)
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	return r.store.UpdateTransaction(ctx, tx)
}

func (r *Repository) CountBySender(ctx context.Context, chainID uint64, sender string) (uint64, error) {
	return r.store.CountBySender(ctx, chainID, sender)
}

func (r *Repository) GetOrCreateBlock(ctx context.Context, chainID, blockNumber uint64) (domain.BlockRecord, error) {
	return r.store.GetOrCreateBlock(ctx, chainID, blockNumber)
}

func (r *Repository) QueryTransactions(ctx context.Context, filter application.TransactionQueryFilter) ([]domain.Transaction, error) {
	return r.store.QueryTransactions(ctx, filter)
}

// RecordEvent is a no-op when no audit backend is configured.
func (r *Repository) RecordEvent(ctx context.Context, event domain.LifecycleEvent) error {
	if r.audit == nil {
		return nil
	}
	return r.audit.RecordEvent(ctx, event)
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return err
	}
	if r.audit != nil {
		return r.audit.Ping(ctx)
	}
	return nil
}
