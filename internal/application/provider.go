package application

import (
	"context"
	"errors"
	"math/big"
	"time"

	"txbridge/internal/contract"
	"txbridge/internal/domain"
	"txbridge/internal/streaming"
)

// NodeClient is the JSON-RPC surface the provider needs from a node.
type NodeClient interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	TransactionCount(ctx context.Context, address string) (uint64, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, env domain.CallEnvelope) (uint64, error)
	SendRawTransaction(ctx context.Context, rawTx string) (string, error)
	CallContract(ctx context.Context, env domain.CallEnvelope) (string, error)
	TransactionReceipt(ctx context.Context, txHash string) (domain.Receipt, bool, error)
}

// TransactionStore persists transaction records. CountBySender drives nonce
// assignment and must reflect every record ever created for the sender.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx domain.Transaction) error
	GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error)
	UpdateTransaction(ctx context.Context, tx domain.Transaction) error
	CountBySender(ctx context.Context, chainID uint64, sender string) (uint64, error)
}

// BlockStore persists block records with get-or-create semantics: the call
// must not create duplicates under concurrent callers for the same key.
type BlockStore interface {
	GetOrCreateBlock(ctx context.Context, chainID, blockNumber uint64) (domain.BlockRecord, error)
}

// Dispatcher moves confirmation tracking off the submitting caller's
// execution context.
type Dispatcher interface {
	DispatchTrack(ctx context.Context, task streaming.Task) error
}

// AuditSink records lifecycle events. Implementations may drop events;
// auditing never blocks the transaction path.
type AuditSink interface {
	RecordEvent(ctx context.Context, event domain.LifecycleEvent) error
}

// Config carries per-provider settings. One Config per provider instance;
// there is no process-wide provider state.
type Config struct {
	ChainID         uint64
	Confirmations   uint64
	GasLimitEnabled bool
	GasMultiplier   uint64
	ReceiptTimeout  time.Duration
	PollInterval    time.Duration
	RetryAttempts   uint64
	RetryDelay      time.Duration
}

// Provider mediates between callers and one chain: wallet creation, balance
// queries, transaction submission, confirmation tracking, and read-only
// calls. Callers select a chain backend by configuration, never by type
// inspection.
type Provider struct {
	cfg          Config
	node         NodeClient
	contracts    *contract.Registry
	transactions TransactionStore
	blocks       BlockStore
	dispatcher   Dispatcher
	audit        AuditSink
	hooks        *HookRegistry
}

func NewProvider(cfg Config, node NodeClient, contracts *contract.Registry, transactions TransactionStore, blocks BlockStore, dispatcher Dispatcher, audit AuditSink, hooks *HookRegistry) (*Provider, error) {
	if node == nil || contracts == nil || transactions == nil || blocks == nil {
		return nil, errors.New("provider dependencies must not be nil")
	}
	if cfg.ChainID == 0 {
		return nil, errors.New("chain id is required")
	}
	if cfg.GasMultiplier == 0 {
		cfg.GasMultiplier = 2
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 24 * time.Hour
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 7
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if hooks == nil {
		hooks = NewHookRegistry()
	}
	return &Provider{
		cfg:          cfg,
		node:         node,
		contracts:    contracts,
		transactions: transactions,
		blocks:       blocks,
		dispatcher:   dispatcher,
		audit:        audit,
		hooks:        hooks,
	}, nil
}

// Hooks exposes the completion-hook registry so binaries can register
// post-processing callbacks at startup.
func (p *Provider) Hooks() *HookRegistry {
	return p.hooks
}

func (p *Provider) recordEvent(ctx context.Context, event domain.LifecycleEvent) {
	if p.audit == nil {
		return
	}
	event.ChainID = p.cfg.ChainID
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	_ = p.audit.RecordEvent(ctx, event)
}
