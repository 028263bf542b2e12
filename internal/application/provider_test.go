package application

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"txbridge/internal/contract"
	"txbridge/internal/domain"
	"txbridge/internal/streaming"
)

const (
	testSender     = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

const testDescriptor = `{
	"abi": [
		{"type": "constructor", "inputs": []},
		{"type": "function", "name": "set", "stateMutability": "nonpayable", "inputs": [{"name": "value", "type": "uint256"}], "outputs": []},
		{"type": "function", "name": "get", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
		{"type": "function", "name": "info", "stateMutability": "view", "inputs": [], "outputs": [{"name": "count", "type": "uint256"}, {"name": "id", "type": "bytes32"}]}
	],
	"bytecode": "0x608060405234801561001057600080fd5b50"
}`

type receiptResult struct {
	receipt domain.Receipt
	ok      bool
	err     error
}

type mockNode struct {
	heads        []uint64
	headIdx      int
	txCount      uint64
	txCountErr   error
	balance      *big.Int
	estimateFn   func(env domain.CallEnvelope) (uint64, error)
	sendFn       func(raw string) (string, error)
	sendCalls    int
	callFn       func(env domain.CallEnvelope) (string, error)
	receipts     []receiptResult
	receiptIdx   int
	receiptCalls int
}

func (m *mockNode) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if len(m.heads) == 0 {
		return 0, nil
	}
	head := m.heads[m.headIdx]
	if m.headIdx < len(m.heads)-1 {
		m.headIdx++
	}
	return head, nil
}

func (m *mockNode) TransactionCount(ctx context.Context, address string) (uint64, error) {
	return m.txCount, m.txCountErr
}

func (m *mockNode) Balance(ctx context.Context, address string) (*big.Int, error) {
	if m.balance == nil {
		return big.NewInt(0), nil
	}
	return m.balance, nil
}

func (m *mockNode) GasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *mockNode) EstimateGas(ctx context.Context, env domain.CallEnvelope) (uint64, error) {
	if m.estimateFn != nil {
		return m.estimateFn(env)
	}
	return 21000, nil
}

func (m *mockNode) SendRawTransaction(ctx context.Context, rawTx string) (string, error) {
	m.sendCalls++
	if m.sendFn != nil {
		return m.sendFn(rawTx)
	}
	return "0xnodehash", nil
}

func (m *mockNode) CallContract(ctx context.Context, env domain.CallEnvelope) (string, error) {
	if m.callFn != nil {
		return m.callFn(env)
	}
	return "0x", nil
}

func (m *mockNode) TransactionReceipt(ctx context.Context, txHash string) (domain.Receipt, bool, error) {
	m.receiptCalls++
	if len(m.receipts) == 0 {
		return domain.Receipt{}, false, nil
	}
	result := m.receipts[m.receiptIdx]
	if m.receiptIdx < len(m.receipts)-1 {
		m.receiptIdx++
	}
	return result.receipt, result.ok, result.err
}

type mockStore struct {
	mu        sync.Mutex
	records   map[string]domain.Transaction
	count     uint64
	created   []domain.Transaction
	updated   []domain.Transaction
	blocks    map[uint64]int
	createErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		records: make(map[string]domain.Transaction),
		blocks:  make(map[uint64]int),
	}
}

func (m *mockStore) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, tx)
	m.records[tx.TxHash] = tx
	return nil
}

func (m *mockStore) GetTransaction(ctx context.Context, chainID uint64, txHash string) (domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.records[strings.ToLower(txHash)]
	return tx, ok, nil
}

func (m *mockStore) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, tx)
	m.records[tx.TxHash] = tx
	return nil
}

func (m *mockStore) CountBySender(ctx context.Context, chainID uint64, sender string) (uint64, error) {
	return m.count, nil
}

func (m *mockStore) GetOrCreateBlock(ctx context.Context, chainID, blockNumber uint64) (domain.BlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[blockNumber]++
	return domain.BlockRecord{ChainID: chainID, BlockNumber: blockNumber}, nil
}

type mockDispatcher struct {
	tasks []streaming.Task
	err   error
}

func (m *mockDispatcher) DispatchTrack(ctx context.Context, task streaming.Task) error {
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

type mockAudit struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (m *mockAudit) RecordEvent(ctx context.Context, event domain.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockAudit) countOf(kind domain.LifecycleEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, event := range m.events {
		if event.Event == kind {
			count++
		}
	}
	return count
}

func testRegistry(t *testing.T) *contract.Registry {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "token.json"), []byte(testDescriptor), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	registry, err := contract.NewRegistry(dir)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func newTestProvider(t *testing.T, node *mockNode, store *mockStore, dispatcher Dispatcher, audit AuditSink) *Provider {
	t.Helper()
	provider, err := NewProvider(Config{
		ChainID:         1,
		Confirmations:   2,
		GasLimitEnabled: true,
		GasMultiplier:   2,
		ReceiptTimeout:  100 * time.Millisecond,
		PollInterval:    time.Millisecond,
		RetryAttempts:   7,
		RetryDelay:      time.Millisecond,
	}, node, testRegistry(t), store, store, dispatcher, audit, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestNewProviderRequiresDependencies(t *testing.T) {
	if _, err := NewProvider(Config{ChainID: 1}, nil, nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil dependencies")
	}
	store := newMockStore()
	if _, err := NewProvider(Config{}, &mockNode{}, testRegistry(t), store, store, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing chain id")
	}
}

func TestNewProviderDefaults(t *testing.T) {
	store := newMockStore()
	provider, err := NewProvider(Config{ChainID: 1}, &mockNode{}, testRegistry(t), store, store, nil, nil, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider.cfg.GasMultiplier != 2 {
		t.Errorf("expected default gas multiplier 2, got %d", provider.cfg.GasMultiplier)
	}
	if provider.cfg.ReceiptTimeout != 24*time.Hour {
		t.Errorf("expected default receipt timeout 24h, got %s", provider.cfg.ReceiptTimeout)
	}
	if provider.cfg.PollInterval != 5*time.Second {
		t.Errorf("expected default poll interval 5s, got %s", provider.cfg.PollInterval)
	}
	if provider.cfg.RetryAttempts != 7 {
		t.Errorf("expected default retry attempts 7, got %d", provider.cfg.RetryAttempts)
	}
	if provider.Hooks() == nil {
		t.Error("expected a hook registry by default")
	}
}

var errTransport = errors.New("connection refused")
