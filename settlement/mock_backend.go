package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// MockBackend is an in-memory Backend used by this package's own tests
// (and available to node-level integration tests) to exercise the batcher
// without a real ledger. It is not the concrete Non-goal'd ledger backend
// spec.md excludes — it is test scaffolding for this repo.
type MockBackend struct {
	mu          sync.Mutex
	balance     uint64
	batches     map[string]ConfirmStatus
	FailNext    bool
	FailConfirm bool
}

// NewMockBackend returns a MockBackend that auto-confirms every batch.
func NewMockBackend() *MockBackend {
	return &MockBackend{batches: make(map[string]ConfirmStatus)}
}

func (m *MockBackend) GetBalance(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *MockBackend) Deposit(ctx context.Context, amount uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance += amount
	return uuid.New().String(), nil
}

func (m *MockBackend) Withdraw(ctx context.Context, amount uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > m.balance {
		return "", fmt.Errorf("settlement: mock backend: insufficient balance")
	}
	m.balance -= amount
	return uuid.New().String(), nil
}

func (m *MockBackend) AnchorBatch(ctx context.Context, batchRoot ndlcrypto.Hash, total uint64, entries []Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return "", fmt.Errorf("settlement: mock backend: simulated anchor failure")
	}
	txID := uuid.New().String()
	if m.FailConfirm {
		m.FailConfirm = false
		m.batches[txID] = ConfirmFailed
	} else {
		m.batches[txID] = ConfirmConfirmed
	}
	return txID, nil
}

func (m *MockBackend) Confirm(ctx context.Context, txID string) (ConfirmStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.batches[txID]
	if !ok {
		return ConfirmFailed, nil
	}
	return status, nil
}

// SetPending marks txID as not-yet-confirmed, for tests that need to
// observe the batcher's poll-timeout path.
func (m *MockBackend) SetPending(txID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[txID] = ConfirmPending
}
