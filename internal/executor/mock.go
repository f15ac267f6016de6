package executor

import (
	"context"
	"crypto/sha256"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/orbital-labs/intents-core/internal/types"
)

// MockEscrow is an in-memory Escrow for tests.
type MockEscrow struct {
	mu           sync.Mutex
	lockFails    bool
	settleFails  bool
	locked       map[types.IntentId]bool
	releaseCalls int
	settleCalls  int
}

func NewMockEscrow() *MockEscrow {
	return &MockEscrow{locked: make(map[types.IntentId]bool)}
}

func (m *MockEscrow) FailNextLock()   { m.mu.Lock(); m.lockFails = true; m.mu.Unlock() }
func (m *MockEscrow) FailNextSettle() { m.mu.Lock(); m.settleFails = true; m.mu.Unlock() }

func (m *MockEscrow) ReleaseCalls() int { m.mu.Lock(); defer m.mu.Unlock(); return m.releaseCalls }
func (m *MockEscrow) SettleCalls() int  { m.mu.Lock(); defer m.mu.Unlock(); return m.settleCalls }

func (m *MockEscrow) Lock(ctx context.Context, intent *types.Intent) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockFails {
		m.lockFails = false
		return common.Hash{}, types.ErrSourceLockFailed
	}
	id := intent.CanonicalHash()
	m.locked[id] = true
	h := sha256.Sum256(id[:])
	return common.BytesToHash(h[:]), nil
}

func (m *MockEscrow) Release(ctx context.Context, intent *types.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	delete(m.locked, intent.CanonicalHash())
	return nil
}

func (m *MockEscrow) Settle(ctx context.Context, intent *types.Intent, solver common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleFails {
		m.settleFails = false
		return types.ErrDestinationExecutionFailed
	}
	m.settleCalls++
	return nil
}

// MockDestinationWatcher is an in-memory DestinationWatcher for tests.
type MockDestinationWatcher struct {
	mu         sync.Mutex
	actualDest *big.Int
	fails      bool
}

func NewMockDestinationWatcher(actualDest *big.Int) *MockDestinationWatcher {
	return &MockDestinationWatcher{actualDest: actualDest}
}

func (w *MockDestinationWatcher) FailNext() { w.mu.Lock(); w.fails = true; w.mu.Unlock() }

func (w *MockDestinationWatcher) AwaitFulfillment(ctx context.Context, intent *types.Intent, solver common.Address) (common.Hash, *big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fails {
		w.fails = false
		return common.Hash{}, nil, types.ErrDestinationExecutionFailed
	}
	id := intent.CanonicalHash()
	h := sha256.Sum256(append(id[:], solver.Bytes()...))
	return common.BytesToHash(h[:]), w.actualDest, nil
}
