package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/orbital-labs/intents-core/internal/types"
)

// MockAdapter is an in-memory Adapter for tests and local development,
// standing in for a real chain without an RPC endpoint. Submitted
// transactions are immediately "mined" with a caller-configured receipt.
type MockAdapter struct {
	mu          sync.Mutex
	chainID     uint64
	seq         uint64
	receipts    map[common.Hash]*TxReceipt
	state       map[common.Address]map[common.Hash][]byte
	nextFails   bool
	nextReverts bool
}

func NewMockAdapter(chainID uint64) *MockAdapter {
	return &MockAdapter{
		chainID:  chainID,
		receipts: make(map[common.Hash]*TxReceipt),
		state:    make(map[common.Address]map[common.Hash][]byte),
	}
}

func (m *MockAdapter) ChainID() uint64 { return m.chainID }

// FailNextSubmit makes the next SubmitTx call return ErrRpcUnavailable,
// for exercising the Executor's retry path.
func (m *MockAdapter) FailNextSubmit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFails = true
}

// FailNextReceiptStatus makes the next submitted transaction mine with
// a reverted (Status=0) receipt instead of succeeding, for exercising
// callers that check TxReceipt.Succeeded after WaitReceipt.
func (m *MockAdapter) FailNextReceiptStatus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReverts = true
}

// ReceiptCount returns the number of transactions this adapter has
// mined a receipt for, letting tests confirm SubmitTx actually ran.
func (m *MockAdapter) ReceiptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

func (m *MockAdapter) SubmitTx(ctx context.Context, spec TxSpec) (common.Hash, error) {
	select {
	case <-ctx.Done():
		return common.Hash{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nextFails {
		m.nextFails = false
		return common.Hash{}, types.ErrRpcUnavailable
	}

	status := uint64(1)
	if m.nextReverts {
		m.nextReverts = false
		status = 0
	}

	m.seq++
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], m.seq)
	h := sha256.Sum256(append(spec.To.Bytes(), seqBytes[:]...))
	txHash := common.BytesToHash(h[:])

	m.receipts[txHash] = &TxReceipt{
		TxHash:            txHash,
		BlockNumber:       m.seq,
		Confirmations:     1_000_000,
		Status:            status,
		GasUsed:           spec.GasLimit,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
	}
	return txHash, nil
}

func (m *MockAdapter) SetReceipt(txHash common.Hash, receipt *TxReceipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[txHash] = receipt
}

func (m *MockAdapter) WaitReceipt(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*TxReceipt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, types.ErrTimeout
	}
	if receipt.Confirmations < minConfirmations {
		return nil, types.ErrTimeout
	}
	return receipt, nil
}

func (m *MockAdapter) SetState(address common.Address, slot common.Hash, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state[address] == nil {
		m.state[address] = make(map[common.Hash][]byte)
	}
	m.state[address][slot] = value
}

func (m *MockAdapter) ReadState(ctx context.Context, address common.Address, slot common.Hash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[address][slot], nil
}

// MockBridge is an in-memory Bridge for tests: Send returns an
// immediately finalized receipt unless a failure was queued with
// FailNextSend or FailSendRetriableTimes, and Prove builds a single-node
// proof that validator.ValidateExecutionProof accepts without a live
// bridge.
type MockBridge struct {
	mu             sync.Mutex
	seq            uint64
	failNext       bool
	retriableLeft  int
	intentOf       map[common.Hash]types.IntentId
}

func NewMockBridge() *MockBridge {
	return &MockBridge{intentOf: make(map[common.Hash]types.IntentId)}
}

func (b *MockBridge) FailNextSend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = true
}

// FailSendRetriableTimes makes the next n Send calls return
// ErrBridgeProviderTimeout (a retriable transient error per spec §7)
// before the (n+1)th call succeeds, for exercising the Executor's
// Bridge-phase retry/backoff loop.
func (b *MockBridge) FailSendRetriableTimes(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retriableLeft = n
}

func (b *MockBridge) Send(ctx context.Context, msg BridgeMessage) (*BridgeReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNext {
		b.failNext = false
		return nil, types.ErrBridgeFailed
	}
	if b.retriableLeft > 0 {
		b.retriableLeft--
		return nil, types.ErrBridgeProviderTimeout
	}

	b.seq++
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], b.seq)
	h := sha256.Sum256(append(msg.IntentId[:], seqBytes[:]...))
	messageID := common.BytesToHash(h[:])
	b.intentOf[messageID] = msg.IntentId

	return &BridgeReceipt{
		MessageId: messageID,
		SentAt:    time.Now(),
		Finalized: true,
	}, nil
}

// Prove manufactures a single-node Merkle-Patricia proof: one leaf whose
// key is the id of the intent originally passed to Send for this
// receipt's message and whose value is the message id, rooted at the
// leaf's keccak256 hash. EmbeddedIntentId carries the same intent id,
// so validator.ValidateExecutionProof passes end to end without a live
// bridge.
func (b *MockBridge) Prove(ctx context.Context, receipt *BridgeReceipt) (*InclusionProof, error) {
	if !receipt.Finalized {
		return nil, types.ErrBridgeProviderTimeout
	}

	b.mu.Lock()
	intentID := b.intentOf[receipt.MessageId]
	b.mu.Unlock()

	// Leaf node: [hex-prefix key (0x20 marks an even-length leaf), value].
	key := intentID[:]
	value := receipt.MessageId.Bytes()
	leaf, err := rlp.EncodeToBytes([][]byte{append([]byte{0x20}, key...), value})
	if err != nil {
		return nil, err
	}

	return &InclusionProof{
		BlockNumber:      1,
		ChainHeadNumber:  1000,
		ReceiptsRoot:     crypto.Keccak256Hash(leaf),
		Key:              key,
		Value:            value,
		ProofNodes:       [][]byte{leaf},
		EmbeddedIntentId: intentID,
	}, nil
}
