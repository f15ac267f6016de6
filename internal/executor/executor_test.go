package executor

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-labs/intents-core/internal/chain"
	"github.com/orbital-labs/intents-core/internal/reputation"
	"github.com/orbital-labs/intents-core/internal/types"
	"github.com/orbital-labs/intents-core/pkg/clock"
)

// instantClock never actually sleeps, so executor tests run fast
// regardless of MEVDelayMin/Max or retry backoff.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func newInstantClock() *instantClock { return &instantClock{now: time.Unix(1_700_000_000, 0)} }

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(d time.Duration) <-chan struct{} {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func newSignedExecutorIntent(t *testing.T) (*types.Intent, common.Address) {
	return newSignedExecutorIntentWithData(t, nil)
}

func newSignedExecutorIntentWithData(t *testing.T, data []byte) (*types.Intent, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	intent := &types.Intent{
		User:          crypto.PubkeyToAddress(key.PublicKey),
		SourceChain:   17000,
		DestChain:     10,
		SourceToken:   common.Address{},
		DestToken:     common.HexToAddress("0x01"),
		SourceAmount:  big.NewInt(1_000_000_000_000_000_000),
		MinDestAmount: big.NewInt(1_800_000_000),
		Deadline:      time.Now().Add(time.Hour).Unix(),
		Nonce:         big.NewInt(1),
		Data:          data,
	}
	hash := intent.CanonicalHash()
	sig, err := crypto.Sign(hash[:], key)
	require.NoError(t, err)
	sig[64] += 27
	intent.Signature = sig

	return intent, intent.User
}

func newTestExecutor(destAmount *big.Int) (*Executor, *MockEscrow, *MockDestinationWatcher, *reputation.Engine, *instantClock) {
	ex, escrow, destWatcher, _, repEngine, clk := newTestExecutorWithBridge(destAmount)
	return ex, escrow, destWatcher, repEngine, clk
}

func newTestExecutorWithBridge(destAmount *big.Int) (*Executor, *MockEscrow, *MockDestinationWatcher, *chain.MockBridge, *reputation.Engine, *instantClock) {
	ex, escrow, destWatcher, bridge, _, repEngine, clk := newTestExecutorWithChains(destAmount)
	return ex, escrow, destWatcher, bridge, repEngine, clk
}

func newTestExecutorWithChains(destAmount *big.Int) (*Executor, *MockEscrow, *MockDestinationWatcher, *chain.MockBridge, *chain.MockAdapter, *reputation.Engine, *instantClock) {
	registry := chain.NewRegistry()
	sourceAdapter := chain.NewMockAdapter(17000)
	registry.Register(sourceAdapter)
	registry.Register(chain.NewMockAdapter(10))

	bridge := chain.NewMockBridge()
	escrow := NewMockEscrow()
	destWatcher := NewMockDestinationWatcher(destAmount)
	repEngine := reputation.NewEngine(newInstantClock())
	clk := newInstantClock()
	rng := clock.NewSeededRNG(1, 2)

	ex := New(registry, bridge, escrow, destWatcher, repEngine, clk, rng)
	return ex, escrow, destWatcher, bridge, sourceAdapter, repEngine, clk
}

func registerSolver(t *testing.T, rep *reputation.Engine, solver common.Address) *big.Int {
	t.Helper()
	bond := big.NewInt(2_000_000_000_000_000_000)
	require.NoError(t, rep.Register(solver, bond, []uint64{17000, 10}, 10))
	exposure := big.NewInt(500_000_000_000_000_000)
	require.NoError(t, rep.LockExposure(solver, exposure))
	return exposure
}

func TestExecuteHappyPath(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, escrow, _, rep, _ := newTestExecutor(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	require.NoError(t, err)
	assert.Equal(t, types.IntentExecuted, record.Status)
	assert.Equal(t, types.PhaseSettle, record.Phase)
	assert.Equal(t, 1, escrow.SettleCalls())

	snap, err := rep.Snapshot(solver)
	require.NoError(t, err)
	assert.True(t, snap.ReputationBp > reputation.InitialScoreBp)
}

func TestExecuteLockFailureNoSlash(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, escrow, _, rep, _ := newTestExecutor(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)
	escrow.FailNextLock()

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	assert.ErrorIs(t, err, types.ErrSourceLockFailed)
	assert.Equal(t, types.IntentFailed, record.Status)

	snap, _ := rep.Snapshot(solver)
	assert.False(t, snap.Slashed)
	assert.Equal(t, reputation.InitialScoreBp, snap.ReputationBp)
}

func TestExecuteSlippageExceededRollsBack(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	// below intent.MinDestAmount, so ValidateSlippage fails at Settle.
	ex, escrow, _, rep, _ := newTestExecutor(big.NewInt(1))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	assert.Error(t, err)
	assert.Equal(t, types.IntentFailed, record.Status)
	assert.Equal(t, 1, escrow.ReleaseCalls())

	snap, _ := rep.Snapshot(solver)
	assert.True(t, snap.Slashed)
}

func TestExecuteDestinationFailureRollsBackAndSlashes(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, escrow, destWatcher, rep, _ := newTestExecutor(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)
	destWatcher.FailNext()

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	assert.ErrorIs(t, err, types.ErrDestinationExecutionFailed)
	assert.Equal(t, types.IntentFailed, record.Status)
	assert.Equal(t, 1, escrow.ReleaseCalls())

	snap, _ := rep.Snapshot(solver)
	assert.True(t, snap.Slashed)
}

func TestExecuteSubmitsAndConfirmsMultiHopSourceLeg(t *testing.T) {
	intent, _ := newSignedExecutorIntentWithData(t, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	ex, _, _, _, sourceAdapter, rep, _ := newTestExecutorWithChains(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	require.NoError(t, err)
	assert.Equal(t, types.IntentExecuted, record.Status)

	// The mock adapter only records a receipt for transactions it
	// actually submitted, so a populated receipt store proves SubmitTx
	// (and therefore WaitReceipt, which required that hash) both ran.
	assert.NotZero(t, sourceAdapter.ReceiptCount())
}

func TestExecuteRollsBackWhenSourceLegReverts(t *testing.T) {
	intent, _ := newSignedExecutorIntentWithData(t, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	ex, escrow, _, _, sourceAdapter, rep, _ := newTestExecutorWithChains(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)
	sourceAdapter.FailNextReceiptStatus()

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	assert.ErrorIs(t, err, types.ErrSourceLegReverted)
	assert.Equal(t, types.IntentFailed, record.Status)
	assert.Equal(t, 1, escrow.ReleaseCalls())

	snap, _ := rep.Snapshot(solver)
	assert.True(t, snap.Slashed)
}

func TestExecuteSkipsSourceLegWhenIntentHasNoData(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, _, _, _, sourceAdapter, rep, _ := newTestExecutorWithChains(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	require.NoError(t, err)
	assert.Equal(t, types.IntentExecuted, record.Status)
	assert.Zero(t, sourceAdapter.ReceiptCount())
}

func TestExecuteRetriesRetriableBridgeFlake(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, _, _, bridge, rep, _ := newTestExecutorWithBridge(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	// Spec §8 scenario 2: bridge flakes twice, succeeds on the third
	// attempt — two retries, zero backoff thanks to instantClock.
	bridge.FailSendRetriableTimes(2)

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	require.NoError(t, err)
	assert.Equal(t, types.IntentExecuted, record.Status)
	assert.Equal(t, 2, record.Retries)
	assert.NotEqual(t, common.Hash{}, record.DestTxHash)
}

func TestExecuteBridgeRetriesExhaustedRollsBack(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, escrow, _, bridge, rep, _ := newTestExecutorWithBridge(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	bridge.FailSendRetriableTimes(MaxRetries + 1)

	record, err := ex.Execute(context.Background(), intent, solver, exposure)
	assert.ErrorIs(t, err, types.ErrBridgeProviderTimeout)
	assert.Equal(t, types.IntentFailed, record.Status)
	assert.Equal(t, MaxRetries, record.Retries)
	assert.Equal(t, 1, escrow.ReleaseCalls())

	snap, _ := rep.Snapshot(solver)
	assert.True(t, snap.Slashed)
}

func TestExecuteRejectsExpiredIntent(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	intent.Deadline = time.Now().Add(-time.Hour).Unix()
	ex, _, _, rep, _ := newTestExecutor(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	_, err := ex.Execute(context.Background(), intent, solver, exposure)
	assert.ErrorIs(t, err, types.ErrIntentExpired)
}

func TestExecuteDeduplicatesInFlightIntent(t *testing.T) {
	intent, _ := newSignedExecutorIntent(t)
	ex, _, _, rep, _ := newTestExecutor(big.NewInt(1_850_000_000))
	solver := common.HexToAddress("0xS1")
	exposure := registerSolver(t, rep, solver)

	var wg sync.WaitGroup
	results := make([]*types.ExecutionRecord, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ex.Execute(context.Background(), intent, solver, exposure)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].IntentId, results[1].IntentId)
}
