// Package executor drives a matched intent through the 8-phase
// cross-chain execution state machine (spec §4.6): Validate, MEV Delay,
// Lock Source, Execute Source Leg, Bridge, Execute Destination Leg,
// Verify Proof, Settle, with rollback on any terminal failure after
// phase 3. Grounded on the teacher's Mint/Stake/Unstake methods in
// blackhole.go (each a fixed validate → send → wait-for-receipt →
// record sequence) for the per-phase shape, and on
// web3guy0-polybot's Executor (mutex-guarded map of in-flight orders,
// retry loop, semaphore-style concurrency cap) for the process-wide
// in-flight tracking and MAX_CONCURRENT_EXECUTIONS backpressure.
package executor

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/orbital-labs/intents-core/internal/chain"
	"github.com/orbital-labs/intents-core/internal/reputation"
	"github.com/orbital-labs/intents-core/internal/types"
	"github.com/orbital-labs/intents-core/internal/validator"
	"github.com/orbital-labs/intents-core/pkg/clock"
)

// MaxConcurrentExecutions bounds the number of intents in non-terminal
// phases at once.
const MaxConcurrentExecutions = 10

// ExecutionTimeout is the per-execution hard wall-clock budget.
const ExecutionTimeout = 300 * time.Second

// MaxRetries bounds the Bridge phase's retry loop for retriable errors.
const MaxRetries = 3

// RetryBackoffBase is the exponential-backoff base duration: attempt i
// waits RetryBackoffBase * 2^i.
const RetryBackoffBase = 2 * time.Second

// MEVDelayMin and MEVDelayMax bound the randomized pre-execution delay.
const (
	MEVDelayMin = 2 * time.Second
	MEVDelayMax = 8 * time.Second
)

// Escrow is the source-chain lock/release/settle port the Executor
// drives in phases 3 and 8, reconstructed from blackhole.go's
// approve-then-send transaction pattern (Mint/Stake/Unstake) and
// generalized from "deposit into a specific Blackhole contract" to
// "lock an arbitrary intent's source amount under its id".
type Escrow interface {
	Lock(ctx context.Context, intent *types.Intent) (common.Hash, error)
	Release(ctx context.Context, intent *types.Intent) error
	Settle(ctx context.Context, intent *types.Intent, solver common.Address) error
}

// DestinationWatcher observes the destination chain for the winning
// solver's fulfillment transaction, returning the receipt's tx hash and
// the actual amount delivered to the user (spec §4.6 phase 6). This
// boundary is not pinned down further by the source material; its shape
// here is an engineering decision recorded in the grounding ledger.
type DestinationWatcher interface {
	AwaitFulfillment(ctx context.Context, intent *types.Intent, solver common.Address) (txHash common.Hash, actualDest *big.Int, err error)
}

// Handle is returned to a caller attempting to execute an intent
// already in flight (spec §4.6 "at-most-one guarantee").
type Handle struct {
	done   chan struct{}
	record *types.ExecutionRecord
	err    error
}

// Wait blocks until the execution this handle refers to reaches a
// terminal state, or ctx is cancelled first.
func (h *Handle) Wait(ctx context.Context) (*types.ExecutionRecord, error) {
	select {
	case <-h.done:
		return h.record, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Executor owns the concurrency-bounded, in-flight-deduplicated fleet
// of intent executions.
type Executor struct {
	chains      *chain.Registry
	bridge      chain.Bridge
	escrow      Escrow
	destWatcher DestinationWatcher
	reputation  *reputation.Engine
	clock       clock.Clock
	rng         clock.RNG
	logger      *zap.Logger

	sem chan struct{}

	inFlightMu sync.Mutex
	inFlight   map[types.IntentId]*Handle
}

// New constructs an Executor wired to its ports. Logging defaults to a
// no-op logger; call SetLogger to attach an audit sink.
func New(
	chains *chain.Registry,
	bridge chain.Bridge,
	escrow Escrow,
	destWatcher DestinationWatcher,
	reputationEngine *reputation.Engine,
	clk clock.Clock,
	rng clock.RNG,
) *Executor {
	return &Executor{
		chains:      chains,
		bridge:      bridge,
		escrow:      escrow,
		destWatcher: destWatcher,
		reputation:  reputationEngine,
		clock:       clk,
		rng:         rng,
		logger:      zap.NewNop(),
		sem:         make(chan struct{}, MaxConcurrentExecutions),
		inFlight:    make(map[types.IntentId]*Handle),
	}
}

// SetLogger attaches a structured logger for per-phase audit events.
// Passing nil restores the no-op logger.
func (e *Executor) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger
}

// Execute runs intent through all 8 phases under ctx, honoring
// ExecutionTimeout, MaxConcurrentExecutions, and the at-most-one
// guarantee: a second Execute call for an id already running returns
// the same in-flight handle's result instead of starting a duplicate
// run.
func (e *Executor) Execute(ctx context.Context, intent *types.Intent, solver common.Address, exposure *big.Int) (*types.ExecutionRecord, error) {
	id := intent.CanonicalHash()

	e.inFlightMu.Lock()
	if existing, ok := e.inFlight[id]; ok {
		e.inFlightMu.Unlock()
		return existing.Wait(ctx)
	}
	handle := &Handle{done: make(chan struct{})}
	e.inFlight[id] = handle
	e.inFlightMu.Unlock()

	defer func() {
		e.inFlightMu.Lock()
		delete(e.inFlight, id)
		e.inFlightMu.Unlock()
		close(handle.done)
	}()

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		handle.err = ctx.Err()
		return nil, handle.err
	}

	execCtx, cancel := context.WithTimeout(ctx, ExecutionTimeout)
	defer cancel()

	record := &types.ExecutionRecord{
		IntentId:  id,
		Solver:    solver,
		Status:    types.IntentMatched,
		CreatedAt: e.clock.Now(),
		UpdatedAt: e.clock.Now(),
	}

	record, err := e.run(execCtx, intent, solver, exposure, record)
	handle.record = record
	handle.err = err
	return record, err
}

func (e *Executor) run(ctx context.Context, intent *types.Intent, solver common.Address, exposure *big.Int, record *types.ExecutionRecord) (*types.ExecutionRecord, error) {
	record.Phase = types.PhaseValidate
	if err := e.phaseValidate(intent); err != nil {
		record.Status = types.IntentFailed
		record.FailureReason = err.Error()
		return record, err
	}

	record.Phase = types.PhaseMEVDelay
	if err := e.phaseMEVDelay(ctx); err != nil {
		record.Status = types.IntentFailed
		record.FailureReason = err.Error()
		return record, err
	}

	record.Phase = types.PhaseLockSource
	record.Status = types.IntentExecuting
	sourceTxHash, err := e.phaseLockSource(ctx, intent)
	if err != nil {
		// Pre-execution failure: nothing to roll back, exposure simply
		// returns to the solver and the intent fails without a slash.
		record.Status = types.IntentFailed
		record.FailureReason = err.Error()
		if e.reputation != nil {
			_ = e.reputation.ReleaseExposure(solver, exposure)
		}
		return record, err
	}
	record.SourceTxHash = sourceTxHash

	record.Phase = types.PhaseExecuteSourceLeg
	if err := e.phaseExecuteSourceLeg(ctx, intent); err != nil {
		return e.rollback(ctx, intent, solver, exposure, record, err, reputation.ReasonExecutionFailure)
	}

	record.Phase = types.PhaseBridge
	bridgeReceipt, retries, err := e.phaseBridge(ctx, intent, solver)
	record.Retries = retries
	if err != nil {
		reason := reputation.ReasonExecutionFailure
		if err == types.ErrTimeout {
			reason = reputation.ReasonTimeout
		}
		return e.rollback(ctx, intent, solver, exposure, record, err, reason)
	}

	record.Phase = types.PhaseExecuteDestinationLeg
	destTxHash, actualDest, err := e.phaseExecuteDestinationLeg(ctx, intent, solver)
	if err != nil {
		return e.rollback(ctx, intent, solver, exposure, record, err, reputation.ReasonExecutionFailure)
	}
	record.DestTxHash = destTxHash
	record.ActualDest = actualDest

	record.Phase = types.PhaseVerifyProof
	proof, err := e.phaseVerifyProof(ctx, intent, bridgeReceipt)
	if err != nil {
		return e.rollback(ctx, intent, solver, exposure, record, err, reputation.ReasonInvalidProof)
	}
	_ = proof

	record.Phase = types.PhaseSettle
	if err := validator.ValidateSlippage(intent, actualDest); err != nil {
		return e.rollback(ctx, intent, solver, exposure, record, err, reputation.ReasonExcessiveSlippage)
	}

	if err := e.escrow.Settle(ctx, intent, solver); err != nil {
		return e.rollback(ctx, intent, solver, exposure, record, err, reputation.ReasonExecutionFailure)
	}

	if e.reputation != nil {
		_ = e.reputation.ReleaseExposure(solver, exposure)
		_ = e.reputation.UpdateOnSuccess(solver, actualDest, e.clock.Now().Sub(record.CreatedAt))
	}

	record.Status = types.IntentExecuted
	record.UpdatedAt = e.clock.Now()

	e.logger.Info("intent executed",
		zap.Stringer("intent_id", common.Hash(record.IntentId)),
		zap.Stringer("solver", solver),
		zap.String("actual_dest", actualDest.String()),
	)
	return record, nil
}

func (e *Executor) phaseValidate(intent *types.Intent) error {
	if err := validator.ValidateIntentStructure(intent); err != nil {
		return err
	}
	if err := validator.ValidateSignature(intent); err != nil {
		return err
	}
	return validator.ValidateDeadline(intent, e.clock.Now())
}

func (e *Executor) phaseMEVDelay(ctx context.Context) error {
	delay := clock.MEVDelay(e.rng, MEVDelayMin, MEVDelayMax)
	select {
	case <-e.clock.Sleep(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) phaseLockSource(ctx context.Context, intent *types.Intent) (common.Hash, error) {
	return e.escrow.Lock(ctx, intent)
}

// sourceLegGasLimit bounds the gas offered for a source-leg DEX
// transaction; the Route Optimizer already validated the route's
// EstimatedGas before the auction, so this is deliberately generous
// headroom rather than a tight estimate.
const sourceLegGasLimit = 2_000_000

// sourceLegMinConfirmations is the confirmation depth the Executor
// waits for before treating the source-leg transaction as final.
const sourceLegMinConfirmations = 1

// phaseExecuteSourceLeg submits and confirms the source-chain DEX
// interaction computed by internal/route + internal/orbital upstream
// of the Executor, per spec §4.6 phase 4 ("if source-chain DEX
// interaction is required (multi-hop), submit and wait for
// confirmation"). An intent with no opaque Data is a plain single-hop
// transfer that needs no further on-chain action once locked.
func (e *Executor) phaseExecuteSourceLeg(ctx context.Context, intent *types.Intent) error {
	if len(intent.Data) == 0 {
		return nil
	}

	adapter, err := e.chains.Adapter(intent.SourceChain)
	if err != nil {
		return err
	}

	txHash, err := adapter.SubmitTx(ctx, chain.TxSpec{
		To:       intent.SourceToken,
		Data:     intent.Data,
		GasLimit: sourceLegGasLimit,
	})
	if err != nil {
		return err
	}

	receipt, err := adapter.WaitReceipt(ctx, txHash, sourceLegMinConfirmations)
	if err != nil {
		return err
	}
	if !receipt.Succeeded() {
		return types.ErrSourceLegReverted
	}
	return nil
}

// phaseBridge returns the bridge receipt and the number of retries
// consumed before success (or exhaustion) — spec §8 scenario 2 expects
// ExecutionRecord.Retries to reflect this count (e.g. 2 retries before a
// third, successful, attempt).
func (e *Executor) phaseBridge(ctx context.Context, intent *types.Intent, solver common.Address) (*chain.BridgeReceipt, int, error) {
	msg := chain.BridgeMessage{
		IntentId:    intent.CanonicalHash(),
		SourceChain: intent.SourceChain,
		DestChain:   intent.DestChain,
		Payload:     encodeBridgePayload(intent, solver),
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		receipt, err := e.bridge.Send(ctx, msg)
		if err == nil {
			return receipt, attempt, nil
		}
		lastErr = err

		if !isRetriable(err) {
			return nil, attempt, err
		}
		if attempt == MaxRetries {
			break
		}

		backoff := RetryBackoffBase * time.Duration(1<<uint(attempt))
		select {
		case <-e.clock.Sleep(backoff):
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		}
	}
	return nil, MaxRetries, lastErr
}

func isRetriable(err error) bool {
	return err == types.ErrRpcUnavailable || err == types.ErrBridgeProviderTimeout || err == types.ErrTimeout
}

func encodeBridgePayload(intent *types.Intent, solver common.Address) []byte {
	id := intent.CanonicalHash()
	buf := make([]byte, 0, 32+20+20+32+8)
	buf = append(buf, id[:]...)
	buf = append(buf, intent.DestToken.Bytes()...)
	buf = append(buf, solver.Bytes()...)
	buf = append(buf, common.LeftPadBytes(intent.MinDestAmount.Bytes(), 32)...)
	return buf
}

func (e *Executor) phaseExecuteDestinationLeg(ctx context.Context, intent *types.Intent, solver common.Address) (common.Hash, *big.Int, error) {
	return e.destWatcher.AwaitFulfillment(ctx, intent, solver)
}

func (e *Executor) phaseVerifyProof(ctx context.Context, intent *types.Intent, receipt *chain.BridgeReceipt) (*validator.ExecutionProof, error) {
	incl, err := e.bridge.Prove(ctx, receipt)
	if err != nil {
		return nil, err
	}

	proof := &validator.ExecutionProof{
		ChainID:          intent.DestChain,
		BlockNumber:      incl.BlockNumber,
		ChainHeadNumber:  incl.ChainHeadNumber,
		ReceiptsRoot:     incl.ReceiptsRoot,
		Key:              incl.Key,
		Value:            incl.Value,
		ProofNodes:       incl.ProofNodes,
		EmbeddedIntentId: incl.EmbeddedIntentId,
	}
	if err := validator.ValidateExecutionProof(intent.CanonicalHash(), proof); err != nil {
		return nil, err
	}
	return proof, nil
}

// rollback undoes the source-chain lock, best-effort cancels any
// in-flight bridge message, slashes the winning solver per
// penalty_bp(reason), and marks the intent Failed. Each call repeats
// the escrow release, the slash and the reputation penalty, so a second
// call for the same intent slashes and penalizes the solver again; the
// phase sequence calls it once, on the first failing phase.
func (e *Executor) rollback(ctx context.Context, intent *types.Intent, solver common.Address, exposure *big.Int, record *types.ExecutionRecord, cause error, reason reputation.SlashReason) (*types.ExecutionRecord, error) {
	_ = e.escrow.Release(ctx, intent)

	if e.reputation != nil {
		_ = e.reputation.Slash(solver, exposure, reason)
		_ = e.reputation.ReleaseExposure(solver, exposure)
		_ = e.reputation.UpdateOnFailure(solver, reason)
	}

	record.Status = types.IntentFailed
	record.FailureReason = cause.Error()
	record.Retriable = isRetriable(cause)
	record.UpdatedAt = e.clock.Now()

	e.logger.Warn("intent execution rolled back",
		zap.Stringer("intent_id", common.Hash(record.IntentId)),
		zap.Stringer("solver", solver),
		zap.Stringer("phase", record.Phase),
		zap.Error(cause),
		zap.Int("slash_reason", int(reason)),
	)
	return record, cause
}
