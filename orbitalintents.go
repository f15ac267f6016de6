// Package orbitalintents wires the Validator, Auction Matcher,
// Reputation Engine, Chain/Bridge adapters, and Intent Executor into a
// single Engine, the way the teacher's Blackhole struct holds its
// ContractClient map and TxListener and exposes one method per DEX
// action. Here one method exists per intent lifecycle step instead of
// per DEX action: Submit, Quote, Finalize, Execute.
package orbitalintents

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/orbital-labs/intents-core/internal/auction"
	"github.com/orbital-labs/intents-core/internal/chain"
	"github.com/orbital-labs/intents-core/internal/db"
	"github.com/orbital-labs/intents-core/internal/executor"
	"github.com/orbital-labs/intents-core/internal/reputation"
	"github.com/orbital-labs/intents-core/internal/types"
	"github.com/orbital-labs/intents-core/internal/validator"
	"github.com/orbital-labs/intents-core/pkg/clock"
)

// Engine is the top-level orchestrator: the root package's equivalent
// of the teacher's Blackhole struct, minus any single hardcoded
// contract set.
type Engine struct {
	Chains     *chain.Registry
	Bridge     chain.Bridge
	Matcher    *auction.Matcher
	Reputation *reputation.Engine
	Executor   *executor.Executor
	Recorder   *db.Recorder
	clock      clock.Clock
	logger     *zap.Logger
}

// Config bundles the constructor arguments an Engine needs beyond its
// component ports, mirroring the teacher's
// configs.Config.ToBlackholeConfigs translation layer.
type Config struct {
	MinBond *big.Int
}

// New wires an Engine from already-constructed ports. cmd/orbitald
// assembles those ports (chain adapters dialed from config, a MySQL
// recorder, a seeded or system clock) and calls New once at startup.
func New(
	chains *chain.Registry,
	bridge chain.Bridge,
	escrow executor.Escrow,
	destWatcher executor.DestinationWatcher,
	recorder *db.Recorder,
	clk clock.Clock,
	rng clock.RNG,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	minBond := cfg.MinBond
	if minBond == nil {
		minBond = reputation.MinBond
	}

	repEngine := reputation.NewEngine(clk)
	repEngine.SetLogger(logger)

	matcher := auction.NewMatcher(minBond)

	exec := executor.New(chains, bridge, escrow, destWatcher, repEngine, clk, rng)
	exec.SetLogger(logger)

	return &Engine{
		Chains:     chains,
		Bridge:     bridge,
		Matcher:    matcher,
		Reputation: repEngine,
		Executor:   exec,
		Recorder:   recorder,
		clock:      clk,
		logger:     logger,
	}
}

// RegisterSolver onboards a solver: validates the bond floor via the
// Reputation Engine, then persists the row if a Recorder is attached.
func (e *Engine) RegisterSolver(solver common.Address, bond *big.Int, supportedChains []uint64, feeBps int) error {
	if err := e.Reputation.Register(solver, bond, supportedChains, feeBps); err != nil {
		return fmt.Errorf("register solver: %w", err)
	}
	if e.Recorder != nil {
		snap, err := e.Reputation.Snapshot(solver)
		if err != nil {
			return fmt.Errorf("register solver: snapshot: %w", err)
		}
		if err := e.Recorder.UpsertSolver(snap); err != nil {
			return fmt.Errorf("register solver: persist: %w", err)
		}
	}
	return nil
}

// SubmitIntent validates intent's signature and deadline, records it,
// and opens its auction window. broadcast notifies registered solvers
// (a Chain/P2P-layer concern this Engine does not own).
func (e *Engine) SubmitIntent(intent *types.Intent, broadcast func(*types.Intent)) error {
	if err := validator.ValidateIntentStructure(intent); err != nil {
		return fmt.Errorf("submit intent: %w", err)
	}
	if err := validator.ValidateSignature(intent); err != nil {
		return fmt.Errorf("submit intent: %w", err)
	}
	now := e.clock.Now()
	if err := validator.ValidateDeadline(intent, now); err != nil {
		return fmt.Errorf("submit intent: %w", err)
	}

	if e.Recorder != nil {
		if err := e.Recorder.RecordIntent(intent); err != nil {
			return fmt.Errorf("submit intent: persist: %w", err)
		}
	}

	e.Matcher.OpenAuction(intent, now, broadcast)
	e.logger.Info("intent submitted", zap.Stringer("intent_id", common.Hash(intent.CanonicalHash())))
	return nil
}

// SubmitQuote forwards a solver's bid to the Matcher, re-checking
// eligibility against the Reputation Engine's live snapshot under the
// auction's own lock (spec §4.4's TOCTOU closure).
func (e *Engine) SubmitQuote(id types.IntentId, quote types.Quote) error {
	eligibility := func(solverAddr common.Address) (*types.Solver, error) {
		return e.Reputation.Snapshot(solverAddr)
	}
	if err := e.Matcher.SubmitQuote(id, quote, e.clock.Now(), eligibility); err != nil {
		return fmt.Errorf("submit quote: %w", err)
	}
	return nil
}

// FinalizeAuction scores an intent's quotes and selects a winner. On
// success, intent's status is persisted as Matched and the winner's
// exposure is locked ahead of execution.
func (e *Engine) FinalizeAuction(id types.IntentId, maxDestInPool func(types.IntentId) *big.Int) (*types.Quote, error) {
	winner, err := e.Matcher.Finalize(id, maxDestInPool)
	if err != nil {
		return nil, fmt.Errorf("finalize auction: %w", err)
	}

	if err := e.Reputation.LockExposure(winner.Solver, winner.DestAmount); err != nil {
		// Atomicity per spec §4.4: a failure anywhere in the award's
		// critical section rolls the auction back to Open (intent stays
		// Created) rather than leaving a half-awarded auction with no
		// locked exposure behind it.
		e.Matcher.RevertAward(id)
		return nil, fmt.Errorf("finalize auction: lock exposure: %w", err)
	}
	if e.Recorder != nil {
		_ = e.Recorder.UpdateIntentStatus(id, types.IntentMatched)
	}
	return winner, nil
}

// ExecuteIntent drives a matched intent's winning solver through the
// Executor's 8-phase state machine and persists the resulting record.
func (e *Engine) ExecuteIntent(ctx context.Context, intent *types.Intent, winner types.Quote) (*types.ExecutionRecord, error) {
	record, execErr := e.Executor.Execute(ctx, intent, winner.Solver, winner.DestAmount)

	if e.Recorder != nil && record != nil {
		if err := e.Recorder.RecordExecution(record); err != nil {
			e.logger.Warn("failed to persist execution record",
				zap.Stringer("intent_id", common.Hash(record.IntentId)), zap.Error(err))
		}
		if err := e.Recorder.UpdateIntentStatus(record.IntentId, record.Status); err != nil {
			e.logger.Warn("failed to persist intent status",
				zap.Stringer("intent_id", common.Hash(record.IntentId)), zap.Error(err))
		}
	}
	return record, execErr
}

// Close flushes the logger and closes the Recorder's DB connection, if
// attached.
func (e *Engine) Close() error {
	_ = e.logger.Sync()
	if e.Recorder != nil {
		return e.Recorder.Close()
	}
	return nil
}
