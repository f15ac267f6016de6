// Package reputation implements the Reputation Engine: solver bonds,
// scores, and slashing — the economic security layer spec §4.5
// describes. Every operation on a given solver is taken under that
// solver's own lock (spec §5: "per-address write-lock; is_eligible +
// lock_exposure must be held under the same lock"), grounded on the
// polybot Executor's per-entity-state-under-lock shape, generalized to
// one lock per solver address instead of one lock for the whole engine.
package reputation

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/orbital-labs/intents-core/internal/types"
	"github.com/orbital-labs/intents-core/pkg/clock"
)

// MinBond is the minimum bond (wei) required to register, default 1
// ETH-equivalent.
var MinBond = big.NewInt(1_000_000_000_000_000_000)

// MinEligibleScoreBp is the minimum reputation score (basis points) for
// is_eligible.
const MinEligibleScoreBp = 3000

// InitialScoreBp is the score assigned on registration.
const InitialScoreBp = 5000

// WithdrawalCooldown is how long bond withdrawals are locked after
// voluntary deregistration, to prevent hit-and-run.
const WithdrawalCooldown = 7 * 24 * time.Hour

// SlashReason enumerates the penalty table from spec §4.5.
type SlashReason int

const (
	ReasonExecutionFailure SlashReason = iota
	ReasonTimeout
	ReasonExcessiveSlippage
	ReasonInvalidProof
	ReasonDoubleSign
)

// PenaltyBp returns the slash penalty, in basis points of locked
// exposure, for each reason. Values quoted verbatim from spec §4.5.
func (r SlashReason) PenaltyBp() int {
	switch r {
	case ReasonExecutionFailure:
		return 500
	case ReasonTimeout:
		return 300
	case ReasonExcessiveSlippage:
		return 200
	case ReasonInvalidProof:
		return 1000
	case ReasonDoubleSign:
		return 10000
	default:
		return 0
	}
}

type solverRecord struct {
	mu     sync.Mutex
	solver types.Solver

	slashedAmount   *big.Int
	lockedExposure  *big.Int
	successfulCount int
	failedCount     int
	volume          *big.Int
	deregisteredAt  time.Time
}

// Engine owns the full solver set.
type Engine struct {
	recordsMu sync.RWMutex
	records   map[common.Address]*solverRecord
	clock     clock.Clock
	logger    *zap.Logger
}

// NewEngine constructs a Reputation Engine backed by clk (the seeded or
// system Clock port, per spec §5's determinism requirement). Logging
// defaults to a no-op logger; call SetLogger to attach an audit sink.
func NewEngine(clk clock.Clock) *Engine {
	return &Engine{
		records: make(map[common.Address]*solverRecord),
		clock:   clk,
		logger:  zap.NewNop(),
	}
}

// SetLogger attaches a structured logger for slash/deregistration audit
// events. Passing nil restores the no-op logger.
func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger
}

func (e *Engine) getOrCreate(addr common.Address) *solverRecord {
	e.recordsMu.Lock()
	defer e.recordsMu.Unlock()
	rec, ok := e.records[addr]
	if !ok {
		rec = &solverRecord{
			solver:         types.Solver{Address: addr},
			slashedAmount:  big.NewInt(0),
			lockedExposure: big.NewInt(0),
			volume:         big.NewInt(0),
		}
		e.records[addr] = rec
	}
	return rec
}

func (e *Engine) get(addr common.Address) (*solverRecord, bool) {
	e.recordsMu.RLock()
	defer e.recordsMu.RUnlock()
	rec, ok := e.records[addr]
	return rec, ok
}

// Register enforces bond >= MinBond and records the solver with the
// default initial score. It takes no signature, and no caller checks a
// registration signature before calling it.
func (e *Engine) Register(addr common.Address, bond *big.Int, supportedChains []uint64, feeBps int) error {
	if bond.Cmp(MinBond) < 0 {
		return types.ErrInsufficientBond
	}

	rec := e.getOrCreate(addr)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.solver.Bond = new(big.Int).Set(bond)
	rec.solver.SupportedChains = supportedChains
	rec.solver.FeeBps = feeBps
	rec.solver.ReputationBp = InitialScoreBp
	rec.solver.Registered = true
	rec.solver.Slashed = false
	rec.solver.LastActive = e.clock.Now()
	return nil
}

// LockExposure reserves amount of bond against an in-flight execution.
func (e *Engine) LockExposure(addr common.Address, amount *big.Int) error {
	rec, ok := e.get(addr)
	if !ok {
		return types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	available := new(big.Int).Sub(rec.solver.Bond, rec.lockedExposure)
	available.Sub(available, rec.slashedAmount)
	if available.Cmp(amount) < 0 {
		return types.ErrInsufficientBond
	}

	rec.lockedExposure = new(big.Int).Add(rec.lockedExposure, amount)
	rec.solver.LockedExposure = rec.lockedExposure
	return nil
}

// ReleaseExposure releases a previously locked amount back to available
// bond.
func (e *Engine) ReleaseExposure(addr common.Address, amount *big.Int) error {
	rec, ok := e.get(addr)
	if !ok {
		return types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.lockedExposure = new(big.Int).Sub(rec.lockedExposure, amount)
	if rec.lockedExposure.Sign() < 0 {
		rec.lockedExposure = big.NewInt(0)
	}
	rec.solver.LockedExposure = rec.lockedExposure
	return nil
}

// successDurationFactor maps an execution duration to a bonus in basis
// points: fast executions earn a larger bump, tapering to a floor for
// slow ones. Grounded on the same shape as internal/auction's
// exec-time scoring term (1 - duration/cap), reused here as the
// f(duration, volume) update function spec §4.5 leaves unspecified in
// closed form.
func successDurationFactor(duration time.Duration, volume *big.Int) int {
	const cap = 300.0 // seconds, matches the auction's exec-time normalization
	seconds := duration.Seconds()
	speedFactor := 1.0 - seconds/cap
	if speedFactor < 0.1 {
		speedFactor = 0.1
	}

	base := 50.0 // base bp awarded per successful execution
	volumeBonus := 0.0
	if volume != nil && volume.Sign() > 0 {
		// log-ish diminishing bonus: every doubling of volume (in 1e18
		// units, via BitLen) adds a flat 5bp bump, capped at +50bp.
		units := new(big.Int).Div(volume, big.NewInt(1_000_000_000_000_000_000))
		volumeBonus = float64(units.BitLen()) * 5.0
		if volumeBonus > 50 {
			volumeBonus = 50
		}
	}
	return int(base*speedFactor + volumeBonus)
}

// UpdateOnSuccess increments the solver's score by f(duration, volume),
// capped at 10000, and accumulates volume/successful_count.
func (e *Engine) UpdateOnSuccess(addr common.Address, volume *big.Int, duration time.Duration) error {
	rec, ok := e.get(addr)
	if !ok {
		return types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	delta := successDurationFactor(duration, volume)
	rec.solver.ReputationBp += delta
	if rec.solver.ReputationBp > 10000 {
		rec.solver.ReputationBp = 10000
	}
	rec.successfulCount++
	rec.volume = new(big.Int).Add(rec.volume, volume)
	rec.solver.LastActive = e.clock.Now()
	return nil
}

// UpdateOnFailure decrements the solver's score by the reason's penalty
// bp, floored at 0, and increments failed_count.
func (e *Engine) UpdateOnFailure(addr common.Address, reason SlashReason) error {
	rec, ok := e.get(addr)
	if !ok {
		return types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.solver.ReputationBp -= reason.PenaltyBp()
	if rec.solver.ReputationBp < 0 {
		rec.solver.ReputationBp = 0
	}
	rec.failedCount++
	return nil
}

// Slash increases slashed_amount by min(exposure * penalty_bp/10000,
// available_bond). If available bond drops below MinBond afterward,
// the registered flag is cleared.
func (e *Engine) Slash(addr common.Address, exposure *big.Int, reason SlashReason) error {
	rec, ok := e.get(addr)
	if !ok {
		return types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	penalty := new(big.Int).Mul(exposure, big.NewInt(int64(reason.PenaltyBp())))
	penalty.Div(penalty, big.NewInt(10000))

	available := new(big.Int).Sub(rec.solver.Bond, rec.lockedExposure)
	available.Sub(available, rec.slashedAmount)
	if penalty.Cmp(available) > 0 {
		penalty = available
	}
	if penalty.Sign() < 0 {
		penalty = big.NewInt(0)
	}

	rec.slashedAmount = new(big.Int).Add(rec.slashedAmount, penalty)
	rec.solver.Slashed = true

	newAvailable := new(big.Int).Sub(rec.solver.Bond, rec.lockedExposure)
	newAvailable.Sub(newAvailable, rec.slashedAmount)
	deregistered := false
	if newAvailable.Cmp(MinBond) < 0 {
		rec.solver.Registered = false
		deregistered = true
	}

	e.logger.Warn("solver slashed",
		zap.Stringer("solver", addr),
		zap.Int("reason", int(reason)),
		zap.String("penalty_wei", penalty.String()),
		zap.String("slashed_total_wei", rec.slashedAmount.String()),
		zap.Bool("deregistered", deregistered),
	)
	return nil
}

// IsEligible reports registered ∧ ¬slashed ∧ available_bond >=
// max(MinBond, intentSize/10) ∧ score >= MinEligibleScoreBp ∧ supports
// the required chains.
func (e *Engine) IsEligible(addr common.Address, intentSize *big.Int, requiredChains []uint64) bool {
	rec, ok := e.get(addr)
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.solver.Registered || rec.solver.Slashed {
		return false
	}

	required := new(big.Int).Div(intentSize, big.NewInt(10))
	if required.Cmp(MinBond) < 0 {
		required = MinBond
	}
	available := new(big.Int).Sub(rec.solver.Bond, rec.lockedExposure)
	available.Sub(available, rec.slashedAmount)
	if available.Cmp(required) < 0 {
		return false
	}

	if rec.solver.ReputationBp < MinEligibleScoreBp {
		return false
	}

	for _, chainID := range requiredChains {
		if !rec.solver.SupportsChain(chainID) {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the solver's current state, for use by the
// Validator and Auction Matcher without exposing the internal lock.
func (e *Engine) Snapshot(addr common.Address) (*types.Solver, error) {
	rec, ok := e.get(addr)
	if !ok {
		return nil, types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	s := rec.solver
	s.Bond = new(big.Int).Set(rec.solver.Bond)
	s.LockedExposure = new(big.Int).Set(rec.lockedExposure)
	return &s, nil
}

// Deregister marks the solver as voluntarily withdrawing, starting the
// withdrawal cooldown.
func (e *Engine) Deregister(addr common.Address) error {
	rec, ok := e.get(addr)
	if !ok {
		return types.ErrSolverNotRegistered
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.solver.Registered = false
	rec.deregisteredAt = e.clock.Now()
	rec.solver.CooldownUntil = rec.deregisteredAt.Add(WithdrawalCooldown)

	e.logger.Info("solver deregistered",
		zap.Stringer("solver", addr),
		zap.Time("cooldown_until", rec.solver.CooldownUntil),
	)
	return nil
}

// CanWithdraw reports whether the withdrawal cooldown has elapsed.
func (e *Engine) CanWithdraw(addr common.Address) bool {
	rec, ok := e.get(addr)
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.deregisteredAt.IsZero() {
		return true
	}
	return !e.clock.Now().Before(rec.solver.CooldownUntil)
}
