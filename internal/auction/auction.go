// Package auction implements the Auction Matcher: a single-round
// competitive auction per intent, run under a per-intent write-lock so
// eligibility checks and quote submission close the TOCTOU window spec
// §4.4 calls out (a concurrent slash must not race a quote submission).
// The concurrency shape (per-entity lock guarding both state transition
// and a map of child records, a separate top-level lock only for map
// membership) is grounded on the polybot Executor's single-struct
// order-lifecycle manager, generalized from one mutex per whole executor
// to one mutex per auction record since intents here are matched
// independently and concurrently.
package auction

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/orbital-labs/intents-core/internal/types"
	"github.com/orbital-labs/intents-core/internal/validator"
)

// DefaultAuctionWindow is the duration an auction stays Open before it
// can be finalized by time (spec §4.4, "close-at = open-at +
// auction_window, default 2s").
const DefaultAuctionWindow = 2 * time.Second

// DefaultMinQuotes is the minimum number of quotes required for
// finalize to select a winner rather than return NoBidders.
const DefaultMinQuotes = 1

// ReauctionCooldown is how long a NoBidders intent must wait before it
// may be re-opened (spec §8 scenario 5).
const ReauctionCooldown = 5 * time.Second

// ScoreWeights are the auction's profit-estimation weights, quoted
// verbatim from the source per spec §9's Open Question: rebalancing
// these would change matcher outcomes and is out of scope.
const (
	WeightDestAmount = 0.35
	WeightReputation = 0.25
	WeightExecTime   = 0.15
	WeightConfidence = 0.10
	WeightOrbital    = 0.15
)

// SolverEligibility is the snapshot callback the Matcher uses to
// re-check a solver's standing at submission time, under the auction's
// lock, closing the TOCTOU window described in spec §4.4(c).
type SolverEligibility func(solverAddr common.Address) (*types.Solver, error)

type record struct {
	mu      sync.Mutex
	auction types.Auction
	intent  *types.Intent
}

// Matcher owns the set of in-flight auction records.
type Matcher struct {
	recordsMu sync.RWMutex
	records   map[types.IntentId]*record

	minQuotes     int
	auctionWindow time.Duration
	minBond       *big.Int
}

// NewMatcher constructs a Matcher with the spec's default auction
// window and minimum-quotes threshold. minBond is the floor used in
// validator.ValidateSolver's max(min_bond, source_amount/10) check.
func NewMatcher(minBond *big.Int) *Matcher {
	return &Matcher{
		records:       make(map[types.IntentId]*record),
		minQuotes:     DefaultMinQuotes,
		auctionWindow: DefaultAuctionWindow,
		minBond:       minBond,
	}
}

// OpenAuction creates an auction record for intent and broadcasts
// eligibility info to registered solvers via the caller-supplied
// broadcast function (the Chain/Solver port, not owned by this
// package). Idempotent: re-opening the same intent id is a no-op.
func (m *Matcher) OpenAuction(intent *types.Intent, now time.Time, broadcast func(*types.Intent)) {
	id := intent.CanonicalHash()

	m.recordsMu.Lock()
	if _, exists := m.records[id]; exists {
		m.recordsMu.Unlock()
		return
	}
	rec := &record{
		intent: intent,
		auction: types.Auction{
			IntentId: id,
			Status:   types.AuctionOpen,
			OpenedAt: now,
			ClosesAt: now.Add(m.auctionWindow),
		},
	}
	m.records[id] = rec
	m.recordsMu.Unlock()

	if broadcast != nil {
		broadcast(intent)
	}
}

func (m *Matcher) get(id types.IntentId) (*record, bool) {
	m.recordsMu.RLock()
	defer m.recordsMu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok
}

// SubmitQuote validates and records a solver's bid under the auction's
// write-lock: (a) auction must be Open; (b) the auction deadline must
// not have passed; (c) eligibility is re-checked via eligibility() under
// this same lock; (d) quote.DestAmount must clear the intent's
// min_dest_amount. At most one quote survives per solver per auction —
// a later quote from the same solver replaces the earlier one.
func (m *Matcher) SubmitQuote(id types.IntentId, quote types.Quote, now time.Time, eligibility SolverEligibility) error {
	rec, ok := m.get(id)
	if !ok {
		return types.ErrNoBidders
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Status != types.AuctionOpen {
		return types.ErrNoBidders
	}
	if now.After(rec.auction.ClosesAt) {
		return types.ErrIntentExpired
	}

	solver, err := eligibility(quote.Solver)
	if err != nil {
		return err
	}
	if err := validator.ValidateSolver(solver, rec.intent, m.minBond); err != nil {
		return err
	}

	if quote.DestAmount.Cmp(rec.intent.MinDestAmount) < 0 {
		return types.ErrSlippageExceeded
	}

	quote.ReputationBpAtSubmission = solver.ReputationBp

	for i, existing := range rec.auction.Quotes {
		if existing.Solver == quote.Solver {
			rec.auction.Quotes[i] = quote
			return nil
		}
	}
	rec.auction.Quotes = append(rec.auction.Quotes, quote)
	return nil
}

// Finalize scores all quotes and selects the winner, transitioning the
// auction to Awarded, or to NoBidders if fewer than minQuotes were
// received. Returns the winning quote (nil on NoBidders). maxDestInPool
// supplies the 0.35-weight normalization denominator (spec §4.4); if it
// reports 0, the highest quoted dest_amount among this auction's own
// quotes is used instead so a single-quote auction still scores sanely.
func (m *Matcher) Finalize(id types.IntentId, maxDestInPool func(types.IntentId) *big.Int) (*types.Quote, error) {
	rec, ok := m.get(id)
	if !ok {
		return nil, types.ErrNoBidders
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Status != types.AuctionOpen {
		return nil, types.ErrNoBidders
	}
	// Close the bidding window before scoring, per the documented
	// Open -> Closed -> Awarded|NoBidders state machine; held under
	// rec.mu for the rest of Finalize, so no SubmitQuote can observe or
	// act on a Closed auction mid-scoring.
	rec.auction.Status = types.AuctionClosed

	if len(rec.auction.Quotes) < m.minQuotes {
		rec.auction.Status = types.AuctionNoBidders
		return nil, types.ErrNoBidders
	}

	maxDest := maxDestInPool(id)
	if maxDest == nil || maxDest.Sign() <= 0 {
		maxDest = maxQuoteDestAmount(rec.auction.Quotes)
	}
	maxDestF := bigIntToFloat(maxDest)

	bestIdx := 0
	bestScore := score(rec.auction.Quotes[0], maxDestF)
	for i := 1; i < len(rec.auction.Quotes); i++ {
		s := score(rec.auction.Quotes[i], maxDestF)
		if isBetter(rec.auction.Quotes[i], s, rec.auction.Quotes[bestIdx], bestScore) {
			bestIdx = i
			bestScore = s
		}
	}

	rec.auction.Status = types.AuctionAwarded
	rec.auction.Winner = &rec.auction.Quotes[bestIdx]
	return rec.auction.Winner, nil
}

// RevertAward rolls an Awarded auction back to Open, for the case where
// a step after Finalize in the same atomic award critical section fails
// (spec §4.4, "Any failure rolls back to Created"). A no-op if the
// auction isn't currently Awarded.
func (m *Matcher) RevertAward(id types.IntentId) {
	rec, ok := m.get(id)
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Status != types.AuctionAwarded {
		return
	}
	rec.auction.Status = types.AuctionOpen
	rec.auction.Winner = nil
}

func score(q types.Quote, maxDestInPool float64) float64 {
	destScore := 0.0
	if maxDestInPool > 0 {
		destScore = bigIntToFloat(q.DestAmount) / maxDestInPool
	}

	reputationScore := float64(q.ReputationBpAtSubmission) / 10000.0
	execTimeScore := 1.0 - q.ExecTimeSec/300.0
	if execTimeScore < 0 {
		execTimeScore = 0
	}

	return WeightDestAmount*destScore +
		WeightReputation*reputationScore +
		WeightExecTime*execTimeScore +
		WeightConfidence*q.Confidence +
		WeightOrbital*q.OrbitalOptimizationFactor
}

// isBetter applies the scoring comparison, then the spec's tie-break
// order: higher dest_amount, then higher reputation, then earliest
// submission timestamp.
func isBetter(q types.Quote, qScore float64, best types.Quote, bestScore float64) bool {
	if qScore != bestScore {
		return qScore > bestScore
	}
	if cmp := q.DestAmount.Cmp(best.DestAmount); cmp != 0 {
		return cmp > 0
	}
	if q.ReputationBpAtSubmission != best.ReputationBpAtSubmission {
		return q.ReputationBpAtSubmission > best.ReputationBpAtSubmission
	}
	return q.SubmittedAt.Before(best.SubmittedAt)
}

func maxQuoteDestAmount(quotes []types.Quote) *big.Int {
	max := big.NewInt(0)
	for _, q := range quotes {
		if q.DestAmount.Cmp(max) > 0 {
			max = q.DestAmount
		}
	}
	return max
}

func bigIntToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
