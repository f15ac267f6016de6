package auction

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-labs/intents-core/internal/types"
)

func testIntent() *types.Intent {
	return &types.Intent{
		User:          common.HexToAddress("0xA"),
		SourceChain:   17000,
		DestChain:     17000,
		SourceToken:   common.Address{},
		DestToken:     common.HexToAddress("0xB"),
		SourceAmount:  big.NewInt(1_000_000_000_000_000_000),
		MinDestAmount: big.NewInt(1_800_000_000),
		Deadline:      time.Now().Add(time.Hour).Unix(),
		Nonce:         big.NewInt(1),
	}
}

func eligibleSolver(addr common.Address) (*types.Solver, error) {
	return &types.Solver{
		Address:         addr,
		Registered:      true,
		SupportedChains: []uint64{17000},
		Bond:            big.NewInt(1_000_000_000_000_000_000),
		LockedExposure:  big.NewInt(0),
		ReputationBp:    5000,
	}, nil
}

func TestOpenAuctionIsIdempotent(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()

	calls := 0
	broadcast := func(*types.Intent) { calls++ }

	m.OpenAuction(intent, now, broadcast)
	m.OpenAuction(intent, now, broadcast)

	assert.Equal(t, 1, calls)
}

func TestSubmitQuoteAndFinalizeSingleBidder(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)

	id := intent.CanonicalHash()
	quote := types.Quote{
		IntentId:     id,
		Solver:       common.HexToAddress("0xC"),
		DestAmount:   big.NewInt(1_850_000_000),
		GasEstimate:  150_000,
		Confidence:   0.95,
		SubmittedAt:  now,
	}

	require.NoError(t, m.SubmitQuote(id, quote, now, eligibleSolver))

	winner, err := m.Finalize(id, func(types.IntentId) *big.Int { return nil })
	require.NoError(t, err)
	assert.Equal(t, quote.Solver, winner.Solver)
}

func TestRevertAwardReopensAwardedAuction(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)

	id := intent.CanonicalHash()
	quote := types.Quote{
		IntentId:    id,
		Solver:      common.HexToAddress("0xC"),
		DestAmount:  big.NewInt(1_850_000_000),
		GasEstimate: 150_000,
		Confidence:  0.95,
		SubmittedAt: now,
	}
	require.NoError(t, m.SubmitQuote(id, quote, now, eligibleSolver))
	_, err := m.Finalize(id, func(types.IntentId) *big.Int { return nil })
	require.NoError(t, err)

	m.RevertAward(id)

	rec, ok := m.get(id)
	require.True(t, ok)
	assert.Equal(t, types.AuctionOpen, rec.auction.Status)
	assert.Nil(t, rec.auction.Winner)

	// A reverted award can be finalized again.
	winner, err := m.Finalize(id, func(types.IntentId) *big.Int { return nil })
	require.NoError(t, err)
	assert.Equal(t, quote.Solver, winner.Solver)
}

func TestRevertAwardIsNoOpWhenNotAwarded(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)

	id := intent.CanonicalHash()
	m.RevertAward(id) // auction is still Open; must not panic or alter state

	rec, ok := m.get(id)
	require.True(t, ok)
	assert.Equal(t, types.AuctionOpen, rec.auction.Status)
}

func TestFinalizeNoBiddersWhenNoQuotes(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)

	id := intent.CanonicalHash()
	_, err := m.Finalize(id, func(types.IntentId) *big.Int { return nil })
	assert.ErrorIs(t, err, types.ErrNoBidders)
}

func TestFinalizePicksHighestScoringQuote(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)
	id := intent.CanonicalHash()

	low := types.Quote{IntentId: id, Solver: common.HexToAddress("0x1"), DestAmount: big.NewInt(1_800_000_000), Confidence: 0.5, SubmittedAt: now}
	high := types.Quote{IntentId: id, Solver: common.HexToAddress("0x2"), DestAmount: big.NewInt(1_950_000_000), Confidence: 0.99, SubmittedAt: now}

	require.NoError(t, m.SubmitQuote(id, low, now, eligibleSolver))
	require.NoError(t, m.SubmitQuote(id, high, now, eligibleSolver))

	winner, err := m.Finalize(id, func(types.IntentId) *big.Int { return nil })
	require.NoError(t, err)
	assert.Equal(t, high.Solver, winner.Solver)
}

func TestSubmitQuoteReplacesEarlierFromSameSolver(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)
	id := intent.CanonicalHash()

	solver := common.HexToAddress("0x1")
	first := types.Quote{IntentId: id, Solver: solver, DestAmount: big.NewInt(1_800_000_000), SubmittedAt: now}
	second := types.Quote{IntentId: id, Solver: solver, DestAmount: big.NewInt(1_900_000_000), SubmittedAt: now.Add(time.Millisecond)}

	require.NoError(t, m.SubmitQuote(id, first, now, eligibleSolver))
	require.NoError(t, m.SubmitQuote(id, second, now, eligibleSolver))

	winner, err := m.Finalize(id, func(types.IntentId) *big.Int { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, winner.DestAmount.Cmp(big.NewInt(1_900_000_000)))
}

func TestSubmitQuoteRejectsBelowMinDest(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)
	id := intent.CanonicalHash()

	quote := types.Quote{IntentId: id, Solver: common.HexToAddress("0x1"), DestAmount: big.NewInt(1), SubmittedAt: now}
	err := m.SubmitQuote(id, quote, now, eligibleSolver)
	assert.ErrorIs(t, err, types.ErrSlippageExceeded)
}

func TestSubmitQuoteRejectsIneligibleSolver(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)
	id := intent.CanonicalHash()

	ineligible := func(addr common.Address) (*types.Solver, error) {
		return &types.Solver{Address: addr, Registered: false}, nil
	}

	quote := types.Quote{IntentId: id, Solver: common.HexToAddress("0x1"), DestAmount: big.NewInt(1_900_000_000), SubmittedAt: now}
	err := m.SubmitQuote(id, quote, now, ineligible)
	assert.ErrorIs(t, err, types.ErrSolverNotRegistered)
}

func TestSubmitQuoteRejectsAfterDeadline(t *testing.T) {
	m := NewMatcher(big.NewInt(100))
	intent := testIntent()
	now := time.Now()
	m.OpenAuction(intent, now, nil)
	id := intent.CanonicalHash()

	quote := types.Quote{IntentId: id, Solver: common.HexToAddress("0x1"), DestAmount: big.NewInt(1_900_000_000), SubmittedAt: now}
	err := m.SubmitQuote(id, quote, now.Add(DefaultAuctionWindow+time.Second), eligibleSolver)
	assert.ErrorIs(t, err, types.ErrIntentExpired)
}
