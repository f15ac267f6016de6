package orbital

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CurveType selects which invariant a pool enforces.
type CurveType int

const (
	CurveSphere CurveType = iota
	CurveSuperellipse
)

// DefaultToleranceBp is the default tolerance (10 bp of R²) within which
// Σrᵢ² may deviate from the target invariant after a mutation.
const DefaultToleranceBp = 10

// DefaultFeeBp is the swap fee retained in the pool's reserves, growing
// the invariant target per spec invariant 2 (K-monotonicity).
const DefaultFeeBp = 30

// DefaultMaxSegments bounds toroidal segmentation depth (spec §4.1).
const DefaultMaxSegments = 8

// TickID is a 32-byte content-addressed identifier, following the
// arena+id convention from spec §9 (no back-pointers; lookups go through
// the owning collection).
type TickID [32]byte

// LPPositionID is a 32-byte content-addressed identifier for an LP
// position within the arena.
type LPPositionID [32]byte

// Tick is a nested spherical cap bounded by the hyperplane r·1 = c·√N.
// Ticks are nested, never disjoint: a reserve point inside tick k is
// inside every wider tick.
type Tick struct {
	ID             TickID
	PlaneConstant  *big.Int // c, in the same 1e18-scaled units as reserves
	LiquidityShare *big.Int
	Interior       bool // false = on-boundary (lower-dimensional sphere)
	DepegLimitBp   int  // basis points from the equal-price point
	LPRefs         []LPPositionID
}

// LPPosition is a liquidity provider's stake across one or more ticks.
type LPPosition struct {
	ID             LPPositionID
	Provider       common.Address
	TickIDs        []TickID
	LiquidityShare *big.Int
	AccruedFees    []*big.Int // per-token accrued fees, same ordering as PoolState.Tokens
}

// PoolState is an immutable snapshot of an orbital AMM pool. Orbital Math
// never mutates a PoolState in place: every operation returns a proposed
// new reserve vector (and, where relevant, tick migrations) that the
// Chain Adapter is responsible for applying atomically on-chain (spec
// §3, "Ownership & lifecycle").
type PoolState struct {
	Tokens    []common.Address
	Reserves  []*big.Int // length N, 2 <= N <= 1000
	CurveType CurveType
	UParam    int      // superellipse exponent, only meaningful when CurveType == CurveSuperellipse
	RSquared  *big.Int // sphere: target Σrᵢ². superellipse: target K = Σ|rᵢ|ᵘ
	Ticks     []*Tick  // sorted by plane-constant distance from the equal-price point
	LPs       map[LPPositionID]*LPPosition
}

// N returns the pool's dimensionality.
func (p *PoolState) N() int { return len(p.Reserves) }

// SumOfSquares returns Σrᵢ² for the pool's current reserves.
func (p *PoolState) SumOfSquares() *big.Int {
	return SumSquares(p.Reserves)
}

// SumSquares computes Σrᵢ² for an arbitrary reserve vector.
func SumSquares(reserves []*big.Int) *big.Int {
	sum := new(big.Int)
	for _, r := range reserves {
		sq := new(big.Int).Mul(r, r)
		sum.Add(sum, sq)
	}
	return sum
}

// SwapResult is the outcome of a (possibly segmented) swap.
type SwapResult struct {
	AmountOut     *big.Int
	NewReserves   []*big.Int
	Segments      int
	PriceImpactBp int
}

// validateIndices checks that i != j and both are valid token indices.
func validateIndices(n, i, j int) error {
	if i < 0 || j < 0 || i >= n || j >= n || i == j {
		return ErrInvalidTokenIndex
	}
	return nil
}

func cloneReserves(reserves []*big.Int) []*big.Int {
	out := make([]*big.Int, len(reserves))
	for k, r := range reserves {
		out[k] = new(big.Int).Set(r)
	}
	return out
}
