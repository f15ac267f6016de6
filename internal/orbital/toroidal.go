package orbital

import (
	"math/big"

	"github.com/orbital-labs/intents-core/pkg/util"
)

// ExecuteToroidalSwap executes a (possibly multi-tick) swap across a
// pool's nested ticks. Within a single tick the trade is an ordinary
// sphere swap; when the trade would push the reserve point across a
// tick's boundary, the executor binary-searches the largest input that
// stays within the current tick, applies it, then continues the
// remainder against the next (wider) tick's effective invariant. The
// segmentation count is bounded by maxSegments (spec §4.1); a trade that
// would need more segments than that is rejected with
// ErrExcessiveSegmentation rather than executed partially.
func ExecuteToroidalSwap(pool *PoolState, i, j int, amountIn *big.Int, maxSegments int) (*SwapResult, error) {
	if err := validateIndices(pool.N(), i, j); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}

	startReserves := pool.Reserves
	reserves := cloneReserves(pool.Reserves)
	remaining := new(big.Int).Set(amountIn)
	totalOut := new(big.Int)
	segments := 0

	// exhausted tracks ticks a prior segment already rode to their
	// boundary. Binary-searching to a boundary necessarily leaves the
	// reserve point still (by construction) on the interior side of it,
	// so findActiveTick would otherwise keep re-selecting the same tick
	// forever instead of handing the remainder to the next, wider one.
	exhausted := make(map[TickID]bool)

	for remaining.Sign() > 0 {
		segments++
		if segments > maxSegments {
			return nil, ErrExcessiveSegmentation
		}

		activeTick := findActiveTick(pool.Ticks, reserves, exhausted)
		segmentRSquared := effectiveRSquared(pool, activeTick)

		amountOut, newReserves, err := Swap(reserves, i, j, remaining, segmentRSquared)
		if err == nil && (activeTick == nil || !Crosses(reserves, newReserves, activeTick)) {
			totalOut.Add(totalOut, amountOut)
			reserves = newReserves
			remaining = new(big.Int)
			break
		}
		if err != nil && err != ErrInsufficientLiquidity {
			return nil, err
		}

		partialOut, partialReserves, consumed, berr := swapToTickBoundary(reserves, i, j, remaining, segmentRSquared, activeTick)
		if berr != nil {
			return nil, berr
		}
		if activeTick != nil {
			exhausted[activeTick.ID] = true
		}

		totalOut.Add(totalOut, partialOut)
		reserves = partialReserves
		remaining = new(big.Int).Sub(remaining, consumed)
	}

	priceImpactBp, err := PriceImpact(startReserves, reserves, i, j)
	if err != nil {
		priceImpactBp = 0
	}

	return &SwapResult{
		AmountOut:     totalOut,
		NewReserves:   reserves,
		Segments:      segments,
		PriceImpactBp: priceImpactBp,
	}, nil
}

// findActiveTick returns the narrowest non-exhausted tick the reserve
// point currently sits inside, or nil if the pool has no ticks
// (full-range only), the point has moved outside every tick, or every
// tick it's still interior to has already been ridden to its boundary
// earlier in this trade.
func findActiveTick(ticks []*Tick, reserves []*big.Int, exhausted map[TickID]bool) *Tick {
	for _, tick := range ticks {
		if exhausted[tick.ID] {
			continue
		}
		if IsInterior(reserves, tick) {
			return tick
		}
	}
	return nil
}

// effectiveRSquared scales the pool's target invariant by a tick's share
// of total tick liquidity, modeling a segment that only has access to
// the liquidity concentrated in that tick rather than the full pool.
func effectiveRSquared(pool *PoolState, tick *Tick) *big.Int {
	if tick == nil || len(pool.Ticks) == 0 {
		return pool.RSquared
	}

	total := new(big.Int)
	for _, t := range pool.Ticks {
		total.Add(total, t.LiquidityShare)
	}
	if total.Sign() == 0 {
		return pool.RSquared
	}

	share := util.DivScaled(tick.LiquidityShare, total)
	return util.MulScaled(pool.RSquared, share)
}

// swapToTickBoundary binary-searches the largest input amount (within
// [0, remaining]) that can be swapped against rSquared without crossing
// outside tick, returning the output, resulting reserves, and the amount
// actually consumed. tick == nil means no boundary constrains the
// search beyond ordinary insufficient-liquidity rejection.
func swapToTickBoundary(reserves []*big.Int, i, j int, remaining, rSquared *big.Int, tick *Tick) (*big.Int, []*big.Int, *big.Int, error) {
	lo := new(big.Int)
	hi := new(big.Int).Set(remaining)

	bestOut := new(big.Int)
	bestReserves := cloneReserves(reserves)
	bestConsumed := new(big.Int)

	for iter := 0; iter < 64 && lo.Cmp(hi) <= 0; iter++ {
		mid := new(big.Int).Add(lo, hi)
		mid.Div(mid, big.NewInt(2))
		if mid.Sign() == 0 {
			break
		}

		out, newReserves, err := Swap(reserves, i, j, mid, rSquared)
		feasible := err == nil && (tick == nil || !Crosses(reserves, newReserves, tick))
		if !feasible {
			hi = new(big.Int).Sub(mid, big.NewInt(1))
			continue
		}

		bestOut = out
		bestReserves = newReserves
		bestConsumed = mid
		lo = new(big.Int).Add(mid, big.NewInt(1))
	}

	if bestConsumed.Sign() == 0 {
		return nil, nil, nil, ErrInsufficientLiquidity
	}
	return bestOut, bestReserves, bestConsumed, nil
}
