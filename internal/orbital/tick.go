package orbital

import (
	"math/big"

	"github.com/orbital-labs/intents-core/pkg/util"
)

// sqrtNScaled returns √n scaled by 1e18, used to convert a tick's plane
// constant (expressed per-token) into the aggregate boundary sum(r) =
// c·√N that the hyperplane r·1 = c·√N actually describes.
func sqrtNScaled(n int) *big.Int {
	scaledSquare := new(big.Int).Mul(util.Scale1e18, util.Scale1e18)
	nTimesScaledSquare := new(big.Int).Mul(big.NewInt(int64(n)), scaledSquare)
	return util.Sqrt(nTimesScaledSquare)
}

// boundarySum returns the aggregate reserve sum at which a tick's
// hyperplane boundary sits: c·√N.
func boundarySum(tick *Tick, n int) *big.Int {
	return util.MulScaled(tick.PlaneConstant, sqrtNScaled(n))
}

// IsInterior reports whether the reserve point lies strictly inside the
// tick's hyperplane cap (sum(r) < c·√N, i.e. closer to the equal-price
// point than the tick's boundary). Ticks are nested: a point interior to
// a narrower tick is automatically interior to every wider one.
func IsInterior(reserves []*big.Int, tick *Tick) bool {
	n := len(reserves)
	sum := new(big.Int)
	for _, r := range reserves {
		sum.Add(sum, r)
	}
	return sum.Cmp(boundarySum(tick, n)) < 0
}

// Crosses reports whether moving from `before` to `after` crosses the
// tick's boundary plane, i.e. the aggregate reserve sum moved from one
// side of c·√N to the other. The toroidal executor uses this to detect
// when a trade must be segmented at the tick boundary rather than
// executed in a single sphere/superellipse solve.
func Crosses(before, after []*big.Int, tick *Tick) bool {
	n := len(before)
	threshold := boundarySum(tick, n)

	sumBefore := new(big.Int)
	for _, r := range before {
		sumBefore.Add(sumBefore, r)
	}
	sumAfter := new(big.Int)
	for _, r := range after {
		sumAfter.Add(sumAfter, r)
	}

	beforeSide := sumBefore.Cmp(threshold)
	afterSide := sumAfter.Cmp(threshold)

	if beforeSide == 0 || afterSide == 0 {
		return true
	}
	return (beforeSide < 0) != (afterSide < 0)
}

// CapitalEfficiency returns tick's advisory capital-efficiency ratio
// against an N-token pool with target invariant rSquared, per spec §4.1:
// (c + √(R² − c²/(N−1))) / √(R² − c²/(N−1)). Advisory only — callers must
// not use it to gate trade execution. n must be >= 2 (spec §3's pool
// dimensionality floor), so N−1 never divides by zero.
func CapitalEfficiency(tick *Tick, rSquared *big.Int, n int) *big.Int {
	c := tick.PlaneConstant
	cSquared := new(big.Int).Mul(c, c)
	cSquared.Div(cSquared, big.NewInt(int64(n-1)))

	denom := new(big.Int).Sub(rSquared, cSquared)
	if denom.Sign() <= 0 {
		// c has moved past the point where the formula's radicand stays
		// non-negative (tick wider than the pool can support); return the
		// baseline full-range ratio rather than faulting.
		return new(big.Int).Set(util.Scale1e18)
	}

	sqrtDenom := util.Sqrt(denom)
	if sqrtDenom.Sign() == 0 {
		return new(big.Int).Set(util.Scale1e18)
	}

	numerator := new(big.Int).Add(c, sqrtDenom)
	return util.DivScaled(numerator, sqrtDenom)
}
