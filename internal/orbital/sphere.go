package orbital

import (
	"math/big"

	"github.com/orbital-labs/intents-core/pkg/util"
)

// VerifySphere checks |Σrᵢ² − R²| ≤ tolerance·R²/10000, returning
// ErrConstraintViolation if the reserve vector has drifted outside the
// tolerance band around the target invariant.
func VerifySphere(reserves []*big.Int, rSquared *big.Int, toleranceBp int) error {
	sum := SumSquares(reserves)
	diff := new(big.Int).Sub(sum, rSquared)
	diff.Abs(diff)

	tolerance := util.BpOf(rSquared, toleranceBp)
	if diff.Cmp(tolerance) > 0 {
		return ErrConstraintViolation
	}
	return nil
}

// Swap solves (rᵢ+Δin)² + Σₖ≠i,jrₖ² + (rⱼ−Δout)² = R² for Δout, charging
// DefaultFeeBp on the input so that the post-trade Σr'² target grows
// (spec invariant 2, K-monotonicity): the full amount_in is added to
// reserve i, but only the post-fee amount is used to solve for the
// output, so the fee portion is retained as extra reserve.
func Swap(reserves []*big.Int, i, j int, amountIn, rSquared *big.Int) (*big.Int, []*big.Int, error) {
	return swapWithFee(reserves, i, j, amountIn, rSquared, DefaultFeeBp)
}

// swapWithFee is Swap parameterized by an explicit fee, letting the
// toroidal executor and tests exercise zero-fee swaps for exact
// invariant round-trips.
func swapWithFee(reserves []*big.Int, i, j int, amountIn, rSquared *big.Int, feeBp int) (*big.Int, []*big.Int, error) {
	n := len(reserves)
	if err := validateIndices(n, i, j); err != nil {
		return nil, nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	effectiveIn := util.BpOf(amountIn, util.BasisPointsDenominator-feeBp)

	// Σₖ≠i,jrₖ²
	sumOthers := new(big.Int)
	for k, r := range reserves {
		if k == i || k == j {
			continue
		}
		sq := new(big.Int).Mul(r, r)
		sumOthers.Add(sumOthers, sq)
	}

	newRi := new(big.Int).Add(reserves[i], effectiveIn)
	newRiSquared := new(big.Int).Mul(newRi, newRi)

	// RHS = R² - newRi² - sumOthers, must be >= 0 for a non-negative rj.
	rhs := new(big.Int).Sub(rSquared, newRiSquared)
	rhs.Sub(rhs, sumOthers)
	if rhs.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	newRj := util.Sqrt(rhs)
	if newRj.Sign() <= 0 || newRj.Cmp(reserves[j]) >= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	amountOut := new(big.Int).Sub(reserves[j], newRj)
	if amountOut.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	newReserves := cloneReserves(reserves)
	// The full amount_in (including the fee portion) is escrowed into
	// reserve i; only the post-fee amount was used to solve for Δout.
	newReserves[i] = new(big.Int).Add(reserves[i], amountIn)
	newReserves[j] = newRj

	return amountOut, newReserves, nil
}

// SpotPrice returns rᵢ/rⱼ scaled by 1e18.
func SpotPrice(reserves []*big.Int, i, j int) (*big.Int, error) {
	if err := validateIndices(len(reserves), i, j); err != nil {
		return nil, err
	}
	if reserves[j].Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	return util.DivScaled(reserves[i], reserves[j]), nil
}

// PriceImpact returns |Pafter − Pbefore|/Pbefore in basis points.
func PriceImpact(before, after []*big.Int, i, j int) (int, error) {
	priceBefore, err := SpotPrice(before, i, j)
	if err != nil {
		return 0, err
	}
	priceAfter, err := SpotPrice(after, i, j)
	if err != nil {
		return 0, err
	}
	if priceBefore.Sign() == 0 {
		return 0, ErrInsufficientLiquidity
	}

	diff := new(big.Int).Sub(priceAfter, priceBefore)
	diff.Abs(diff)

	bp := new(big.Int).Mul(diff, big.NewInt(int64(util.BasisPointsDenominator)))
	bp.Div(bp, priceBefore)
	return int(bp.Int64()), nil
}

// PolarDecompose splits the reserve vector along (parallel) and
// orthogonal to (perpendicular) the all-ones direction. The parallel
// component is the projection onto 1/√N; the perpendicular component is
// the residual, used by the toroidal executor to reason about
// distance-from-equal-price-point independent of which tick is active.
func PolarDecompose(reserves []*big.Int) (parallel, perpendicular []*big.Int) {
	n := len(reserves)
	sum := new(big.Int)
	for _, r := range reserves {
		sum.Add(sum, r)
	}
	// mean = sum / n (integer division; acceptable at 1e18 fixed-point
	// scale used throughout).
	mean := new(big.Int).Div(sum, big.NewInt(int64(n)))

	parallel = make([]*big.Int, n)
	perpendicular = make([]*big.Int, n)
	for k, r := range reserves {
		parallel[k] = new(big.Int).Set(mean)
		perpendicular[k] = new(big.Int).Sub(r, mean)
	}
	return parallel, perpendicular
}

// EqualPricePoint returns R/√N, the symmetric equilibrium reserve vector
// for an N-token sphere pool with target Σrᵢ² = R².
func EqualPricePoint(rSquared *big.Int, n int) []*big.Int {
	// Computed as sqrt(R²/n) rather than sqrt(R²)/sqrt(n) to avoid
	// compounding two separate roundings.
	perTokenSquared := new(big.Int).Div(rSquared, big.NewInt(int64(n)))
	rPerToken := util.Sqrt(perTokenSquared)

	point := make([]*big.Int, n)
	for k := range point {
		point[k] = new(big.Int).Set(rPerToken)
	}
	return point
}
