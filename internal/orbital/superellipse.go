package orbital

import (
	"math/big"

	"github.com/orbital-labs/intents-core/pkg/util"
)

// MaxPrecisionLossBp bounds the relative error NthRoot may introduce
// before a superellipse operation is rejected outright rather than
// silently returning an imprecise result.
const MaxPrecisionLossBp = 50

// VerifySuperellipse checks |Σ|rᵢ|ᵘ − K| ≤ tolerance·K/10000 for the
// generalized p-norm invariant (u=2 reduces to the sphere). Reserves are
// always non-negative in this domain, so |rᵢ|ᵘ = rᵢᵘ.
func VerifySuperellipse(reserves []*big.Int, k *big.Int, u, toleranceBp int) error {
	sum := sumPow(reserves, u)
	diff := new(big.Int).Sub(sum, k)
	diff.Abs(diff)

	tolerance := util.BpOf(k, toleranceBp)
	if diff.Cmp(tolerance) > 0 {
		return ErrConstraintViolation
	}
	return nil
}

// SwapSuperellipse solves Σ|rᵢ|ᵘ = K for the post-trade reserve rⱼ using
// Newton's-method NthRoot, applying the same fee-retention scheme as
// Swap: the full amount_in is escrowed, only the post-fee portion is
// used to solve for Δout, so Σr'ᵢᵘ grows and K-monotonicity holds.
func SwapSuperellipse(reserves []*big.Int, i, j int, amountIn, k *big.Int, u int) (*big.Int, []*big.Int, error) {
	return swapSuperellipseWithFee(reserves, i, j, amountIn, k, u, DefaultFeeBp)
}

func swapSuperellipseWithFee(reserves []*big.Int, i, j int, amountIn, k *big.Int, u, feeBp int) (*big.Int, []*big.Int, error) {
	n := len(reserves)
	if err := validateIndices(n, i, j); err != nil {
		return nil, nil, err
	}
	if u < 2 {
		return nil, nil, ErrInvalidAmount
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	effectiveIn := util.BpOf(amountIn, util.BasisPointsDenominator-feeBp)

	sumOthers := new(big.Int)
	for idx, r := range reserves {
		if idx == i || idx == j {
			continue
		}
		sumOthers.Add(sumOthers, pow(r, u))
	}

	newRi := new(big.Int).Add(reserves[i], effectiveIn)
	newRiPow := pow(newRi, u)

	rhs := new(big.Int).Sub(k, newRiPow)
	rhs.Sub(rhs, sumOthers)
	if rhs.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	newRj, errorBoundBp := util.NthRoot(rhs, u)
	if errorBoundBp > MaxPrecisionLossBp {
		return nil, nil, ErrPrecisionLoss
	}
	if newRj.Sign() <= 0 || newRj.Cmp(reserves[j]) >= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	amountOut := new(big.Int).Sub(reserves[j], newRj)
	if amountOut.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	newReserves := cloneReserves(reserves)
	newReserves[i] = new(big.Int).Add(reserves[i], amountIn)
	newReserves[j] = newRj

	return amountOut, newReserves, nil
}

func sumPow(reserves []*big.Int, u int) *big.Int {
	sum := new(big.Int)
	for _, r := range reserves {
		sum.Add(sum, pow(r, u))
	}
	return sum
}

func pow(r *big.Int, u int) *big.Int {
	return new(big.Int).Exp(r, big.NewInt(int64(u)), nil)
}
