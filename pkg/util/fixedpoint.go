// Package util provides the fixed-point and byte-level helpers shared by
// every component: integer square root, 10^18-scaled conversions, ABI
// loading and hex/byte plumbing. Kept dependency-free of the domain types
// in internal/ so it can be imported from both internal and cmd.
package util

import (
	"math/big"
)

// Scale1e18 is the fixed-point scaling factor used throughout the orbital
// math and reputation basis-point accounting.
var Scale1e18 = big.NewInt(1_000_000_000_000_000_000)

// BasisPointsDenominator is the denominator for basis-point quantities
// (reputation score, slippage tolerance, penalty percentages).
const BasisPointsDenominator = 10000

// Sqrt computes the integer square root of a non-negative big.Int via
// Newton's method. Panics if n is negative — callers must only pass
// non-negative invariants (Σrᵢ², reserves).
func Sqrt(n *big.Int) *big.Int {
	if n.Sign() < 0 {
		panic("util.Sqrt: negative input")
	}
	if n.Sign() == 0 {
		return big.NewInt(0)
	}
	if n.Cmp(big.NewInt(4)) < 0 {
		return big.NewInt(1)
	}

	// Initial guess: 2^(bitlen/2) converges quickly.
	x := new(big.Int).Lsh(big.NewInt(1), uint(n.BitLen()/2+1))
	two := big.NewInt(2)

	for {
		// y = (x + n/x) / 2
		y := new(big.Int).Div(n, x)
		y.Add(y, x)
		y.Div(y, two)
		if y.Cmp(x) >= 0 {
			break
		}
		x = y
	}

	// Correct for the one-off Newton can leave when n is a perfect square
	// minus a small remainder.
	for {
		sq := new(big.Int).Mul(x, x)
		if sq.Cmp(n) <= 0 {
			break
		}
		x.Sub(x, big.NewInt(1))
	}
	return x
}

// NthRoot computes the integer nth root of n, rounded down, by Newton's
// method on plain integers (no fixed-point scaling): it starts above the
// root and stops once an iteration no longer decreases the estimate (at
// most 64 iterations). It also returns the relative error
// |root^nth − n| / n in basis points.
// Used by the superellipse invariant (Σ|rᵢ|ᵘ = K) to recover rᵢ from a
// fractional power.
func NthRoot(n *big.Int, nth int) (root *big.Int, errorBoundBp int) {
	if nth <= 0 {
		panic("util.NthRoot: nth must be positive")
	}
	if n.Sign() == 0 {
		return big.NewInt(0), 0
	}
	if nth == 1 {
		return new(big.Int).Set(n), 0
	}

	nthBig := big.NewInt(int64(nth))
	nthMinus1 := big.NewInt(int64(nth - 1))

	// Initial guess via bit length: n^(1/nth) ~ 2^(bitlen/nth)
	x := new(big.Int).Lsh(big.NewInt(1), uint(n.BitLen()/nth+1))
	if x.Sign() == 0 {
		x = big.NewInt(1)
	}

	const maxIterations = 64
	for i := 0; i < maxIterations; i++ {
		// x_{k+1} = ((nth-1)*x_k + n/x_k^(nth-1)) / nth
		xPow := new(big.Int).Exp(x, nthMinus1, nil)
		if xPow.Sign() == 0 {
			break
		}
		term := new(big.Int).Div(n, xPow)
		next := new(big.Int).Mul(x, nthMinus1)
		next.Add(next, term)
		next.Div(next, nthBig)

		if next.Cmp(x) >= 0 {
			break
		}
		x = next
	}

	// Error bound: compare x^nth against n in basis points.
	check := new(big.Int).Exp(x, nthBig, nil)
	delta := new(big.Int).Sub(check, n)
	delta.Abs(delta)
	if n.Sign() != 0 {
		bp := new(big.Int).Mul(delta, big.NewInt(BasisPointsDenominator))
		bp.Div(bp, n)
		errorBoundBp = int(bp.Int64())
	}
	return x, errorBoundBp
}

// MulScaled multiplies two 1e18-scaled fixed-point numbers, returning a
// result also scaled by 1e18 (i.e. computes a*b/1e18).
func MulScaled(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Div(r, Scale1e18)
}

// DivScaled divides two 1e18-scaled fixed-point numbers, returning a
// result scaled by 1e18 (i.e. computes a*1e18/b).
func DivScaled(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, Scale1e18)
	return r.Div(r, b)
}

// BpOf returns value * bp / BasisPointsDenominator, truncating.
func BpOf(value *big.Int, bp int) *big.Int {
	r := new(big.Int).Mul(value, big.NewInt(int64(bp)))
	return r.Div(r, big.NewInt(BasisPointsDenominator))
}

// ClampBp clamps an integer basis-point score into [0, 10000].
func ClampBp(v int) int {
	if v < 0 {
		return 0
	}
	if v > BasisPointsDenominator {
		return BasisPointsDenominator
	}
	return v
}

// CalculateMinAmount applies a slippage-tolerance percentage to a desired
// amount, matching the teacher's Mint flow (amount * (100-slippagePct) /
// 100), generalized to accept the percentage as a plain int.
func CalculateMinAmount(desired *big.Int, slippagePct int) *big.Int {
	min := new(big.Int).Mul(desired, big.NewInt(int64(100-slippagePct)))
	return min.Div(min, big.NewInt(100))
}
