package orbital

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func equalPriceReserves(n, perToken int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = scaled(int64(perToken))
	}
	return out
}

func TestVerifySphereAcceptsExactInvariant(t *testing.T) {
	reserves := equalPriceReserves(3, 100)
	rSquared := SumSquares(reserves)
	assert.NoError(t, VerifySphere(reserves, rSquared, DefaultToleranceBp))
}

func TestVerifySphereRejectsOutsideTolerance(t *testing.T) {
	reserves := equalPriceReserves(3, 100)
	rSquared := SumSquares(reserves)
	// Drift the invariant by doubling it, far outside the 10bp band.
	drifted := new(big.Int).Mul(rSquared, big.NewInt(2))
	assert.ErrorIs(t, VerifySphere(reserves, drifted, DefaultToleranceBp), ErrConstraintViolation)
}

func TestSwapRespectsKMonotonicity(t *testing.T) {
	reserves := equalPriceReserves(3, 1000)
	rSquared := SumSquares(reserves)

	amountOut, newReserves, err := Swap(reserves, 0, 1, scaled(10), rSquared)
	require.NoError(t, err)
	require.True(t, amountOut.Sign() > 0)

	newSum := SumSquares(newReserves)
	assert.True(t, newSum.Cmp(rSquared) >= 0, "post-swap invariant must not shrink")
}

func TestSwapTwoTokenReducesToConstantProductLikeBehavior(t *testing.T) {
	reserves := []*big.Int{scaled(1000), scaled(1000)}
	rSquared := SumSquares(reserves)

	amountOut, newReserves, err := Swap(reserves, 0, 1, scaled(50), rSquared)
	require.NoError(t, err)

	assert.True(t, amountOut.Sign() > 0)
	assert.True(t, newReserves[0].Cmp(reserves[0]) > 0)
	assert.True(t, newReserves[1].Cmp(reserves[1]) < 0)
}

func TestSwapRejectsInvalidAmount(t *testing.T) {
	reserves := equalPriceReserves(2, 100)
	rSquared := SumSquares(reserves)

	_, _, err := Swap(reserves, 0, 1, big.NewInt(0), rSquared)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = Swap(reserves, 0, 1, big.NewInt(-5), rSquared)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSwapRejectsInvalidIndices(t *testing.T) {
	reserves := equalPriceReserves(3, 100)
	rSquared := SumSquares(reserves)

	_, _, err := Swap(reserves, 0, 0, scaled(1), rSquared)
	assert.ErrorIs(t, err, ErrInvalidTokenIndex)

	_, _, err = Swap(reserves, 0, 9, scaled(1), rSquared)
	assert.ErrorIs(t, err, ErrInvalidTokenIndex)
}

func TestSwapRejectsInsufficientLiquidity(t *testing.T) {
	reserves := equalPriceReserves(2, 10)
	rSquared := SumSquares(reserves)

	// An enormous input can't be absorbed without driving rj negative
	// under the fixed invariant target.
	_, _, err := Swap(reserves, 0, 1, scaled(1_000_000), rSquared)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestSwapRoundTripDoesNotProfitTrader(t *testing.T) {
	reserves := equalPriceReserves(2, 1000)
	rSquared := SumSquares(reserves)

	amountOut, afterFirst, err := Swap(reserves, 0, 1, scaled(20), rSquared)
	require.NoError(t, err)

	// Grow the invariant target to match the post-fee reserves before
	// reversing, mirroring how the Chain Adapter persists the new target
	// after each mutation.
	grownRSquared := SumSquares(afterFirst)
	returnAmount, _, err := Swap(afterFirst, 1, 0, amountOut, grownRSquared)
	require.NoError(t, err)

	assert.True(t, returnAmount.Cmp(scaled(20)) <= 0, "round trip must not yield a profit")
}

func TestSpotPriceAtEquilibriumIsOne(t *testing.T) {
	reserves := equalPriceReserves(4, 500)
	price, err := SpotPrice(reserves, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, scaled(1), price)
}

func TestSpotPriceRejectsInvalidIndices(t *testing.T) {
	reserves := equalPriceReserves(2, 100)
	_, err := SpotPrice(reserves, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidTokenIndex)
}

func TestPriceImpactOfSwapIsPositive(t *testing.T) {
	reserves := equalPriceReserves(2, 1000)
	rSquared := SumSquares(reserves)

	_, newReserves, err := Swap(reserves, 0, 1, scaled(50), rSquared)
	require.NoError(t, err)

	impact, err := PriceImpact(reserves, newReserves, 0, 1)
	require.NoError(t, err)
	assert.True(t, impact > 0)
}

func TestPolarDecomposeSumsBackToOriginal(t *testing.T) {
	reserves := []*big.Int{scaled(120), scaled(80), scaled(100)}
	parallel, perpendicular := PolarDecompose(reserves)

	for i := range reserves {
		sum := new(big.Int).Add(parallel[i], perpendicular[i])
		assert.Equal(t, reserves[i].String(), sum.String())
	}
}

func TestEqualPricePointSatisfiesInvariant(t *testing.T) {
	rSquared := SumSquares(equalPriceReserves(5, 1000))
	point := EqualPricePoint(rSquared, 5)

	require.Len(t, point, 5)
	assert.NoError(t, VerifySphere(point, rSquared, DefaultToleranceBp))

	for i := 1; i < len(point); i++ {
		assert.Equal(t, point[0].String(), point[i].String())
	}
}
