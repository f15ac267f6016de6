package orbital

import "errors"

// Sentinel errors returned by the orbital math. Pure functions never
// panic on bad economic input (only on programmer error such as a
// negative-length reserve vector); every economically reachable failure
// is one of these values so callers can switch on it.
var (
	// ErrConstraintViolation is returned by VerifySphere/VerifySuperellipse
	// when the reserve vector falls outside the tolerance band around the
	// target invariant.
	ErrConstraintViolation = errors.New("orbital: constraint violation")

	// ErrInsufficientLiquidity is returned when a swap would drive the
	// output reserve to zero or below.
	ErrInsufficientLiquidity = errors.New("orbital: insufficient liquidity")

	// ErrInvalidAmount is returned for a zero or negative amount_in.
	ErrInvalidAmount = errors.New("orbital: invalid amount")

	// ErrArithmeticOverflow is returned when a checked multiply would
	// overflow the numeric policy's working precision.
	ErrArithmeticOverflow = errors.New("orbital: arithmetic overflow")

	// ErrPrecisionLoss is returned by the superellipse fractional-power
	// routine when the estimated error exceeds the precision budget.
	ErrPrecisionLoss = errors.New("orbital: precision loss exceeds budget")

	// ErrExcessiveSegmentation is returned by the toroidal executor when a
	// trade would need more than maxSegments tick-crossing segments.
	ErrExcessiveSegmentation = errors.New("orbital: excessive segmentation")

	// ErrInvalidTokenIndex is returned when i or j is out of range or i==j.
	ErrInvalidTokenIndex = errors.New("orbital: invalid token index")
)
