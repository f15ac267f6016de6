package reputation

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-labs/intents-core/internal/types"
)

// fakeClock is a manually-advanced Clock for deterministic tests; it
// never blocks on Sleep.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) <-chan struct{} {
	c.now = c.now.Add(d)
	done := make(chan struct{})
	close(done)
	return done
}

func newTestEngine() (*Engine, *fakeClock) {
	fc := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return NewEngine(fc), fc
}

func TestRegisterRejectsBelowMinBond(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")

	err := e.Register(addr, big.NewInt(1), []uint64{1}, 10)
	assert.ErrorIs(t, err, types.ErrInsufficientBond)
}

func TestRegisterSetsInitialScore(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")

	require.NoError(t, e.Register(addr, MinBond, []uint64{1, 10}, 25))

	snap, err := e.Snapshot(addr)
	require.NoError(t, err)
	assert.Equal(t, InitialScoreBp, snap.ReputationBp)
	assert.True(t, snap.Registered)
	assert.False(t, snap.Slashed)
}

func TestLockAndReleaseExposure(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))

	half := new(big.Int).Div(MinBond, big.NewInt(2))
	require.NoError(t, e.LockExposure(addr, half))

	snap, _ := e.Snapshot(addr)
	assert.Equal(t, 0, snap.LockedExposure.Cmp(half))

	// locking the remainder again should fail: only half is left available.
	err := e.LockExposure(addr, MinBond)
	assert.ErrorIs(t, err, types.ErrInsufficientBond)

	require.NoError(t, e.ReleaseExposure(addr, half))
	snap, _ = e.Snapshot(addr)
	assert.Equal(t, 0, snap.LockedExposure.Sign())
}

func TestLockExposureRejectsUnregisteredSolver(t *testing.T) {
	e, _ := newTestEngine()
	err := e.LockExposure(common.HexToAddress("0x9"), big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrSolverNotRegistered)
}

func TestUpdateOnSuccessIncreasesScoreAndCapsAt10000(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))

	for i := 0; i < 200; i++ {
		require.NoError(t, e.UpdateOnSuccess(addr, big.NewInt(1_000_000_000_000_000_000), time.Second))
	}

	snap, _ := e.Snapshot(addr)
	assert.Equal(t, 10000, snap.ReputationBp)
}

func TestUpdateOnFailureDecreasesScoreAndFloorsAtZero(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))

	for i := 0; i < 30; i++ {
		require.NoError(t, e.UpdateOnFailure(addr, ReasonDoubleSign))
	}

	snap, _ := e.Snapshot(addr)
	assert.Equal(t, 0, snap.ReputationBp)
}

func TestSlashReducesAvailableBondAndClearsRegisteredBelowMin(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	bond := new(big.Int).Mul(MinBond, big.NewInt(2))
	require.NoError(t, e.Register(addr, bond, []uint64{1}, 0))

	// double-sign slash = 100% of exposure.
	require.NoError(t, e.Slash(addr, bond, ReasonDoubleSign))

	snap, _ := e.Snapshot(addr)
	assert.True(t, snap.Slashed)
	assert.False(t, snap.Registered)
}

func TestSlashCapsAtAvailableBond(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))

	// exposure far larger than bond; penalty should clamp to available bond.
	require.NoError(t, e.Slash(addr, new(big.Int).Mul(MinBond, big.NewInt(100)), ReasonExecutionFailure))

	snap, _ := e.Snapshot(addr)
	available := new(big.Int).Sub(snap.Bond, snap.LockedExposure)
	assert.True(t, available.Sign() >= 0)
	// 5% of 100×MinBond is 5×MinBond; only MinBond was available.
	assert.Equal(t, 0, e.records[addr].slashedAmount.Cmp(MinBond))
}

func TestIsEligibleRequiresScoreBondAndChainSupport(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))

	assert.True(t, e.IsEligible(addr, big.NewInt(1_000_000_000_000_000_000), []uint64{1}))
	assert.False(t, e.IsEligible(addr, big.NewInt(1_000_000_000_000_000_000), []uint64{999}))

	for i := 0; i < 10; i++ {
		require.NoError(t, e.UpdateOnFailure(addr, ReasonDoubleSign))
	}
	assert.False(t, e.IsEligible(addr, big.NewInt(1_000_000_000_000_000_000), []uint64{1}))
}

func TestIsEligibleFalseForUnknownSolver(t *testing.T) {
	e, _ := newTestEngine()
	assert.False(t, e.IsEligible(common.HexToAddress("0x9"), big.NewInt(1), []uint64{1}))
}

func TestDeregisterStartsCooldownAndBlocksWithdrawal(t *testing.T) {
	e, fc := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))

	require.NoError(t, e.Deregister(addr))
	assert.False(t, e.CanWithdraw(addr))

	fc.now = fc.now.Add(WithdrawalCooldown + time.Second)
	assert.True(t, e.CanWithdraw(addr))
}

func TestCanWithdrawTrueBeforeAnyDeregistration(t *testing.T) {
	e, _ := newTestEngine()
	addr := common.HexToAddress("0x1")
	require.NoError(t, e.Register(addr, MinBond, []uint64{1}, 0))
	assert.True(t, e.CanWithdraw(addr))
}
