// Package clock provides the Clock/RNG port consumed by the Intent
// Executor (MEV delay, timeouts) and the Reputation Engine (bond cooldown,
// last-active timestamps). A seeded implementation makes replay of
// identical inputs deterministic, as required by spec §5.
package clock

import (
	"math/rand/v2"
	"time"
)

// Clock abstracts wall-clock time and sleeping so tests and replay can
// control both without real delays.
type Clock interface {
	Now() time.Time
	// Sleep returns at once with a channel that is closed after d; the
	// wait cannot be cancelled. SystemClock closes the channel from a
	// timer goroutine; a test clock can advance virtual time and return
	// an already-closed channel, so MEV-delay durations can be asserted
	// without waiting.
	Sleep(d time.Duration) <-chan struct{}
}

// RNG abstracts the randomness source for MEV delay draws and any other
// non-deterministic choice that must be replayable when seeded.
type RNG interface {
	// Float64 returns a pseudo-random number in [0,1).
	Float64() float64
	// IntN returns a pseudo-random number in [0,n).
	IntN(n int) int
}

// SystemClock is the production Clock backed by the real wall clock and
// goroutine timers.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		time.Sleep(d)
		close(done)
	}()
	return done
}

// SeededRNG wraps math/rand/v2's PCG generator with an explicit seed so
// that matcher/executor decisions are reproducible across replays of the
// same recorded inputs.
type SeededRNG struct {
	r *rand.Rand
}

// NewSeededRNG builds a deterministic RNG from a 128-bit seed.
func NewSeededRNG(seed1, seed2 uint64) *SeededRNG {
	return &SeededRNG{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func (s *SeededRNG) Float64() float64 { return s.r.Float64() }
func (s *SeededRNG) IntN(n int) int   { return s.r.IntN(n) }

// MEVDelay draws a uniformly random duration in [min, max) from rng,
// matching spec §4.6 phase 2 ("uniformly-random duration drawn from
// [2s, 8s]").
func MEVDelay(rng RNG, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	frac := rng.Float64()
	return min + time.Duration(frac*float64(span))
}
