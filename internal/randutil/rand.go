// Package randutil builds reproducible random sources for dealing and
// simulation.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// Both PCG state words are derived from the one seed so that a single number
// is enough to replay a session or a simulation.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Resolve returns *seed when set, otherwise a fresh time-based seed. The
// chosen seed is returned alongside the generator so callers can log it.
func Resolve(seed *int64) (*rand.Rand, int64) {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return New(s), s
}

// Derive returns a child seed for stream i of a parent seed. Used to give
// each simulator worker or session an independent, replayable stream.
func Derive(parent int64, i int) int64 {
	return int64(mix(uint64(parent) + uint64(i)*goldenRatio64))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
