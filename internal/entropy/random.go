// Package entropy provides the random sources behind every stochastic roll
// in the simulation: trigger rolls, fan participation, splat odds, patrol
// picks. Sources are passed in explicitly so tests can script outcomes and
// several simulations can run side by side.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields uniform random numbers.
type Source interface {
	Float64() float64 // [0, 1)
	Intn(n int) int   // [0, n); n must be > 0
}

// NewSeeded returns a deterministic source. Seed 0 draws a seed from
// crypto/rand so unseeded runs differ.
func NewSeeded(seed int64) *Seeded {
	if seed == 0 {
		seed = int64(cryptoUint64() >> 1)
	}
	return &Seeded{rng: mrand.New(mrand.NewSource(seed)), seed: seed}
}

// Seeded wraps math/rand with the seed it was built from.
type Seeded struct {
	rng  *mrand.Rand
	seed int64
}

func (s *Seeded) Float64() float64 { return s.rng.Float64() }
func (s *Seeded) Intn(n int) int   { return s.rng.Intn(n) }

// Seed returns the effective seed, useful for logging a reproducible run.
func (s *Seeded) Seed() int64 { return s.seed }

// Crypto draws from crypto/rand. Safe for concurrent use.
type Crypto struct{}

func (Crypto) Float64() float64 { return cryptoFloat() }

func (Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(cryptoUint64() % uint64(n))
}

// Sequence replays scripted values in order, cycling when exhausted.
// Float64 consumes from Floats; Intn consumes from Ints (modulo n).
// An empty Floats list yields 0.5; an empty Ints list yields 0.
type Sequence struct {
	mu     sync.Mutex
	Floats []float64
	Ints   []int
	fi, ii int
}

// NewSequence builds a Sequence that replays floats.
func NewSequence(floats ...float64) *Sequence {
	return &Sequence{Floats: floats}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0.5
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

func (s *Sequence) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	if v < 0 {
		v = -v
	}
	return v % n
}

// cryptoFloat generates a float64 in [0, 1) using crypto/rand.
func cryptoFloat() float64 {
	// Use only 53 bits for a uniform float64 in [0, 1).
	return float64(cryptoUint64()>>11) / float64(1<<53)
}

func cryptoUint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed midpoint.
		return 1 << 63
	}
	return binary.LittleEndian.Uint64(buf[:])
}
