// Package random supplies the engine's injectable randomness: uniform
// integer draws and sampling without replacement. Production code seeds
// from crypto/rand; tests use NewSeeded or Sequence for determinism.
package random

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform random draws. Implementations are safe for
// concurrent use.
type Source interface {
	// Intn returns a uniform integer in [0, n). n must be positive.
	Intn(n int) int
	// Sample returns k distinct uniform indices in [0, n), k <= n.
	Sample(n, k int) []int
}

// NewSeed draws a seed from the operating system's entropy pool, falling
// back to the wall clock if that fails.
func NewSeed() int64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// New returns a Source seeded from NewSeed.
func New() Source {
	return NewSeeded(NewSeed())
}

// NewSeeded returns a Source producing the deterministic draw sequence of
// the given seed.
func NewSeeded(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

func (s *lockedSource) Sample(n, k int) []int {
	if k > n {
		panic(fmt.Sprintf("random: sample %d of %d", k, n))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Perm(n)[:k]
}

// Sequence returns a Source replaying vals in order: Intn pops one value,
// Sample pops k values used as indices. It panics when the script runs out
// or a value falls outside the requested range, so a miswritten test fails
// loudly.
func Sequence(vals ...int) Source {
	return &sequenceSource{vals: vals}
}

type sequenceSource struct {
	mu   sync.Mutex
	vals []int
}

func (s *sequenceSource) Intn(n int) int {
	return s.next(n)
}

func (s *sequenceSource) Sample(n, k int) []int {
	if k > n {
		panic(fmt.Sprintf("random: sample %d of %d", k, n))
	}
	out := make([]int, k)
	for i := range out {
		out[i] = s.next(n)
	}
	return out
}

func (s *sequenceSource) next(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vals) == 0 {
		panic("random: sequence exhausted")
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("random: scripted value %d out of range [0,%d)", v, n))
	}
	return v
}
