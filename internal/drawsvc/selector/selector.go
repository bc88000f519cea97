// Package selector picks the tickets that advance out of one elimination round.
package selector

import (
	"math/rand"
	"sync"
	"time"
)

// SelectRound shuffles a copy of pool with Fisher–Yates and returns the first
// min(target, len(pool)) entries. pool is left untouched.
func SelectRound(pool []string, target int, rng *rand.Rand) []string {
	if target <= 0 || len(pool) == 0 {
		return []string{}
	}

	deck := append([]string(nil), pool...)
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}

	if target > len(deck) {
		target = len(deck)
	}
	return deck[:target]
}

// Selector wraps a non-cryptographic source so concurrent sweeps can share it.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

func NewFromClock() *Selector {
	return New(time.Now().UnixNano())
}

func (s *Selector) SelectRound(pool []string, target int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SelectRound(pool, target, s.rng)
}

// Digits returns n random decimal digits, leading zeros included.
func (s *Selector) Digits(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + s.rng.Intn(10))
	}
	return string(b)
}
