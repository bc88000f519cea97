package selector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePool(n int) []string {
	pool := make([]string, n)
	for i := range pool {
		pool[i] = fmt.Sprintf("t-%03d", i)
	}
	return pool
}

func TestSelectRound_TargetSize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pool := makePool(57)

	for _, target := range []int{20, 10, 3, 1} {
		got := SelectRound(pool, target, rng)
		assert.Len(t, got, target)
	}
}

func TestSelectRound_NoDuplicatesAndSubset(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := makePool(40)
	inPool := make(map[string]bool, len(pool))
	for _, id := range pool {
		inPool[id] = true
	}

	for trial := 0; trial < 1000; trial++ {
		got := SelectRound(pool, 20, rng)
		seen := make(map[string]bool, len(got))
		for _, id := range got {
			require.True(t, inPool[id], "selected %s is not in the pool", id)
			require.False(t, seen[id], "selected %s twice", id)
			seen[id] = true
		}
	}
}

func TestSelectRound_SmallPoolReturnsEverything(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pool := makePool(2)

	got := SelectRound(pool, 3, rng)

	assert.Len(t, got, 2)
	assert.ElementsMatch(t, pool, got)
}

func TestSelectRound_DoesNotMutatePool(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pool := makePool(25)
	before := append([]string(nil), pool...)

	SelectRound(pool, 20, rng)

	assert.Equal(t, before, pool)
}

func TestSelectRound_EmptyInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	assert.Empty(t, SelectRound(nil, 20, rng))
	assert.Empty(t, SelectRound(makePool(5), 0, rng))
}

func TestSelectRound_EveryCandidateCanWin(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := makePool(40)
	hits := make(map[string]int, len(pool))

	for trial := 0; trial < 1000; trial++ {
		for _, id := range SelectRound(pool, 20, rng) {
			hits[id]++
		}
	}

	// each candidate is picked with probability 1/2 per trial
	for _, id := range pool {
		assert.Greater(t, hits[id], 350, "candidate %s picked too rarely", id)
		assert.Less(t, hits[id], 650, "candidate %s picked too often", id)
	}
}

func TestSelector_Digits(t *testing.T) {
	s := New(9)
	for i := 0; i < 100; i++ {
		d := s.Digits(6)
		require.Len(t, d, 6)
		for _, c := range d {
			require.True(t, c >= '0' && c <= '9')
		}
	}
}
