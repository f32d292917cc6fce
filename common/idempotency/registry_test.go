package idempotency

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_FirstWriteWins(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register("dispatch:1"))
	assert.False(t, r.Register("dispatch:1"))
	assert.False(t, r.Register("dispatch:1"))
	assert.True(t, r.Contains("dispatch:1"))
}

func TestRegistry_ConcurrentRegister_ExactlyOneWinner(t *testing.T) {
	r := NewRegistry()
	const n = 100
	var wg sync.WaitGroup
	wins := make([]bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i] = r.Register("shared-key")
		}(i)
	}
	wg.Wait()

	winCount := 0
	for _, w := range wins {
		if w {
			winCount++
		}
	}
	assert.Equal(t, 1, winCount)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Register("k")
	r.Clear()
	assert.True(t, r.Register("k"))
}
