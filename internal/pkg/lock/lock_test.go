package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTryLock verifies basic acquire/release semantics per account.
func TestTryLock(t *testing.T) {
	l := NewAccountLock()

	require.True(t, l.TryLock("Barra"))
	assert.False(t, l.TryLock("Barra"), "second acquire for the same account must fail")
	assert.True(t, l.TryLock("xelnia"), "other accounts are independent")

	l.Unlock("Barra")
	assert.True(t, l.TryLock("Barra"), "released lock can be reacquired")

	l.Unlock("Barra")
	l.Unlock("xelnia")
}

// TestWithLock verifies the fail-fast wrapper.
func TestWithLock(t *testing.T) {
	l := NewAccountLock()

	var ran bool
	err := l.WithLock("Barra", func() error {
		ran = true
		// Re-entry from the same account must be rejected
		return l.WithLock("Barra", func() error { return nil })
	})
	require.True(t, ran)
	assert.ErrorIs(t, err, ErrAccountBusy)

	// The lock is released after WithLock returns
	assert.True(t, l.TryLock("Barra"))
	l.Unlock("Barra")
}

// TestWithLock_Concurrent verifies that of many concurrent runs for one
// account, only one holds the lock at a time.
func TestWithLock_Concurrent(t *testing.T) {
	l := NewAccountLock()

	var mu sync.Mutex
	var inside, maxInside, succeeded int

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock("Barra", func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				succeeded++
				mu.Unlock()
				return nil
			})
			if err != nil {
				assert.ErrorIs(t, err, ErrAccountBusy)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "at most one holder at a time")
	assert.GreaterOrEqual(t, succeeded, 1, "at least one run must get through")
}
