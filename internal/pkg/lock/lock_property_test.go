package lock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func liveKeys(kl *KeyedLock) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

// TestConcurrentUpdatesProperty runs read-modify-write updates from many
// goroutines under the same key and checks none is lost.
func TestConcurrentUpdatesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.IntRange(0, 1000).Draw(t, "initial")
		deltas := rapid.SliceOfN(rapid.IntRange(-50, 50), 2, 30).Draw(t, "deltas")
		key := fmt.Sprintf("room-%d", rapid.IntRange(1, 100).Draw(t, "room"))

		kl := NewKeyedLock()
		value := initial
		expected := initial
		for _, d := range deltas {
			expected += d
		}

		var wg sync.WaitGroup
		wg.Add(len(deltas))
		for _, d := range deltas {
			go func(d int) {
				defer wg.Done()
				_ = kl.WithLockContext(context.Background(), key, 0, func() error {
					v := value
					v += d
					value = v
					return nil
				})
			}(d)
		}
		wg.Wait()

		if value != expected {
			t.Fatalf("lost update: expected %d, got %d", expected, value)
		}
		if n := liveKeys(kl); n != 0 {
			t.Fatalf("expected no live mutexes, got %d", n)
		}
	})
}

func TestKeysAreIndependent(t *testing.T) {
	kl := NewKeyedLock()
	ctx := context.Background()
	require.NoError(t, kl.LockContext(ctx, "a", time.Second))
	defer kl.Unlock("a")

	require.NoError(t, kl.LockContext(ctx, "b", 20*time.Millisecond))
	kl.Unlock("b")
	assert.ErrorIs(t, kl.LockContext(ctx, "a", 20*time.Millisecond), ErrLockTimeout)
}

func TestLockContextTimeout(t *testing.T) {
	kl := NewKeyedLock()
	ctx := context.Background()
	require.NoError(t, kl.LockContext(ctx, "room", time.Second))

	err := kl.LockContext(ctx, "room", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	kl.Unlock("room")

	require.Eventually(t, func() bool { return liveKeys(kl) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, kl.LockContext(ctx, "room", time.Second))
	kl.Unlock("room")
}

func TestWithLockContextCancelled(t *testing.T) {
	kl := NewKeyedLock()
	require.NoError(t, kl.LockContext(context.Background(), "room", time.Second))
	defer kl.Unlock("room")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := kl.WithLockContext(ctx, "room", 0, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestUnlockUnheldPanics(t *testing.T) {
	kl := NewKeyedLock()
	assert.Panics(t, func() { kl.Unlock("nobody") })
}
