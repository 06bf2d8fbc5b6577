// Package lock provides per-key mutual exclusion.
//
// KeyedLock serialises work on one room or wallet inside a process.
// RedisLease extends ownership of a key across processes.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyedLock hands out one mutex per key. Mutexes are released once no
// goroutine holds or waits on them.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyedLock creates a new KeyedLock instance.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyedLock) acquire(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refCount++
	return m
}

func (kl *KeyedLock) release(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m.refCount--
	if m.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Unlock releases the lock for key. Unlocking a key that is not held panics,
// like sync.Mutex.
func (kl *KeyedLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key " + key)
	}
	m.mu.Unlock()
	kl.release(key, m)
}

// LockContext blocks until the lock is held, ctx is done, or timeout
// elapses. A zero timeout waits on ctx alone.
func (kl *KeyedLock) LockContext(ctx context.Context, key string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := kl.acquire(key)
	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiter still takes the mutex eventually; hand it straight back.
		go func() {
			<-done
			m.mu.Unlock()
			kl.release(key, m)
		}()
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLockContext executes fn while holding the lock for key, giving up if
// the lock is not acquired before ctx is done or timeout elapses.
func (kl *KeyedLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if err := kl.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}
