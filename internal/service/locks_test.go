package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocksSerializesSameKey(t *testing.T) {
	k := newKeyedLocks()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "device-1")
			require.NoError(t, err)
			defer release()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "more than one holder inside the same key")
	assert.Empty(t, k.entries, "entries should be reclaimed after release")
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	k := newKeyedLocks()

	r1, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		r2, err := k.Acquire(context.Background(), "b")
		assert.NoError(t, err)
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire on independent key blocked")
	}
}

func TestKeyedLocksContextCancel(t *testing.T) {
	k := newKeyedLocks()

	release, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = k.Acquire(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Empty(t, k.entries)
}

func TestKeyedLocksReleaseIsIdempotent(t *testing.T) {
	k := newKeyedLocks()

	release, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	release() // second call must not panic or double-release

	r2, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r2()
}
