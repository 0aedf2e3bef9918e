package lock

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// TestAcquireMutualExclusion verifies that two goroutines contending on
// the same key never hold the lock at the same time.
func TestAcquireMutualExclusion(t *testing.T) {
    m := NewManager()
    const workers = 8
    const rounds = 50

    var holders int32
    var maxSeen int32
    var mu sync.Mutex

    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := 0; j < rounds; j++ {
                release, err := m.Acquire(context.Background(), 42)
                if err != nil {
                    t.Error(err)
                    return
                }
                mu.Lock()
                holders++
                if holders > maxSeen {
                    maxSeen = holders
                }
                mu.Unlock()

                mu.Lock()
                holders--
                mu.Unlock()
                release()
            }
        }()
    }
    wg.Wait()

    assert.Equal(t, int32(1), maxSeen, "more than one holder observed for the same key")
    assert.Equal(t, 0, m.Len(), "registry should be empty after all releases")
}

// TestAcquireIndependentKeys verifies that locks on different keys do not
// block each other.
func TestAcquireIndependentKeys(t *testing.T) {
    m := NewManager()

    release1, err := m.Acquire(context.Background(), 1)
    require.NoError(t, err)
    defer release1()

    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    release2, err := m.Acquire(ctx, 2)
    require.NoError(t, err, "acquiring an unrelated key must not block")
    release2()
}

// TestAcquireCancellation verifies that a blocked Acquire returns once its
// context is cancelled and that the entry is cleaned up afterwards.
func TestAcquireCancellation(t *testing.T) {
    m := NewManager()

    release, err := m.Acquire(context.Background(), 7)
    require.NoError(t, err)

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() {
        _, err := m.Acquire(ctx, 7)
        done <- err
    }()

    // Give the second acquirer time to block, then cancel it.
    time.Sleep(20 * time.Millisecond)
    cancel()

    select {
    case err := <-done:
        assert.ErrorIs(t, err, context.Canceled)
    case <-time.After(time.Second):
        t.Fatal("cancelled Acquire did not return")
    }

    release()
    assert.Equal(t, 0, m.Len())
}

// TestSecondAcquireWaitsForRelease verifies the serialization order: the
// second caller proceeds only after the first releases.
func TestSecondAcquireWaitsForRelease(t *testing.T) {
    m := NewManager()

    release, err := m.Acquire(context.Background(), 9)
    require.NoError(t, err)

    acquired := make(chan struct{})
    go func() {
        r2, err := m.Acquire(context.Background(), 9)
        if err == nil {
            close(acquired)
            r2()
        }
    }()

    select {
    case <-acquired:
        t.Fatal("second Acquire succeeded while lock was held")
    case <-time.After(50 * time.Millisecond):
    }

    release()

    select {
    case <-acquired:
    case <-time.After(time.Second):
        t.Fatal("second Acquire did not proceed after release")
    }
}
