package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SameKeyRunsInOrder(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, m.Enqueue("g1", func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}
	wg.Wait()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestManager_DifferentKeysDoNotBlockEachOther(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	release := make(chan struct{})
	require.NoError(t, m.Enqueue("slow", func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := m.Do(ctx, "fast", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)

	close(release)
}

func TestManager_DoReturnsJobError(t *testing.T) {
	var reports []string
	var mu sync.Mutex
	m := NewManager(func(s string) {
		mu.Lock()
		reports = append(reports, s)
		mu.Unlock()
	})
	defer m.Close()

	boom := errors.New("boom")
	err := m.Do(context.Background(), "g1", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) == 1 && reports[0] == "error:g1:boom"
	}, time.Second, 10*time.Millisecond)
}

func TestManager_StopCancelsLane(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, m.Enqueue("g1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))
	ran := false
	require.NoError(t, m.Enqueue("g1", func(ctx context.Context) error {
		ran = true
		return nil
	}))

	<-started
	require.NoError(t, m.Stop("g1"))
	<-cancelled
	assert.Error(t, m.Stop("g1"))

	assert.Eventually(t, func() bool { return len(m.List()) == 0 }, time.Second, 10*time.Millisecond)
	assert.False(t, ran)
}

func TestManager_ClosedRejectsJobs(t *testing.T) {
	m := NewManager(nil)
	m.Close()
	assert.ErrorIs(t, m.Enqueue("g1", func(ctx context.Context) error { return nil }), ErrClosed)
	assert.Equal(t, "No jobs are running.", m.Status())
}
