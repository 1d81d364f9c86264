package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "course-1")
			if !assert.NoError(t, err) {
				return
			}
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
			_ = release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "course-a")
	require.NoError(t, err)
	defer releaseA(ctx)

	timeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	releaseB, err := m.Acquire(timeout, "course-b")
	require.NoError(t, err)
	require.NoError(t, releaseB(ctx))
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "course-1")
	require.NoError(t, err)

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(timeout, "course-1")
	assert.True(t, errors.Is(err, ErrNotAcquired))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))
	assert.Equal(t, 0, m.size())
}

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	evals  int
}

func newFakeRedis() *fakeRedis { return &fakeRedis{values: map[string]string{}} }

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, "turma:lock:", time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "course-1")
	require.NoError(t, err)
	assert.Contains(t, client.values, "turma:lock:course-1")

	timeout, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(timeout, "course-1")
	assert.True(t, errors.Is(err, ErrNotAcquired))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))
	assert.Equal(t, 1, client.evals)
	assert.NotContains(t, client.values, "turma:lock:course-1")

	again, err := locker.Acquire(ctx, "course-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, "", time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "course-1")
	require.NoError(t, err)

	// Simulate expiry and takeover by another replica.
	client.values["course-1"] = "other-token"
	require.NoError(t, release(ctx))
	assert.Equal(t, "other-token", client.values["course-1"])
}

func TestRedisLockerConcurrentReleaseEvaluatesOnce(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, "", time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "course-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, client.evals)
	assert.NotContains(t, client.values, "course-1")
}
