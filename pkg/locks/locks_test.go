package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/pkg/common"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	l := NewMemoryLocker()
	defer l.Close()
	ctx := context.Background()

	token, ok, err := l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "lock:a", token))

	_, ok, err = l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerExpiredLeaseIsFree(t *testing.T) {
	l := NewMemoryLocker()
	defer l.Close()
	ctx := context.Background()

	_, ok, err := l.Acquire(ctx, "lock:a", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	_, ok, err = l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerReleaseRequiresToken(t *testing.T) {
	l := NewMemoryLocker()
	defer l.Close()
	ctx := context.Background()

	_, ok, err := l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = l.Release(ctx, "lock:a", "stale-token")
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindConflict))

	// The wrong-token release must not free the lock.
	_, ok, err = l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithLockRunsAndReleases(t *testing.T) {
	l := NewMemoryLocker()
	defer l.Close()
	ctx := context.Background()

	ran := false
	err := WithLock(ctx, l, "lock:a", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	_, ok, err := l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLockHeldElsewhereIsConflict(t *testing.T) {
	l := NewMemoryLocker()
	defer l.Close()
	ctx := context.Background()

	_, ok, err := l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = WithLock(ctx, l, "lock:a", time.Minute, func(ctx context.Context) error {
		t.Fatal("must not run while the lock is held")
		return nil
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindConflict))
}

func TestWithLockReleasesOnError(t *testing.T) {
	l := NewMemoryLocker()
	defer l.Close()
	ctx := context.Background()

	wantErr := common.NewValidationError("boom")
	err := WithLock(ctx, l, "lock:a", time.Minute, func(ctx context.Context) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)

	_, ok, err := l.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchingLockName(t *testing.T) {
	assert.Equal(t, "lock:ride:abc:matching", MatchingLockName("abc"))
}
