package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFirstWriterWins(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	stored, err := s.Put(ctx, "key", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = s.Put(ctx, "key", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	value, found, err := s.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("first"), value)
}

func TestMemoryStoreExpiredRecordIsAbsent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	_, err := s.Put(ctx, "key", []byte("v"), time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, found, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)

	// An expired record no longer blocks a new writer.
	stored, err := s.Put(ctx, "key", []byte("v2"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestMemoryStoreGetCopiesValue(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	_, err := s.Put(ctx, "key", []byte("abc"), time.Minute)
	require.NoError(t, err)

	value, _, err := s.Get(ctx, "key")
	require.NoError(t, err)
	value[0] = 'x'

	again, _, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestRedisStorePutAndGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client)
	ctx := context.Background()

	mock.ExpectSetNX("idem:payment:abc", []byte("outcome"), time.Hour).SetVal(true)
	stored, err := s.Put(ctx, PaymentKey("abc"), []byte("outcome"), time.Hour)
	require.NoError(t, err)
	assert.True(t, stored)

	mock.ExpectGet("idem:payment:abc").SetVal("outcome")
	value, found, err := s.Get(ctx, PaymentKey("abc"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("outcome"), value)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreMissingKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client)

	mock.ExpectGet("idem:ride:nope").RedisNil()
	_, found, err := s.Get(context.Background(), RideKey("nope"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyNamespaces(t *testing.T) {
	assert.Equal(t, "payment:k1", PaymentKey("k1"))
	assert.Equal(t, "ride:k1", RideKey("k1"))
}
