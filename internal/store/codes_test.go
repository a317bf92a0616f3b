package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadxpress/loadxpress/internal/store"
)

func newCodesStore(t *testing.T) (*store.Codes, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return store.NewCodesStore(rdb), mr
}

func TestConsumeMatchingCode(t *testing.T) {
	codes, _ := newCodesStore(t)
	ctx := context.Background()

	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "123456", 5*time.Minute))

	ok, err := codes.Consume(ctx, store.KindLogin, "user@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsumeIsSingleUse(t *testing.T) {
	codes, _ := newCodesStore(t)
	ctx := context.Background()

	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "123456", 5*time.Minute))

	ok, err := codes.Consume(ctx, store.KindLogin, "user@example.com", "123456")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = codes.Consume(ctx, store.KindLogin, "user@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "a consumed code must not verify twice")
}

func TestConsumeWrongCodeKeepsOriginal(t *testing.T) {
	codes, _ := newCodesStore(t)
	ctx := context.Background()

	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "123456", 5*time.Minute))

	ok, err := codes.Consume(ctx, store.KindLogin, "user@example.com", "654321")
	require.NoError(t, err)
	assert.False(t, ok)

	// a wrong guess must not burn the real code
	ok, err = codes.Consume(ctx, store.KindLogin, "user@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsumeNeverIssued(t *testing.T) {
	codes, _ := newCodesStore(t)

	ok, err := codes.Consume(context.Background(), store.KindLogin, "ghost@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeExpires(t *testing.T) {
	codes, mr := newCodesStore(t)
	ctx := context.Background()

	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "123456", 5*time.Minute))

	mr.FastForward(5*time.Minute + time.Second)

	ok, err := codes.Consume(ctx, store.KindLogin, "user@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutReplacesPreviousCode(t *testing.T) {
	codes, _ := newCodesStore(t)
	ctx := context.Background()

	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "111111", 5*time.Minute))
	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "222222", 5*time.Minute))

	ok, err := codes.Consume(ctx, store.KindLogin, "user@example.com", "111111")
	require.NoError(t, err)
	assert.False(t, ok, "the superseded code must be gone")

	ok, err = codes.Consume(ctx, store.KindLogin, "user@example.com", "222222")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteDropsCode(t *testing.T) {
	codes, _ := newCodesStore(t)
	ctx := context.Background()

	require.NoError(t, codes.Put(ctx, store.KindLogin, "user@example.com", "123456", 5*time.Minute))
	require.NoError(t, codes.Delete(ctx, store.KindLogin, "user@example.com"))

	ok, err := codes.Consume(ctx, store.KindLogin, "user@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}
