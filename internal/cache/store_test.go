package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb)
}

func TestStore_AsideCachesAfterFirstFetch(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dst *profile) func() error {
		return func() error {
			calls++
			*dst = profile{Name: "ana", Count: calls}
			return nil
		}
	}

	var first profile
	require.NoError(t, store.Aside(ctx, "k", &first, time.Minute, fetch(&first)))
	var second profile
	require.NoError(t, store.Aside(ctx, "k", &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("k"))
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestStore_AsidePropagatesFetchError(t *testing.T) {
	mr, store := newTestStore(t)
	var dst profile
	err := store.Aside(context.Background(), "k", &dst, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestStore_AsideSurvivesRedisOutage(t *testing.T) {
	mr, store := newTestStore(t)
	mr.Close()

	var dst profile
	err := store.Aside(context.Background(), "k", &dst, time.Minute, func() error {
		dst.Name = "from-db"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-db", dst.Name)
}

func TestStore_InvalidateUsers(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.SetJSON(ctx, UserKey(id), profile{Name: "x"}, time.Minute))
	store.InvalidateUsers(ctx, id)
	assert.False(t, mr.Exists(UserKey(id)))
}

func TestStore_NilClientIsNoop(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	found, err := store.GetJSON(ctx, "k", &profile{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.SetJSON(ctx, "k", profile{}, time.Minute))
	store.Invalidate(ctx, "k")

	var nilStore *Store
	assert.False(t, nilStore.Enabled())
}

func TestParseAddr(t *testing.T) {
	opts, err := ParseAddr("cache:6379")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)

	opts, err = ParseAddr("redis://:pw@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = ParseAddr("  ")
	assert.Error(t, err)
	_, err = ParseAddr("redis://cache:6379/notadb")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute).Err())
	mr.CheckGet(t, "k", "v")
	require.NoError(t, client.Close())

	mr.Close()
	_, err = Connect(ctx, mr.Addr())
	assert.Error(t, err, "connect fails when the server is gone")
}
