package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/autom8ter/notify/store"
	_ "github.com/autom8ter/notify/store/inmem"
	redisstore "github.com/autom8ter/notify/store/redis"
	"github.com/autom8ter/notify/store/registry"
)

func testStores(t *testing.T) map[string]store.Store {
	mr := miniredis.RunT(t)
	inmem, err := registry.Open("inmem", nil)
	assert.NoError(t, err)
	return map[string]store.Store{
		"inmem": inmem,
		"redis": redisstore.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})),
	}
}

func Test(t *testing.T) {
	ctx := context.Background()
	for provider, s := range testStores(t) {
		s := s
		t.Run(provider, func(t *testing.T) {
			t.Run("get miss", func(t *testing.T) {
				_, ok, err := s.Get(ctx, "missing")
				assert.NoError(t, err)
				assert.False(t, ok)
			})
			t.Run("set get del", func(t *testing.T) {
				assert.Nil(t, s.Set(ctx, "checkpoint", "token-1"))
				value, ok, err := s.Get(ctx, "checkpoint")
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "token-1", value)
				assert.Nil(t, s.Del(ctx, "checkpoint"))
				_, ok, err = s.Get(ctx, "checkpoint")
				assert.NoError(t, err)
				assert.False(t, ok)
			})
			t.Run("incr", func(t *testing.T) {
				count, err := s.Incr(ctx, "attempts")
				assert.NoError(t, err)
				assert.EqualValues(t, 1, count)
				count, err = s.Incr(ctx, "attempts")
				assert.NoError(t, err)
				assert.EqualValues(t, 2, count)
			})
			t.Run("push preserves order", func(t *testing.T) {
				count, err := s.Push(ctx, "q", "m1", "m2", "m3")
				assert.NoError(t, err)
				assert.EqualValues(t, 3, count)
				values, err := s.Range(ctx, "q")
				assert.NoError(t, err)
				assert.Equal(t, []string{"m1", "m2", "m3"}, values)
			})
			t.Run("pop push moves oldest", func(t *testing.T) {
				value, ok, err := s.PopPush(ctx, "q", "q:inflight")
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "m1", value)
				inflight, err := s.Range(ctx, "q:inflight")
				assert.NoError(t, err)
				assert.Equal(t, []string{"m1"}, inflight)
				remaining, err := s.Len(ctx, "q")
				assert.NoError(t, err)
				assert.EqualValues(t, 2, remaining)
			})
			t.Run("pop push empty", func(t *testing.T) {
				_, ok, err := s.PopPush(ctx, "empty", "empty:inflight")
				assert.NoError(t, err)
				assert.False(t, ok)
			})
			t.Run("rem", func(t *testing.T) {
				count, err := s.Rem(ctx, "q:inflight", "m1")
				assert.NoError(t, err)
				assert.EqualValues(t, 1, count)
				count, err = s.Rem(ctx, "q:inflight", "m1")
				assert.NoError(t, err)
				assert.EqualValues(t, 0, count)
			})
		})
	}
}
