package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	assert.Equal(t, []string{"rm:rate_limit:login:ip:1.2.3.4"}, store.expired, "ttl is armed on the first hit only")
}

func TestPushAndDrain(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	key := client.FlashKey("user-1")

	require.NoError(t, client.Push(ctx, key, time.Hour, "a", "b"))
	require.NoError(t, client.Push(ctx, key, time.Hour))
	require.NoError(t, client.Push(ctx, key, 0, "c"))

	values, err := client.Drain(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, values)

	values, err = client.Drain(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}
	key := client.LockKey("cron", "dev")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := client.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "owner-a", store.data[key])

	deleted, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = client.Get(ctx, key)
	assert.True(t, IsNil(err))
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	var nilClient *Client
	for _, client := range []*Client{{}, nilClient} {
		assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
		_, err := client.CompareAndDelete(ctx, "k", "v")
		assert.ErrorIs(t, err, errNotInitialized)
		assert.NoError(t, client.Close())
	}
}

func TestOptions(t *testing.T) {
	_, err := options(config.RedisConfig{})
	require.Error(t, err)

	opts, err := options(config.RedisConfig{Address: "localhost:6379", DB: 3, PoolSize: 7, ReadTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)

	opts, err = options(config.RedisConfig{URL: "redis://:secret@cache:6380/2", DB: 5})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB, "the url database wins")

	_, err = options(config.RedisConfig{URL: "http://nope"})
	require.Error(t, err)
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"): "rm:idempotency:scope:id",
		client.RateLimitKey("scope"):         "rm:rate_limit:scope",
		client.AccessSessionKey("abc"):       "rm:session:access:abc",
		client.FlashKey("u1"):                "rm:flash:u1",
		client.CacheKey("stats"):             "rm:cache:stats",
		client.LockKey("cron", " ", "dev"):   "rm:lock:cron:dev",
	}
	for got, want := range cases {
		assert.Equal(t, want, got)
	}
}

// fakeStore is an in-memory cmdable. Eval only understands the
// compare-and-delete script.
type fakeStore struct {
	data    map[string]string
	lists   map[string][]string
	counts  map[string]int64
	expired []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:   map[string]string{},
		lists:  map[string][]string{},
		counts: map[string]int64{},
	}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, taken := f.data[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeStore) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.expired = append(f.expired, key)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
		delete(f.lists, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeStore) RPush(_ context.Context, key string, values ...any) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append(f.lists[key], fmt.Sprint(v))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeStore) LRange(_ context.Context, key string, _, _ int64) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(append([]string(nil), f.lists[key]...), nil)
}

func (f *fakeStore) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != compareAndDelete || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	if v, ok := f.data[keys[0]]; ok && v == args[0] {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}
