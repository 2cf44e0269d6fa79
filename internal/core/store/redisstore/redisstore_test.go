package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgate/callgate/internal/config"
	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client, "callgate:"), server
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{})
	require.Error(t, err)
}

func TestNewPingsServer(t *testing.T) {
	server := miniredis.RunT(t)

	store, err := New(context.Background(), config.RedisConfig{Addr: server.Addr(), KeyPrefix: "cg:"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Ping(context.Background()))
}

func TestRoundTripAndTTL(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	got, err := store.Get(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	require.Nil(t, got)

	reset := now.Add(15 * time.Minute)
	require.NoError(t, store.Put(ctx, "ip:192.0.2.1", &core.RateLimitEntry{Count: 2, ResetAt: reset}))

	got, err = store.Get(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, 2, got.Count)
	require.True(t, reset.Equal(got.ResetAt))
	assert.Equal(t, 15*time.Minute+time.Second, server.TTL("callgate:rl:ip:192.0.2.1"))

	server.FastForward(16 * time.Minute)
	got, err = store.Get(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestBlockExtendsTTL(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	until := now.Add(time.Hour)
	require.NoError(t, store.Put(ctx, "phone:+15557654321", &core.RateLimitEntry{
		Count:        5,
		ResetAt:      now.Add(15 * time.Minute),
		BlockedUntil: &until,
	}))

	assert.Equal(t, time.Hour+time.Second, server.TTL("callgate:rl:phone:+15557654321"))

	server.FastForward(30 * time.Minute)
	got, err := store.Get(ctx, "phone:+15557654321")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.BlockedUntil)
}

func TestListAndReset(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	reset := time.Now().UTC().Add(time.Minute)

	for _, key := range []string{"ip:192.0.2.2", "ip:192.0.2.1", "phone:+15557654321"} {
		require.NoError(t, store.Put(ctx, key, &core.RateLimitEntry{Count: 1, ResetAt: reset}))
	}

	records, err := store.List(ctx, limiter.PrefixIP)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "ip:192.0.2.1", records[0].Key)

	removed, err := limiter.Reset(ctx, store, limiter.Query{All: true})
	require.NoError(t, err)
	require.EqualValues(t, 3, removed)

	records, err = store.List(ctx, "")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSweepIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	removed, err := store.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestLimiterOverRedis(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	store.Clock = func() time.Time { return now }

	l := limiter.New(store, limiter.DefaultPolicy)
	l.Clock = func() time.Time { return now }

	decision, err := l.Check(ctx, "phone:+15557654321", 1)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = l.Check(ctx, "phone:+15557654321", 1)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, limiter.ReasonExceeded, decision.Reason)
	require.Positive(t, decision.RetryAfter)
}

func TestBlacklist(t *testing.T) {
	store, server := newTestStore(t)
	bl := store.Blacklist()
	ctx := context.Background()

	added, err := bl.Add(ctx, core.BlacklistEntry{Phone: "+15557654321", Source: core.BlacklistSourceAuto, Reason: "abuse"})
	require.NoError(t, err)
	require.True(t, added)
	require.True(t, server.Exists("callgate:blacklist"))

	added, err = bl.Add(ctx, core.BlacklistEntry{Phone: "+15557654321", Source: core.BlacklistSourceManual})
	require.NoError(t, err)
	require.False(t, added)

	listed, err := bl.IsBlacklisted(ctx, "+15557654321")
	require.NoError(t, err)
	require.True(t, listed)

	entries, err := bl.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, core.BlacklistSourceAuto, entries[0].Source)
	require.False(t, entries[0].AddedAt.IsZero())

	removed, err := bl.Remove(ctx, "+15557654321")
	require.NoError(t, err)
	require.True(t, removed)

	listed, err = bl.IsBlacklisted(ctx, "+15557654321")
	require.NoError(t, err)
	require.False(t, listed)
}
