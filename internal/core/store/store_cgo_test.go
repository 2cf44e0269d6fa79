//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/callgate/callgate/internal/config"
	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Backend: config.BackendLibsql, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Migrate(context.Background()), "migrate is idempotent")
}

func TestRateLimitRoundTrip(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()
	reset := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC)
	until := reset.Add(time.Hour)

	got, err := store.Get(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, store.Put(ctx, "ip:192.0.2.1", &core.RateLimitEntry{Count: 2, ResetAt: reset}))
	require.NoError(t, store.Put(ctx, "ip:192.0.2.1", &core.RateLimitEntry{Count: 5, ResetAt: reset, BlockedUntil: &until}))

	got, err = store.Get(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, 5, got.Count)
	require.True(t, reset.Equal(got.ResetAt))
	require.NotNil(t, got.BlockedUntil)
	require.True(t, until.Equal(*got.BlockedUntil))

	require.NoError(t, store.Delete(ctx, "ip:192.0.2.1"))
	got, err = store.Get(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSweepKeepsActiveBlocks(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.NoError(t, store.Put(ctx, "ip:expired", &core.RateLimitEntry{Count: 1, ResetAt: past}))
	require.NoError(t, store.Put(ctx, "ip:live", &core.RateLimitEntry{Count: 1, ResetAt: future}))
	require.NoError(t, store.Put(ctx, "ip:blocked", &core.RateLimitEntry{Count: 9, ResetAt: past, BlockedUntil: &future}))

	removed, err := store.Sweep(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	records, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "ip:blocked", records[0].Key)
}

func TestRateLimitAdmin(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()
	reset := time.Now().UTC().Add(time.Minute)

	for _, key := range []string{"ip:192.0.2.1", "ip:192.0.2.2", "phone:+15557654321"} {
		require.NoError(t, store.Put(ctx, key, &core.RateLimitEntry{Count: 1, ResetAt: reset}))
	}

	count, err := store.CountRateLimits(ctx, limiter.Query{Prefix: limiter.PrefixIP})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	records, err := limiter.Find(ctx, store, limiter.Query{Key: "phone:+15557654321"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = store.ResetRateLimits(ctx, limiter.Query{})
	require.Error(t, err)

	removed, err := limiter.Reset(ctx, store, limiter.Query{Prefix: limiter.PrefixIP})
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	count, err = store.CountRateLimits(ctx, limiter.Query{All: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestLimiterOverLibsql(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	l := limiter.New(store, limiter.DefaultPolicy)
	l.Clock = func() time.Time { return now }

	for i := 1; i <= 2; i++ {
		decision, err := l.Check(ctx, "phone:+15557654321", 2)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
	decision, err := l.Check(ctx, "phone:+15557654321", 2)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, limiter.ReasonExceeded, decision.Reason)
	require.Equal(t, 3, decision.Count)
}

func TestBlacklist(t *testing.T) {
	bl := openMemoryStore(t).Blacklist()
	ctx := context.Background()
	addedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	listed, err := bl.IsBlacklisted(ctx, "+15557654321")
	require.NoError(t, err)
	require.False(t, listed)

	added, err := bl.Add(ctx, core.BlacklistEntry{Phone: "+15557654321", Reason: "abuse", Source: core.BlacklistSourceAuto, AddedAt: addedAt})
	require.NoError(t, err)
	require.True(t, added)

	added, err = bl.Add(ctx, core.BlacklistEntry{Phone: "+15557654321", Source: core.BlacklistSourceManual})
	require.NoError(t, err)
	require.False(t, added)

	listed, err = bl.IsBlacklisted(ctx, "+15557654321")
	require.NoError(t, err)
	require.True(t, listed)

	entries, err := bl.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "abuse", entries[0].Reason)
	require.Equal(t, core.BlacklistSourceAuto, entries[0].Source)
	require.True(t, addedAt.Equal(entries[0].AddedAt))

	removed, err := bl.Remove(ctx, "+15557654321")
	require.NoError(t, err)
	require.True(t, removed)
}
