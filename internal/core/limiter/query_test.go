package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/callgate/callgate/internal/core"
)

func TestQueryValidate(t *testing.T) {
	require.Error(t, Query{}.Validate())
	require.NoError(t, Query{All: true}.Validate())
	require.NoError(t, Query{Key: "ip:192.0.2.1"}.Validate())
	require.NoError(t, Query{Prefix: "phone:"}.Validate())
}

func TestFindAndReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, key := range []string{"ip:192.0.2.1", "ip:192.0.2.10", "phone:+15557654321"} {
		require.NoError(t, store.Put(ctx, key, &core.RateLimitEntry{Count: 1, ResetAt: now}))
	}

	records, err := Find(ctx, store, Query{Key: "ip:192.0.2.1"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = Find(ctx, store, Query{Prefix: PrefixIP})
	require.NoError(t, err)
	require.Len(t, records, 2)

	_, err = Find(ctx, store, Query{})
	require.Error(t, err)

	removed, err := Reset(ctx, store, Query{Prefix: PrefixIP})
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	removed, err = Reset(ctx, store, Query{All: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.Zero(t, store.Len())
}
