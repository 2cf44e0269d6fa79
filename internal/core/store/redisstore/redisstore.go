// Package redisstore keeps rate-limit entries and the blacklist in redis so
// several gateway instances share one view of abuse state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/callgate/callgate/internal/config"
	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
)

const (
	entryNamespace = "rl:"
	blacklistKey   = "blacklist"
	scanBatch      = 100
)

// Store implements limiter.Store on redis. Entries expire through key TTLs,
// so Sweep has nothing to do.
type Store struct {
	client *redis.Client
	prefix string
	Clock  func() time.Time
}

var _ limiter.Store = (*Store)(nil)

// New connects to redis and verifies the connection.
func New(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) entryKey(key string) string {
	return s.prefix + entryNamespace + key
}

func (s *Store) Get(ctx context.Context, key string) (*core.RateLimitEntry, error) {
	raw, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	var entry core.RateLimitEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode rate limit: %w", err)
	}
	return &entry, nil
}

// Put stores entry with a TTL that outlives both its window and its block.
func (s *Store) Put(ctx context.Context, key string, entry *core.RateLimitEntry) error {
	if entry == nil {
		return errors.New("rate limit entry is required")
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode rate limit: %w", err)
	}

	if err := s.client.Set(ctx, s.entryKey(key), raw, s.ttl(entry)).Err(); err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}

// Sweep is a no-op: redis drops entries when their TTL runs out.
func (s *Store) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]limiter.Record, error) {
	pattern := s.entryKey(escapePattern(prefix)) + "*"
	strip := s.entryKey("")

	var records []limiter.Record
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		key := strings.TrimPrefix(fullKey, strip)
		entry, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		records = append(records, limiter.Record{Key: key, Entry: *entry})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

func (s *Store) ttl(entry *core.RateLimitEntry) time.Duration {
	expires := entry.ResetAt
	if entry.BlockedUntil != nil && entry.BlockedUntil.After(expires) {
		expires = *entry.BlockedUntil
	}
	ttl := expires.Sub(s.now()) + time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *Store) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func escapePattern(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Blacklist keeps blacklist entries in a single redis hash.
type Blacklist struct {
	store *Store
}

var _ limiter.Blacklist = (*Blacklist)(nil)

// Blacklist returns the blacklist view of the store.
func (s *Store) Blacklist() *Blacklist {
	return &Blacklist{store: s}
}

func (b *Blacklist) key() string {
	return b.store.prefix + blacklistKey
}

func (b *Blacklist) IsBlacklisted(ctx context.Context, number string) (bool, error) {
	ok, err := b.store.client.HExists(ctx, b.key(), number).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return ok, nil
}

func (b *Blacklist) Add(ctx context.Context, entry core.BlacklistEntry) (bool, error) {
	if strings.TrimSpace(entry.Phone) == "" {
		return false, errors.New("phone is required")
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = b.store.now()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode blacklist entry: %w", err)
	}

	added, err := b.store.client.HSetNX(ctx, b.key(), entry.Phone, raw).Result()
	if err != nil {
		return false, fmt.Errorf("add blacklist entry: %w", err)
	}
	return added, nil
}

func (b *Blacklist) Remove(ctx context.Context, number string) (bool, error) {
	removed, err := b.store.client.HDel(ctx, b.key(), number).Result()
	if err != nil {
		return false, fmt.Errorf("remove blacklist entry: %w", err)
	}
	return removed > 0, nil
}

func (b *Blacklist) List(ctx context.Context) ([]core.BlacklistEntry, error) {
	values, err := b.store.client.HGetAll(ctx, b.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}

	entries := make([]core.BlacklistEntry, 0, len(values))
	for number, raw := range values {
		var entry core.BlacklistEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode blacklist entry %s: %w", number, err)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Phone < entries[j].Phone })
	return entries, nil
}
