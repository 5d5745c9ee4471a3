// Package cooldown tracks when photos and similarity groups were last
// presented, so they are not offered again until a randomized cooldown
// expires. Independent ledgers with different key prefixes and duration
// pools exist for single photos and for groups.
package cooldown

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-triage/internal/store"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Entry is the persisted cooldown record for one entity. The duration is
// chosen at write time and stays fixed until the key is recorded again or
// removed.
type Entry struct {
	LastProcessedAt int64 `json:"last_processed_at"` // unix milliseconds
	Days            int   `json:"days"`
}

// Active reports whether the entry is still within its cooldown window.
func (e *Entry) Active(now time.Time) bool {
	return now.UnixMilli()-e.LastProcessedAt < int64(e.Days)*millisPerDay
}

// Config describes one ledger.
type Config struct {
	// Prefix namespaces this ledger's keys in the store (e.g. "cooldown:photo:").
	Prefix string

	// Pool holds the candidate cooldown durations in days. One is picked
	// uniformly at random per recorded key.
	Pool []int

	// Seed for the random duration picks. Zero means time-based seeding;
	// tests pass a fixed seed for deterministic durations.
	Seed int64
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("ledger prefix must not be empty")
	}
	if len(c.Pool) == 0 {
		return fmt.Errorf("duration pool must not be empty")
	}
	for _, days := range c.Pool {
		if days <= 0 {
			return fmt.Errorf("duration pool contains non-positive value %d", days)
		}
	}
	return nil
}

// Ledger is a persistent cooldown map over one key prefix.
type Ledger struct {
	store   store.Store
	prefix  string
	pool    []int
	maxDays int
	logger  zerolog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewLedger creates a ledger on top of the given store.
func NewLedger(st store.Store, cfg Config, logger zerolog.Logger) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	maxDays := 0
	for _, days := range cfg.Pool {
		maxDays = max(maxDays, days)
	}

	return &Ledger{
		store:   st,
		prefix:  cfg.Prefix,
		pool:    cfg.Pool,
		maxDays: maxDays,
		logger:  logger.With().Str("component", "cooldown").Str("prefix", cfg.Prefix).Logger(),
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Record writes a cooldown entry for key with a duration picked uniformly at
// random from the pool, replacing any prior entry.
func (l *Ledger) Record(ctx context.Context, key string, now time.Time) error {
	entry := Entry{
		LastProcessedAt: now.UnixMilli(),
		Days:            l.pickDays(),
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cooldown entry: %w", err)
	}

	if err := l.store.Put(ctx, l.prefix+key, data); err != nil {
		return fmt.Errorf("failed to record cooldown for %s: %w", key, err)
	}

	l.logger.Debug().Str("key", key).Int("days", entry.Days).Msg("cooldown recorded")
	return nil
}

// RecordBatch records all keys. Each key write is independent; the first
// store failure aborts and is returned, leaving already-written entries in
// place.
func (l *Ledger) RecordBatch(ctx context.Context, keys []string, now time.Time) error {
	for _, key := range keys {
		if err := l.Record(ctx, key, now); err != nil {
			return err
		}
	}
	return nil
}

// InCooldown reports whether key is within its cooldown window. Missing and
// unreadable entries count as not in cooldown.
func (l *Ledger) InCooldown(ctx context.Context, key string, now time.Time) (bool, error) {
	data, err := l.store.Get(ctx, l.prefix+key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cooldown for %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		l.logger.Warn().Str("key", key).Err(err).Msg("unreadable cooldown entry")
		return false, nil
	}

	return entry.Active(now), nil
}

// ActiveKeys returns every key currently in cooldown, in a single ledger
// scan. Keys are returned without the ledger prefix.
func (l *Ledger) ActiveKeys(ctx context.Context, now time.Time) (map[string]struct{}, error) {
	active := make(map[string]struct{})

	err := l.store.Scan(ctx, l.prefix, func(key string, value []byte) error {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			l.logger.Warn().Str("key", key).Err(err).Msg("unreadable cooldown entry")
			return nil
		}
		if entry.Active(now) {
			active[strings.TrimPrefix(key, l.prefix)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cooldowns: %w", err)
	}

	return active, nil
}

// Remove deletes the given keys. The removal is durable before Remove
// returns, so the keys are eligible for the very next read.
func (l *Ledger) Remove(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = l.prefix + key
	}

	if err := l.store.Delete(ctx, prefixed...); err != nil {
		return fmt.Errorf("failed to remove cooldowns: %w", err)
	}
	return nil
}

// PurgeExpired drops entries older than the maximum duration in the pool.
// Entries whose own (shorter) duration has expired are kept until they age
// past the pool maximum; the purge only bounds ledger size. Unreadable
// entries are dropped too. Returns the number of removed entries.
func (l *Ledger) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	var stale []string

	err := l.store.Scan(ctx, l.prefix, func(key string, value []byte) error {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			stale = append(stale, key)
			return nil
		}
		if now.UnixMilli()-entry.LastProcessedAt >= int64(l.maxDays)*millisPerDay {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cooldowns: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	if err := l.store.Delete(ctx, stale...); err != nil {
		return 0, fmt.Errorf("failed to purge cooldowns: %w", err)
	}

	l.logger.Info().Int("purged", len(stale)).Msg("purged expired cooldown entries")
	return len(stale), nil
}

// StartPurgeRoutine runs PurgeExpired on a ticker until ctx is cancelled.
func (l *Ledger) StartPurgeRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := l.PurgeExpired(ctx, time.Now()); err != nil {
					l.logger.Error().Err(err).Msg("cooldown purge failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *Ledger) pickDays() int {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return l.pool[l.rng.Intn(len(l.pool))]
}
