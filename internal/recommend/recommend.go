// Package recommend produces the next batch of photos for free-form triage.
// Two strategies exist: a uniform random walk over single photos and a
// similarity mode that surfaces whole near-duplicate groups. Both consult
// the cooldown ledgers so recently shown items are not offered again.
package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-triage/internal/constants"
	"github.com/kozaktomas/photo-triage/internal/cooldown"
	"github.com/kozaktomas/photo-triage/internal/grouper"
	"github.com/kozaktomas/photo-triage/internal/library"
)

// Mode selects the batch strategy.
type Mode string

const (
	// ModeRandomWalk draws single photos uniformly at random.
	ModeRandomWalk Mode = "RANDOM_WALK"
	// ModeSimilar fills the batch with whole similarity groups.
	ModeSimilar Mode = "SIMILAR"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRandomWalk, ModeSimilar:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown recommendation mode %q", s)
	}
}

// ErrInvalidBatchSize is returned when the requested batch size is not positive.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Config holds the engine settings.
type Config struct {
	// Grouper thresholds used by ModeSimilar.
	Grouper grouper.Config

	// CacheTTL bounds how long a computed grouping is reused for an
	// unchanged pool. Zero disables the cache.
	CacheTTL time.Duration

	// Seed for the random draws. Zero means time-based seeding.
	Seed int64
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Grouper:  grouper.DefaultConfig(),
		CacheTTL: constants.GroupingCacheTTL,
	}
}

// Batch is one round of photos handed to the caller for triage. For
// ModeSimilar, Groups carries the group boundaries in emission order and
// Photos is their concatenation; for ModeRandomWalk, Groups is empty.
type Batch struct {
	Mode   Mode
	Photos []library.Image
	Groups []grouper.Group
}

// Engine draws recommendation batches. Callers must serialize calls against
// the same ledgers; the engine itself performs no cross-call locking.
type Engine struct {
	photos *cooldown.Ledger
	groups *cooldown.Ledger
	cfg    Config
	logger zerolog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex

	cacheMu     sync.Mutex
	cacheKey    string
	cacheGroups []grouper.Group
	cachedAt    time.Time
}

// NewEngine creates a recommendation engine on top of the two cooldown
// ledgers.
func NewEngine(photos, groups *cooldown.Ledger, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Grouper.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grouper config: %w", err)
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("cache TTL must not be negative, got %v", cfg.CacheTTL)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		photos: photos,
		groups: groups,
		cfg:    cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Photos returns the photo cooldown ledger, e.g. for undoing a pick.
func (e *Engine) Photos() *cooldown.Ledger {
	return e.photos
}

// Groups returns the group cooldown ledger.
func (e *Engine) Groups() *cooldown.Ledger {
	return e.groups
}

// Next draws the next batch of size n from the pool. An empty pool (or a
// pool fully in cooldown) yields an empty batch, not an error. Every
// returned photo or group is recorded in its ledger before Next returns.
func (e *Engine) Next(ctx context.Context, pool []library.Image, n int, mode Mode, now time.Time) (*Batch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, n)
	}

	switch mode {
	case ModeRandomWalk:
		return e.randomWalk(ctx, pool, n, now)
	case ModeSimilar:
		return e.similar(ctx, pool, n, now)
	default:
		return nil, fmt.Errorf("unknown recommendation mode %q", mode)
	}
}

func (e *Engine) randomWalk(ctx context.Context, pool []library.Image, n int, now time.Time) (*Batch, error) {
	active, err := e.photos.ActiveKeys(ctx, now)
	if err != nil {
		return nil, err
	}

	eligible := make([]library.Image, 0, len(pool))
	for _, img := range pool {
		if _, excluded := active[photoKey(img.ID)]; !excluded {
			eligible = append(eligible, img)
		}
	}

	batch := &Batch{Mode: ModeRandomWalk}
	if len(eligible) == 0 {
		return batch, nil
	}

	e.rngMu.Lock()
	e.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	e.rngMu.Unlock()

	batch.Photos = eligible[:min(n, len(eligible))]

	keys := make([]string, len(batch.Photos))
	for i, img := range batch.Photos {
		keys[i] = photoKey(img.ID)
	}
	if err := e.photos.RecordBatch(ctx, keys, now); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("requested", n).
		Int("returned", len(batch.Photos)).
		Int("excluded", len(active)).
		Msg("random walk batch drawn")

	return batch, nil
}

func (e *Engine) similar(ctx context.Context, pool []library.Image, n int, now time.Time) (*Batch, error) {
	active, err := e.groups.ActiveKeys(ctx, now)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Mode: ModeSimilar}

	// Groups are never split across batches: the group that crosses n is
	// emitted whole, then the batch closes.
	for _, g := range e.grouping(pool, now) {
		if _, excluded := active[g.ID]; excluded {
			continue
		}
		batch.Groups = append(batch.Groups, g)
		batch.Photos = append(batch.Photos, g.Members...)
		if len(batch.Photos) >= n {
			break
		}
	}

	if len(batch.Groups) == 0 {
		return batch, nil
	}

	keys := make([]string, len(batch.Groups))
	for i, g := range batch.Groups {
		keys[i] = g.ID
	}
	if err := e.groups.RecordBatch(ctx, keys, now); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("requested", n).
		Int("groups", len(batch.Groups)).
		Int("photos", len(batch.Photos)).
		Msg("similarity batch drawn")

	return batch, nil
}

// grouping returns the similarity groups of the pool, reusing the last
// computed grouping while the pool fingerprint matches and the cache is
// fresh.
func (e *Engine) grouping(pool []library.Image, now time.Time) []grouper.Group {
	if e.cfg.CacheTTL == 0 {
		return grouper.Partition(pool, e.cfg.Grouper)
	}

	key := poolFingerprint(pool)

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if e.cacheKey == key && now.Sub(e.cachedAt) < e.cfg.CacheTTL {
		return e.cacheGroups
	}

	groups := grouper.Partition(pool, e.cfg.Grouper)
	e.cacheKey = key
	e.cacheGroups = groups
	e.cachedAt = now
	return groups
}

func photoKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// poolFingerprint hashes the pool's IDs in order, so any membership or
// ordering change invalidates the cached grouping.
func poolFingerprint(pool []library.Image) string {
	h := sha256.New()
	for _, img := range pool {
		fmt.Fprintf(h, "%d\n", img.ID)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
