// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Similarity grouping constants
const (
	// DefaultMinGroupSize is the smallest group the grouper will emit standalone
	DefaultMinGroupSize = 2

	// DefaultMergeThreshold is the member count at or below which a group is
	// merged into its neighbor instead of being shown on its own
	DefaultMergeThreshold = 10

	// DefaultTimeWindow is the maximum capture-time gap between two photos
	// for them to be considered part of the same burst
	DefaultTimeWindow = 3 * time.Minute

	// DefaultAspectTolerance is the maximum relative aspect-ratio difference
	// between two photos judged similar
	DefaultAspectTolerance = 0.05

	// DefaultSizeRatioLimit is the maximum byte-size ratio (larger/smaller)
	// between two photos judged similar
	DefaultSizeRatioLimit = 2.0
)

// Cooldown constants
const (
	// PhotoCooldownPrefix is the key prefix for the single-photo cooldown ledger
	PhotoCooldownPrefix = "cooldown:photo:"

	// GroupCooldownPrefix is the key prefix for the similarity-group cooldown ledger
	GroupCooldownPrefix = "cooldown:group:"
)

// DefaultPhotoCooldownDays is the duration pool (in days) for single-photo
// cooldowns. A duration is picked uniformly at random on each record.
var DefaultPhotoCooldownDays = []int{2, 3, 4, 5}

// DefaultGroupCooldownDays is the duration pool (in days) for similarity-group
// cooldowns. Groups rest longer than single photos between sweeps.
var DefaultGroupCooldownDays = []int{7, 10, 14}

// Cleanup state constants
const (
	// CleanupAlbumPrefix is the key prefix for per-album sweep state
	// (analysis baseline, processed set, checkpoint)
	CleanupAlbumPrefix = "cleanup:album:"

	// CompletedAlbumPrefix is the key prefix for completed-album markers
	CompletedAlbumPrefix = "cleanup:completed:"
)

// Batch constants
const (
	// DefaultRecommendBatchSize is the default number of photos per free-form batch
	DefaultRecommendBatchSize = 20

	// DefaultCleanupBatchSize is the default photo budget per album-sweep batch
	DefaultCleanupBatchSize = 30

	// CheckpointMaxAge is how long a saved sweep checkpoint stays trustworthy;
	// older checkpoints are discarded and the sweep order rebuilt
	CheckpointMaxAge = 7 * 24 * time.Hour

	// GroupingCacheTTL is how long a computed pool grouping is reused by the
	// recommendation engine before being recomputed
	GroupingCacheTTL = 5 * time.Minute
)

// Scan constants
const (
	// DefaultScanWorkers is the default number of parallel workers reading
	// file metadata during a library scan
	DefaultScanWorkers = 4

	// MaxAlbumDepth is how many directory levels below a library root are
	// treated as albums (deeper files belong to the nearest album)
	MaxAlbumDepth = 1
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100
)

// Server constants
const (
	// ShutdownTimeout is the grace period for draining in-flight requests
	ShutdownTimeout = 30 * time.Second

	// LedgerPurgeInterval is how often the server opportunistically drops
	// expired cooldown entries
	LedgerPurgeInterval = 6 * time.Hour
)
