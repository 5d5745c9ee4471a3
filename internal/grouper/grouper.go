// Package grouper partitions photos into similarity groups using cheap
// metadata heuristics: capture time proximity, aspect ratio and file size.
// Pixel content is never inspected.
//
// Grouping is deterministic: the same input list always produces the same
// groups with the same IDs. Downstream state (cleanup checkpoints, processed
// marks) depends on this and stores group IDs instead of member lists.
package grouper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/kozaktomas/photo-triage/internal/constants"
	"github.com/kozaktomas/photo-triage/internal/library"
)

// Config holds the similarity thresholds.
type Config struct {
	// MinGroupSize is the minimum display size of a group. Smaller groups
	// are folded into a neighbour.
	MinGroupSize int

	// MergeThreshold folds groups at or below this size into a neighbour,
	// keeping the sweep UI from stepping through many tiny groups.
	MergeThreshold int

	// TimeWindow is the maximum capture time gap between consecutive
	// photos of a group (burst detection).
	TimeWindow time.Duration

	// AspectTolerance is the maximum relative aspect ratio difference.
	AspectTolerance float64

	// SizeRatioLimit is the maximum file size ratio (larger / smaller).
	SizeRatioLimit float64
}

// DefaultConfig returns the standard grouping thresholds.
func DefaultConfig() Config {
	return Config{
		MinGroupSize:    constants.DefaultMinGroupSize,
		MergeThreshold:  constants.DefaultMergeThreshold,
		TimeWindow:      constants.DefaultTimeWindow,
		AspectTolerance: constants.DefaultAspectTolerance,
		SizeRatioLimit:  constants.DefaultSizeRatioLimit,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.MinGroupSize < 1 {
		return fmt.Errorf("min group size must be at least 1, got %d", c.MinGroupSize)
	}
	if c.MergeThreshold < 0 {
		return fmt.Errorf("merge threshold must not be negative, got %d", c.MergeThreshold)
	}
	if c.TimeWindow <= 0 {
		return fmt.Errorf("time window must be positive, got %v", c.TimeWindow)
	}
	if c.AspectTolerance < 0 {
		return fmt.Errorf("aspect tolerance must not be negative, got %f", c.AspectTolerance)
	}
	if c.SizeRatioLimit < 1 {
		return fmt.Errorf("size ratio limit must be at least 1, got %f", c.SizeRatioLimit)
	}
	return nil
}

// Group is an ordered cluster of similar photos. The ID is derived from the
// sorted member IDs, so the same physical cluster keeps its ID across
// re-analysis regardless of input order.
type Group struct {
	ID      string
	Members []library.Image
}

// MemberIDs returns the photo IDs in member order.
func (g *Group) MemberIDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// Partition splits images into ordered similarity groups. Every input image
// appears in exactly one group. Group order follows the first appearance of
// each group's members in the input.
//
// The pass is greedy: an image joins the current group when it is similar to
// the group's most recent member, otherwise it starts a new group. A second
// pass folds undersized groups into the preceding group (the first group
// folds into the following one) until every group clears the thresholds or
// a single group remains.
func Partition(images []library.Image, cfg Config) []Group {
	if len(images) == 0 {
		return nil
	}

	var runs [][]library.Image
	current := []library.Image{images[0]}

	for _, img := range images[1:] {
		if similar(&current[len(current)-1], &img, &cfg) {
			current = append(current, img)
		} else {
			runs = append(runs, current)
			current = []library.Image{img}
		}
	}
	runs = append(runs, current)

	runs = mergeUndersized(runs, &cfg)

	groups := make([]Group, len(runs))
	for i, members := range runs {
		groups[i] = Group{ID: groupID(members), Members: members}
	}
	return groups
}

// similar applies the three conjunctive checks. Checks with missing data
// (unknown dimensions, zero file size) pass rather than split a burst.
func similar(a, b *library.Image, cfg *Config) bool {
	gap := a.CapturedAt.Sub(b.CapturedAt)
	if gap < 0 {
		gap = -gap
	}
	if gap >= cfg.TimeWindow {
		return false
	}

	if ra, rb := a.AspectRatio(), b.AspectRatio(); ra > 0 && rb > 0 {
		base := max(ra, rb)
		if (base-min(ra, rb))/base > cfg.AspectTolerance {
			return false
		}
	}

	if a.SizeBytes > 0 && b.SizeBytes > 0 {
		larger := max(a.SizeBytes, b.SizeBytes)
		smaller := min(a.SizeBytes, b.SizeBytes)
		if float64(larger)/float64(smaller) > cfg.SizeRatioLimit {
			return false
		}
	}

	return true
}

// mergeUndersized repeatedly folds the leftmost offending group into its
// neighbour. Each fold reduces the group count by one, so the loop
// terminates.
func mergeUndersized(runs [][]library.Image, cfg *Config) [][]library.Image {
	undersized := func(members []library.Image) bool {
		return len(members) < cfg.MinGroupSize || len(members) <= cfg.MergeThreshold
	}

	for len(runs) > 1 {
		idx := -1
		for i := range runs {
			if undersized(runs[i]) {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}

		if idx == 0 {
			// First group folds forward, members stay in input order
			runs[1] = append(runs[0], runs[1]...)
			runs = runs[1:]
		} else {
			runs[idx-1] = append(runs[idx-1], runs[idx]...)
			runs = append(runs[:idx], runs[idx+1:]...)
		}
	}

	return runs
}

// groupID hashes the ascending member IDs into a short stable identifier.
func groupID(members []library.Image) string {
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	slices.Sort(ids)

	h := sha256.New()
	for _, id := range ids {
		fmt.Fprintf(h, "%d\n", id)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
