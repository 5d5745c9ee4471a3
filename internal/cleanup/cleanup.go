// Package cleanup drives the structured album sweep. An album is analyzed
// once into similarity groups, then handed out as whole-group batches with a
// persisted checkpoint so an interrupted sweep resumes where it stopped.
// Processed groups are marked permanently; when none remain the album is
// flagged completed and drops out of the cleanable listing until reset.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-triage/internal/constants"
	"github.com/kozaktomas/photo-triage/internal/cooldown"
	"github.com/kozaktomas/photo-triage/internal/grouper"
	"github.com/kozaktomas/photo-triage/internal/library"
	"github.com/kozaktomas/photo-triage/internal/store"
)

var (
	// ErrInvalidBatchSize is returned when the requested batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrNotAnalyzed is returned for sweep operations on an album that has no
	// persisted analysis yet.
	ErrNotAnalyzed = errors.New("album not analyzed")

	// ErrAlbumNotFound is returned when the album id is unknown to the library.
	ErrAlbumNotFound = errors.New("album not found")
)

// State is an album's position in the cleanup lifecycle.
type State string

const (
	StateUnanalyzed State = "UNANALYZED"
	StateAnalyzed   State = "ANALYZED"
	StateCompleted  State = "COMPLETED"
)

// Progress summarizes an album's sweep position, derived from persisted
// state without re-reading the album's images.
type Progress struct {
	AlbumID         string
	State           State
	TotalGroups     int
	TotalImages     int
	ProcessedGroups int
	RemainingGroups int
	RemainingImages int
	AnalyzedAt      time.Time
}

// Batch is one sweep round: whole similarity groups with hydrated members.
type Batch struct {
	AlbumID string
	Groups  []grouper.Group
}

// PhotoCount returns the total member count across the batch's groups.
func (b *Batch) PhotoCount() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g.Members)
	}
	return n
}

// analysisRecord is the persisted per-album baseline. Member lists are not
// stored: the grouper is deterministic, so membership is recomputed from the
// album's images whenever a batch needs hydrating.
type analysisRecord struct {
	TotalGroups  int      `json:"total_groups"`
	TotalImages  int      `json:"total_images"`
	GroupIDs     []string `json:"group_ids"`
	MemberCounts []int    `json:"member_counts"`
	AnalyzedAt   int64    `json:"analyzed_at"` // unix milliseconds
}

// checkpointRecord is the persisted resume point of an interrupted sweep.
type checkpointRecord struct {
	GroupIDs []string `json:"group_ids"`
	Index    int      `json:"index"`
	SavedAt  int64    `json:"saved_at"` // unix milliseconds
}

type completedRecord struct {
	CompletedAt int64 `json:"completed_at"` // unix milliseconds
}

func analysisKey(albumID string) string {
	return constants.CleanupAlbumPrefix + albumID + ":analysis"
}

func processedKey(albumID string) string {
	return constants.CleanupAlbumPrefix + albumID + ":processed"
}

func checkpointKey(albumID string) string {
	return constants.CleanupAlbumPrefix + albumID + ":checkpoint"
}

func completedKey(albumID string) string {
	return constants.CompletedAlbumPrefix + albumID
}

// AlbumSource is the slice of the library repository the engine reads.
type AlbumSource interface {
	// Album returns the album with the given id, or nil when unknown.
	Album(ctx context.Context, id string) (*library.Album, error)
	// Albums returns all indexed albums.
	Albums(ctx context.Context) ([]library.Album, error)
	// Images returns the album's images ordered by capture time ascending.
	Images(ctx context.Context, albumID string) ([]library.Image, error)
}

// Engine runs per-album cleanup sweeps on top of the state store, the group
// cooldown ledger and the library repository. Callers must serialize
// operations against the same album; the engine performs no cross-call
// locking.
type Engine struct {
	store  store.Store
	groups *cooldown.Ledger
	repo   AlbumSource
	cfg    grouper.Config
	logger zerolog.Logger
}

// NewEngine creates a cleanup engine.
func NewEngine(st store.Store, groups *cooldown.Ledger, repo AlbumSource, cfg grouper.Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grouper config: %w", err)
	}

	return &Engine{
		store:  st,
		groups: groups,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "cleanup").Logger(),
	}, nil
}

// Analyze partitions the album's images into similarity groups and persists
// the analysis baseline. Without force, an existing analysis whose image
// count still matches the album is left untouched. The baseline is written
// in a single store operation only after the full grouping pass, and a
// re-analysis never clears processed marks; it only prunes marks whose group
// no longer exists.
func (e *Engine) Analyze(ctx context.Context, albumID string, force bool, now time.Time) (*Progress, error) {
	album, err := e.repo.Album(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load album: %w", err)
	}
	if album == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlbumNotFound, albumID)
	}

	existing, err := e.loadAnalysis(ctx, albumID)
	if err != nil {
		return nil, err
	}

	images, err := e.albumImages(ctx, albumID)
	if err != nil {
		return nil, err
	}

	if existing != nil && !force && existing.TotalImages == len(images) {
		return e.progress(ctx, albumID, existing)
	}

	groups := grouper.Partition(images, e.cfg)
	rec, err := e.persistAnalysis(ctx, albumID, groups, len(images), now)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("album", albumID).
		Int("groups", rec.TotalGroups).
		Int("images", rec.TotalImages).
		Bool("forced", force).
		Msg("album analyzed")

	return e.progress(ctx, albumID, rec)
}

// NextBatch returns the next run of whole similarity groups for the album,
// resuming from a saved checkpoint when one is fresh and consistent with the
// analyzed group set. Groups accumulate until their member count reaches
// batchSize; the group crossing the boundary is included whole. An album
// with nothing left to sweep yields an empty batch.
func (e *Engine) NextBatch(ctx context.Context, albumID string, batchSize int, now time.Time) (*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}

	analysis, err := e.loadAnalysis(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAnalyzed, albumID)
	}

	images, err := e.albumImages(ctx, albumID)
	if err != nil {
		return nil, err
	}

	live := grouper.Partition(images, e.cfg)
	if analysis.TotalImages != len(images) {
		e.logger.Info().
			Str("album", albumID).
			Int("baseline", analysis.TotalImages).
			Int("live", len(images)).
			Msg("album content drifted, re-analyzing")
		if analysis, err = e.persistAnalysis(ctx, albumID, live, len(images), now); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]grouper.Group, len(live))
	for _, g := range live {
		byID[g.ID] = g
	}

	processed, err := e.loadProcessed(ctx, albumID)
	if err != nil {
		return nil, err
	}
	activeGroups, err := e.groups.ActiveKeys(ctx, now)
	if err != nil {
		return nil, err
	}

	order, index, err := e.sweepOrder(ctx, albumID, analysis, processed, activeGroups, now)
	if err != nil {
		return nil, err
	}

	batch := &Batch{AlbumID: albumID}
	count := 0
	for index < len(order) && count < batchSize {
		id := order[index]
		index++
		if _, done := processed[id]; done {
			continue
		}
		if _, active := activeGroups[id]; active {
			continue
		}
		g, ok := byID[id]
		if !ok {
			e.logger.Warn().
				Str("album", albumID).
				Str("group", id).
				Msg("sweep order references unknown group, skipping")
			continue
		}
		batch.Groups = append(batch.Groups, g)
		count += len(g.Members)
	}

	if len(batch.Groups) > 0 {
		if err := e.saveCheckpoint(ctx, albumID, order, index, now); err != nil {
			return nil, err
		}
	}

	e.logger.Debug().
		Str("album", albumID).
		Int("requested", batchSize).
		Int("groups", len(batch.Groups)).
		Int("photos", count).
		Msg("sweep batch built")

	return batch, nil
}

// MarkProcessed adds the groups to the album's permanent processed set and
// records them in the group cooldown ledger. The set only grows; re-marking
// a group is a no-op. Marking the last remaining group flags the album
// completed and drops its checkpoint.
func (e *Engine) MarkProcessed(ctx context.Context, albumID string, groupIDs []string, now time.Time) (*Progress, error) {
	analysis, err := e.loadAnalysis(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAnalyzed, albumID)
	}

	known := make(map[string]struct{}, len(analysis.GroupIDs))
	for _, id := range analysis.GroupIDs {
		known[id] = struct{}{}
	}

	processed, err := e.loadProcessed(ctx, albumID)
	if err != nil {
		return nil, err
	}

	valid := make([]string, 0, len(groupIDs))
	added := 0
	for _, id := range groupIDs {
		if _, ok := known[id]; !ok {
			e.logger.Warn().
				Str("album", albumID).
				Str("group", id).
				Msg("ignoring unknown group id")
			continue
		}
		valid = append(valid, id)
		if _, done := processed[id]; !done {
			processed[id] = struct{}{}
			added++
		}
	}

	if added > 0 {
		if err := e.saveProcessed(ctx, albumID, processed); err != nil {
			return nil, err
		}
	}
	if len(valid) > 0 {
		if err := e.groups.RecordBatch(ctx, valid, now); err != nil {
			return nil, err
		}
	}

	if analysis.TotalGroups > 0 && len(processed) == analysis.TotalGroups {
		if err := e.markCompleted(ctx, albumID, now); err != nil {
			return nil, err
		}
	}

	return e.progress(ctx, albumID, analysis)
}

// Progress reports the album's sweep position. Unanalyzed albums report
// StateUnanalyzed with zero counts rather than an error.
func (e *Engine) Progress(ctx context.Context, albumID string) (*Progress, error) {
	analysis, err := e.loadAnalysis(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return &Progress{AlbumID: albumID, State: StateUnanalyzed}, nil
	}
	return e.progress(ctx, albumID, analysis)
}

// Remaining returns the unprocessed group and image counts from persisted
// state alone.
func (e *Engine) Remaining(ctx context.Context, albumID string) (groups, images int, err error) {
	analysis, err := e.loadAnalysis(ctx, albumID)
	if err != nil {
		return 0, 0, err
	}
	if analysis == nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotAnalyzed, albumID)
	}

	p, err := e.progress(ctx, albumID, analysis)
	if err != nil {
		return 0, 0, err
	}
	return p.RemainingGroups, p.RemainingImages, nil
}

// Completed reports whether the album's sweep has been fully marked done.
func (e *Engine) Completed(ctx context.Context, albumID string) (bool, error) {
	_, err := e.store.Get(ctx, completedKey(albumID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read completion mark: %w", err)
	}
	return true, nil
}

// ListCleanable returns the library's albums minus those already completed.
func (e *Engine) ListCleanable(ctx context.Context) ([]library.Album, error) {
	albums, err := e.repo.Albums(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}

	done := make(map[string]struct{})
	err = e.store.Scan(ctx, constants.CompletedAlbumPrefix, func(key string, _ []byte) error {
		done[strings.TrimPrefix(key, constants.CompletedAlbumPrefix)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan completion marks: %w", err)
	}

	cleanable := make([]library.Album, 0, len(albums))
	for _, a := range albums {
		if _, ok := done[a.ID]; !ok {
			cleanable = append(cleanable, a)
		}
	}
	return cleanable, nil
}

// Reset clears the album's analysis, processed marks, checkpoint and
// completion flag in one atomic store delete. Group cooldown entries are
// left in place so freshly reset groups do not resurface immediately.
func (e *Engine) Reset(ctx context.Context, albumID string) error {
	err := e.store.Delete(ctx,
		analysisKey(albumID),
		processedKey(albumID),
		checkpointKey(albumID),
		completedKey(albumID),
	)
	if err != nil {
		return fmt.Errorf("failed to reset cleanup state: %w", err)
	}

	e.logger.Info().Str("album", albumID).Msg("cleanup state reset")
	return nil
}

// albumImages loads the album's images newest first, the canonical sweep
// order.
func (e *Engine) albumImages(ctx context.Context, albumID string) ([]library.Image, error) {
	images, err := e.repo.Images(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load album images: %w", err)
	}
	slices.Reverse(images)
	return images, nil
}

// persistAnalysis writes a fresh analysis baseline and prunes processed
// marks for groups that no longer exist.
func (e *Engine) persistAnalysis(ctx context.Context, albumID string, groups []grouper.Group, totalImages int, now time.Time) (*analysisRecord, error) {
	rec := &analysisRecord{
		TotalGroups:  len(groups),
		TotalImages:  totalImages,
		GroupIDs:     make([]string, len(groups)),
		MemberCounts: make([]int, len(groups)),
		AnalyzedAt:   now.UnixMilli(),
	}
	for i, g := range groups {
		rec.GroupIDs[i] = g.ID
		rec.MemberCounts[i] = len(g.Members)
	}

	// The baseline is written only after the full grouping pass; a
	// cancelled analysis must not produce a partial write.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	if err := e.store.Put(ctx, analysisKey(albumID), data); err != nil {
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}

	if err := e.pruneProcessed(ctx, albumID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// pruneProcessed drops processed marks for group ids absent from the latest
// analysis, keeping the set bounded across re-analyses.
func (e *Engine) pruneProcessed(ctx context.Context, albumID string, rec *analysisRecord) error {
	processed, err := e.loadProcessed(ctx, albumID)
	if err != nil {
		return err
	}
	if len(processed) == 0 {
		return nil
	}

	known := make(map[string]struct{}, len(rec.GroupIDs))
	for _, id := range rec.GroupIDs {
		known[id] = struct{}{}
	}

	kept := make(map[string]struct{}, len(processed))
	for id := range processed {
		if _, ok := known[id]; ok {
			kept[id] = struct{}{}
		}
	}
	if len(kept) == len(processed) {
		return nil
	}

	e.logger.Info().
		Str("album", albumID).
		Int("pruned", len(processed)-len(kept)).
		Msg("pruned processed marks for regrouped content")

	return e.saveProcessed(ctx, albumID, kept)
}

// sweepOrder returns the remaining sweep order and start index, resuming the
// saved checkpoint when it is fresh and matches the current group set,
// rebuilding from the analysis order otherwise.
func (e *Engine) sweepOrder(ctx context.Context, albumID string, analysis *analysisRecord, processed, activeGroups map[string]struct{}, now time.Time) ([]string, int, error) {
	cp, err := e.loadCheckpoint(ctx, albumID)
	if err != nil {
		return nil, 0, err
	}
	if cp != nil && checkpointValid(cp, analysis, now) {
		return cp.GroupIDs, cp.Index, nil
	}
	if cp != nil {
		e.logger.Info().Str("album", albumID).Msg("discarding stale checkpoint")
		if err := e.store.Delete(ctx, checkpointKey(albumID)); err != nil {
			return nil, 0, fmt.Errorf("failed to drop checkpoint: %w", err)
		}
	}

	order := make([]string, 0, analysis.TotalGroups)
	for _, id := range analysis.GroupIDs {
		if _, done := processed[id]; done {
			continue
		}
		if _, active := activeGroups[id]; active {
			continue
		}
		order = append(order, id)
	}
	return order, 0, nil
}

// checkpointValid reports whether the checkpoint is recent enough and still
// consistent with the analyzed group set.
func checkpointValid(cp *checkpointRecord, analysis *analysisRecord, now time.Time) bool {
	if now.UnixMilli()-cp.SavedAt > constants.CheckpointMaxAge.Milliseconds() {
		return false
	}
	if cp.Index < 0 || cp.Index > len(cp.GroupIDs) {
		return false
	}

	known := make(map[string]struct{}, len(analysis.GroupIDs))
	for _, id := range analysis.GroupIDs {
		known[id] = struct{}{}
	}
	for _, id := range cp.GroupIDs {
		if _, ok := known[id]; !ok {
			return false
		}
	}
	return true
}

func (e *Engine) loadAnalysis(ctx context.Context, albumID string) (*analysisRecord, error) {
	data, err := e.store.Get(ctx, analysisKey(albumID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	var rec analysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &rec, nil
}

func (e *Engine) loadCheckpoint(ctx context.Context, albumID string) (*checkpointRecord, error) {
	data, err := e.store.Get(ctx, checkpointKey(albumID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp checkpointRecord
	if err := json.Unmarshal(data, &cp); err != nil {
		e.logger.Warn().
			Str("album", albumID).
			Err(err).
			Msg("discarding unreadable checkpoint")
		return nil, nil
	}
	return &cp, nil
}

func (e *Engine) saveCheckpoint(ctx context.Context, albumID string, order []string, index int, now time.Time) error {
	data, err := json.Marshal(&checkpointRecord{
		GroupIDs: order,
		Index:    index,
		SavedAt:  now.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := e.store.Put(ctx, checkpointKey(albumID), data); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) loadProcessed(ctx context.Context, albumID string) (map[string]struct{}, error) {
	data, err := e.store.Get(ctx, processedKey(albumID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load processed set: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode processed set: %w", err)
	}

	processed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		processed[id] = struct{}{}
	}
	return processed, nil
}

func (e *Engine) saveProcessed(ctx context.Context, albumID string, processed map[string]struct{}) error {
	ids := make([]string, 0, len(processed))
	for id := range processed {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal processed set: %w", err)
	}
	if err := e.store.Put(ctx, processedKey(albumID), data); err != nil {
		return fmt.Errorf("failed to persist processed set: %w", err)
	}
	return nil
}

func (e *Engine) markCompleted(ctx context.Context, albumID string, now time.Time) error {
	data, err := json.Marshal(&completedRecord{CompletedAt: now.UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal completion mark: %w", err)
	}
	if err := e.store.Put(ctx, completedKey(albumID), data); err != nil {
		return fmt.Errorf("failed to persist completion mark: %w", err)
	}
	if err := e.store.Delete(ctx, checkpointKey(albumID)); err != nil {
		return fmt.Errorf("failed to drop checkpoint: %w", err)
	}

	e.logger.Info().Str("album", albumID).Msg("album sweep completed")
	return nil
}

// progress assembles the Progress view for an album whose analysis is
// already loaded.
func (e *Engine) progress(ctx context.Context, albumID string, analysis *analysisRecord) (*Progress, error) {
	processed, err := e.loadProcessed(ctx, albumID)
	if err != nil {
		return nil, err
	}
	completed, err := e.Completed(ctx, albumID)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		AlbumID:         albumID,
		State:           StateAnalyzed,
		TotalGroups:     analysis.TotalGroups,
		TotalImages:     analysis.TotalImages,
		ProcessedGroups: len(processed),
		RemainingGroups: analysis.TotalGroups - len(processed),
		AnalyzedAt:      time.UnixMilli(analysis.AnalyzedAt),
	}
	for i, id := range analysis.GroupIDs {
		if _, done := processed[id]; !done {
			p.RemainingImages += analysis.MemberCounts[i]
		}
	}
	if completed {
		p.State = StateCompleted
	}
	return p, nil
}
