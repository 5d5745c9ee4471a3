package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-triage/internal/cleanup"
	"github.com/kozaktomas/photo-triage/internal/config"
	"github.com/kozaktomas/photo-triage/internal/constants"
	"github.com/kozaktomas/photo-triage/internal/cooldown"
	"github.com/kozaktomas/photo-triage/internal/grouper"
	"github.com/kozaktomas/photo-triage/internal/library"
	"github.com/kozaktomas/photo-triage/internal/logging"
	"github.com/kozaktomas/photo-triage/internal/recommend"
	"github.com/kozaktomas/photo-triage/internal/store"
)

// app bundles the configuration, the photo index, the state store and the
// two triage engines a command works with.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	repo   *library.SQLiteRepository
	store  *store.BadgerStore
	photos *cooldown.Ledger
	groups *cooldown.Ledger

	recommender *recommend.Engine
	cleaner     *cleanup.Engine
}

// grouperConfig maps the engine tuning config onto grouper thresholds.
func grouperConfig(cfg *config.Config) grouper.Config {
	return grouper.Config{
		MinGroupSize:    cfg.Engine.Grouper.MinGroupSize,
		MergeThreshold:  cfg.Engine.Grouper.MergeThreshold,
		TimeWindow:      cfg.Engine.Grouper.TimeWindow(),
		AspectTolerance: cfg.Engine.Grouper.AspectTolerance,
		SizeRatioLimit:  cfg.Engine.Grouper.SizeRatioLimit,
	}
}

// openApp opens the photo index and the state store under the configured
// data directory and wires up the engines. Call Close when done.
func openApp() (*app, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo, err := library.NewSQLiteRepository(cfg.Data.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open photo index: %w", err)
	}

	st, err := store.OpenBadger(cfg.Data.StatePath())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	photos, err := cooldown.NewLedger(st, cooldown.Config{
		Prefix: constants.PhotoCooldownPrefix,
		Pool:   cfg.Engine.Cooldown.PhotoDays,
	}, logger)
	if err != nil {
		repo.Close()
		st.Close()
		return nil, fmt.Errorf("failed to create photo ledger: %w", err)
	}

	groups, err := cooldown.NewLedger(st, cooldown.Config{
		Prefix: constants.GroupCooldownPrefix,
		Pool:   cfg.Engine.Cooldown.GroupDays,
	}, logger)
	if err != nil {
		repo.Close()
		st.Close()
		return nil, fmt.Errorf("failed to create group ledger: %w", err)
	}

	recommender, err := recommend.NewEngine(photos, groups, recommend.Config{
		Grouper:  grouperConfig(cfg),
		CacheTTL: constants.GroupingCacheTTL,
	}, logger)
	if err != nil {
		repo.Close()
		st.Close()
		return nil, fmt.Errorf("failed to create recommendation engine: %w", err)
	}

	cleaner, err := cleanup.NewEngine(st, groups, repo, grouperConfig(cfg), logger)
	if err != nil {
		repo.Close()
		st.Close()
		return nil, fmt.Errorf("failed to create cleanup engine: %w", err)
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		repo:        repo,
		store:       st,
		photos:      photos,
		groups:      groups,
		recommender: recommender,
		cleaner:     cleaner,
	}, nil
}

// Close releases the index and the state store.
func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close photo index: %v\n", err)
	}
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close state store: %v\n", err)
	}
}
