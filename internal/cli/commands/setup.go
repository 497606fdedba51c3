package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jakubkozera/mssqlmgr/internal/cli/config"
	"github.com/jakubkozera/mssqlmgr/internal/executor"
	"github.com/jakubkozera/mssqlmgr/internal/metadata"
	"github.com/jakubkozera/mssqlmgr/internal/registry"
	"github.com/jakubkozera/mssqlmgr/internal/state"
	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *state.SQLiteStore
	Registry *registry.Registry
	Executor *executor.Executor
}

// cappedHistory adapts the state store to the executor's history sink,
// pruning unpinned entries beyond the configured cap.
type cappedHistory struct {
	store *state.SQLiteStore
	cap   int
}

func (h cappedHistory) AppendHistory(entry core.QueryHistoryEntry) error {
	return h.store.AppendHistoryCapped(entry, h.cap)
}

// NewCommandContext opens the state store and wires up the registry and
// executor. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, nil, err
		}
	}

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	reg := registry.New(store, store, logger)
	extractor := metadata.NewExtractor(logger)
	exec := executor.New(logger, extractor, cappedHistory{store: store, cap: cfg.HistoryCap})

	cleanup := func() {
		reg.Close()
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Registry: reg,
		Executor: exec,
	}, cleanup, nil
}

// getConfig returns the current configuration.
// Falls back to defaults when LoadConfig has not run (e.g. in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		StatePath:    config.DefaultStatePath(),
		OutputFormat: config.DefaultOutput,
		HistoryCap:   config.DefaultHistoryCap,
	}
}
