// Package cmd provides the CLI commands for annostore.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/annolab/annostore/internal/config"
	"github.com/annolab/annostore/internal/engine"
	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/index"
	"github.com/annolab/annostore/internal/logging"
	"github.com/annolab/annostore/internal/store"
	"github.com/annolab/annostore/pkg/version"
)

var (
	configPath string
	dataDir    string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the annostore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annostore",
		Short: "Annotation store with chain-aware search indexing",
		Long: `annostore stores annotation records and keeps a search index in sync,
so annotations can be queried by the resource they target, including
transitively when an annotation targets another annotation.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("annostore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the data directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.File
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Store.DataDir = dataDir
	}
	return cfg, nil
}

// openEngine builds the store, index, and engine from configuration.
// The returned cleanup closes both backends.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var st store.Store
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		st, err = store.NewSQLiteStore(cfg.StorePath())
		if err != nil {
			return nil, nil, err
		}
	default:
		st = store.NewMemoryStore()
	}

	indexPath := cfg.Index.Path
	if indexPath == "" && cfg.Store.Backend == config.BackendSQLite {
		// Persistent store deployments keep the index next to the database.
		indexPath = filepath.Join(cfg.Store.DataDir, "annotations.bleve")
	}
	idx, err := index.NewBleveIndex(indexPath)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	initialDelay, maxDelay, err := cfg.Retry.Delays()
	if err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, nil, err
	}
	eng := engine.New(st, idx,
		engine.WithLogger(slog.Default()),
		engine.WithMaxDepth(cfg.Propagation.MaxDepth),
		engine.WithWorkers(cfg.Propagation.Workers),
		engine.WithRetry(errors.RetryConfig{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: initialDelay,
			MaxDelay:     maxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			Jitter:       cfg.Retry.Jitter,
		}),
	)
	cleanup := func() {
		_ = idx.Close()
		_ = st.Close()
	}
	return eng, cleanup, nil
}
