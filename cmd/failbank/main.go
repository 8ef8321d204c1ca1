// Package main implements the failbank CLI for recording and analyzing
// deployment failures against the local failure memory store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/failbank/internal/config"
	"github.com/fyrsmithlabs/failbank/internal/logging"
	"github.com/fyrsmithlabs/failbank/internal/memory"
	"github.com/fyrsmithlabs/failbank/internal/store"
	"github.com/fyrsmithlabs/failbank/internal/telemetry"
)

var (
	// cfgPath is the config file location; empty uses the default path.
	cfgPath string
	// storePath overrides the configured store document location.
	storePath string
	// outputJSON switches output from tables to JSON.
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "failbank",
	Short: "Failure memory and pattern-learning engine",
	Long: `failbank records deployment and build failures, classifies them,
finds historically similar failures, and learns reusable error-to-solution
patterns from confirmed fixes. All state lives in a local JSON document.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.config/failbank/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "store document path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
}

// runWithService builds the stack (config, logging, telemetry, store,
// service) and hands the service to fn, tearing everything down after.
func runWithService(fn func(ctx context.Context, svc memory.Service) error) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if storePath != "" {
		cfg.Storage.Path = storePath
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	var journal *store.Journal
	if cfg.Storage.JournalEnabled {
		journal, err = store.NewJournal(cfg.Storage.JournalPath, logger)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
	}

	fs, err := store.NewFileStore(cfg.Storage.Path, journal, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	svc, err := memory.NewService(&memory.Config{
		Enabled:             cfg.Memory.Enabled,
		SimilarityThreshold: cfg.Memory.SimilarityThreshold,
		MaxSimilar:          cfg.Memory.MaxSimilar,
		MaxSuggestions:      cfg.Memory.MaxSuggestions,
	}, fs, logger)
	if err != nil {
		return fmt.Errorf("failed to create memory service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	return fn(ctx, svc)
}

// emit prints a result. Structured failures become a non-zero exit via the
// returned error; the payload is still printed for inspection.
func emit(res *memory.Result) error {
	if outputJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}
