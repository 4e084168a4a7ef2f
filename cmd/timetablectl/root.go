package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/app"
	"github.com/noah-isme/sma-timetable-engine/pkg/config"
	"github.com/noah-isme/sma-timetable-engine/pkg/logger"
)

var (
	backendOverride string
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:           "timetablectl",
	Short:         "Operate on stored classroom timetables",
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendOverride, "backend", "", "grid backend override (postgres|redis|none)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
}

// openApp loads configuration and wires the engine the same way the API does.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if backendOverride != "" {
		cfg.Timetable.PersistBackend = backendOverride
	}
	cfg.Metrics.Enabled = false

	log := zap.NewNop()
	if verbose {
		cfg.Log.Format = "console"
		if log, err = logger.New(cfg); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	return app.New(ctx, cfg, log, opts)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
