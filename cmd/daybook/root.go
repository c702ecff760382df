package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/internal/cache"
	"github.com/hyperengineering/daybook/internal/config"
	"github.com/hyperengineering/daybook/internal/index"
	"github.com/hyperengineering/daybook/internal/remote"
	"github.com/hyperengineering/daybook/internal/syncer"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:               "daybook",
	Short:             "Daybook - offline-first daily journal",
	Long:              "Edit, search, and sync daily journal entries backed by a local cache and a remote file store.",
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (overrides DAYBOOK_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pruneCmd)
}

// cfg is loaded once in setup and shared by all subcommands.
var cfg *config.Config

// setup loads configuration and installs the default logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// app bundles the wired core for one command invocation.
type app struct {
	store *cache.Store
	index *index.Index
	coord *syncer.Coordinator
}

// newApp opens the cache and wires the coordinator. Without a configured
// remote.base_url the coordinator gets an offline store, so local commands
// keep working and pending entries stay queued.
func newApp(ctx context.Context) (*app, error) {
	store, err := cache.NewStore(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	ix := index.New(func(date string) (string, bool) {
		rec, err := store.GetRecord(ctx, date)
		if err != nil {
			return "", false
		}
		return rec.Document, true
	})

	dates, err := store.Dates(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load date index: %w", err)
	}
	ix.ReplaceAll(dates)

	var rem remote.Store = remote.Offline{}
	if cfg.Remote.BaseURL != "" {
		rem = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token)
	}
	coord := syncer.New(store, rem, ix, time.Duration(cfg.Sync.Interval))

	return &app{store: store, index: ix, coord: coord}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("cache close error", "error", err)
	}
}

// requireRemote guards commands that talk to the remote store.
func requireRemote() error {
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is not configured")
	}
	return nil
}
