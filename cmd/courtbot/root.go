package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"courtbot/pkg/alerts"
	"courtbot/pkg/booking"
	"courtbot/pkg/config"
	"courtbot/pkg/diagnostics"
	"courtbot/pkg/games"
	"courtbot/pkg/log"
	"courtbot/pkg/navigator"
	"courtbot/pkg/surface"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	outputJSON bool
	loaded     *config.Config
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "courtbot",
		Short: "Check and book courts on the club reservation site",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := log.Init(cfg.Log.Production); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			loaded = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config (default $COURTBOT_CONFIG or "+config.DefaultPathLiteral+")")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output JSON")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(webCmd())
	return rootCmd
}

// newOrchestrator wires the Chrome surface, navigator and diagnostic sink from cfg.
func newOrchestrator(cfg *config.Config, sink diagnostics.Sink) *booking.Orchestrator {
	opener := surface.NewChromeOpener(cfg.ChromeConfig())
	driver := navigator.New(cfg.NavigatorConfig(), cfg.Clock())
	return booking.New(cfg.BookingConfig(), opener, driver, sink)
}

func newSink(cfg *config.Config) (diagnostics.Sink, error) {
	if cfg.Diagnostics.Bucket != "" {
		sink, err := diagnostics.NewS3Sink(cfg.S3Config())
		if err != nil {
			return nil, err
		}
		log.L().Info("diagnostics_s3_enabled", zap.String("bucket", cfg.Diagnostics.Bucket))
		return sink, nil
	}
	if err := os.MkdirAll(cfg.Diagnostics.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	return diagnostics.NewDirSink(cfg.Diagnostics.Dir), nil
}

// newAlertSet prefers valkey and falls back to memory when it is not configured or unreachable.
func newAlertSet(ctx context.Context, cfg *config.Config) (alerts.Set, func()) {
	if cfg.Alerts.Addr == "" {
		return alerts.NewMemorySet(), func() {}
	}
	client, err := alerts.Dial(ctx, cfg.Alerts.Addr)
	if err != nil {
		log.L().Error("valkey_unavailable_using_memory", zap.String("addr", cfg.Alerts.Addr), zap.Error(err))
		return alerts.NewMemorySet(), func() {}
	}
	log.L().Info("alerts_valkey_enabled", zap.String("addr", cfg.Alerts.Addr))
	return alerts.NewValkeySet(client, cfg.Alerts.Key), client.Close
}

func openStore(cfg *config.Config) (*games.Store, error) {
	store, err := games.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return store, nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
