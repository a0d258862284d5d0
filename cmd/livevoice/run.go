package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-livevoice/internal/app"
	"github.com/teslashibe/go-livevoice/internal/log"
	"github.com/teslashibe/go-livevoice/pkg/i18n"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live voice session",
	Long: `Start a live voice session on the configured audio devices.
The session runs until Ctrl+C, or until it fails when no dashboard is served.`,
	RunE: runLive,
}

func init() {
	runCmd.Flags().String("model", "", "Live model name")
	runCmd.Flags().String("instruction", "", "System instruction (overrides the persona)")
	runCmd.Flags().String("backend", "", "Audio backend: auto, portaudio, mock")
	runCmd.Flags().String("input-device", "", "Input device name")
	runCmd.Flags().String("output-device", "", "Output device name")
	runCmd.Flags().String("dashboard", "", "Dashboard listen address, e.g. :8080")
	runCmd.Flags().String("rtp-target", "", "Mirror model audio as Opus RTP to host:port")

	bind := func(key, flag string) {
		viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}
	bind("model", "model")
	bind("instruction", "instruction")
	bind("audio.backend", "backend")
	bind("audio.input_device", "input-device")
	bind("audio.output_device", "output-device")
	bind("dashboard.addr", "dashboard")
	bind("rtp.target", "rtp-target")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(*cfg, cmd.OutOrStdout(), log.L())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lang := cfg.Language()
	fmt.Fprintf(cmd.OutOrStdout(), "🎙️  %s\n   %s\n", i18n.Message(lang, i18n.KeyTitle), i18n.Message(lang, i18n.KeySubtitle))

	if err := a.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		if err := a.Shutdown(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	if cfg.Dashboard.Addr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "🌐 Dashboard on %s\n", cfg.Dashboard.Addr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "   (Ctrl+C to exit)")

	return a.Run(ctx)
}
