// livevoice - full-duplex voice conversations with the Gemini Live API
// Streams the microphone up, plays the model's voice back and keeps a
// reconciled transcript.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-livevoice/internal/config"
	"github.com/teslashibe/go-livevoice/internal/log"
)

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./livevoice.yaml or ~/.livevoice/livevoice.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("lang", "", "UI language: ar or en")
	rootCmd.PersistentFlags().String("api-key", "", "Gemini API key (prefer GEMINI_API_KEY)")
	rootCmd.PersistentFlags().String("worker-url", "", "Token worker URL for ephemeral live tokens")
	rootCmd.PersistentFlags().Bool("adc", false, "Use Google application default credentials")
	rootCmd.PersistentFlags().String("store", "", "Transcript history file")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres URL for transcript history")

	bind := func(key, flag string) {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
	bind("log_level", "log-level")
	bind("lang", "lang")
	bind("auth.api_key", "api-key")
	bind("auth.worker_url", "worker-url")
	bind("auth.use_adc", "adc")
	bind("store.path", "store")
	bind("store.database_url", "database-url")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)
}

func initConfig() {
	config.Setup(viper.GetViper(), cfgFile)
}

var rootCmd = &cobra.Command{
	Use:   "livevoice",
	Short: "Talk to Gemini Live from the terminal",
	Long: `livevoice opens a full-duplex voice session with the Gemini Live API:
microphone audio streams up, the model's voice plays back, and both sides
of the conversation are transcribed and stored.`,
	SilenceUsage: true,
}

// loadConfig reads the merged configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log.Init(cfg.LogLevel)
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debug("config loaded", "file", f)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
