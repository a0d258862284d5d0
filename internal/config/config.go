// Package config loads livevoice configuration from defaults, an optional
// config file, LIVEVOICE_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/capture"
	"github.com/teslashibe/go-livevoice/pkg/i18n"
	"github.com/teslashibe/go-livevoice/pkg/persona"
	"github.com/teslashibe/go-livevoice/pkg/protocol"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIVEVOICE"


// Config holds all configuration for a livevoice process.
type Config struct {
	// Model is the Live model name.
	Model string `mapstructure:"model"`

	// Instruction overrides the system instruction built from Persona.
	Instruction string          `mapstructure:"instruction"`
	Persona     persona.Profile `mapstructure:"persona"`

	// Lang selects UI strings ("ar" or "en").
	Lang string `mapstructure:"lang"`

	LogLevel string `mapstructure:"log_level"`

	Auth  AuthConfig     `mapstructure:"auth"`
	Audio audioio.Config `mapstructure:"audio"`

	// MaxBuffered is the backpressure threshold in bytes.
	MaxBuffered int `mapstructure:"max_buffered"`

	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Store     StoreConfig     `mapstructure:"store"`
	RTP       RTPConfig       `mapstructure:"rtp"`
}

// AuthConfig selects how live credentials are obtained. Sources are tried
// in order: token worker, application default credentials, API key.
type AuthConfig struct {
	WorkerURL string `mapstructure:"worker_url"`
	UseADC    bool   `mapstructure:"use_adc"`
	APIKey    string `mapstructure:"api_key"`
}

// DashboardConfig configures the web dashboard. An empty Addr disables it.
type DashboardConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// StoreConfig selects the transcript store. DatabaseURL wins over Path.
type StoreConfig struct {
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// RTPConfig configures the optional RTP mirror. An empty Target disables it.
type RTPConfig struct {
	Target      string `mapstructure:"target"`
	PayloadType uint8  `mapstructure:"payload_type"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:       protocol.DefaultModel,
		Lang:        string(i18n.Default),
		LogLevel:    "info",
		Audio:       audioio.DefaultConfig(),
		MaxBuffered: capture.DefaultMaxBuffered,
		RTP:         RTPConfig{PayloadType: 111},
	}
}

// SetDefaults registers every key with v so environment overrides reach
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("model", d.Model)
	v.SetDefault("instruction", d.Instruction)
	v.SetDefault("lang", d.Lang)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("max_buffered", d.MaxBuffered)

	for _, k := range []string{"name", "birthdate", "location", "role", "interests", "notes", "about", "style", "focus"} {
		v.SetDefault("persona."+k, "")
	}

	v.SetDefault("auth.worker_url", "")
	v.SetDefault("auth.use_adc", false)
	v.SetDefault("auth.api_key", "")

	v.SetDefault("audio.backend", string(d.Audio.Backend))
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.block_size", d.Audio.BlockSize)
	v.SetDefault("audio.input_device", "")
	v.SetDefault("audio.output_device", "")
	v.SetDefault("audio.echo_cancellation", d.Audio.EchoCancellation)
	v.SetDefault("audio.noise_suppression", d.Audio.NoiseSuppression)
	v.SetDefault("audio.auto_gain_control", d.Audio.AutoGainControl)

	v.SetDefault("dashboard.addr", "")
	v.SetDefault("dashboard.static_dir", "")
	v.SetDefault("store.path", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("rtp.target", "")
	v.SetDefault("rtp.payload_type", d.RTP.PayloadType)
}

// Setup prepares v for Load: defaults, environment and config file search
// paths. An explicit file overrides the search.
func Setup(v *viper.Viper, file string) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("auth.api_key", EnvPrefix+"_AUTH_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("store.database_url", EnvPrefix+"_STORE_DATABASE_URL", "DATABASE_URL")

	if file != "" {
		v.SetConfigFile(file)
		return
	}
	v.SetConfigName("livevoice")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.livevoice")
}

// Load reads the config file, if any, and unmarshals v. A missing file
// found by search is not an error; a missing explicit file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SystemInstruction returns Instruction, or the persona instruction when
// Instruction is empty.
func (c *Config) SystemInstruction() string {
	if c.Instruction != "" {
		return c.Instruction
	}
	return c.Persona.Instruction()
}

// Language returns the parsed UI language.
func (c *Config) Language() i18n.Lang {
	return i18n.Parse(c.Lang)
}

// HasCredentials reports whether any credential source is configured.
func (c *Config) HasCredentials() bool {
	return c.Auth.WorkerURL != "" || c.Auth.UseADC || c.Auth.APIKey != ""
}

// Validate checks the configuration. Missing credentials are not checked
// here; commands that open sessions use HasCredentials.
func (c *Config) Validate() error {
	if c.Model == "" {
		return &ConfigError{Field: "Model", Message: "model must not be empty"}
	}
	if !i18n.Supported(c.Lang) {
		return &ConfigError{Field: "Lang", Message: fmt.Sprintf("unsupported lang %q (want ar or en)", c.Lang)}
	}
	if err := c.Audio.Validate(); err != nil {
		return &ConfigError{Field: "Audio", Message: "audio: " + err.Error()}
	}
	if c.Auth.WorkerURL != "" && !strings.HasPrefix(c.Auth.WorkerURL, "http://") && !strings.HasPrefix(c.Auth.WorkerURL, "https://") {
		return &ConfigError{Field: "Auth.WorkerURL", Message: "auth.worker_url must be an http(s) URL"}
	}
	if c.Store.DatabaseURL != "" && !strings.HasPrefix(c.Store.DatabaseURL, "postgres://") && !strings.HasPrefix(c.Store.DatabaseURL, "postgresql://") {
		return &ConfigError{Field: "Store.DatabaseURL", Message: "store.database_url must be a postgres:// URL"}
	}
	if c.RTP.PayloadType > 127 {
		return &ConfigError{Field: "RTP.PayloadType", Message: "rtp.payload_type must be below 128"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
