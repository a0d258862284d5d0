package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-livevoice/pkg/capture"
	"github.com/teslashibe/go-livevoice/pkg/protocol"
)

func load(t *testing.T, file string) (*Config, error) {
	t.Helper()
	v := viper.New()
	Setup(v, file)
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	c, err := load(t, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Model != protocol.DefaultModel {
		t.Errorf("Expected model %s, got %s", protocol.DefaultModel, c.Model)
	}
	if c.Lang != "ar" {
		t.Errorf("Expected lang ar, got %s", c.Lang)
	}
	if c.MaxBuffered != capture.DefaultMaxBuffered {
		t.Errorf("Expected max_buffered %d, got %d", capture.DefaultMaxBuffered, c.MaxBuffered)
	}
	if c.Audio.BlockSize != 4096 {
		t.Errorf("Expected block size 4096, got %d", c.Audio.BlockSize)
	}
	if c.RTP.PayloadType != 111 {
		t.Errorf("Expected payload type 111, got %d", c.RTP.PayloadType)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIVEVOICE_MODEL", "gemini-live-test")
	t.Setenv("LIVEVOICE_AUDIO_BLOCK_SIZE", "1024")
	t.Setenv("LIVEVOICE_AUTH_WORKER_URL", "https://worker.example.com/token")
	t.Setenv("LIVEVOICE_LANG", "en")
	t.Setenv("LIVEVOICE_AUTH_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	c, err := load(t, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Model != "gemini-live-test" {
		t.Errorf("Expected model override, got %s", c.Model)
	}
	if c.Audio.BlockSize != 1024 {
		t.Errorf("Expected block size 1024, got %d", c.Audio.BlockSize)
	}
	if c.Auth.WorkerURL != "https://worker.example.com/token" {
		t.Errorf("Expected worker URL override, got %q", c.Auth.WorkerURL)
	}
	if c.Auth.APIKey != "gemini-key" {
		t.Errorf("Expected API key from GEMINI_API_KEY, got %q", c.Auth.APIKey)
	}
	if !c.HasCredentials() {
		t.Error("Expected credentials to be configured")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livevoice.yaml")
	body := []byte(`lang: en
persona:
  name: Lina
  location: Amman
dashboard:
  addr: ":8080"
rtp:
  target: "127.0.0.1:5004"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := load(t, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Persona.Name != "Lina" || c.Persona.Location != "Amman" {
		t.Errorf("Expected persona from file, got %+v", c.Persona)
	}
	if c.Dashboard.Addr != ":8080" {
		t.Errorf("Expected dashboard addr :8080, got %q", c.Dashboard.Addr)
	}
	if c.RTP.Target != "127.0.0.1:5004" {
		t.Errorf("Expected rtp target, got %q", c.RTP.Target)
	}
	if got := c.SystemInstruction(); got != c.Persona.Instruction() || got == "" {
		t.Errorf("Expected persona instruction, got %q", got)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := load(t, filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSystemInstruction_Override(t *testing.T) {
	c := DefaultConfig()
	c.Persona.Name = "Lina"
	c.Instruction = "Be brief."
	if got := c.SystemInstruction(); got != "Be brief." {
		t.Errorf("Expected explicit instruction, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"regional lang", func(c *Config) { c.Lang = "ar-JO" }, ""},
		{"empty model", func(c *Config) { c.Model = "" }, "Model"},
		{"unknown lang", func(c *Config) { c.Lang = "fr" }, "Lang"},
		{"bad block size", func(c *Config) { c.Audio.BlockSize = 0 }, "Audio"},
		{"bad worker url", func(c *Config) { c.Auth.WorkerURL = "worker.local" }, "Auth.WorkerURL"},
		{"bad database url", func(c *Config) { c.Store.DatabaseURL = "mysql://x" }, "Store.DatabaseURL"},
		{"bad payload type", func(c *Config) { c.RTP.PayloadType = 200 }, "RTP.PayloadType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			err := c.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected *ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}
}
