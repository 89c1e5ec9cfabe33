// Package config resolves runtime settings from defaults, an optional
// config file, DP_* environment variables, and command-line flags, in
// that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultModel            = "openrouter/pony-alpha"
	DefaultMaxSteps         = 10
	DefaultBaseURL          = "https://openrouter.ai/api/v1"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultCallTimeout      = 120 * time.Second
	DefaultCommandTimeout   = 30 * time.Second
	DefaultCommandMaxBytes  = 64 * 1024
	DefaultUIGrace          = 3 * time.Second
	DefaultStopGrace        = 5 * time.Second
	DefaultSweepInterval    = 30 * time.Second
)

// Config holds resolved runtime configuration values.
type Config struct {
	Model            string
	MaxSteps         int
	BaseURL          string
	APIKey           string
	HTTPReferer      string
	Title            string
	MockLLM          bool
	Verbose          bool
	HandshakeTimeout time.Duration
	CallTimeout      time.Duration
	CommandTimeout   time.Duration
	CommandMaxBytes  int
	UIGrace          time.Duration
	StopGrace        time.Duration
	SweepInterval    time.Duration
}

type rawConfig struct {
	Model            string `mapstructure:"model"`
	MaxSteps         int    `mapstructure:"max_steps"`
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	HTTPReferer      string `mapstructure:"http_referer"`
	Title            string `mapstructure:"title"`
	MockLLM          bool   `mapstructure:"mock_llm"`
	Verbose          bool   `mapstructure:"verbose"`
	HandshakeTimeout string `mapstructure:"handshake_timeout"`
	CallTimeout      string `mapstructure:"call_timeout"`
	CommandTimeout   string `mapstructure:"command_timeout"`
	CommandMaxBytes  int    `mapstructure:"command_max_bytes"`
	UIGrace          string `mapstructure:"ui_grace"`
	StopGrace        string `mapstructure:"stop_grace"`
	SweepInterval    string `mapstructure:"sweep_interval"`
}

// Load resolves configuration. cmd may be nil when no flags apply.
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("model", DefaultModel)
	v.SetDefault("max_steps", DefaultMaxSteps)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_key", "")
	v.SetDefault("http_referer", "")
	v.SetDefault("title", "deploypilot")
	v.SetDefault("mock_llm", false)
	v.SetDefault("verbose", false)
	v.SetDefault("handshake_timeout", DefaultHandshakeTimeout.String())
	v.SetDefault("call_timeout", DefaultCallTimeout.String())
	v.SetDefault("command_timeout", DefaultCommandTimeout.String())
	v.SetDefault("command_max_bytes", DefaultCommandMaxBytes)
	v.SetDefault("ui_grace", DefaultUIGrace.String())
	v.SetDefault("stop_grace", DefaultStopGrace.String())
	v.SetDefault("sweep_interval", DefaultSweepInterval.String())

	if cmd != nil {
		_ = v.BindPFlag("model", cmd.Flags().Lookup("model"))
		_ = v.BindPFlag("max_steps", cmd.Flags().Lookup("max-steps"))
		_ = v.BindPFlag("base_url", cmd.Flags().Lookup("base-url"))
		_ = v.BindPFlag("mock_llm", cmd.Flags().Lookup("mock-llm"))
		_ = v.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	}

	// OPENROUTER_API_KEY and OPENAI_API_KEY are conventional spellings
	// people already have exported.
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && os.Getenv("DP_API_KEY") == "" {
		v.Set("api_key", key)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && os.Getenv("DP_API_KEY") == "" && os.Getenv("OPENROUTER_API_KEY") == "" {
		v.Set("api_key", key)
	}

	if err := loadConfigFile(v); err != nil {
		return Config{}, err
	}

	var raw rawConfig
	decoder, _ := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Model:           raw.Model,
		MaxSteps:        raw.MaxSteps,
		BaseURL:         raw.BaseURL,
		APIKey:          raw.APIKey,
		HTTPReferer:     raw.HTTPReferer,
		Title:           raw.Title,
		MockLLM:         raw.MockLLM,
		Verbose:         raw.Verbose,
		CommandMaxBytes: raw.CommandMaxBytes,
	}

	var err error
	if cfg.HandshakeTimeout, err = parseDuration("handshake_timeout", raw.HandshakeTimeout, DefaultHandshakeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CallTimeout, err = parseDuration("call_timeout", raw.CallTimeout, DefaultCallTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CommandTimeout, err = parseDuration("command_timeout", raw.CommandTimeout, DefaultCommandTimeout); err != nil {
		return Config{}, err
	}
	if cfg.UIGrace, err = parseDuration("ui_grace", raw.UIGrace, DefaultUIGrace); err != nil {
		return Config{}, err
	}
	if cfg.StopGrace, err = parseDuration("stop_grace", raw.StopGrace, DefaultStopGrace); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = parseDuration("sweep_interval", raw.SweepInterval, DefaultSweepInterval); err != nil {
		return Config{}, err
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CommandMaxBytes <= 0 {
		cfg.CommandMaxBytes = DefaultCommandMaxBytes
	}
	return cfg, nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}

func loadConfigFile(v *viper.Viper) error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	base := filepath.Join(configDir, "deploypilot")
	candidates := []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.yml"),
		filepath.Join(base, "config.json"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
			return nil
		}
	}
	return nil
}
