// Package config loads lumen.toml, the project configuration spec.md §6
// describes: provider bindings, per-provider config tables, MCP server
// entries, and scheduler tuning knobs.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the parsed shape of lumen.toml.
type Config struct {
	Providers     map[string]string        `mapstructure:"providers"`
	ProviderConf  map[string]map[string]any `mapstructure:"-"`
	MCP           map[string]MCPServer      `mapstructure:"-"`
	Runtime       RuntimeConfig            `mapstructure:"runtime"`
}

// MCPServer is one `[providers.mcp.<name>]` entry.
type MCPServer struct {
	URI   string   `mapstructure:"uri"`
	Tools []string `mapstructure:"tools"`
	Env   []string `mapstructure:"env"`
}

// RuntimeConfig tunes the scheduler and VM.
type RuntimeConfig struct {
	Workers       int  `mapstructure:"workers"`
	Deterministic bool `mapstructure:"deterministic"`
	MaxFrames     int  `mapstructure:"max_frames"`
}

// Load reads lumen.toml from the current directory (or the LUMEN_CONFIG
// path override), falling back to defaults when the file is absent.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("runtime.workers", 0) // 0 => GOMAXPROCS
	v.SetDefault("runtime.deterministic", false)
	v.SetDefault("runtime.max_frames", 256)

	v.SetConfigName("lumen")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if p := os.Getenv("LUMEN_CONFIG"); p != "" {
		v.SetConfigFile(p)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("LUMEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read lumen.toml: %w", err)
		}
	}

	cfg := &Config{}
	cfg.Runtime = RuntimeConfig{
		Workers:       v.GetInt("runtime.workers"),
		Deterministic: v.GetBool("runtime.deterministic"),
		MaxFrames:     v.GetInt("runtime.max_frames"),
	}

	cfg.Providers = map[string]string{}
	if raw, ok := v.Get("providers").(map[string]any); ok {
		for k, val := range raw {
			if k == "config" || k == "mcp" {
				continue
			}
			if s, ok := val.(string); ok {
				cfg.Providers[k] = s
			}
		}
	}

	cfg.ProviderConf = map[string]map[string]any{}
	if raw, ok := v.Get("providers.config").(map[string]any); ok {
		for name, val := range raw {
			if m, ok := val.(map[string]any); ok {
				cfg.ProviderConf[name] = m
			}
		}
	}

	cfg.MCP = map[string]MCPServer{}
	if raw, ok := v.Get("providers.mcp").(map[string]any); ok {
		for name := range raw {
			var srv MCPServer
			if err := v.UnmarshalKey("providers.mcp."+name, &srv); err == nil {
				cfg.MCP[name] = srv
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Runtime.Workers < 0 {
		return fmt.Errorf("runtime.workers must be >= 0, got %d", c.Runtime.Workers)
	}
	if c.Runtime.MaxFrames <= 0 {
		return fmt.Errorf("runtime.max_frames must be > 0, got %d", c.Runtime.MaxFrames)
	}
	return nil
}

// ProviderFor returns the provider name bound to a tool alias, and whether a
// binding exists at all.
func (c *Config) ProviderFor(toolAlias string) (string, bool) {
	name, ok := c.Providers[toolAlias]
	return name, ok
}
