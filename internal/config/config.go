package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wolo-run/wolo/pkg/types"
)

// Load builds the effective Config by layering, lowest priority first:
//  1. built-in defaults
//  2. global config file (~/.config/wolo/config.yaml)
//  3. project config file ({directory}/.wolo/config.yaml)
//  4. WOLO_-prefixed environment variables (and a .env file in directory,
//     loaded first so its values flow through the same env layer)
//
// viper resolves that precedence for us; godotenv only gets a process's
// real environment variables to the state viper expects to find them in.
func Load(directory string) (*types.Config, error) {
	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	v := viper.New()
	v.SetConfigType("yaml")
	applyDefaults(v)

	globalPath := filepath.Join(GetPaths().Config, "config.yaml")
	if err := mergeConfigFile(v, globalPath); err != nil {
		return nil, err
	}

	if directory != "" {
		projectPath := filepath.Join(directory, ".wolo", "config.yaml")
		if err := mergeConfigFile(v, projectPath); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("WOLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyLegacyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("enable_think", false)
	v.SetDefault("compaction.enabled", true)
	v.SetDefault("compaction.token_threshold", 150000)
	v.SetDefault("compaction.tool_pruning_policy.enabled", true)
	v.SetDefault("compaction.tool_pruning_policy.protect_recent_turns", 3)
	v.SetDefault("compaction.tool_pruning_policy.protect_token_threshold", 2000)
	v.SetDefault("compaction.tool_pruning_policy.minimum_prune_tokens", 500)
	v.SetDefault("path_safety.max_confirmations_per_session", 20)
}

func mergeConfigFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	layer := viper.New()
	layer.SetConfigType("yaml")
	if err := layer.ReadConfig(strReader(data)); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return v.MergeConfigMap(layer.AllSettings())
}

// applyLegacyEnvOverrides applies WOLO_DEFAULT_ENDPOINT, when set, directly
// onto the unmarshaled config, over any default_endpoint from the files.
func applyLegacyEnvOverrides(cfg *types.Config) {
	if v := os.Getenv("WOLO_DEFAULT_ENDPOINT"); v != "" {
		cfg.DefaultEndpoint = v
	}
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func Save(cfg *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func strReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
