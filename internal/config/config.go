// Package config holds the viper-backed configuration singleton. A
// project configures rwm through .rwm/config.yaml at the workspace
// root; RWM_-prefixed environment variables override the file, and
// command-line flags override both.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/untoldecay/rwm/internal/debug"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Call once at
// application startup.
func Initialize() error {
	v = viper.New()

	// Only config.yaml is loaded; locate it explicitly so stray
	// config.json files are never picked up.
	v.SetConfigType("yaml")

	// Precedence: project .rwm/config.yaml > ~/.config/rwm/config.yaml
	// > ~/.rwm/config.yaml.
	configFileSet := false

	// 1. Walk up from CWD so commands work from subdirectories.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".rwm", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/rwm/config.yaml).
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "rwm", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.rwm/config.yaml).
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".rwm", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Environment variables take precedence over the config file.
	// E.g. RWM_JSON, RWM_DB, RWM_BUNDLE_TOKENS, RWM_MODEL_FAMILY.
	v.SetEnvPrefix("RWM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Output and identity
	v.SetDefault("json", false)
	v.SetDefault("quiet", false)
	v.SetDefault("actor", "")

	// Paths; empty values derive from the workspace root at startup.
	v.SetDefault("root", "")
	v.SetDefault("db", "")
	v.SetDefault("artifacts", "")
	v.SetDefault("log-file", "")

	// Bundle composition
	v.SetDefault("bundle-tokens", 4500)
	v.SetDefault("model-family", "generic")
	v.SetDefault("policy", "")

	// Hooks
	v.SetDefault("no-hooks", false)
	v.SetDefault("hooks-timeout", "30s")

	// Distillation of aged event streams
	v.SetDefault("distill.model", "claude-3-5-haiku-20241022")
	v.SetDefault("distill.age-days", 14)
	v.SetDefault("distill.workers", 4)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("Debug: loaded config from %s\n", v.ConfigFileUsed())
	} else {
		debug.Logf("Debug: no config.yaml found; using defaults and environment variables\n")
	}

	return nil
}

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault    ConfigSource = "default"
	SourceConfigFile ConfigSource = "config_file"
	SourceEnvVar     ConfigSource = "env_var"
	SourceFlag       ConfigSource = "flag"
)

// ConfigOverride represents a detected configuration override.
type ConfigOverride struct {
	Key            string
	EffectiveValue interface{}
	OverriddenBy   ConfigSource
	OriginalSource ConfigSource
	OriginalValue  interface{}
}

// GetValueSource returns the source of a configuration value.
// Priority (highest to lowest): env var > config file > default.
// Flag overrides are handled by the command layer since viper does
// not see cobra flags.
func GetValueSource(key string) ConfigSource {
	if v == nil {
		return SourceDefault
	}

	envKey := "RWM_" + strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(key, "-", "_"), ".", "_"))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// CheckOverrides reports flags that shadow config-file or environment
// values, so verbose mode can tell the user which source won.
// flagOverrides maps key -> (flagValue, flagWasSet).
func CheckOverrides(flagOverrides map[string]struct {
	Value  interface{}
	WasSet bool
}) []ConfigOverride {
	var overrides []ConfigOverride

	for key, flagInfo := range flagOverrides {
		if !flagInfo.WasSet {
			continue
		}

		source := GetValueSource(key)
		if source == SourceConfigFile || source == SourceEnvVar {
			var originalValue interface{}
			switch flagInfo.Value.(type) {
			case bool:
				originalValue = GetBool(key)
			case string:
				originalValue = GetString(key)
			case int:
				originalValue = GetInt(key)
			default:
				originalValue = flagInfo.Value
			}

			overrides = append(overrides, ConfigOverride{
				Key:            key,
				EffectiveValue: flagInfo.Value,
				OverriddenBy:   SourceFlag,
				OriginalSource: source,
				OriginalValue:  originalValue,
			})
		}
	}

	return overrides
}

// LogOverride logs a message about a configuration override. Callers
// guard on verbose mode.
func LogOverride(override ConfigOverride) {
	var sourceDesc string
	switch override.OriginalSource {
	case SourceConfigFile:
		sourceDesc = "config file"
	case SourceEnvVar:
		sourceDesc = "environment variable"
	default:
		sourceDesc = string(override.OriginalSource)
	}

	var overrideDesc string
	switch override.OverriddenBy {
	case SourceFlag:
		overrideDesc = "command-line flag"
	case SourceEnvVar:
		overrideDesc = "environment variable"
	default:
		overrideDesc = string(override.OverriddenBy)
	}

	fmt.Fprintf(os.Stderr, "Config: %s overridden by %s (was: %v from %s, now: %v)\n",
		override.Key, overrideDesc, override.OriginalValue, sourceDesc, override.EffectiveValue)
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// GetActor resolves who is acting, for hook payloads and request
// logs. Priority chain:
//  1. flagValue (from --actor)
//  2. RWM_ACTOR env var / config.yaml actor field (via viper)
//  3. git config user.name
//  4. hostname
func GetActor(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if actor := GetString("actor"); actor != "" {
		return actor
	}

	cmd := exec.Command("git", "config", "user.name")
	if output, err := cmd.Output(); err == nil {
		if gitUser := strings.TrimSpace(string(output)); gitUser != "" {
			return gitUser
		}
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "unknown"
}
