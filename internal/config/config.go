package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config carries everything a run needs. It is populated from (highest
// precedence first) CLI flags, environment, config file, and Defaults.
type Config struct {
	Account        string        `mapstructure:"account" yaml:"account"`
	Topic          string        `mapstructure:"topic" yaml:"topic"`
	KeyAPIURL      string        `mapstructure:"key_api_url" yaml:"key_api_url"`
	NotifyURL      string        `mapstructure:"notify_url" yaml:"notify_url"`
	RetryCount     int           `mapstructure:"retry_count" yaml:"retry_count"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	MaxTime        time.Duration `mapstructure:"max_time" yaml:"max_time"`
	SSHDir         string        `mapstructure:"ssh_dir" yaml:"ssh_dir"`
	Language       string        `mapstructure:"language" yaml:"language"`
}

// Defaults is the built-in configuration. SSHDir is left empty here and
// resolved against the home directory at run time.
func Defaults() map[string]any {
	return map[string]any{
		"account":         "toeirei",
		"topic":           "inbox",
		"key_api_url":     "https://github.com",
		"notify_url":      "https://ntfy.sh",
		"retry_count":     3,
		"retry_delay":     "5s",
		"connect_timeout": "10s",
		"max_time":        "30s",
		"ssh_dir":         "",
		"language":        "en",
	}
}

// ResolveSSHDir returns the configured SSH directory, defaulting to
// <home>/.ssh when unset.
func (c *Config) ResolveSSHDir() (string, error) {
	if c.SSHDir != "" {
		return c.SSHDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ssh"), nil
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Keyfetch")
		default: // Linux, macOS, etc.
			configDir = "/etc/keyfetch"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "keyfetch")
	}

	return filepath.Join(configDir, "keyfetch.yaml"), nil
}

// LoadConfig builds a Config from defaults, config file, environment and the
// command's flags, in ascending precedence. An explicit config file path (via
// --config) overrides the search paths.
func LoadConfig(cmd *cobra.Command, defaults map[string]any, explicitPath *string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("keyfetch")
	v.SetConfigType("yaml")

	if explicitPath != nil {
		v.SetConfigFile(*explicitPath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".") // keyfetch.yaml in current dir

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("keyfetch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// EnsureDefaultFile writes the user config file if none exists yet, so
// subsequent runs have a persisted file to inspect and edit. Returns the
// path when a file was written.
func EnsureDefaultFile(c *Config) (string, error) {
	path, err := getConfigPath(false)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := WriteConfigFile(c, false); err != nil {
		return "", err
	}
	return path, nil
}

// WriteConfigFile persists the configuration so users have a file to edit on
// subsequent runs. 0600 because the topic name can be considered a secret.
func WriteConfigFile(c *Config, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
