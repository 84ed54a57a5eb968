package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file, environment, and defaults.
// Uses the global viper instance to access CLI flag bindings.
func Load() (*Config, error) {
	v := viper.GetViper()

	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Environment variables (REPOCACHE_*)
	v.SetEnvPrefix("REPOCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.root", DefaultCacheRoot())
	v.SetDefault("cache.refresh_after", 0)

	v.SetDefault("git.preferred_scheme", DefaultScheme)
	v.SetDefault("git.host", DefaultHost)
	v.SetDefault("git.default_branch", DefaultBranch)

	v.SetDefault("lock.stale_after", DefaultLockStaleAfter)
	v.SetDefault("lock.retry_interval", DefaultLockRetryInterval)
	v.SetDefault("lock.max_attempts", DefaultLockMaxAttempts)

	v.SetDefault("scan.paths", []string{})
	v.SetDefault("scan.max_depth", DefaultScanMaxDepth)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}
