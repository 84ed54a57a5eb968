package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	// Git defaults
	DefaultScheme = "https"
	DefaultHost   = "github.com"
	DefaultBranch = "main"

	// Lock defaults
	DefaultLockStaleAfter    = 10 * time.Minute
	DefaultLockRetryInterval = 200 * time.Millisecond
	DefaultLockMaxAttempts   = 50

	// Scan defaults
	DefaultScanMaxDepth = 3

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repocache"
	}
	return filepath.Join(home, ".repocache")
}

// DefaultCacheRoot returns the default cache root directory
func DefaultCacheRoot() string {
	return filepath.Join(ConfigDir(), "repos")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Root:         DefaultCacheRoot(),
			RefreshAfter: 0,
		},
		Git: GitConfig{
			PreferredScheme: DefaultScheme,
			Host:            DefaultHost,
			DefaultBranch:   DefaultBranch,
		},
		Lock: LockConfig{
			StaleAfter:    DefaultLockStaleAfter,
			RetryInterval: DefaultLockRetryInterval,
			MaxAttempts:   DefaultLockMaxAttempts,
		},
		Scan: ScanConfig{
			MaxDepth: DefaultScanMaxDepth,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
