package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Git     GitConfig     `mapstructure:"git" yaml:"git"`
	Lock    LockConfig    `mapstructure:"lock" yaml:"lock"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CacheConfig contains cache layout and reuse settings
type CacheConfig struct {
	// Root is the directory holding the manifest, the lock marker and
	// all cached working trees (<root>/<owner>/<repo>).
	Root string `mapstructure:"root" yaml:"root"`
	// RefreshAfter re-fetches a reused cached checkout when its last
	// update is older than this. Zero disables the refresh policy.
	RefreshAfter time.Duration `mapstructure:"refresh_after" yaml:"refresh_after"`
}

// GitConfig contains acquisition settings
type GitConfig struct {
	// PreferredScheme is tried first when building clone URLs ("ssh" or "https").
	PreferredScheme string `mapstructure:"preferred_scheme" yaml:"preferred_scheme"`
	// Host is the git forge host used to build clone URLs.
	Host string `mapstructure:"host" yaml:"host"`
	// DefaultBranch is the first conventional fallback when the remote's
	// symbolic default cannot be determined.
	DefaultBranch string `mapstructure:"default_branch" yaml:"default_branch"`
}

// LockConfig contains manifest lock settings
type LockConfig struct {
	// StaleAfter is the age past which another process's marker is
	// considered abandoned and forcibly removed.
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	// RetryInterval is the fixed back-off between acquisition attempts.
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	// MaxAttempts bounds acquisition; exhaustion fails the call.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ScanConfig contains local repository discovery settings
type ScanConfig struct {
	// Paths are the roots walked when discovering local working trees.
	Paths []string `mapstructure:"paths" yaml:"paths"`
	// MaxDepth bounds the walk below each root.
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration and applies defaults for
// invalid values
func (c *Config) Validate() error {
	if c.Cache.Root == "" {
		c.Cache.Root = DefaultCacheRoot()
	}
	switch c.Git.PreferredScheme {
	case "ssh", "https":
	case "":
		c.Git.PreferredScheme = DefaultScheme
	default:
		return fmt.Errorf("invalid git.preferred_scheme %q (want ssh or https)", c.Git.PreferredScheme)
	}
	if c.Git.Host == "" {
		c.Git.Host = DefaultHost
	}
	if c.Git.DefaultBranch == "" {
		c.Git.DefaultBranch = DefaultBranch
	}
	if c.Lock.StaleAfter <= 0 {
		c.Lock.StaleAfter = DefaultLockStaleAfter
	}
	if c.Lock.RetryInterval <= 0 {
		c.Lock.RetryInterval = DefaultLockRetryInterval
	}
	if c.Lock.MaxAttempts < 1 {
		c.Lock.MaxAttempts = DefaultLockMaxAttempts
	}
	if c.Scan.MaxDepth < 1 {
		c.Scan.MaxDepth = DefaultScanMaxDepth
	}
	return nil
}
