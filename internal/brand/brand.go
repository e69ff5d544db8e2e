// Package brand provides centralized product constants so paths and names
// live in one place instead of being scattered across packages.
package brand

import (
	"os"
	"path/filepath"
)

const (
	Name        = "Limawan"
	LowerName   = "limawan"
	BinaryName  = "limawan"
	Description = "Expose VM services through the host pf firewall"

	ConfigEnvPrefix  = "LIMAWAN"
	DefaultConfigDir = "/usr/local/etc/limawan"
	ConfigFileName   = "limawan.hcl"

	// AnchorName is the pf anchor this tool owns. Everything the tool
	// writes into the host firewall lives under this one name.
	AnchorName = "limawan"

	DefaultMainConfigPath = "/etc/pf.conf"
	DefaultAnchorDir      = "/etc/pf.anchors"
	DefaultBackupPath     = "/etc/pf.conf.limawan.bak"
	DefaultLockPath       = "/var/run/limawan.lock"
)

// Version is set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// GetConfigDir returns the config directory, checking env vars first.
// Priority: LIMAWAN_CONFIG_DIR > LIMAWAN_PREFIX/etc > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "etc")
	}
	return DefaultConfigDir
}

// ConfigFilePath returns the default path of the main limawan config file.
func ConfigFilePath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}
