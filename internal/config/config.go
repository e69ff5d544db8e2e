// Package config provides HCL configuration handling for the anchor
// lifecycle controller. The allowed external port range and the default
// network parameters are explicit configuration here, not baked-in
// constants.
package config

import (
	"fmt"
	"time"

	"grimm.is/limawan/internal/brand"
	"grimm.is/limawan/internal/forwarding"
	"grimm.is/limawan/internal/validation"
)

// Config is the top-level structure of the limawan configuration.
type Config struct {
	// MainConfigPath is the host's shared pf configuration file.
	MainConfigPath string `hcl:"main_config,optional"`

	// AnchorDir holds the anchor ruleset file.
	AnchorDir string `hcl:"anchor_dir,optional"`

	// AnchorName names the managed anchor in pf.conf and in the engine.
	AnchorName string `hcl:"anchor_name,optional"`

	// BackupPath is where the pre-mutation snapshot of pf.conf lives.
	BackupPath string `hcl:"backup_path,optional"`

	// LockPath is the well-known flock path guarding mutations.
	LockPath string `hcl:"lock_path,optional"`

	// LockWait bounds how long a mutating call waits for the lock,
	// as a Go duration string ("10s").
	LockWait string `hcl:"lock_wait,optional"`

	AllowedPorts *AllowedPorts `hcl:"allowed_ports,block"`
	Defaults     *Defaults     `hcl:"defaults,block"`
}

// AllowedPorts bounds the external port of a forwarding. The default floor
// of 1024 keeps forwardings from impersonating system services.
type AllowedPorts struct {
	Min int `hcl:"min"`
	Max int `hcl:"max"`
}

// Defaults carries the network parameters used when a request leaves them
// unspecified.
type Defaults struct {
	Interface string `hcl:"interface,optional"`
	Subnet    string `hcl:"subnet,optional"`
}

// ApplyDefaults fills unset fields with the built-in defaults.
func (c *Config) ApplyDefaults() {
	if c.MainConfigPath == "" {
		c.MainConfigPath = brand.DefaultMainConfigPath
	}
	if c.AnchorDir == "" {
		c.AnchorDir = brand.DefaultAnchorDir
	}
	if c.AnchorName == "" {
		c.AnchorName = brand.AnchorName
	}
	if c.BackupPath == "" {
		c.BackupPath = brand.DefaultBackupPath
	}
	if c.LockPath == "" {
		c.LockPath = brand.DefaultLockPath
	}
	if c.LockWait == "" {
		c.LockWait = "10s"
	}
	if c.AllowedPorts == nil {
		c.AllowedPorts = &AllowedPorts{
			Min: forwarding.DefaultPortRange.Min,
			Max: forwarding.DefaultPortRange.Max,
		}
	}
	if c.Defaults == nil {
		c.Defaults = &Defaults{}
	}
	if c.Defaults.Interface == "" {
		c.Defaults.Interface = "en0"
	}
	if c.Defaults.Subnet == "" {
		c.Defaults.Subnet = "192.168.105.0/24"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validation.ValidateIdentifier(c.AnchorName); err != nil {
		return fmt.Errorf("anchor_name: %w", err)
	}
	if c.AllowedPorts.Min < 1 || c.AllowedPorts.Max > 65535 || c.AllowedPorts.Min > c.AllowedPorts.Max {
		return fmt.Errorf("allowed_ports: invalid range %d-%d", c.AllowedPorts.Min, c.AllowedPorts.Max)
	}
	if _, err := time.ParseDuration(c.LockWait); err != nil {
		return fmt.Errorf("lock_wait: %w", err)
	}
	if c.Defaults.Interface != "" {
		if err := validation.ValidateInterfaceName(c.Defaults.Interface); err != nil {
			return fmt.Errorf("defaults.interface: %w", err)
		}
	}
	return nil
}

// PortRange returns the allowed external port range as a forwarding type.
func (c *Config) PortRange() forwarding.PortRange {
	return forwarding.PortRange{Min: c.AllowedPorts.Min, Max: c.AllowedPorts.Max}
}

// LockWaitDuration returns the parsed lock wait. Validate has already
// checked the syntax.
func (c *Config) LockWaitDuration() time.Duration {
	d, err := time.ParseDuration(c.LockWait)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
