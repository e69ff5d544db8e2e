package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/limawan/internal/brand"
)

// Load reads and validates an HCL configuration file. A missing file yields
// the built-in defaults, so the tool works with zero configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyDefaults()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadBytes(path, data)
}

// LoadBytes decodes configuration from bytes. filename feeds HCL
// diagnostics only.
func LoadBytes(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// WriteDefault generates a commented default configuration file at path.
// Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("main_config", cty.StringVal(brand.DefaultMainConfigPath))
	body.SetAttributeValue("anchor_dir", cty.StringVal(brand.DefaultAnchorDir))
	body.SetAttributeValue("anchor_name", cty.StringVal(brand.AnchorName))
	body.SetAttributeValue("backup_path", cty.StringVal(brand.DefaultBackupPath))
	body.SetAttributeValue("lock_path", cty.StringVal(brand.DefaultLockPath))
	body.SetAttributeValue("lock_wait", cty.StringVal("10s"))
	body.AppendNewline()

	ports := body.AppendNewBlock("allowed_ports", nil).Body()
	ports.SetAttributeValue("min", cty.NumberIntVal(1024))
	ports.SetAttributeValue("max", cty.NumberIntVal(65535))
	body.AppendNewline()

	defaults := body.AppendNewBlock("defaults", nil).Body()
	defaults.SetAttributeValue("interface", cty.StringVal("en0"))
	defaults.SetAttributeValue("subnet", cty.StringVal("192.168.105.0/24"))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, f.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
