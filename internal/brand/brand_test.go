package brand

import (
	"path/filepath"
	"testing"
)

func TestGetConfigDirPriority(t *testing.T) {
	t.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "")
	t.Setenv(ConfigEnvPrefix+"_PREFIX", "")
	if got := GetConfigDir(); got != DefaultConfigDir {
		t.Errorf("expected default %s, got %s", DefaultConfigDir, got)
	}

	t.Setenv(ConfigEnvPrefix+"_PREFIX", "/opt/limawan")
	if got := GetConfigDir(); got != filepath.Join("/opt/limawan", "etc") {
		t.Errorf("prefix not honored: %s", got)
	}

	t.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "/custom/etc")
	if got := GetConfigDir(); got != "/custom/etc" {
		t.Errorf("config dir override not honored: %s", got)
	}
}

func TestConfigFilePath(t *testing.T) {
	t.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "/custom/etc")
	if got := ConfigFilePath(); got != "/custom/etc/"+ConfigFileName {
		t.Errorf("unexpected config path: %s", got)
	}
}
