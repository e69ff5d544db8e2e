package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	require.Equal(t, "/etc/pf.conf", cfg.MainConfigPath)
	require.Equal(t, "/etc/pf.anchors", cfg.AnchorDir)
	require.Equal(t, "limawan", cfg.AnchorName)
	require.Equal(t, 1024, cfg.AllowedPorts.Min)
	require.Equal(t, 65535, cfg.AllowedPorts.Max)
	require.Equal(t, "en0", cfg.Defaults.Interface)
	require.NoError(t, cfg.Validate())
}

func TestLoadBytes(t *testing.T) {
	src := `
main_config = "/tmp/pf.conf"
anchor_name = "wan_fwd"
lock_wait   = "2s"

allowed_ports {
  min = 2000
  max = 3000
}

defaults {
  interface = "eth1"
}
`
	cfg, err := LoadBytes("test.hcl", []byte(src))
	require.NoError(t, err)

	require.Equal(t, "/tmp/pf.conf", cfg.MainConfigPath)
	require.Equal(t, "wan_fwd", cfg.AnchorName)
	require.Equal(t, 2000, cfg.AllowedPorts.Min)
	require.Equal(t, "eth1", cfg.Defaults.Interface)
	// Unset fields still get defaults.
	require.Equal(t, "/etc/pf.anchors", cfg.AnchorDir)

	require.False(t, cfg.PortRange().Contains(1999))
	require.True(t, cfg.PortRange().Contains(2500))
}

func TestLoadBytesRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"inverted range": `
allowed_ports {
  min = 5000
  max = 4000
}`,
		"bad anchor name": `anchor_name = "bad name!"`,
		"bad lock wait":   `lock_wait = "soon"`,
		"not hcl":         `{{{{`,
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBytes("test.hcl", []byte(src))
			require.Error(t, err)
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limawan.hcl")

	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	cfg, err := LoadBytes(path, data)
	require.NoError(t, err)
	require.Equal(t, "limawan", cfg.AnchorName)
	require.Equal(t, 1024, cfg.AllowedPorts.Min)

	// Refuses to clobber an existing file.
	require.Error(t, WriteDefault(path))
}
