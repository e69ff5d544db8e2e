package forwarding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidSpec(t *testing.T) {
	spec, err := New("192.168.105.10", 22, 2222, "en0", SSH, PortRange{})
	require.NoError(t, err)
	require.Equal(t, "192.168.105.10", spec.VMAddress.String())
	require.Equal(t, uint16(22), spec.InternalPort)
	require.Equal(t, uint16(2222), spec.ExternalPort)
	require.Equal(t, "en0", spec.HostInterface)
	require.Equal(t, SSH, spec.Kind)
}

func TestNewRejectsPrivilegedExternalPort(t *testing.T) {
	_, err := New("192.168.105.10", 80, 80, "en0", HTTP, PortRange{})
	require.Error(t, err)

	var specErr *InvalidSpecError
	require.True(t, errors.As(err, &specErr))
	require.Equal(t, "external_port", specErr.Field)
}

func TestNewRejections(t *testing.T) {
	tests := []struct {
		name      string
		addr      string
		internal  int
		external  int
		iface     string
		wantField string
	}{
		{"bad address", "not-an-ip", 22, 2222, "en0", "vm_address"},
		{"ipv6 address", "fe80::1", 22, 2222, "en0", "vm_address"},
		{"zero internal port", "192.168.105.10", 0, 2222, "en0", "internal_port"},
		{"internal port too large", "192.168.105.10", 70000, 2222, "en0", "internal_port"},
		{"zero external port", "192.168.105.10", 22, 0, "en0", "external_port"},
		{"empty interface", "192.168.105.10", 22, 2222, "", "host_interface"},
		{"interface with shell metachars", "192.168.105.10", 22, 2222, "en0;rm", "host_interface"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.addr, tt.internal, tt.external, tt.iface, Generic, PortRange{})
			var specErr *InvalidSpecError
			require.True(t, errors.As(err, &specErr), "expected InvalidSpecError, got %v", err)
			require.Equal(t, tt.wantField, specErr.Field)
		})
	}
}

func TestNewCustomPortRange(t *testing.T) {
	// An explicit range can allow privileged ports.
	_, err := New("10.0.0.5", 443, 443, "eth0", HTTPS, PortRange{Min: 1, Max: 65535})
	require.NoError(t, err)

	// And can be narrower than the default.
	_, err = New("10.0.0.5", 443, 9000, "eth0", HTTPS, PortRange{Min: 2000, Max: 3000})
	require.Error(t, err)
}

func TestParseServiceKind(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want ServiceKind
	}{
		{"ssh", SSH},
		{"http", HTTP},
		{"https", HTTPS},
		{"generic", Generic},
		{"", Generic},
	} {
		got, err := ParseServiceKind(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := ParseServiceKind("ftp")
	require.Error(t, err)
}

func TestSpecString(t *testing.T) {
	spec, err := New("192.168.105.10", 22, 2222, "en0", SSH, PortRange{})
	require.NoError(t, err)
	require.Equal(t, "en0:2222 -> 192.168.105.10:22 (ssh)", spec.String())
}

func TestParseSpecStringRoundTrip(t *testing.T) {
	specs := []Spec{}
	for _, in := range []struct {
		internal, external int
		kind               ServiceKind
	}{
		{22, 2222, SSH},
		{8080, 8888, Generic},
		{443, 8443, HTTPS},
	} {
		spec, err := New("192.168.105.10", in.internal, in.external, "en0", in.kind, PortRange{})
		require.NoError(t, err)
		specs = append(specs, spec)
	}

	for _, spec := range specs {
		parsed, err := ParseSpecString(spec.String())
		require.NoError(t, err)
		require.Equal(t, spec, parsed)
	}
}

func TestParseSpecStringAcceptsPrivilegedPorts(t *testing.T) {
	// The string describes a deployed forwarding; a range configured wider
	// than the default must still parse back.
	parsed, err := ParseSpecString("en0:80 -> 192.168.105.10:80 (http)")
	require.NoError(t, err)
	require.Equal(t, uint16(80), parsed.ExternalPort)
}

func TestParseSpecStringRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"en0:2222",
		"en0:2222 -> 192.168.105.10:22",
		"en0 -> 192.168.105.10:22 (ssh)",
		"en0:2222 -> 192.168.105.10:22 (ftp)",
		"en0:x -> 192.168.105.10:22 (ssh)",
	} {
		_, err := ParseSpecString(s)
		require.Error(t, err, "expected %q to be rejected", s)
	}
}
