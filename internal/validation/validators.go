// Package validation provides input validators shared by the config layer
// and the forwarding spec. Everything that ends up inside pf.conf or on a
// pfctl command line is screened here first.
package validation

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
)

var (
	// Valid interface name: alphanumeric, dash, underscore, dot, max 15 chars
	interfaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,15}$`)

	// Valid identifier: alphanumeric, dash, underscore
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// Dangerous characters that should never appear in identifiers
	dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
)

// ValidateInterfaceName validates a network interface name.
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}

	if !interfaceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid interface name: %s (must be alphanumeric with -_.)", name)
	}

	for _, char := range dangerousChars {
		if strings.Contains(name, char) {
			return fmt.Errorf("interface name contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateHostInterface checks that the named interface exists on the host
// and is link-up. Callers that run without real NICs (tests, offline checks)
// inject a stub instead.
func ValidateHostInterface(name string) error {
	if err := ValidateInterfaceName(name); err != nil {
		return err
	}

	iface, err := net.InterfaceByName(name)
	if err != nil {
		return fmt.Errorf("host interface %s not found: %w", name, err)
	}
	if iface.Flags&net.FlagUp == 0 {
		return fmt.Errorf("host interface %s is not up", name)
	}
	return nil
}

// ValidateIdentifier validates a general identifier (anchor names, etc.).
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if len(id) > 255 {
		return fmt.Errorf("identifier too long (max 255 characters)")
	}

	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid identifier: %s (must be alphanumeric with -_)", id)
	}

	return nil
}

// ValidateIPv4 validates an IPv4 literal. IPv6 and 4-in-6 forms are rejected;
// pf rdr/nat rules here are inet only.
func ValidateIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid IPv4 address %q: %w", s, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %s", s)
	}
	return addr, nil
}

// ValidatePortNumber validates a port number.
func ValidatePortNumber(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be 1-65535)", port)
	}
	return nil
}

// ValidatePortInRange validates a port against an inclusive allowed range.
func ValidatePortInRange(port, min, max int) error {
	if err := ValidatePortNumber(port); err != nil {
		return err
	}
	if port < min || port > max {
		return fmt.Errorf("port %d outside allowed range %d-%d", port, min, max)
	}
	return nil
}
