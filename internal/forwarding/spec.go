// Package forwarding defines the declarative description of one
// external-port-to-internal-service mapping.
package forwarding

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"grimm.is/limawan/internal/validation"
)

// ServiceKind selects the rule template used for a forwarding. Each kind
// contributes different hardening rules to the generated anchor.
type ServiceKind int

const (
	Generic ServiceKind = iota
	SSH
	HTTP
	HTTPS
)

// String returns the lowercase name of the kind.
func (k ServiceKind) String() string {
	switch k {
	case SSH:
		return "ssh"
	case HTTP:
		return "http"
	case HTTPS:
		return "https"
	case Generic:
		return "generic"
	}
	return fmt.Sprintf("servicekind(%d)", int(k))
}

// ParseServiceKind parses a service kind name.
func ParseServiceKind(s string) (ServiceKind, error) {
	switch s {
	case "ssh":
		return SSH, nil
	case "http":
		return HTTP, nil
	case "https":
		return HTTPS, nil
	case "generic", "":
		return Generic, nil
	}
	return Generic, fmt.Errorf("unknown service kind: %s", s)
}

// PortRange is an inclusive range of allowed external ports.
type PortRange struct {
	Min int
	Max int
}

// DefaultPortRange rejects privileged ports so a forwarding cannot
// impersonate a system service on the host.
var DefaultPortRange = PortRange{Min: 1024, Max: 65535}

// Contains reports whether p falls inside the range.
func (r PortRange) Contains(p int) bool {
	return p >= r.Min && p <= r.Max
}

// InvalidSpecError reports a forwarding spec that failed precondition checks.
// No side effects have occurred when this is returned.
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid forwarding spec: %s: %s", e.Field, e.Reason)
}

// Spec describes one forwarding from the host to a VM service.
// Construct with New, which validates; a Spec is immutable after that.
type Spec struct {
	VMAddress     netip.Addr
	InternalPort  uint16
	ExternalPort  uint16
	HostInterface string
	Kind          ServiceKind
}

// New validates the raw inputs and returns an immutable Spec.
// allowed bounds the external port; zero value means DefaultPortRange.
func New(vmAddress string, internalPort, externalPort int, hostInterface string, kind ServiceKind, allowed PortRange) (Spec, error) {
	if allowed == (PortRange{}) {
		allowed = DefaultPortRange
	}

	addr, err := validation.ValidateIPv4(vmAddress)
	if err != nil {
		return Spec{}, &InvalidSpecError{Field: "vm_address", Reason: err.Error()}
	}

	if err := validation.ValidatePortNumber(internalPort); err != nil {
		return Spec{}, &InvalidSpecError{Field: "internal_port", Reason: err.Error()}
	}

	if err := validation.ValidatePortInRange(externalPort, allowed.Min, allowed.Max); err != nil {
		return Spec{}, &InvalidSpecError{Field: "external_port", Reason: err.Error()}
	}

	if err := validation.ValidateInterfaceName(hostInterface); err != nil {
		return Spec{}, &InvalidSpecError{Field: "host_interface", Reason: err.Error()}
	}

	return Spec{
		VMAddress:     addr,
		InternalPort:  uint16(internalPort),
		ExternalPort:  uint16(externalPort),
		HostInterface: hostInterface,
		Kind:          kind,
	}, nil
}

// String renders the spec in the form shown to operators.
func (s Spec) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d (%s)", s.HostInterface, s.ExternalPort, s.VMAddress, s.InternalPort, s.Kind)
}

// ParseSpecString parses the form produced by Spec.String, e.g.
// "en0:2222 -> 192.168.105.10:22 (ssh)". The full port space is allowed:
// the string describes something already deployed, not a new request.
func ParseSpecString(s string) (Spec, error) {
	left, right, ok := strings.Cut(s, " -> ")
	if !ok {
		return Spec{}, fmt.Errorf("malformed spec string: %q", s)
	}

	iface, extStr, ok := cutLast(left, ":")
	if !ok {
		return Spec{}, fmt.Errorf("malformed spec string: %q", s)
	}

	dest, kindStr, ok := strings.Cut(right, " (")
	if !ok || !strings.HasSuffix(kindStr, ")") {
		return Spec{}, fmt.Errorf("malformed spec string: %q", s)
	}
	kind, err := ParseServiceKind(strings.TrimSuffix(kindStr, ")"))
	if err != nil {
		return Spec{}, err
	}

	addr, intStr, ok := cutLast(dest, ":")
	if !ok {
		return Spec{}, fmt.Errorf("malformed spec string: %q", s)
	}

	external, err := strconv.Atoi(extStr)
	if err != nil {
		return Spec{}, fmt.Errorf("malformed external port in %q", s)
	}
	internal, err := strconv.Atoi(intStr)
	if err != nil {
		return Spec{}, fmt.Errorf("malformed internal port in %q", s)
	}

	return New(addr, internal, external, iface, kind, PortRange{Min: 1, Max: 65535})
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
