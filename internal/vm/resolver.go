// Package vm resolves a VM name to its guest network address. The VM
// manager itself is an external collaborator; this package only asks it
// questions.
package vm

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"grimm.is/limawan/internal/pf"
)

// ErrUnreachable is returned when the VM exists but no guest IPv4 address
// could be determined (typically the guest is still booting).
var ErrUnreachable = errors.New("vm address unreachable")

// Resolver maps a VM name to its IPv4 address.
type Resolver interface {
	Resolve(vmName string) (netip.Addr, error)
}

var ipv4Regex = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

// LimaResolver resolves addresses by asking the guest through limactl.
type LimaResolver struct {
	runner pf.CommandRunner
}

// NewLimaResolver creates a resolver backed by the limactl CLI.
func NewLimaResolver(runner pf.CommandRunner) *LimaResolver {
	if runner == nil {
		runner = &pf.RealCommandRunner{}
	}
	return &LimaResolver{runner: runner}
}

// Resolve shells into the guest and reads the address of its shared
// network interface. Loopback and link-local answers are skipped.
func (r *LimaResolver) Resolve(vmName string) (netip.Addr, error) {
	out, err := r.runner.Output("limactl", "shell", vmName, "--", "sh", "-c", "ip -4 -o addr show scope global")
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to query vm %s: %w", vmName, err)
	}

	for _, match := range ipv4Regex.FindAllString(string(out), -1) {
		addr, err := netip.ParseAddr(match)
		if err != nil || !addr.Is4() {
			continue
		}
		if addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			continue
		}
		return addr, nil
	}

	if strings.TrimSpace(string(out)) == "" {
		return netip.Addr{}, ErrUnreachable
	}
	return netip.Addr{}, fmt.Errorf("%w: no global IPv4 address on vm %s", ErrUnreachable, vmName)
}
