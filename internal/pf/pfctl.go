package pf

import (
	"fmt"
	"strings"

	"grimm.is/limawan/internal/logging"
)

// PfctlEngine implements Engine by shelling out to pfctl.
type PfctlEngine struct {
	runner CommandRunner
	log    *logging.Logger
}

// NewPfctlEngine creates an engine bound to a command runner.
func NewPfctlEngine(runner CommandRunner) *PfctlEngine {
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	return &PfctlEngine{
		runner: runner,
		log:    logging.WithComponent("pf"),
	}
}

// CheckSyntax dry-runs the configuration at path (pfctl -n -f).
func (e *PfctlEngine) CheckSyntax(path string) error {
	out, err := e.runner.Output("pfctl", "-n", "-f", path)
	if err != nil {
		return &SyntaxError{Path: path, Output: strings.TrimSpace(string(out)) + ": " + err.Error()}
	}
	return nil
}

// Reload atomically loads the configuration at path (pfctl -f).
func (e *PfctlEngine) Reload(path string) error {
	out, err := e.runner.Output("pfctl", "-f", path)
	if err != nil {
		return &SyntaxError{Path: path, Output: strings.TrimSpace(string(out)) + ": " + err.Error()}
	}
	e.log.Debug("ruleset reloaded", "path", path)
	return nil
}

// Enable turns on packet filtering (pfctl -e). pf reports an error when
// filtering is already enabled; that case is success here.
func (e *PfctlEngine) Enable() error {
	out, err := e.runner.Output("pfctl", "-e")
	if err != nil {
		if strings.Contains(string(out), "already enabled") {
			return nil
		}
		return fmt.Errorf("failed to enable pf: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// IsEnabled parses `pfctl -s info` for the global status line.
func (e *PfctlEngine) IsEnabled() (bool, error) {
	out, err := e.runner.Output("pfctl", "-s", "info")
	if err != nil {
		return false, fmt.Errorf("failed to query pf status: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "Status:") {
			return strings.Contains(line, "Enabled"), nil
		}
	}
	return false, fmt.Errorf("pf status line not found in pfctl output")
}

// AnchorRules lists the live filter rules of an anchor (pfctl -a name -s rules).
func (e *PfctlEngine) AnchorRules(name string) (string, error) {
	return e.listAnchor(name, "rules")
}

// AnchorNAT lists the live nat/rdr rules of an anchor (pfctl -a name -s nat).
func (e *PfctlEngine) AnchorNAT(name string) (string, error) {
	return e.listAnchor(name, "nat")
}

func (e *PfctlEngine) listAnchor(name, kind string) (string, error) {
	out, err := e.runner.Output("pfctl", "-a", name, "-s", kind)
	text := strings.TrimSpace(string(out))
	if err != nil {
		if anchorMissing(text) {
			return "", ErrAnchorAbsent
		}
		// Permission problems, a missing /dev/pf and the like must surface
		// as failures, not read as absence.
		return "", fmt.Errorf("failed to list anchor %s %s: %w: %s", name, kind, err, text)
	}
	if text == "" {
		return "", ErrAnchorAbsent
	}
	return text, nil
}

// anchorMissing reports whether pfctl's diagnostic describes an anchor with
// nothing loaded, as opposed to a failed query.
func anchorMissing(output string) bool {
	return strings.Contains(output, "Invalid argument") ||
		strings.Contains(output, "not found") ||
		strings.Contains(output, "does not exist")
}

// FlushAnchor removes all rules and state under an anchor (pfctl -a name -F all).
// Flushing an anchor that has nothing loaded is not an error.
func (e *PfctlEngine) FlushAnchor(name string) error {
	out, err := e.runner.Output("pfctl", "-a", name, "-F", "all")
	if err != nil {
		if anchorMissing(strings.TrimSpace(string(out))) {
			e.log.Debug("flush on absent anchor", "anchor", name)
			return nil
		}
		return fmt.Errorf("failed to flush anchor %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
