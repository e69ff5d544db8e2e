// Package pf drives the host packet filter through pfctl. The Engine
// interface is the seam the lifecycle controller and tests program against;
// nothing above this package shells out directly.
package pf

import (
	"errors"
	"fmt"
)

// ErrAnchorAbsent is returned by listing calls when the anchor has no loaded
// rules of the requested kind. Absence is a normal state, not a failure.
var ErrAnchorAbsent = errors.New("anchor not loaded")

// SyntaxError reports that the engine rejected a configuration during a
// dry-run check or a load. Output carries pfctl's diagnostic text verbatim.
type SyntaxError struct {
	Path   string
	Output string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pf rejected %s: %s", e.Path, e.Output)
}

// Engine is the control interface of the host firewall.
//
// CheckSyntax must be non-mutating; Reload must be atomic (pf parses the
// whole file before replacing the ruleset). Listing calls are safe to run
// concurrently with anything.
type Engine interface {
	// CheckSyntax dry-runs the configuration at path. Returns *SyntaxError
	// on rejection.
	CheckSyntax(path string) error

	// Reload atomically loads the configuration at path.
	Reload(path string) error

	// Enable turns on packet filtering globally. Enabling an already
	// enabled engine is not an error.
	Enable() error

	// IsEnabled reports whether filtering is globally enabled.
	IsEnabled() (bool, error)

	// AnchorRules returns the live filter rules of the named anchor, or
	// ErrAnchorAbsent.
	AnchorRules(name string) (string, error)

	// AnchorNAT returns the live nat/rdr rules of the named anchor, or
	// ErrAnchorAbsent.
	AnchorNAT(name string) (string, error)

	// FlushAnchor removes all live rules and state of the named anchor.
	// Flushing an absent anchor succeeds.
	FlushAnchor(name string) error
}

// CommandRunner abstracts command execution so engine behavior can be
// tested without a real pfctl. Everything pfctl reports comes through its
// combined output, so one capturing method covers all callers.
type CommandRunner interface {
	Output(name string, args ...string) ([]byte, error)
}
