// Package status provides read-only introspection of the anchor: what is
// on disk, what pf.conf references, and what the engine has loaded. Nothing
// here mutates state, so these calls need no lock and are safe alongside
// any other operation.
package status

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"grimm.is/limawan/internal/anchor"
	"grimm.is/limawan/internal/pf"
	"grimm.is/limawan/internal/rules"
)

// AnchorStatus is a derived view of the deployment. Computed on demand,
// never persisted.
type AnchorStatus struct {
	FileExists             bool
	ReferencedInMainConfig bool
	LoadedInEngine         bool
	NATRulesLoaded         bool
}

// Active reports whether the anchor is fully deployed.
func (s AnchorStatus) Active() bool {
	return s.FileExists && s.ReferencedInMainConfig && s.LoadedInEngine && s.NATRulesLoaded
}

// Absent reports whether nothing of the anchor remains.
func (s AnchorStatus) Absent() bool {
	return !s.FileExists && !s.ReferencedInMainConfig && !s.LoadedInEngine && !s.NATRulesLoaded
}

// String renders the status for operator output.
func (s AnchorStatus) String() string {
	flag := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprintf("file=%s referenced=%s rules=%s nat=%s",
		flag(s.FileExists), flag(s.ReferencedInMainConfig), flag(s.LoadedInEngine), flag(s.NATRulesLoaded))
}

// ProbeFunc reports whether a single echo request to addr was answered
// within timeout.
type ProbeFunc func(addr netip.Addr, timeout time.Duration) bool

// Reporter composes AnchorStatus from the engine and the state store.
type Reporter struct {
	store      *anchor.Store
	engine     pf.Engine
	anchorName string
	probe      ProbeFunc
}

// NewReporter creates a reporter for the given anchor.
func NewReporter(store *anchor.Store, engine pf.Engine, anchorName string) *Reporter {
	return &Reporter{store: store, engine: engine, anchorName: anchorName, probe: pingProbe}
}

// SetProbe replaces the reachability probe (tests).
func (r *Reporter) SetProbe(p ProbeFunc) {
	r.probe = p
}

// Report computes the current anchor status.
func (r *Reporter) Report() (AnchorStatus, error) {
	var st AnchorStatus

	st.FileExists = r.store.RulesetFileExists()

	referenced, err := r.store.IsReferenced()
	if err != nil {
		return st, err
	}
	st.ReferencedInMainConfig = referenced

	if _, err := r.engine.AnchorRules(r.anchorName); err == nil {
		st.LoadedInEngine = true
	} else if !errors.Is(err, pf.ErrAnchorAbsent) {
		return st, fmt.Errorf("failed to list anchor rules: %w", err)
	}

	if _, err := r.engine.AnchorNAT(r.anchorName); err == nil {
		st.NATRulesLoaded = true
	} else if !errors.Is(err, pf.ErrAnchorAbsent) {
		return st, fmt.Errorf("failed to list anchor nat rules: %w", err)
	}

	return st, nil
}

// Drift compares the anchor ruleset file on disk against expected generated
// text, ignoring comments and whitespace. Returns true when they differ.
// The live engine view uses pf's own rule formatting and cannot be compared
// textually; the file is the source of truth the engine loaded from.
func (r *Reporter) Drift(expected string) (bool, error) {
	if !r.store.RulesetFileExists() {
		return true, nil
	}
	current, err := r.store.ReadRuleset()
	if err != nil {
		return false, err
	}
	return rules.Normalize(current) != rules.Normalize(expected), nil
}

// Reachable probes the VM address. Diagnostics only; a false result may
// just mean ICMP is filtered.
func (r *Reporter) Reachable(addr netip.Addr, timeout time.Duration) bool {
	return r.probe(addr, timeout)
}

// pingProbe sends one ICMP echo in unprivileged (UDP) mode.
func pingProbe(addr netip.Addr, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(addr.String())
	if err != nil {
		return false
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = timeout
	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// Summary renders a multi-line operator report.
func (r *Reporter) Summary() (string, error) {
	st, err := r.Report()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Anchor:            %s\n", r.anchorName)
	fmt.Fprintf(&b, "Ruleset file:      %v (%s)\n", st.FileExists, r.store.RulesetPath())
	fmt.Fprintf(&b, "Referenced:        %v (%s)\n", st.ReferencedInMainConfig, r.store.MainConfigPath())
	fmt.Fprintf(&b, "Rules loaded:      %v\n", st.LoadedInEngine)
	fmt.Fprintf(&b, "NAT rules loaded:  %v\n", st.NATRulesLoaded)
	fmt.Fprintf(&b, "Backup present:    %v (%s)\n", r.store.HasBackup(), r.store.BackupPath())
	return b.String(), nil
}
