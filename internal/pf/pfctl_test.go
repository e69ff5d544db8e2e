package pf

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckSyntaxArgs(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-n", "-f", "/etc/pf.conf").Return([]byte(""), nil)

	engine := NewPfctlEngine(runner)
	require.NoError(t, engine.CheckSyntax("/etc/pf.conf"))
	runner.AssertExpectations(t)
}

func TestCheckSyntaxRejection(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-n", "-f", "/etc/pf.conf").
		Return([]byte("pf.conf:12: syntax error"), fmt.Errorf("exit status 1"))

	engine := NewPfctlEngine(runner)
	err := engine.CheckSyntax("/etc/pf.conf")

	var synErr *SyntaxError
	require.True(t, errors.As(err, &synErr))
	require.Contains(t, synErr.Output, "syntax error")
	require.Equal(t, "/etc/pf.conf", synErr.Path)
}

func TestReload(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-f", "/etc/pf.conf").Return([]byte(""), nil)

	engine := NewPfctlEngine(runner)
	require.NoError(t, engine.Reload("/etc/pf.conf"))
	runner.AssertExpectations(t)
}

func TestEnableAlreadyEnabled(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-e").
		Return([]byte("pfctl: pf already enabled"), fmt.Errorf("exit status 1"))

	engine := NewPfctlEngine(runner)
	require.NoError(t, engine.Enable())
}

func TestIsEnabled(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-s", "info").
		Return([]byte("Status: Enabled for 0 days 01:02:03           Debug: Urgent\n"), nil)

	engine := NewPfctlEngine(runner)
	enabled, err := engine.IsEnabled()
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestIsEnabledDisabled(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-s", "info").
		Return([]byte("Status: Disabled\n"), nil)

	engine := NewPfctlEngine(runner)
	enabled, err := engine.IsEnabled()
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestAnchorRulesAbsent(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-s", "rules").
		Return([]byte(""), nil)

	engine := NewPfctlEngine(runner)
	_, err := engine.AnchorRules("limawan")
	require.ErrorIs(t, err, ErrAnchorAbsent)
}

func TestAnchorRulesPresent(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-s", "rules").
		Return([]byte("pass in on en0 inet proto tcp any\n"), nil)

	engine := NewPfctlEngine(runner)
	rules, err := engine.AnchorRules("limawan")
	require.NoError(t, err)
	require.Contains(t, rules, "pass in on en0")
}

func TestAnchorNATArgs(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-s", "nat").
		Return([]byte("rdr pass on en0 ...\n"), nil)

	engine := NewPfctlEngine(runner)
	nat, err := engine.AnchorNAT("limawan")
	require.NoError(t, err)
	require.Contains(t, nat, "rdr pass")
	runner.AssertExpectations(t)
}

func TestFlushAnchor(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-F", "all").Return([]byte(""), nil)

	engine := NewPfctlEngine(runner)
	require.NoError(t, engine.FlushAnchor("limawan"))
	runner.AssertExpectations(t)
}

func TestFlushAbsentAnchor(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-F", "all").
		Return([]byte("pfctl: anchor does not exist"), fmt.Errorf("exit status 1"))

	engine := NewPfctlEngine(runner)
	require.NoError(t, engine.FlushAnchor("limawan"))
}

func TestAnchorRulesAbsentDiagnostic(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-s", "rules").
		Return([]byte("pfctl: DIOCGETRULES: Invalid argument"), fmt.Errorf("exit status 1"))

	engine := NewPfctlEngine(runner)
	_, err := engine.AnchorRules("limawan")
	require.ErrorIs(t, err, ErrAnchorAbsent)
}

func TestAnchorRulesQueryFailure(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-s", "rules").
		Return([]byte("pfctl: /dev/pf: Permission denied"), fmt.Errorf("exit status 1"))

	engine := NewPfctlEngine(runner)
	_, err := engine.AnchorRules("limawan")

	// A failed query must not read as an absent anchor.
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAnchorAbsent)
	require.Contains(t, err.Error(), "Permission denied")
}

func TestFlushQueryFailure(t *testing.T) {
	runner := new(MockCommandRunner)
	runner.On("Output", "pfctl", "-a", "limawan", "-F", "all").
		Return([]byte("pfctl: /dev/pf: Permission denied"), fmt.Errorf("exit status 1"))

	engine := NewPfctlEngine(runner)
	err := engine.FlushAnchor("limawan")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Permission denied")
}
