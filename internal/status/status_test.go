package status

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/limawan/internal/anchor"
	"grimm.is/limawan/internal/forwarding"
	"grimm.is/limawan/internal/pf"
	"grimm.is/limawan/internal/rules"
)

// fakeEngine serves canned listing results.
type fakeEngine struct {
	rules string
	nat   string
}

func (f *fakeEngine) CheckSyntax(path string) error { return nil }
func (f *fakeEngine) Reload(path string) error      { return nil }
func (f *fakeEngine) Enable() error                 { return nil }
func (f *fakeEngine) IsEnabled() (bool, error)      { return true, nil }
func (f *fakeEngine) FlushAnchor(name string) error { return nil }

func (f *fakeEngine) AnchorRules(name string) (string, error) {
	if f.rules == "" {
		return "", pf.ErrAnchorAbsent
	}
	return f.rules, nil
}

func (f *fakeEngine) AnchorNAT(name string) (string, error) {
	if f.nat == "" {
		return "", pf.ErrAnchorAbsent
	}
	return f.nat, nil
}

func newTestReporter(t *testing.T, engine pf.Engine) (*Reporter, *anchor.Store) {
	t.Helper()
	tmp := t.TempDir()
	store := anchor.New(
		filepath.Join(tmp, "pf.conf"),
		filepath.Join(tmp, "pf.anchors"),
		"limawan",
		filepath.Join(tmp, "pf.conf.bak"),
	)
	return NewReporter(store, engine, "limawan"), store
}

func TestReportAbsent(t *testing.T) {
	reporter, _ := newTestReporter(t, &fakeEngine{})

	st, err := reporter.Report()
	require.NoError(t, err)
	require.True(t, st.Absent())
	require.False(t, st.Active())
}

func TestReportActive(t *testing.T) {
	engine := &fakeEngine{rules: "pass in on en0", nat: "rdr pass on en0"}
	reporter, store := newTestReporter(t, engine)

	require.NoError(t, store.WriteRuleset("pass in all\n"))
	_, err := store.EnsureReferenced()
	require.NoError(t, err)

	st, err := reporter.Report()
	require.NoError(t, err)
	require.True(t, st.FileExists)
	require.True(t, st.ReferencedInMainConfig)
	require.True(t, st.LoadedInEngine)
	require.True(t, st.NATRulesLoaded)
	require.True(t, st.Active())
}

func TestReportPartial(t *testing.T) {
	engine := &fakeEngine{rules: "pass in on en0"} // nat missing
	reporter, store := newTestReporter(t, engine)

	require.NoError(t, store.WriteRuleset("pass in all\n"))

	st, err := reporter.Report()
	require.NoError(t, err)
	require.True(t, st.LoadedInEngine)
	require.False(t, st.NATRulesLoaded)
	require.False(t, st.Active())
	require.False(t, st.Absent())
}

func TestDrift(t *testing.T) {
	reporter, store := newTestReporter(t, &fakeEngine{})

	spec, err := forwarding.New("192.168.105.10", 22, 2222, "en0", forwarding.SSH, forwarding.PortRange{})
	require.NoError(t, err)
	expected := rules.Generate(spec, time.Now())

	// Missing file counts as drift.
	drift, err := reporter.Drift(expected)
	require.NoError(t, err)
	require.True(t, drift)

	// Identical content modulo timestamp comment: no drift.
	require.NoError(t, store.WriteRuleset(rules.Generate(spec, time.Now().Add(time.Hour))))
	drift, err = reporter.Drift(expected)
	require.NoError(t, err)
	require.False(t, drift)

	// Edited rules: drift.
	require.NoError(t, store.WriteRuleset("pass in all\n"))
	drift, err = reporter.Drift(expected)
	require.NoError(t, err)
	require.True(t, drift)
}

func TestReachableUsesProbe(t *testing.T) {
	reporter, _ := newTestReporter(t, &fakeEngine{})

	addr := netip.MustParseAddr("192.168.105.10")
	var probed netip.Addr
	var budget time.Duration
	reporter.SetProbe(func(a netip.Addr, timeout time.Duration) bool {
		probed = a
		budget = timeout
		return true
	})

	require.True(t, reporter.Reachable(addr, 2*time.Second))
	require.Equal(t, addr, probed)
	require.Equal(t, 2*time.Second, budget)

	reporter.SetProbe(func(netip.Addr, time.Duration) bool { return false })
	require.False(t, reporter.Reachable(addr, 2*time.Second))
}

func TestSummary(t *testing.T) {
	reporter, store := newTestReporter(t, &fakeEngine{})
	require.NoError(t, os.WriteFile(store.MainConfigPath(), []byte("set skip on lo0\n"), 0644))

	out, err := reporter.Summary()
	require.NoError(t, err)
	require.Contains(t, out, "limawan")
	require.Contains(t, out, "Backup present")
}
