package lifecycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/limawan/internal/anchor"
	"grimm.is/limawan/internal/logging"
)

func newRollbackStore(t *testing.T) *anchor.Store {
	t.Helper()
	tmp := t.TempDir()
	return anchor.New(
		filepath.Join(tmp, "pf.conf"),
		filepath.Join(tmp, "pf.anchors"),
		"limawan",
		filepath.Join(tmp, "pf.conf.bak"),
	)
}

func TestRollbackRestoresByteIdentical(t *testing.T) {
	store := newRollbackStore(t)
	log := logging.WithComponent("test")

	original := "# pf.conf before mutation\nset skip on lo0\n"
	require.NoError(t, os.WriteFile(store.MainConfigPath(), []byte(original), 0644))
	require.NoError(t, store.Backup())

	// Simulate a failed setup: mutated config plus a staged anchor file.
	require.NoError(t, store.WriteRuleset("pass in all\n"))
	_, err := store.EnsureReferenced()
	require.NoError(t, err)

	out := Rollback(store, log)
	require.True(t, out.Restored)
	require.NoError(t, out.RestoreErr)
	require.True(t, out.FileDeleted)

	content, err := os.ReadFile(store.MainConfigPath())
	require.NoError(t, err)
	require.Equal(t, original, string(content))
	require.False(t, store.RulesetFileExists())
}

func TestRollbackWithoutBackup(t *testing.T) {
	store := newRollbackStore(t)
	log := logging.WithComponent("test")

	require.NoError(t, store.WriteRuleset("pass in all\n"))

	out := Rollback(store, log)
	require.False(t, out.Restored)
	require.ErrorIs(t, out.RestoreErr, anchor.ErrNoBackup)
	// Best-effort cleanup still ran.
	require.True(t, out.FileDeleted)
}
