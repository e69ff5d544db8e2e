package lifecycle

import (
	"grimm.is/limawan/internal/anchor"
	"grimm.is/limawan/internal/logging"
)

// RollbackOutcome describes what a compensating rollback managed to undo.
type RollbackOutcome struct {
	// Restored is true when the main configuration was rewritten from
	// the backup.
	Restored bool

	// RestoreErr carries the restore failure, if any.
	RestoreErr error

	// FileDeleted is true when the staged anchor ruleset file was
	// removed. Deletion is best-effort; a leftover file is harmless
	// because nothing references it after restore.
	FileDeleted bool
}

// Rollback is the compensating transaction for a failed mutation: it
// restores the main configuration from the pre-mutation backup and
// best-effort deletes the staged anchor file. It is a plain function of the
// store so the failure path can be unit-tested without a firewall engine.
func Rollback(store *anchor.Store, log *logging.Logger) RollbackOutcome {
	var out RollbackOutcome

	if err := store.RestoreFromBackup(); err != nil {
		out.RestoreErr = err
		log.Error("rollback: restore from backup failed", "error", err)
	} else {
		out.Restored = true
	}

	// Best-effort cleanup; the primary error dominates, so this only logs.
	if err := store.DeleteRulesetFile(); err != nil {
		log.Warn("rollback: could not delete staged anchor file", "error", err)
	} else {
		out.FileDeleted = true
	}

	return out
}
