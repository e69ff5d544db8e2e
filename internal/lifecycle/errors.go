package lifecycle

import (
	"fmt"

	"grimm.is/limawan/internal/status"
)

// SetupError is the composite failure of a setup sequence: the original
// cause plus the outcome of the automatic rollback. Terminal; a syntax
// failure is deterministic for the same inputs, so retrying is pointless.
type SetupError struct {
	Cause       error
	RolledBack  bool
	RollbackErr error
}

func (e *SetupError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("setup failed: %v; rollback also failed: %v", e.Cause, e.RollbackErr)
	}
	if e.RolledBack {
		return fmt.Sprintf("setup failed (rolled back): %v", e.Cause)
	}
	return fmt.Sprintf("setup failed: %v", e.Cause)
}

func (e *SetupError) Unwrap() error {
	return e.Cause
}

// SetupIncompleteError reports that the configuration applied and validated
// but the engine did not end up with both rule tables loaded. The firewall
// is left in its last validated state; manual intervention is expected,
// further automated rollback would only compound the surprise.
type SetupIncompleteError struct {
	Status status.AnchorStatus
}

func (e *SetupIncompleteError) Error() string {
	return fmt.Sprintf("setup incomplete: anchor not fully loaded in engine (%s)", e.Status)
}

// FatalInconsistencyError reports that teardown could not reach a validated
// configuration even after restoring the backup. No further automated
// remediation is attempted; the operator must repair pf.conf by hand.
type FatalInconsistencyError struct {
	Cause      error
	RestoreErr error
}

func (e *FatalInconsistencyError) Error() string {
	if e.RestoreErr != nil {
		return fmt.Sprintf("fatal: firewall configuration invalid and backup restore failed: %v (restore: %v); manual repair required", e.Cause, e.RestoreErr)
	}
	return fmt.Sprintf("fatal: firewall configuration invalid even after backup restore: %v; manual repair required", e.Cause)
}

func (e *FatalInconsistencyError) Unwrap() error {
	return e.Cause
}
