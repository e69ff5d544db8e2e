// Package lifecycle orchestrates the anchor state machine: setup walks
// Absent -> Staged -> Validated -> Active, teardown walks Active -> Flushed
// -> Unreferenced -> ReValidated -> Reloaded -> Cleaned. All invariants and
// rollback decisions live here; the store, generator and engine stay dumb.
package lifecycle

import (
	"fmt"

	"github.com/google/uuid"

	"grimm.is/limawan/internal/anchor"
	"grimm.is/limawan/internal/clock"
	"grimm.is/limawan/internal/config"
	"grimm.is/limawan/internal/forwarding"
	"grimm.is/limawan/internal/lock"
	"grimm.is/limawan/internal/logging"
	"grimm.is/limawan/internal/metrics"
	"grimm.is/limawan/internal/pf"
	"grimm.is/limawan/internal/rules"
	"grimm.is/limawan/internal/status"
	"grimm.is/limawan/internal/validation"
)

// Controller drives setup and teardown of the managed anchor.
//
// One mutating call runs at a time: the configuration lock is held from
// before the backup until after the final reload, and once mutation begins
// the sequence runs to a terminal state (success, rollback, or fatal)
// rather than accepting interruption.
type Controller struct {
	cfg      *config.Config
	store    *anchor.Store
	engine   pf.Engine
	lck      *lock.FileLock
	reporter *status.Reporter
	met      *metrics.Set
	clk      clock.Clock
	log      *logging.Logger

	// CheckInterface verifies that the host interface exists and is up.
	// Tests and offline checks replace it.
	CheckInterface func(name string) error
}

// New creates a controller from configuration and an engine.
func New(cfg *config.Config, engine pf.Engine) *Controller {
	store := anchor.New(cfg.MainConfigPath, cfg.AnchorDir, cfg.AnchorName, cfg.BackupPath)
	return &Controller{
		cfg:            cfg,
		store:          store,
		engine:         engine,
		lck:            lock.New(cfg.LockPath, cfg.LockWaitDuration()),
		reporter:       status.NewReporter(store, engine, cfg.AnchorName),
		met:            metrics.NewSet(),
		clk:            &clock.RealClock{},
		log:            logging.WithComponent("lifecycle"),
		CheckInterface: validation.ValidateHostInterface,
	}
}

// SetClock replaces the time source (tests).
func (c *Controller) SetClock(clk clock.Clock) {
	c.clk = clk
}

// Store exposes the state store for diagnostics commands.
func (c *Controller) Store() *anchor.Store {
	return c.store
}

// Reporter exposes the read-only status reporter.
func (c *Controller) Reporter() *status.Reporter {
	return c.reporter
}

// Metrics exposes the operation counters.
func (c *Controller) Metrics() *metrics.Set {
	return c.met
}

// SetupResult describes a completed setup.
type SetupResult struct {
	OperationID string
	Status      status.AnchorStatus
}

// Setup deploys the forwarding described by spec.
//
// The ruleset is regenerated wholesale and the reference block insertion is
// idempotent, so a second Setup with the same spec converges on the same
// state without duplicates. Failures after mutation trigger the
// compensating rollback and return a terminal *SetupError.
func (c *Controller) Setup(spec forwarding.Spec) (*SetupResult, error) {
	// Precondition checks first; no side effects on failure.
	if err := c.checkSpec(spec); err != nil {
		c.met.SetupTotal.WithLabelValues("invalid_spec").Inc()
		return nil, err
	}

	if err := c.lck.Acquire(); err != nil {
		c.met.SetupTotal.WithLabelValues("busy").Inc()
		return nil, err
	}
	defer c.lck.Release()

	opID := uuid.NewString()
	log := c.log.WithFields(map[string]any{"op": opID, "spec": spec.String()})
	log.Info("setup starting")

	if err := c.store.Backup(); err != nil {
		c.met.SetupTotal.WithLabelValues("io_error").Inc()
		return nil, err
	}

	ruleset := rules.Generate(spec, c.clk.Now())
	if err := c.store.WriteRuleset(ruleset); err != nil {
		c.met.SetupTotal.WithLabelValues("io_error").Inc()
		return nil, err
	}

	changed, err := c.store.EnsureReferenced()
	if err != nil {
		c.met.SetupTotal.WithLabelValues("io_error").Inc()
		return nil, err
	}
	log.Debug("anchor staged", "reference_added", changed)

	if err := c.engine.CheckSyntax(c.store.MainConfigPath()); err != nil {
		c.met.ValidationFailures.Inc()
		return nil, c.failSetup(log, err)
	}

	enabled, err := c.engine.IsEnabled()
	if err != nil {
		return nil, c.failSetup(log, err)
	}
	if !enabled {
		if err := c.engine.Enable(); err != nil {
			return nil, c.failSetup(log, err)
		}
		log.Info("packet filtering enabled")
	}

	// The reload can still fail despite a passing dry run, e.g. when
	// another process raced us on engine state. Same rollback applies.
	if err := c.engine.Reload(c.store.MainConfigPath()); err != nil {
		return nil, c.failSetup(log, err)
	}

	st, err := c.reporter.Report()
	if err != nil {
		return nil, fmt.Errorf("post-setup status check failed: %w", err)
	}
	if !st.LoadedInEngine || !st.NATRulesLoaded {
		// The configuration on disk validated and loaded; the engine is
		// in a safe state, just not the intended one. No automated
		// rollback from here.
		c.met.SetupTotal.WithLabelValues("incomplete").Inc()
		log.Error("setup incomplete", "status", st.String())
		return nil, &SetupIncompleteError{Status: st}
	}

	c.met.SetupTotal.WithLabelValues("success").Inc()
	c.log.Audit("setup", c.cfg.AnchorName, map[string]any{
		"op":   opID,
		"spec": spec.String(),
	})
	log.Info("setup complete", "status", st.String())

	return &SetupResult{OperationID: opID, Status: st}, nil
}

// failSetup runs the compensating rollback and wraps the cause.
func (c *Controller) failSetup(log *logging.Logger, cause error) error {
	log.Error("setup failed, rolling back", "error", cause)
	c.met.RollbackTotal.Inc()
	c.met.SetupTotal.WithLabelValues("rolled_back").Inc()

	outcome := Rollback(c.store, log)
	c.log.Audit("rollback", c.cfg.AnchorName, map[string]any{
		"cause":    cause.Error(),
		"restored": outcome.Restored,
	})
	return &SetupError{
		Cause:       cause,
		RolledBack:  outcome.Restored,
		RollbackErr: outcome.RestoreErr,
	}
}

// TeardownOptions tune a teardown call.
type TeardownOptions struct {
	// RetainBackup keeps the pf.conf backup after a successful teardown.
	RetainBackup bool

	// Force runs the full teardown sequence even when nothing of the
	// anchor appears to exist.
	Force bool
}

// Teardown removes the forwarding and returns pf.conf to its pre-setup
// content. Ordering is mandatory: flush live rules before removing the
// reference, before deleting the file. Removing the file first would leave
// orphaned live rules with no config-file source of truth.
func (c *Controller) Teardown(opts TeardownOptions) error {
	if err := c.lck.Acquire(); err != nil {
		c.met.TeardownTotal.WithLabelValues("busy").Inc()
		return err
	}
	defer c.lck.Release()

	opID := uuid.NewString()
	log := c.log.WithFields(map[string]any{"op": opID})

	referenced, err := c.store.IsReferenced()
	if err != nil {
		c.met.TeardownTotal.WithLabelValues("io_error").Inc()
		return err
	}
	if !referenced && !c.store.RulesetFileExists() && !opts.Force {
		c.met.TeardownTotal.WithLabelValues("noop").Inc()
		log.Info("nothing to tear down")
		return nil
	}

	log.Info("teardown starting")

	if err := c.engine.FlushAnchor(c.cfg.AnchorName); err != nil {
		// Best-effort: live rules may simply not be loaded.
		log.Warn("anchor flush failed, continuing", "error", err)
	}

	if err := c.store.RemoveReference(); err != nil {
		c.met.TeardownTotal.WithLabelValues("io_error").Inc()
		return err
	}
	if err := c.store.DeleteRulesetFile(); err != nil {
		c.met.TeardownTotal.WithLabelValues("io_error").Inc()
		return err
	}

	if err := c.engine.CheckSyntax(c.store.MainConfigPath()); err != nil {
		// The cleaned config is invalid (external corruption). Fall back
		// to the backup; if that cannot reach a validated state either,
		// this is fatal and reload is never attempted.
		c.met.ValidationFailures.Inc()
		log.Error("cleaned configuration invalid, restoring backup", "error", err)

		if restoreErr := c.store.RestoreFromBackup(); restoreErr != nil {
			c.met.TeardownTotal.WithLabelValues("fatal").Inc()
			return &FatalInconsistencyError{Cause: err, RestoreErr: restoreErr}
		}
		c.met.RollbackTotal.Inc()

		if err2 := c.engine.CheckSyntax(c.store.MainConfigPath()); err2 != nil {
			c.met.TeardownTotal.WithLabelValues("fatal").Inc()
			return &FatalInconsistencyError{Cause: err2}
		}
	}

	if err := c.engine.Reload(c.store.MainConfigPath()); err != nil {
		c.met.TeardownTotal.WithLabelValues("reload_error").Inc()
		return fmt.Errorf("failed to reload cleaned configuration: %w", err)
	}

	if !opts.RetainBackup {
		if err := c.store.DeleteBackup(); err != nil {
			// Best-effort; a stale backup is preserved state, not damage.
			log.Warn("could not delete backup", "error", err)
		}
	}

	c.met.TeardownTotal.WithLabelValues("success").Inc()
	c.log.Audit("teardown", c.cfg.AnchorName, map[string]any{
		"op":            opID,
		"retain_backup": opts.RetainBackup,
	})
	log.Info("teardown complete")
	return nil
}

// Status reports the current anchor status. Read-only, lock-free.
func (c *Controller) Status() (status.AnchorStatus, error) {
	return c.reporter.Report()
}

// checkSpec re-validates a spec against this controller's configured
// policy. Specs normally arrive through forwarding.New, but a Spec literal
// must not bypass the range checks.
func (c *Controller) checkSpec(spec forwarding.Spec) error {
	if !spec.VMAddress.Is4() {
		return &forwarding.InvalidSpecError{Field: "vm_address", Reason: "not an IPv4 address"}
	}
	if spec.InternalPort == 0 {
		return &forwarding.InvalidSpecError{Field: "internal_port", Reason: "port must be 1-65535"}
	}
	if !c.cfg.PortRange().Contains(int(spec.ExternalPort)) {
		return &forwarding.InvalidSpecError{
			Field:  "external_port",
			Reason: fmt.Sprintf("port %d outside allowed range %d-%d", spec.ExternalPort, c.cfg.AllowedPorts.Min, c.cfg.AllowedPorts.Max),
		}
	}
	if err := c.CheckInterface(spec.HostInterface); err != nil {
		return &forwarding.InvalidSpecError{Field: "host_interface", Reason: err.Error()}
	}
	return nil
}
