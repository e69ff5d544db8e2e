package cmd

import (
	"errors"
	"fmt"
	"time"

	"grimm.is/limawan/internal/anchor"
	"grimm.is/limawan/internal/clock"
	"grimm.is/limawan/internal/config"
	"grimm.is/limawan/internal/lifecycle"
	"grimm.is/limawan/internal/pf"
	"grimm.is/limawan/internal/rules"
)

const pingTimeout = 3 * time.Second

// StatusArgs carries the parsed status flags.
type StatusArgs struct {
	ShowDiff bool
	Ping     bool
}

// RunStatus prints the anchor status report. Read-only; takes no lock.
func RunStatus(configFile string, args StatusArgs) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ctrl := lifecycle.New(cfg, pf.NewPfctlEngine(nil))
	summary, err := ctrl.Reporter().Summary()
	if err != nil {
		return err
	}
	fmt.Print(summary)

	if err := reportDeployed(ctrl, args.Ping); err != nil {
		return err
	}

	if args.ShowDiff {
		diff, err := ctrl.Store().DiffFromBackup()
		switch {
		case errors.Is(err, anchor.ErrNoBackup):
			fmt.Println("No backup to diff against")
		case err != nil:
			return err
		case diff == "":
			fmt.Println("Main configuration matches backup")
		default:
			fmt.Println("Changes since backup:")
			fmt.Print(diff)
		}
	}

	return nil
}

// reportDeployed recovers the deployed spec from the anchor ruleset header
// and reports drift against freshly generated rules, plus an optional
// reachability probe of the VM address.
func reportDeployed(ctrl *lifecycle.Controller, ping bool) error {
	if !ctrl.Store().RulesetFileExists() {
		if ping {
			fmt.Println("VM reachable:      unknown (no deployed forwarding)")
		}
		return nil
	}

	ruleset, err := ctrl.Store().ReadRuleset()
	if err != nil {
		return err
	}
	spec, err := rules.ExtractSpec(ruleset)
	if err != nil {
		fmt.Printf("Deployed spec:     unknown (%v)\n", err)
		return nil
	}
	fmt.Printf("Deployed spec:     %s\n", spec)

	drift, err := ctrl.Reporter().Drift(rules.Generate(spec, clock.Now()))
	if err != nil {
		return err
	}
	if drift {
		fmt.Println("Drift:             ruleset file differs from generated rules")
	} else {
		fmt.Println("Drift:             none")
	}

	if ping {
		if ctrl.Reporter().Reachable(spec.VMAddress, pingTimeout) {
			fmt.Printf("VM reachable:      yes (%s)\n", spec.VMAddress)
		} else {
			fmt.Printf("VM reachable:      no (%s; ICMP may be filtered)\n", spec.VMAddress)
		}
	}
	return nil
}
