package cmd

import (
	"fmt"

	"grimm.is/limawan/internal/clock"
	"grimm.is/limawan/internal/config"
	"grimm.is/limawan/internal/forwarding"
	"grimm.is/limawan/internal/rules"
)

// RunCheck validates the configuration file and, when a candidate spec is
// supplied, prints the ruleset it would generate. Nothing on the host is
// touched.
func RunCheck(configFile string, args SetupArgs, verbose bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid")
	fmt.Printf("Main config:   %s\n", cfg.MainConfigPath)
	fmt.Printf("Anchor:        %s (%s)\n", cfg.AnchorName, cfg.AnchorDir)
	fmt.Printf("Allowed ports: %d-%d\n", cfg.AllowedPorts.Min, cfg.AllowedPorts.Max)

	if args.VMAddress == "" {
		return nil
	}

	kind, err := forwarding.ParseServiceKind(args.Kind)
	if err != nil {
		return err
	}
	iface := args.Interface
	if iface == "" {
		iface = cfg.Defaults.Interface
	}

	spec, err := forwarding.New(args.VMAddress, args.InternalPort, args.ExternalPort, iface, kind, cfg.PortRange())
	if err != nil {
		return err
	}
	fmt.Printf("Spec valid:    %s\n", spec)

	if verbose {
		fmt.Println()
		fmt.Print(rules.Generate(spec, clock.Now()))
	}
	return nil
}

// RunConfigInit writes a default configuration file.
func RunConfigInit(path string) error {
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
