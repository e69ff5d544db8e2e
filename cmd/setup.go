// Package cmd contains the entry functions behind the CLI subcommands.
// Argument parsing stays in main; each Run function takes parsed values.
package cmd

import (
	"fmt"

	"grimm.is/limawan/internal/config"
	"grimm.is/limawan/internal/forwarding"
	"grimm.is/limawan/internal/lifecycle"
	"grimm.is/limawan/internal/pf"
	"grimm.is/limawan/internal/vm"
)

// SetupArgs carries the parsed setup flags.
type SetupArgs struct {
	// VMName is resolved through the VM manager when VMAddress is empty.
	VMName       string
	VMAddress    string
	InternalPort int
	ExternalPort int
	Interface    string
	Kind         string
}

// RunSetup deploys a forwarding.
func RunSetup(configFile string, args SetupArgs) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	kind, err := forwarding.ParseServiceKind(args.Kind)
	if err != nil {
		return err
	}

	address := args.VMAddress
	if address == "" {
		if args.VMName == "" {
			return fmt.Errorf("either a VM name or a VM address is required")
		}
		resolver := vm.NewLimaResolver(nil)
		addr, err := resolver.Resolve(args.VMName)
		if err != nil {
			return fmt.Errorf("failed to resolve vm %s: %w", args.VMName, err)
		}
		address = addr.String()
	}

	iface := args.Interface
	if iface == "" {
		iface = cfg.Defaults.Interface
	}

	spec, err := forwarding.New(address, args.InternalPort, args.ExternalPort, iface, kind, cfg.PortRange())
	if err != nil {
		return err
	}

	ctrl := lifecycle.New(cfg, pf.NewPfctlEngine(nil))
	result, err := ctrl.Setup(spec)
	if err != nil {
		return err
	}

	fmt.Printf("Forwarding active: %s\n", spec)
	fmt.Printf("Anchor status: %s\n", result.Status)
	return nil
}
