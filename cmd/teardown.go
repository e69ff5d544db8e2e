package cmd

import (
	"fmt"

	"grimm.is/limawan/internal/config"
	"grimm.is/limawan/internal/lifecycle"
	"grimm.is/limawan/internal/pf"
)

// RunTeardown removes the managed anchor and restores pf.conf.
func RunTeardown(configFile string, retainBackup, force bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ctrl := lifecycle.New(cfg, pf.NewPfctlEngine(nil))
	if err := ctrl.Teardown(lifecycle.TeardownOptions{
		RetainBackup: retainBackup,
		Force:        force,
	}); err != nil {
		return err
	}

	fmt.Println("Teardown complete")
	return nil
}
