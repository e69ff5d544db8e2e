package pf

import (
	"os/exec"
)

// RealCommandRunner executes commands on the host.
type RealCommandRunner struct{}

// Output executes a command and returns its combined output.
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}
