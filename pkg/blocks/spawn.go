package blocks

import (
	"fmt"
	"os"
	"os/exec"
)

// Spawn starts command with sh -c and returns without waiting for it. The
// child is reaped in the background. env entries ("KEY=value") are added to
// the inherited environment.
func Spawn(command string, env ...string) error {
	cmd := exec.Command("sh", "-c", command)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %q: %w", command, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
