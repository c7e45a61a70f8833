package supervisor

import (
	"os/exec"
	"syscall"
	"time"
)

// terminate signals a child to exit, preferring SIGTERM so the vendor CLI
// gets a chance to flush its stream-json trailer. When grace is positive
// the child is killed outright if it is still running after that long; if
// signalling fails at all it falls back to an immediate kill.
func terminate(cmd *exec.Cmd, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return cmd.Process.Kill()
	}
	if grace > 0 {
		proc := cmd.Process
		time.AfterFunc(grace, func() {
			// Signal 0 probes liveness; kill only a still-running child.
			if proc.Signal(syscall.Signal(0)) == nil {
				_ = proc.Kill()
			}
		})
	}
	return nil
}
