//go:build !windows

package build

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the service in its own group so Stop also reaches
// processes spawned by wrappers such as `cargo run`.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}
