package remote

import (
	"os/exec"
	"syscall"
)

// sysProcAttr puts the shell in its own process group so a timeout can kill
// everything it spawned. Pdeathsig covers the daemon itself dying.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}
