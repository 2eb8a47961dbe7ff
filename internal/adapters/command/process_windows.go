//go:build windows

package command

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}

func terminateProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func killProcess(cmd *exec.Cmd) {
	terminateProcess(cmd)
}

func isExecutable(_ uint32) bool {
	return true
}
