//go:build windows

package stores

import (
	"os"
)

// processAlive reports whether a process with the given PID exists. On
// Windows FindProcess only succeeds for live processes.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
