package housekeeping

import (
	"os"
	"syscall"
)

// processAlive reports whether pid refers to a live process, using the
// conventional signal-0 probe: FindProcess always succeeds on Unix, so the
// real test is whether Signal(0) is permitted.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
