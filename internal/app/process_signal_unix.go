//go:build !windows

package app

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// processExists probes the nginx master named in the pid file with signal 0.
// EPERM still means the process is alive, only owned by another user.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// signalReload asks the nginx master to re-read nginx.conf. nginx answers
// SIGHUP by starting new workers on the new config and draining the old ones.
func signalReload(pid int) error {
	if err := unix.Kill(pid, unix.SIGHUP); err != nil {
		return fmt.Errorf("signal nginx master %d: %w", pid, err)
	}
	return nil
}
