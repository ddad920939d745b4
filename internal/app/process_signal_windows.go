//go:build windows

package app

import (
	"errors"

	"golang.org/x/sys/windows"
)

const windowsStillActiveExitCode = 259

func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	return exitCode == windowsStillActiveExitCode
}

// nginx for windows only reloads through "nginx -s reload", which needs the
// binary path rather than a pid.
func signalReload(int) error {
	return errors.New("reload by signal is not supported on windows; run nginx -s reload")
}
