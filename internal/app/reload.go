package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// reloadNginx asks the nginx master recorded in pidFile to re-read its
// configuration.
func reloadNginx(pidFile string) error {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return err
	}
	if !pidRunning(pid) {
		return fmt.Errorf("nginx pid %d from %q is not running", pid, pidFile)
	}
	return signalReload(pid)
}

func readPIDFile(pidFile string) (int, error) {
	b, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		return 0, fmt.Errorf("pid file %q is empty", pidFile)
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q contains invalid pid %q", pidFile, raw)
	}
	return pid, nil
}

func pidRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	if isZombiePID(pid) {
		return false
	}
	return processExists(pid)
}

func isZombiePID(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return false
	}
	return fields[2] == "Z"
}
