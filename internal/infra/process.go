// Package infra implements infrastructure concerns (process, filesystem, config storage).
package infra

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of processes whose name matches the pattern (case-insensitive).
// A trailing ".exe" is ignored on both sides so "nagd" finds "nagd.exe".
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	want := normalizeProcessName(pattern)
	self := int32(os.Getpid())

	var found []int
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if normalizeProcessName(name) == want {
			found = append(found, int(p.Pid))
		}
	}

	return found, nil
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		// Fall back to signal 0 where gopsutil cannot answer.
		proc, findErr := os.FindProcess(pid)
		if findErr != nil {
			return false
		}
		return proc.Signal(syscall.Signal(0)) == nil
	}
	return exists
}

func normalizeProcessName(name string) string {
	base := strings.ToLower(filepath.Base(name))
	return strings.TrimSuffix(base, ".exe")
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
