//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning indicates another process owns the device hardware.
var ErrAlreadyRunning = errors.New("another instance is already running")

// processLister is swapped in tests.
//
//nolint:gochecknoglobals // Test seam for the process table.
var processLister = ps.Processes

// EnsureSingleInstance fails when another process runs the same executable.
// Camera and GPIO lines can be held by one owner only.
func EnsureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return ensureSingle(filepath.Base(executable), os.Getpid())
}

// ensureSingle scans the process table for processName, ignoring selfPID.
func ensureSingle(processName string, selfPID int) error {
	processList, err := processLister()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == selfPID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, processName, process.Pid())
	}

	return nil
}
