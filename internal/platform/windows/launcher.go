//go:build windows

package windows

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// Launcher starts the application detached from the automation process.
type Launcher struct{}

func NewLauncher() *Launcher { return &Launcher{} }

func (l *Launcher) Launch(path string, args ...string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = filepath.Dir(path)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", path, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release %s: %w", path, err)
	}
	return pid, nil
}
