package infra

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DialogPicker implements domain.FilePicker by running a native file dialog command
// that prints the chosen path on stdout and exits non-zero on cancel.
type DialogPicker struct {
	command []string
	runner  CommandRunner
	logger  *zap.Logger
}

// NewDialogPicker creates a picker running command (DefaultPickerCommand when empty).
func NewDialogPicker(command []string, logger *zap.Logger) *DialogPicker {
	return NewDialogPickerWithRunner(command, &RealCommandRunner{}, logger)
}

// NewDialogPickerWithRunner creates a picker with a custom runner (for testing).
func NewDialogPickerWithRunner(command []string, runner CommandRunner, logger *zap.Logger) *DialogPicker {
	if len(command) == 0 {
		command = DefaultPickerCommand()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DialogPicker{command: command, runner: runner, logger: logger}
}

// DefaultPickerCommand returns the platform's file dialog invocation.
func DefaultPickerCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"osascript", "-e",
			`POSIX path of (choose file with prompt "Select a program to block")`}
	case "windows":
		return []string{"powershell", "-NoProfile", "-Command",
			"Add-Type -AssemblyName System.Windows.Forms; " +
				"$d = New-Object System.Windows.Forms.OpenFileDialog; " +
				"$d.Filter = 'Executables|*.exe;*.bat;*.cmd;*.com;*.scr|All files|*.*'; " +
				"if ($d.ShowDialog() -eq 'OK') { $d.FileName } else { exit 1 }"}
	default:
		return []string{"zenity", "--file-selection", "--title=Select a program to block"}
	}
}

// PickFile runs the dialog. A non-zero exit or empty output means the user cancelled.
func (p *DialogPicker) PickFile(ctx context.Context) (string, bool, error) {
	out, err := p.runner.Output(ctx, p.command[0], p.command[1:]...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.logger.Debug("file dialog cancelled", zap.Int("exit_code", exitErr.ExitCode()))
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to run file picker %s: %w", p.command[0], err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", false, nil
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", false, fmt.Errorf("failed to resolve picked path %q: %w", path, err)
		}
		path = abs
	}

	p.logger.Info("file selected", zap.String("path", path))
	return path, true, nil
}

// Ensure DialogPicker implements domain.FilePicker.
var _ domain.FilePicker = (*DialogPicker)(nil)
