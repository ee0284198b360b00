package domain

import "context"

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// FileSystemManager handles filesystem queries.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// ConfigStore persists the Configuration document at a fixed location.
// Implementation: JSON file in the per-user application data directory.
type ConfigStore interface {
	// Load returns the persisted configuration, or the built-in default when none exists.
	// A damaged document yields *CorruptConfigError, never the default.
	Load() (*Configuration, error)

	// Save validates raw and replaces the whole document with the normalized result.
	// Validation failures return ValidationErrors and leave storage untouched.
	Save(raw any) (*Configuration, error)

	// Path returns the document location.
	Path() string
}

// WorkerLauncher starts the worker process and observes it to a terminal state.
type WorkerLauncher interface {
	// Launch runs the worker once with args and returns its terminal result.
	Launch(ctx context.Context, args []string) ExecutionResult

	// WorkerName returns the worker executable name.
	WorkerName() string
}

// FilePicker asks the user to choose a file.
type FilePicker interface {
	// PickFile returns the chosen absolute path, or "" and ok=false when cancelled.
	PickFile(ctx context.Context) (path string, ok bool, err error)
}
