package infra

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

const (
	// AppName names the per-user data directory.
	AppName = "nagctl"

	// DefaultWorkerName is the worker executable name without platform suffix.
	DefaultWorkerName = "nagd"

	configFileName = "config.json"
	logFileName    = "nagctl.log"
)

// AppContext holds the paths the launcher needs, resolved once at startup
// and passed to every component that locates files.
type AppContext struct {
	Mode         domain.PackagingMode
	AppRoot      string // Directory the launcher runs from
	ResourcesDir string // Installed application resources (packaged mode)
	DataDir      string // Per-user application data
	WorkerName   string // Worker executable name without ".exe"
}

// NewAppContext builds a context for mode with default locations derived
// from the running executable and the user's config directory.
func NewAppContext(mode domain.PackagingMode) *AppContext {
	appRoot := "."
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		appRoot = filepath.Dir(exe)
	}

	return &AppContext{
		Mode:         mode,
		AppRoot:      appRoot,
		ResourcesDir: filepath.Join(appRoot, "resources"),
		DataDir:      DefaultDataDir(),
		WorkerName:   DefaultWorkerName,
	}
}

// DefaultDataDir returns the per-user application data directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// WorkerBinary returns the platform-specific worker file name.
func (a *AppContext) WorkerBinary() string {
	if runtime.GOOS == "windows" {
		return a.WorkerName + ".exe"
	}
	return a.WorkerName
}

// WorkerPath resolves the worker executable for the context's packaging mode.
// It only computes the path; existence is checked by the caller.
//
//	packaged:    <resources>/<worker>
//	development: <appRoot>/../<worker>/dist/<worker>
func (a *AppContext) WorkerPath() string {
	switch a.Mode {
	case domain.ModeDevelopment:
		return filepath.Clean(filepath.Join(a.AppRoot, "..", a.WorkerName, "dist", a.WorkerBinary()))
	default:
		return filepath.Join(a.ResourcesDir, a.WorkerBinary())
	}
}

// ConfigPath returns the fixed location of the persisted configuration.
func (a *AppContext) ConfigPath() string {
	return filepath.Join(a.DataDir, configFileName)
}

// LogPath returns the launcher log file location.
func (a *AppContext) LogPath() string {
	return filepath.Join(a.DataDir, logFileName)
}

// DescribeMode returns a human-readable description of the packaging mode.
func DescribeMode(m domain.PackagingMode) string {
	switch m {
	case domain.ModePackaged:
		return "packaged (worker in application resources)"
	case domain.ModeDevelopment:
		return "development (worker in sibling build output)"
	default:
		return "unknown"
	}
}

// ParseMode maps a settings value to a packaging mode.
func ParseMode(s string) (domain.PackagingMode, bool) {
	switch domain.PackagingMode(s) {
	case domain.ModePackaged:
		return domain.ModePackaged, true
	case domain.ModeDevelopment, "dev":
		return domain.ModeDevelopment, true
	default:
		return "", false
	}
}
