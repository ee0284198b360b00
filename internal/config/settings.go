// Package config loads the launcher's own settings from a TOML file,
// environment overrides, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/infra"
)

const settingsFileName = "settings.toml"

// Environment variables that override the settings file.
const (
	EnvMode         = "NAGCTL_MODE"
	EnvDataDir      = "NAGCTL_DATA_DIR"
	EnvResourcesDir = "NAGCTL_RESOURCES_DIR"
	EnvAppRoot      = "NAGCTL_APP_ROOT"
)

// Settings configures the launcher itself. It is distinct from the policy
// Configuration document handed to the worker.
type Settings struct {
	Mode                    string   `toml:"mode"`
	AppRoot                 string   `toml:"app_root"`
	ResourcesDir            string   `toml:"resources_dir"`
	DataDir                 string   `toml:"data_dir"`
	WorkerName              string   `toml:"worker_name"`
	PickerCommand           []string `toml:"picker_command"`
	LogLevel                string   `toml:"log_level"`
	AllowConcurrentLaunches bool     `toml:"allow_concurrent_launches"`
	DrainGraceSeconds       int      `toml:"drain_grace_seconds"`
	HTTPAddr                string   `toml:"http_addr"`
}

// Default returns settings with every field at its default. Empty path
// fields are derived from the running executable and the user's config dir.
func Default() Settings {
	return Settings{
		Mode:              string(domain.ModePackaged),
		WorkerName:        infra.DefaultWorkerName,
		LogLevel:          "info",
		DrainGraceSeconds: 5,
		HTTPAddr:          "127.0.0.1:7878",
	}
}

// DefaultPath returns the settings file location.
func DefaultPath() string {
	return filepath.Join(infra.DefaultDataDir(), settingsFileName)
}

// Load reads settings like Read and then validates them.
func Load(path string) (*Settings, string, bool, error) {
	s, resolved, exists, err := Read(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := s.Validate(); err != nil {
		return nil, "", false, err
	}
	return s, resolved, exists, nil
}

// Read reads settings from path (DefaultPath when empty), applies environment
// overrides and normalizes them, without validating. A missing file yields defaults.
// It returns the settings, the resolved path, and whether the file existed.
// Callers that apply further overrides must call Validate themselves.
func Read(path string) (*Settings, string, bool, error) {
	s := Default()

	if path == "" {
		path = DefaultPath()
	}
	resolved := expandPath(path)

	exists := true
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("failed to open settings: %w", err)
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&s); err != nil {
			return nil, "", false, fmt.Errorf("failed to parse settings %s: %w", resolved, err)
		}
	}

	s.applyEnv()
	s.Normalize()
	return &s, resolved, exists, nil
}

func (s *Settings) applyEnv() {
	if v, ok := os.LookupEnv(EnvMode); ok && strings.TrimSpace(v) != "" {
		s.Mode = v
	}
	if v, ok := os.LookupEnv(EnvDataDir); ok && strings.TrimSpace(v) != "" {
		s.DataDir = v
	}
	if v, ok := os.LookupEnv(EnvResourcesDir); ok && strings.TrimSpace(v) != "" {
		s.ResourcesDir = v
	}
	if v, ok := os.LookupEnv(EnvAppRoot); ok && strings.TrimSpace(v) != "" {
		s.AppRoot = v
	}
}

// Normalize trims values and expands path fields. It is safe to call again
// after flag overrides.
func (s *Settings) Normalize() {
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	s.WorkerName = strings.TrimSpace(s.WorkerName)
	s.HTTPAddr = strings.TrimSpace(s.HTTPAddr)
	s.AppRoot = expandPath(s.AppRoot)
	s.ResourcesDir = expandPath(s.ResourcesDir)
	s.DataDir = expandPath(s.DataDir)
}

// Validate ensures the settings are usable.
func (s *Settings) Validate() error {
	if _, ok := infra.ParseMode(s.Mode); !ok {
		return fmt.Errorf("mode must be %q or %q, got %q", domain.ModePackaged, domain.ModeDevelopment, s.Mode)
	}
	if s.WorkerName == "" {
		return errors.New("worker_name must be set")
	}
	if strings.ContainsAny(s.WorkerName, `/\`) {
		return fmt.Errorf("worker_name must be a file name, got %q", s.WorkerName)
	}
	if s.DrainGraceSeconds < 0 {
		return errors.New("drain_grace_seconds must not be negative")
	}
	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// AppContext resolves the application context these settings describe.
func (s *Settings) AppContext() *infra.AppContext {
	mode, ok := infra.ParseMode(s.Mode)
	if !ok {
		mode = domain.ModePackaged
	}
	app := infra.NewAppContext(mode)

	if s.AppRoot != "" {
		app.AppRoot = s.AppRoot
		app.ResourcesDir = filepath.Join(s.AppRoot, "resources")
	}
	if s.ResourcesDir != "" {
		app.ResourcesDir = s.ResourcesDir
	}
	if s.DataDir != "" {
		app.DataDir = s.DataDir
	}
	if s.WorkerName != "" {
		app.WorkerName = s.WorkerName
	}
	return app
}

// DrainGrace returns the post-exit output grace period. Zero selects the supervisor default.
func (s *Settings) DrainGrace() time.Duration {
	return time.Duration(s.DrainGraceSeconds) * time.Second
}

// Level returns the configured log level, defaulting to info.
func (s *Settings) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Encode renders the settings as TOML.
func (s *Settings) Encode() ([]byte, error) {
	data, err := toml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}

// WriteSample writes the default settings to path, creating its directory.
func WriteSample(path string) error {
	defaults := Default()
	data, err := defaults.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sample settings: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	expanded := infra.NewFileSystemManager().ExpandHome(path)
	if abs, err := filepath.Abs(expanded); err == nil {
		return abs
	}
	return filepath.Clean(expanded)
}
