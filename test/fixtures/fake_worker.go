// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/infra"
)

// Worker scripts for FakeWorker.Install. Each is a POSIX shell body.
const (
	// EchoArgsScript prints every argument on its own line and reports on stderr.
	EchoArgsScript = `for a in "$@"; do printf '%s\n' "$a"; done
echo "nagd: armed" >&2
exit 0`

	// RejectScript reports a configuration problem and exits non-zero.
	RejectScript = `echo "nagd: quietEnd is before quietStart" >&2
exit 2`
)

// NoisyScript writes n bytes to stderr before a single stdout line.
func NoisyScript(n int) string {
	return fmt.Sprintf("head -c %d /dev/zero | tr '\\000' x >&2\necho done", n)
}

// FakeWorker lays out an application directory with a scripted nagd worker.
type FakeWorker struct {
	RootDir string
}

// NewFakeWorker creates a fake layout generator rooted at rootDir.
func NewFakeWorker(rootDir string) *FakeWorker {
	return &FakeWorker{RootDir: rootDir}
}

// AppContext returns a context for mode whose paths all live under RootDir.
func (f *FakeWorker) AppContext(mode domain.PackagingMode) *infra.AppContext {
	appRoot := filepath.Join(f.RootDir, "apps", infra.AppName)
	return &infra.AppContext{
		Mode:         mode,
		AppRoot:      appRoot,
		ResourcesDir: filepath.Join(appRoot, "resources"),
		DataDir:      filepath.Join(f.RootDir, "data"),
		WorkerName:   infra.DefaultWorkerName,
	}
}

// Install writes script as the worker executable where mode expects it.
func (f *FakeWorker) Install(mode domain.PackagingMode, script string) (string, error) {
	path := f.AppContext(mode).WorkerPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		return "", err
	}
	return path, nil
}

// Exists checks if the worker for mode is installed.
func (f *FakeWorker) Exists(mode domain.PackagingMode) bool {
	_, err := os.Stat(f.AppContext(mode).WorkerPath())
	return err == nil
}

// CorruptConfig writes content as the persisted configuration document.
func (f *FakeWorker) CorruptConfig(content string) error {
	path := f.AppContext(domain.ModePackaged).ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}

// Cleanup removes everything under RootDir.
func (f *FakeWorker) Cleanup() error {
	return os.RemoveAll(f.RootDir)
}
