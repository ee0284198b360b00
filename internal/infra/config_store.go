package infra

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/policy"
)

// FileConfigStore implements domain.ConfigStore using a JSON file.
// Writes go through a temp file and rename so a reader never sees a partial document.
type FileConfigStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock // Serializes writers across processes
	logger *zap.Logger
}

// NewFileConfigStore creates a store at the context's fixed config location.
func NewFileConfigStore(app *AppContext, logger *zap.Logger) *FileConfigStore {
	return NewFileConfigStoreWithPath(app.ConfigPath(), logger)
}

// NewFileConfigStoreWithPath creates a store at a specific path (for testing).
func NewFileConfigStoreWithPath(path string, logger *zap.Logger) *FileConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileConfigStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path returns the document location.
func (s *FileConfigStore) Path() string {
	return s.path
}

// Load returns the persisted configuration, falling back to defaults only when
// nothing has been saved yet.
func (s *FileConfigStore) Load() (*domain.Configuration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("no configuration saved yet, using defaults", zap.String("path", s.path))
			return policy.DefaultConfiguration(), nil
		}
		return nil, &domain.StorageError{Op: "read", Path: s.path, Err: err}
	}

	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		s.logger.Warn("configuration is not valid JSON", zap.String("path", s.path), zap.Error(err))
		return nil, &domain.CorruptConfigError{Path: s.path, Cause: err}
	}

	cfg, violations := policy.Validate(json.RawMessage(data))
	if len(violations) > 0 {
		s.logger.Warn("configuration failed validation",
			zap.String("path", s.path),
			zap.Strings("fields", violations.Fields()))
		return nil, &domain.CorruptConfigError{Path: s.path, Violations: violations}
	}

	s.logger.Debug("configuration loaded", zap.String("path", s.path))
	return cfg, nil
}

// Save validates raw and replaces the whole document with the normalized value.
func (s *FileConfigStore) Save(raw any) (*domain.Configuration, error) {
	cfg, violations := policy.Validate(raw)
	if len(violations) > 0 {
		return nil, violations
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, &domain.StorageError{Op: "encode", Path: s.path, Err: err}
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, &domain.StorageError{Op: "create directory", Path: dir, Err: err}
	}

	if err := s.lock.Lock(); err != nil {
		return nil, &domain.StorageError{Op: "lock", Path: s.lock.Path(), Err: err}
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.atomicWrite(data); err != nil {
		return nil, &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}

	s.logger.Info("configuration saved",
		zap.String("path", s.path),
		zap.Int("blocked_processes", len(cfg.BlockedProcesses)),
		zap.Int("messages", len(cfg.Messages)))
	return cfg, nil
}

// atomicWrite writes data to a temp file in the same directory, syncs it,
// then renames it over the target.
func (s *FileConfigStore) atomicWrite(data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}

	success = true
	return nil
}

// Ensure FileConfigStore implements domain.ConfigStore.
var _ domain.ConfigStore = (*FileConfigStore)(nil)
