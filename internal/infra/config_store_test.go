package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/policy"
)

func newTestStore(t *testing.T) *FileConfigStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nagctl", "config.json")
	return NewFileConfigStoreWithPath(path, zap.NewNop())
}

func scenarioPayload() map[string]any {
	return map[string]any{
		"quietStart":       "22:00",
		"quietEnd":         "06:00",
		"blockedProcesses": []any{"a.exe"},
		"messages":         []any{"hi"},
		"deterrentEnabled": false,
	}
}

func TestFileConfigStore_LoadAbsentReturnsDefaults(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, policy.DefaultConfiguration(), cfg)
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr), "load must not create the document")
}

func TestFileConfigStore_SaveThenLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(scenarioPayload())
	require.NoError(t, err)

	expected := &domain.Configuration{
		QuietStart:       "22:00",
		QuietEnd:         "06:00",
		BlockedProcesses: []string{"a.exe"},
		Messages:         []string{"hi"},
		DeterrentEnabled: false,
	}
	assert.Equal(t, expected, saved)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestFileConfigStore_RoundTripDefaults(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(policy.DefaultConfiguration())
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
	assert.Equal(t, policy.DefaultConfiguration(), loaded)
}

func TestFileConfigStore_DocumentMatchesConfiguration(t *testing.T) {
	store := newTestStore(t)
	payload := scenarioPayload()
	payload["extra"] = "dropped"

	_, err := store.Save(payload)
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.ElementsMatch(t,
		[]string{"quietStart", "quietEnd", "blockedProcesses", "messages", "deterrentEnabled"},
		keys(doc))
}

func TestFileConfigStore_SaveInvalidDoesNotTouchStorage(t *testing.T) {
	store := newTestStore(t)
	payload := scenarioPayload()
	payload["quietStart"] = "25:00"

	cfg, err := store.Save(payload)

	assert.Nil(t, cfg)
	var violations domain.ValidationErrors
	require.True(t, errors.As(err, &violations))
	assert.Equal(t, []string{"quietStart"}, violations.Fields())
	assert.Contains(t, violations[0].Message, "HH:mm")

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileConfigStore_SaveInvalidKeepsPreviousDocument(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(scenarioPayload())
	require.NoError(t, err)
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	_, err = store.Save(map[string]any{"messages": []any{}})
	require.Error(t, err)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileConfigStore_SaveReplacesWholeDocument(t *testing.T) {
	store := newTestStore(t)

	first := scenarioPayload()
	first["screenshotIntervalMinutes"] = 15
	_, err := store.Save(first)
	require.NoError(t, err)

	_, err = store.Save(scenarioPayload())
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded.ScreenshotIntervalMinutes, "fields absent from the new document must not survive")
}

func TestFileConfigStore_LoadMalformedIsCorrupt(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0700))
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"quietStart": "22:00",`), 0600))

	cfg, err := store.Load()

	assert.Nil(t, cfg)
	var corrupt *domain.CorruptConfigError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, store.Path(), corrupt.Path)
	assert.NotNil(t, corrupt.Cause)
	assert.Empty(t, corrupt.Violations)
}

func TestFileConfigStore_LoadEmptyFileIsCorrupt(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0700))
	require.NoError(t, os.WriteFile(store.Path(), nil, 0600))

	_, err := store.Load()

	var corrupt *domain.CorruptConfigError
	assert.True(t, errors.As(err, &corrupt))
}

func TestFileConfigStore_LoadSchemaViolationIsCorrupt(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0700))
	doc := `{"quietStart":"22:00","quietEnd":"6pm","blockedProcesses":[],"messages":["hi"],"deterrentEnabled":false}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0600))

	_, err := store.Load()

	var corrupt *domain.CorruptConfigError
	require.True(t, errors.As(err, &corrupt))
	assert.Nil(t, corrupt.Cause)
	assert.Equal(t, []string{"quietEnd", "blockedProcesses"}, corrupt.Violations.Fields())
}

func TestFileConfigStore_LoadUnreadableIsStorageError(t *testing.T) {
	store := newTestStore(t)
	// A directory at the document path cannot be read as a file.
	require.NoError(t, os.MkdirAll(store.Path(), 0700))

	_, err := store.Load()

	var storageErr *domain.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "read", storageErr.Op)
	var corrupt *domain.CorruptConfigError
	assert.False(t, errors.As(err, &corrupt))
}

func TestFileConfigStore_ConcurrentSavesLastWriteWins(t *testing.T) {
	store := newTestStore(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := scenarioPayload()
			payload["messages"] = []any{fmt.Sprintf("writer-%d", i)}
			_, err := store.Save(payload)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.True(t, strings.HasPrefix(loaded.Messages[0], "writer-"))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestFileConfigStore_FilePermissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("POSIX permissions only")
	}
	store := newTestStore(t)

	_, err := store.Save(scenarioPayload())
	require.NoError(t, err)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
