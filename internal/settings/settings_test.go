package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanes.dev/lanes/internal/settings"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	loaded, err := settings.Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	require.Equal(t, settings.Default(), loaded)
}

func TestLoadPartialFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  autoFetchIntervalMinutes: -1\n"), 0o644))

	loaded, err := settings.Load(path)
	require.NoError(t, err)
	require.Equal(t, -1, loaded.Fetch.AutoFetchIntervalMinutes)
	// Everything the file doesn't mention keeps its default.
	require.True(t, loaded.Telemetry.AppMetricsEnabled)
	require.True(t, loaded.FeatureFlags.WS3)
	require.True(t, loaded.Reviews.AutoFillPRDescriptionFromCommit)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml ["), 0o644))

	loaded, err := settings.Load(path)
	require.Error(t, err)
	require.Equal(t, settings.Default(), loaded)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	want := settings.Default()
	want.FeatureFlags.SingleBranch = true
	want.Fetch.AutoFetchIntervalMinutes = 42

	require.NoError(t, settings.Save(path, want))
	got, err := settings.Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWatcherPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	watcher, err := settings.Watch(path)
	require.NoError(t, err)
	defer watcher.Stop()

	require.Equal(t, settings.Default(), watcher.Get())
	updates := watcher.Subscribe()

	require.NoError(t, os.WriteFile(path, []byte("featureFlags:\n  singleBranch: true\n"), 0o644))

	select {
	case snapshot := <-updates:
		require.True(t, snapshot.FeatureFlags.SingleBranch)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for settings reload")
	}
	require.True(t, watcher.Get().FeatureFlags.SingleBranch)
}
