package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdshell/gdshell/internal/config"
)

func newTestMirror(t *testing.T) *Mirror {
	t.Helper()

	cfg := &config.MirrorConfig{
		Base:       t.TempDir(),
		StagingDir: "LOCAL_EQUIVALENT",
		LandingDir: "DRIVE_EQUIVALENT",
	}

	require.NoError(t, os.MkdirAll(cfg.LandingPath(), 0o755))

	return New(cfg, nil)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestStage_PlainName(t *testing.T) {
	m := newTestMirror(t)
	src := writeTemp(t, "a.txt", "hello")

	staged, err := m.Stage(src, "~/tmp")
	require.NoError(t, err)

	assert.Equal(t, "a.txt", staged.MirrorName)
	assert.Equal(t, "a.txt", staged.OriginalName)
	assert.False(t, staged.Renamed)
	assert.Equal(t, "~/tmp", staged.TargetPath)

	data, err := os.ReadFile(filepath.Join(m.StagingPath(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStage_CollisionGetsHashPrefix(t *testing.T) {
	m := newTestMirror(t)

	first := writeTemp(t, "a.txt", "first")
	second := writeTemp(t, "a.txt", "second")

	s1, err := m.Stage(first, "~/x")
	require.NoError(t, err)
	require.False(t, s1.Renamed)

	s2, err := m.Stage(second, "~/y")
	require.NoError(t, err)

	assert.True(t, s2.Renamed)
	assert.Equal(t, "a.txt", s2.OriginalName)
	assert.NotEqual(t, "a.txt", s2.MirrorName)
	assert.Contains(t, s2.MirrorName, "_a.txt")

	// Both files exist side by side in staging.
	data, err := os.ReadFile(filepath.Join(m.StagingPath(), s2.MirrorName))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestRemoveStaged_RecordsDeleteHistory(t *testing.T) {
	m := newTestMirror(t)
	src := writeTemp(t, "a.txt", "x")

	s1, err := m.Stage(src, "~/x")
	require.NoError(t, err)

	src2 := writeTemp(t, "a.txt", "y")
	s2, err := m.Stage(src2, "~/x")
	require.NoError(t, err)
	require.True(t, s2.Renamed)

	require.NoError(t, m.RemoveStaged(s1))
	require.NoError(t, m.RemoveStaged(s2))

	// The renamed record counts both names so the rename slot is reclaimed.
	assert.Equal(t, 2, m.DeleteCount("a.txt"))
	assert.Equal(t, 1, m.DeleteCount(s2.MirrorName))

	_, err = os.Stat(filepath.Join(m.StagingPath(), "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveStaged_MissingFileIsNotAnError(t *testing.T) {
	m := newTestMirror(t)

	err := m.RemoveStaged(&StagedFile{MirrorName: "ghost.txt", OriginalName: "ghost.txt"})
	assert.NoError(t, err)
}

func TestLanded(t *testing.T) {
	m := newTestMirror(t)

	assert.False(t, m.Landed("x.py"))

	require.NoError(t, os.WriteFile(filepath.Join(m.LandingPath(), "x.py"), []byte("ok"), 0o644))
	assert.True(t, m.Landed("x.py"))
}

func TestWatch_SeesCreatedFiles(t *testing.T) {
	m := newTestMirror(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := m.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(m.LandingPath(), "new.bin"), []byte("z"), 0o644))

	select {
	case name := <-names:
		assert.Equal(t, "new.bin", name)
	case <-ctx.Done():
		t.Fatal("watcher did not report the created file")
	}
}
