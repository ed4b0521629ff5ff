package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.googleapis.com/drive/v3", cfg.Drive.APIBase)
	assert.Equal(t, "LOCAL_EQUIVALENT", cfg.Mirror.StagingDir)
	assert.Equal(t, "DRIVE_EQUIVALENT", cfg.Mirror.LandingDir)
	assert.Equal(t, 60, cfg.Timeouts.SyncPerFileSecs)
	assert.Equal(t, 5, cfg.Listing.MaxDepth)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gdshell.toml")

	content := `
[drive]
root_folder_id = "root-abc"

[mirror]
base = "/home/u/GoogleDrive"

[timeouts]
sync_per_file_secs = 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "root-abc", cfg.Drive.RootFolderID)
	assert.Equal(t, "/home/u/GoogleDrive", cfg.Mirror.Base)
	assert.Equal(t, 30, cfg.Timeouts.SyncPerFileSecs)
	// Untouched sections keep defaults.
	assert.Equal(t, 60, cfg.Timeouts.ResultPollSecs)
	assert.Equal(t, "REMOTE_ROOT", cfg.Mirror.RemoteRootDir)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_EnvAndCLIPrecedence(t *testing.T) {
	env := EnvOverrides{MirrorBase: "/env/mirror", RootFolderID: "env-root"}
	cli := CLIOverrides{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		MirrorBase: "/cli/mirror",
	}

	cfg, err := Resolve(env, cli)
	require.NoError(t, err)

	// CLI wins over env for the mirror; env survives where CLI is silent.
	assert.Equal(t, "/cli/mirror", cfg.Mirror.Base)
	assert.Equal(t, "env-root", cfg.Drive.RootFolderID)
}

func TestValidate_RejectsBadTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeouts.SyncPerFileSecs = 0

	assert.Error(t, Validate(cfg))

	cfg = DefaultConfig()
	cfg.Timeouts.SyncPerDirSecs = 0

	assert.Error(t, Validate(cfg))
}

func TestMirrorPaths(t *testing.T) {
	m := &MirrorConfig{
		Base:          "/mnt/gd",
		StagingDir:    "LOCAL_EQUIVALENT",
		LandingDir:    "DRIVE_EQUIVALENT",
		RemoteRootDir: "REMOTE_ROOT",
		EnvDir:        "REMOTE_ENV",
	}

	assert.Equal(t, "/mnt/gd/LOCAL_EQUIVALENT", m.StagingPath())
	assert.Equal(t, "/mnt/gd/DRIVE_EQUIVALENT", m.LandingPath())
	assert.Equal(t, "/mnt/gd/REMOTE_ROOT", m.RemoteRootPath())
	assert.Equal(t, "/mnt/gd/REMOTE_ENV", m.EnvPath())
}
