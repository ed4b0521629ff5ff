package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Application directory name used across all platforms.
const appName = "gdsh"

// Config file name.
const configFileName = "gdshell.toml"

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/gdsh).
// On macOS, uses ~/Library/Application Support/gdsh per Apple guidelines.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}

		return filepath.Join(home, ".config", appName)
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// DefaultDataDir returns the platform-specific directory for application
// data: the shell registry, the download cache, and captured result files.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}

		return filepath.Join(home, ".local", "share", appName)
	}
}

// ShellsPath returns the path of the shell registry JSON file.
func ShellsPath(dataDir string) string {
	return filepath.Join(dataDir, "shells.json")
}

// CacheDir returns the directory holding download cache blobs and the
// cache index database.
func CacheDir(dataDir string) string {
	return filepath.Join(dataDir, "cache")
}

// RemoteFilesDir returns the directory where captured sentinel result
// files are kept while being read. Contents are transient.
func RemoteFilesDir(dataDir string) string {
	return filepath.Join(dataDir, "remote_files")
}

// TokenPath returns the path of the saved OAuth token file.
func TokenPath(dataDir string) string {
	return filepath.Join(dataDir, "token.json")
}

// Mirror path helpers. These are the only places that compose the reserved
// subtree locations; everything else goes through them.

// StagingPath returns the local staging directory (outbound writes).
func (m *MirrorConfig) StagingPath() string {
	return filepath.Join(m.Base, m.StagingDir)
}

// LandingPath returns the local landing directory (inbound observation).
func (m *MirrorConfig) LandingPath() string {
	return filepath.Join(m.Base, m.LandingDir)
}

// RemoteRootPath returns the local directory mapping to the virtual root.
func (m *MirrorConfig) RemoteRootPath() string {
	return filepath.Join(m.Base, m.RemoteRootDir)
}

// EnvPath returns the local directory holding venv state.
func (m *MirrorConfig) EnvPath() string {
	return filepath.Join(m.Base, m.EnvDir)
}
