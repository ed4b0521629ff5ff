package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "GDSH_CONFIG"
	EnvMirror       = "GDSH_MIRROR"
	EnvRootFolderID = "GDSH_ROOT_FOLDER_ID"
	EnvDebug        = "GDSH_DEBUG"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // GDSH_CONFIG: override config file path
	MirrorBase   string // GDSH_MIRROR: mirror base directory override
	RootFolderID string // GDSH_ROOT_FOLDER_ID: virtual root folder ID
	Debug        bool   // GDSH_DEBUG: enable debug capture
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify any Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		MirrorBase:   os.Getenv(EnvMirror),
		RootFolderID: os.Getenv(EnvRootFolderID),
		Debug:        os.Getenv(EnvDebug) != "",
	}
}
