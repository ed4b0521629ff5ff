// Package config implements TOML configuration loading, environment
// overrides, and path resolution for gdsh. Configuration follows a
// layered override chain (defaults -> config file -> environment -> CLI
// flags) where later layers always win.
package config

// Config is the top-level configuration structure parsed from gdshell.toml.
type Config struct {
	Drive    DriveConfig    `toml:"drive"`
	Mirror   MirrorConfig   `toml:"mirror"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Listing  ListingConfig  `toml:"listing"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DriveConfig identifies the cloud side: the folder serving as the virtual
// home and the API endpoint used by the gateway.
type DriveConfig struct {
	// RootFolderID is the Drive folder ID that maps to the virtual root "~".
	RootFolderID string `toml:"root_folder_id"`
	// APIBase is the Drive REST endpoint. Overridable for tests.
	APIBase string `toml:"api_base"`
	// HomeURL is the web UI base used when composing entry URLs.
	HomeURL string `toml:"home_url"`
}

// MirrorConfig describes the vendor-synced folder layout. The base directory
// is shared with the vendor agent; gdsh only writes into the staging subtree
// and observes the landing subtree.
type MirrorConfig struct {
	// Base is the local path of the vendor-synced folder.
	Base string `toml:"base"`
	// StagingDir holds outbound writes until the agent relays them.
	StagingDir string `toml:"staging_dir"`
	// LandingDir is where inbound propagation becomes observable.
	LandingDir string `toml:"landing_dir"`
	// RemoteRootDir maps to the user-facing virtual root "~".
	RemoteRootDir string `toml:"remote_root_dir"`
	// EnvDir holds virtualenv state and per-env directories.
	EnvDir string `toml:"env_dir"`
	// RemoteBase is the absolute path of the mirror on the remote host,
	// used when composing paths inside emitted scripts.
	RemoteBase string `toml:"remote_base"`
}

// TimeoutsConfig bounds the polling loops. All values are in seconds.
type TimeoutsConfig struct {
	SyncPerFileSecs int `toml:"sync_per_file_secs"`
	SyncPerDirSecs  int `toml:"sync_per_dir_secs"`
	ResultPollSecs  int `toml:"result_poll_secs"`
}

// ListingConfig controls recursive listing behavior.
type ListingConfig struct {
	MaxDepth int `toml:"max_depth"`
}

// LoggingConfig sets the baseline log level; CLI flags override it.
type LoggingConfig struct {
	Level string `toml:"level"`
}
