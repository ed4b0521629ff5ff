package config

// Default values applied before the config file is read.
const (
	defaultAPIBase       = "https://www.googleapis.com/drive/v3"
	defaultHomeURL       = "https://drive.google.com"
	defaultStagingDir    = "LOCAL_EQUIVALENT"
	defaultLandingDir    = "DRIVE_EQUIVALENT"
	defaultRemoteRootDir = "REMOTE_ROOT"
	defaultEnvDir        = "REMOTE_ENV"
	defaultSyncPerFile   = 60
	defaultSyncPerDir    = 60
	defaultResultPoll    = 60
	defaultListMaxDepth  = 5
	defaultLogLevel      = "info"
)

// DefaultConfig returns a Config populated with all default values.
// The mirror base and root folder ID have no sensible defaults and must
// come from the config file, environment, or flags.
func DefaultConfig() *Config {
	return &Config{
		Drive: DriveConfig{
			APIBase: defaultAPIBase,
			HomeURL: defaultHomeURL,
		},
		Mirror: MirrorConfig{
			StagingDir:    defaultStagingDir,
			LandingDir:    defaultLandingDir,
			RemoteRootDir: defaultRemoteRootDir,
			EnvDir:        defaultEnvDir,
		},
		Timeouts: TimeoutsConfig{
			SyncPerFileSecs: defaultSyncPerFile,
			SyncPerDirSecs:  defaultSyncPerDir,
			ResultPollSecs:  defaultResultPoll,
		},
		Listing: ListingConfig{
			MaxDepth: defaultListMaxDepth,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}
