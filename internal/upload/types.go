package upload

import (
	"errors"
	"time"
)

// largeFileThreshold splits inputs into the normal staged path and the
// manual path. Files strictly larger than 1 GiB are relayed manually; a
// file of exactly 1 GiB still goes through staging.
const largeFileThreshold = 1 << 30

// moveAttempts bounds the per-file remote mv retry loop.
const moveAttempts = 60

var (
	// ErrConflict is returned when target names already exist and force
	// was not given. The message lists the conflicting names.
	ErrConflict = errors.New("upload: target names already exist, use --force to overwrite")

	// ErrIsDirectory is returned when a directory is passed to the file
	// path. Directories go through upload-folder.
	ErrIsDirectory = errors.New("upload: source is a directory, use upload-folder")

	// ErrSyncTimeout is returned when staged files never propagated. The
	// staged copies are left in place so a retry can pick them up.
	ErrSyncTimeout = errors.New("upload: sync did not complete, please retry")

	// ErrScriptFailed is returned when the remote move script reported a
	// non-zero exit and verification confirmed missing files.
	ErrScriptFailed = errors.New("upload: remote script failed")
)

// FolderMode marks a folder upload and carries its options.
type FolderMode struct {
	// KeepZip leaves the transport archive in the target after extraction.
	KeepZip bool
}

// Request describes one upload invocation.
type Request struct {
	// Sources are local paths. In folder mode, exactly one directory.
	Sources []string
	// Target is the virtual destination directory. Empty means the
	// current shell directory.
	Target string
	// Force overwrites existing target names instead of failing.
	Force bool
	// RemoveLocal unlinks the origin files after a successful upload.
	RemoveLocal bool
	// Folder is non-nil for upload-folder invocations.
	Folder *FolderMode
}

// Result is the outcome of one upload invocation.
type Result struct {
	Uploaded []string
	Failed   []string
	// SyncElapsed is the time spent waiting for the vendor agent.
	SyncElapsed time.Duration
	Elapsed     time.Duration
}
