// Package mirror manages the reserved subtrees of the vendor-synced
// folder: the staging area for outbound writes and the landing area where
// inbound propagation becomes observable. The vendor agent owns everything
// else under the mirror base; gdsh never writes outside its subtrees.
package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gdshell/gdshell/internal/config"
)

// hashPrefixLen is the number of hash characters prepended when a staging
// name collision forces a rename.
const hashPrefixLen = 8

// StagedFile records one file placed into the staging area.
type StagedFile struct {
	// OriginPath is the local source the file was copied from.
	OriginPath string
	// MirrorName is the name inside the staging area. Differs from
	// OriginalName only when a collision forced a rename.
	MirrorName string
	// OriginalName is the file's intended name at the target.
	OriginalName string
	// TargetPath is the canonical virtual path of the destination folder.
	TargetPath string
	// Renamed reports whether MirrorName carries a collision prefix.
	Renamed bool
}

// Mirror exposes the staging and landing primitives over the vendor-synced
// folder.
type Mirror struct {
	cfg    *config.MirrorConfig
	logger *slog.Logger

	// deleteHistory counts recent deletions per name (both original and
	// mirror names) so rename slots can be reclaimed and stale cache
	// entries invalidated.
	mu            sync.Mutex
	deleteHistory map[string]int
}

// New creates a Mirror over the configured vendor-synced folder.
func New(cfg *config.MirrorConfig, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}

	return &Mirror{cfg: cfg, logger: logger, deleteHistory: map[string]int{}}
}

// StagingPath returns the local staging directory.
func (m *Mirror) StagingPath() string {
	return m.cfg.StagingPath()
}

// LandingPath returns the local landing directory.
func (m *Mirror) LandingPath() string {
	return m.cfg.LandingPath()
}

// Stage copies a local file into the staging area for the vendor agent to
// pick up. If the plain name is already staged by another in-flight
// upload, the copy gets a content-hash prefix and the record notes the
// rename so the remote script can restore the original name.
func (m *Mirror) Stage(sourcePath, targetPath string) (*StagedFile, error) {
	if err := os.MkdirAll(m.StagingPath(), 0o755); err != nil {
		return nil, fmt.Errorf("mirror: creating staging dir: %w", err)
	}

	name := filepath.Base(sourcePath)
	mirrorName := name
	renamed := false

	if _, err := os.Stat(filepath.Join(m.StagingPath(), name)); err == nil {
		prefix, hashErr := contentHashPrefix(sourcePath)
		if hashErr != nil {
			return nil, hashErr
		}

		mirrorName = prefix + "_" + name
		renamed = true

		m.logger.Info("staging name collision, renamed",
			slog.String("original", name),
			slog.String("mirror_name", mirrorName),
		)
	}

	dest := filepath.Join(m.StagingPath(), mirrorName)
	if err := copyFile(sourcePath, dest); err != nil {
		return nil, fmt.Errorf("mirror: staging %s: %w", sourcePath, err)
	}

	m.logger.Debug("staged file",
		slog.String("source", sourcePath),
		slog.String("mirror_name", mirrorName),
	)

	return &StagedFile{
		OriginPath:   sourcePath,
		MirrorName:   mirrorName,
		OriginalName: name,
		TargetPath:   targetPath,
		Renamed:      renamed,
	}, nil
}

// RemoveStaged deletes a staged file after successful verification and
// records both names in the delete history.
func (m *Mirror) RemoveStaged(staged *StagedFile) error {
	path := filepath.Join(m.StagingPath(), staged.MirrorName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mirror: removing staged %s: %w", staged.MirrorName, err)
	}

	m.RecordDelete(staged.MirrorName)

	if staged.Renamed {
		m.RecordDelete(staged.OriginalName)
	}

	return nil
}

// RecordDelete bumps the delete-history count for a name.
func (m *Mirror) RecordDelete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteHistory[name]++
}

// DeleteCount returns how many times a name has been deleted this session.
func (m *Mirror) DeleteCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteHistory[name]
}

// Landed reports whether a name has appeared in the landing area.
func (m *Mirror) Landed(name string) bool {
	_, err := os.Stat(filepath.Join(m.LandingPath(), name))
	return err == nil
}

// contentHashPrefix returns the first characters of the file's SHA-256.
func contentHashPrefix(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("mirror: opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("mirror: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil))[:hashPrefixLen], nil
}

// copyFile copies src to dst, syncing before close so the vendor agent
// never observes a half-written file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
