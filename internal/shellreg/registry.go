// Package shellreg persists the set of named shells: session records
// tracking the current virtual path, current folder ID, and venv state.
// The registry is a single JSON file mutated by whole-file
// read-modify-write with an atomic rename; concurrent gdsh processes are
// not supported.
package shellreg

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoActiveShell is returned when an operation needs an active shell
// and none exists.
var ErrNoActiveShell = errors.New("shellreg: no active shell")

// ErrShellNotFound is returned when the named shell does not exist.
var ErrShellNotFound = errors.New("shellreg: shell not found")

// shellIDLen is the hex length of a shell identifier.
const shellIDLen = 16

// VenvState is the per-shell record of the active virtual environment.
type VenvState struct {
	ActiveEnv string `json:"active_env,omitempty"`
}

// Shell is one persistent session record.
type Shell struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	CurrentPath    string    `json:"current_virtual_path"`
	CurrentFolder  string    `json:"current_folder_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Venv           VenvState `json:"venv_state"`
}

// registryFile is the on-disk shape of shells.json.
type registryFile struct {
	Shells      map[string]*Shell `json:"shells"`
	ActiveShell string            `json:"active_shell,omitempty"`
}

// Registry owns shells.json. It is exclusively owned by the gdsh process;
// every mutation rewrites the whole file.
type Registry struct {
	path   string
	logger *slog.Logger

	// nowFunc returns the current time. Tests override it so
	// last_accessed_at assertions are deterministic.
	nowFunc func() time.Time
}

// New creates a Registry backed by the given file path.
func New(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{path: path, logger: logger, nowFunc: time.Now}
}

// load reads shells.json, returning an empty registry when the file does
// not exist yet.
func (r *Registry) load() (*registryFile, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &registryFile{Shells: map[string]*Shell{}}, nil
		}

		return nil, fmt.Errorf("shellreg: reading %s: %w", r.path, err)
	}

	var rf registryFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("shellreg: parsing %s: %w", r.path, err)
	}

	if rf.Shells == nil {
		rf.Shells = map[string]*Shell{}
	}

	return &rf, nil
}

// save writes the registry atomically via a temp file rename, committing
// to disk before the next command can observe the state.
func (r *Registry) save(rf *registryFile) error {
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("shellreg: marshaling registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("shellreg: creating data dir: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("shellreg: writing registry temp file: %w", err)
	}

	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("shellreg: replacing registry: %w", err)
	}

	return nil
}

// newShellID allocates a 16-hex shell identifier from UUID bytes.
func newShellID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:shellIDLen]
}

// Create allocates a new shell positioned at the virtual root. The first
// shell created becomes active.
func (r *Registry) Create(displayName, rootFolderID string) (*Shell, error) {
	rf, err := r.load()
	if err != nil {
		return nil, err
	}

	now := r.nowFunc()
	shell := &Shell{
		ID:             newShellID(),
		DisplayName:    displayName,
		CurrentPath:    "~",
		CurrentFolder:  rootFolderID,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	rf.Shells[shell.ID] = shell

	if rf.ActiveShell == "" {
		rf.ActiveShell = shell.ID
	}

	if err := r.save(rf); err != nil {
		return nil, err
	}

	r.logger.Info("created shell",
		slog.String("shell_id", shell.ID),
		slog.String("display_name", displayName),
	)

	return shell, nil
}

// List returns all shells plus the active shell ID.
func (r *Registry) List() ([]*Shell, string, error) {
	rf, err := r.load()
	if err != nil {
		return nil, "", err
	}

	shells := make([]*Shell, 0, len(rf.Shells))
	for _, s := range rf.Shells {
		shells = append(shells, s)
	}

	return shells, rf.ActiveShell, nil
}

// Active returns the currently active shell.
func (r *Registry) Active() (*Shell, error) {
	rf, err := r.load()
	if err != nil {
		return nil, err
	}

	if rf.ActiveShell == "" {
		return nil, ErrNoActiveShell
	}

	shell, ok := rf.Shells[rf.ActiveShell]
	if !ok {
		return nil, fmt.Errorf("%w: active id %s dangling", ErrShellNotFound, rf.ActiveShell)
	}

	return shell, nil
}

// Checkout switches the active shell. The id may be a unique prefix.
func (r *Registry) Checkout(id string) (*Shell, error) {
	rf, err := r.load()
	if err != nil {
		return nil, err
	}

	shell, err := findShell(rf, id)
	if err != nil {
		return nil, err
	}

	rf.ActiveShell = shell.ID
	shell.LastAccessedAt = r.nowFunc()

	if err := r.save(rf); err != nil {
		return nil, err
	}

	return shell, nil
}

// Terminate removes a shell. Terminating the active shell leaves the
// registry with no active shell (or promotes nothing — the user picks).
func (r *Registry) Terminate(id string) error {
	rf, err := r.load()
	if err != nil {
		return err
	}

	shell, err := findShell(rf, id)
	if err != nil {
		return err
	}

	delete(rf.Shells, shell.ID)

	if rf.ActiveShell == shell.ID {
		rf.ActiveShell = ""
	}

	r.logger.Info("terminated shell", slog.String("shell_id", shell.ID))

	return r.save(rf)
}

// UpdateLocation commits a successful cd: the path and folder ID always
// change together or not at all, keeping them in agreement under the
// resolver.
func (r *Registry) UpdateLocation(id, virtualPath, folderID string) error {
	return r.mutate(id, func(s *Shell) {
		s.CurrentPath = virtualPath
		s.CurrentFolder = folderID
	})
}

// UpdateVenv records the shell's active virtual environment.
func (r *Registry) UpdateVenv(id, activeEnv string) error {
	return r.mutate(id, func(s *Shell) {
		s.Venv.ActiveEnv = activeEnv
	})
}

// Touch bumps last_accessed_at. The timestamp is monotonically
// non-decreasing: an older clock reading never overwrites a newer one.
func (r *Registry) Touch(id string) error {
	return r.mutate(id, func(*Shell) {})
}

// mutate applies fn to one shell under a whole-file read-modify-write.
func (r *Registry) mutate(id string, fn func(*Shell)) error {
	rf, err := r.load()
	if err != nil {
		return err
	}

	shell, err := findShell(rf, id)
	if err != nil {
		return err
	}

	fn(shell)

	if now := r.nowFunc(); now.After(shell.LastAccessedAt) {
		shell.LastAccessedAt = now
	}

	return r.save(rf)
}

// findShell locates a shell by exact ID or unique prefix.
func findShell(rf *registryFile, id string) (*Shell, error) {
	if shell, ok := rf.Shells[id]; ok {
		return shell, nil
	}

	var match *Shell

	for sid, s := range rf.Shells {
		if len(sid) >= len(id) && sid[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("shellreg: ambiguous shell id prefix %q", id)
			}

			match = s
		}
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrShellNotFound, id)
	}

	return match, nil
}
