package venvstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gdshell/gdshell/internal/config"
	"github.com/gdshell/gdshell/internal/gateway"
	"github.com/gdshell/gdshell/internal/remote"
)

var (
	// ErrNoSuchEnv is returned when an operation names an environment the
	// document does not hold.
	ErrNoSuchEnv = errors.New("venvstate: no such environment")

	// ErrEnvExists is returned when creating an environment that is
	// already present.
	ErrEnvExists = errors.New("venvstate: environment already exists")

	// ErrVerification is returned when a mutation's effect never became
	// observable through the gateway within the poll budget.
	ErrVerification = errors.New("venvstate: mutation not observable after remote script")

	// errStale drives the verification poll.
	errStale = errors.New("venvstate: state not yet propagated")
)

// Gateway is the API slice used for reads and verification.
type Gateway interface {
	ListChildren(ctx context.Context, folderID string) ([]gateway.File, error)
	Parents(ctx context.Context, fileID string) ([]string, error)
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

// Runner executes mutation envelopes through the remote dialog.
type Runner interface {
	Run(ctx context.Context, env *remote.Envelope) (*remote.Result, error)
}

// Store reads and mutates the venv state document.
type Store struct {
	gw           Gateway
	runner       Runner
	rootFolderID string
	mirrorCfg    *config.MirrorConfig
	logger       *slog.Logger

	// Interval between verification polls and Budget bounding them.
	// Tests shorten both.
	Interval time.Duration
	Budget   time.Duration

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewStore creates a venv state store. rootFolderID backs the virtual
// root; the state file lives in the environment subtree beside it.
func NewStore(gw Gateway, runner Runner, rootFolderID string, mirrorCfg *config.MirrorConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		gw:           gw,
		runner:       runner,
		rootFolderID: rootFolderID,
		mirrorCfg:    mirrorCfg,
		logger:       logger,
		Interval:     time.Second,
		Budget:       60 * time.Second,
		nowFunc:      time.Now,
	}
}

// remoteVenvDir is the directory holding the state file and the per-env
// directories on the remote host.
func (s *Store) remoteVenvDir() string {
	return s.mirrorCfg.RemoteBase + "/" + s.mirrorCfg.EnvDir + "/venv"
}

// remoteStatePath is the state file's remote location.
func (s *Store) remoteStatePath() string {
	return s.remoteVenvDir() + "/" + StateFileName
}

// envPath is the remote directory of a named environment.
func (s *Store) envPath(env string) string {
	return s.remoteVenvDir() + "/" + env
}

// locate walks from the root folder's parent to the state file via the
// gateway alone: <mirror base>/<env dir>/venv/venv_states.json. A nil
// file with nil error means the document does not exist yet.
func (s *Store) locate(ctx context.Context) (*gateway.File, error) {
	parents, err := s.gw.Parents(ctx, s.rootFolderID)
	if err != nil {
		return nil, fmt.Errorf("venvstate: locating mirror base: %w", err)
	}

	if len(parents) == 0 {
		return nil, fmt.Errorf("venvstate: virtual root has no parent folder")
	}

	envFolder, err := s.childFolder(ctx, parents[0], s.mirrorCfg.EnvDir)
	if err != nil || envFolder == nil {
		return nil, err
	}

	venvFolder, err := s.childFolder(ctx, envFolder.ID, "venv")
	if err != nil || venvFolder == nil {
		return nil, err
	}

	children, err := s.gw.ListChildren(ctx, venvFolder.ID)
	if err != nil {
		return nil, fmt.Errorf("venvstate: listing venv folder: %w", err)
	}

	for i := range children {
		if children[i].Name == StateFileName && !children[i].IsFolder() {
			return &children[i], nil
		}
	}

	return nil, nil
}

// childFolder finds a named sub-folder, or nil when absent.
func (s *Store) childFolder(ctx context.Context, folderID, name string) (*gateway.File, error) {
	children, err := s.gw.ListChildren(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("venvstate: listing for %s: %w", name, err)
	}

	for i := range children {
		if children[i].Name == name && children[i].IsFolder() {
			return &children[i], nil
		}
	}

	return nil, nil
}

// Read fetches and parses the current document through the gateway.
// A missing state file yields an empty document.
func (s *Store) Read(ctx context.Context) (*Document, error) {
	file, err := s.locate(ctx)
	if err != nil {
		return nil, err
	}

	if file == nil {
		return &Document{
			Shells:       map[string]*ShellState{},
			Environments: map[string]*Environment{},
		}, nil
	}

	var buf bytes.Buffer

	if _, err := s.gw.Download(ctx, file.ID, &buf); err != nil {
		return nil, fmt.Errorf("venvstate: downloading state: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(buf.Bytes(), doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Current returns a shell's activation record via the gateway alone.
// It never opens a remote dialog.
func (s *Store) Current(ctx context.Context, shellID string) (*ShellState, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}

	return doc.Shell(shellID), nil
}

// Activate points a shell at an existing environment.
func (s *Store) Activate(ctx context.Context, shellID, env string) error {
	doc, err := s.Read(ctx)
	if err != nil {
		return err
	}

	if _, ok := doc.Environments[env]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEnv, env)
	}

	now := s.nowFunc().UTC().Format(time.RFC3339)

	program := s.mutationProgram(fmt.Sprintf(
		`state = doc.setdefault(%s, {})
state["active_env"] = %s
state["env_path"] = %s
state["activated_at"] = %s`,
		pyStr(shellID), pyStr(env), pyStr(s.envPath(env)), pyStr(now),
	))

	return s.mutate(ctx, "venv-activate", program, func(d *Document) bool {
		return d.Shell(shellID).ActiveEnv == env
	})
}

// Deactivate clears a shell's activation record.
func (s *Store) Deactivate(ctx context.Context, shellID string) error {
	program := s.mutationProgram(fmt.Sprintf(`doc.pop(%s, None)`, pyStr(shellID)))

	return s.mutate(ctx, "venv-deactivate", program, func(d *Document) bool {
		return d.Shell(shellID).ActiveEnv == ""
	})
}

// Create registers a new environment and makes its remote directory.
func (s *Store) Create(ctx context.Context, env string) error {
	doc, err := s.Read(ctx)
	if err != nil {
		return err
	}

	if _, ok := doc.Environments[env]; ok {
		return fmt.Errorf("%w: %s", ErrEnvExists, env)
	}

	now := s.nowFunc().UTC().Format(time.RFC3339)

	program := s.mutationProgram(fmt.Sprintf(
		`envs = doc.setdefault("environments", {})
envs.setdefault(%s, {"created_at": %s, "last_updated": %s, "packages": {}})
os.makedirs(%s, exist_ok=True)`,
		pyStr(env), pyStr(now), pyStr(now), pyStr(s.envPath(env)),
	))

	return s.mutate(ctx, "venv-create", program, func(d *Document) bool {
		_, ok := d.Environments[env]
		return ok
	})
}

// Delete removes an environment and every shell activation pointing at it.
func (s *Store) Delete(ctx context.Context, env string) error {
	doc, err := s.Read(ctx)
	if err != nil {
		return err
	}

	if _, ok := doc.Environments[env]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEnv, env)
	}

	program := s.mutationProgram(fmt.Sprintf(
		`doc.get("environments", {}).pop(%s, None)
for key in [k for k, v in doc.items() if k != "environments" and v.get("active_env") == %s]:
    doc.pop(key)`,
		pyStr(env), pyStr(env),
	))

	return s.mutate(ctx, "venv-delete", program, func(d *Document) bool {
		_, ok := d.Environments[env]
		return !ok
	})
}

// UpdatePackages merges a package manifest into an environment.
func (s *Store) UpdatePackages(ctx context.Context, env string, packages map[string]string) error {
	doc, err := s.Read(ctx)
	if err != nil {
		return err
	}

	if _, ok := doc.Environments[env]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEnv, env)
	}

	manifest, err := json.Marshal(packages)
	if err != nil {
		return fmt.Errorf("venvstate: encoding manifest: %w", err)
	}

	now := s.nowFunc().UTC().Format(time.RFC3339)

	program := s.mutationProgram(fmt.Sprintf(
		`entry = doc.setdefault("environments", {}).setdefault(%s, {"created_at": %s, "packages": {}})
entry.setdefault("packages", {}).update(json.loads(%s))
entry["last_updated"] = %s`,
		pyStr(env), pyStr(now), pyStr(string(manifest)), pyStr(now),
	))

	return s.mutate(ctx, "venv-update-packages", program, func(d *Document) bool {
		entry, ok := d.Environments[env]
		if !ok {
			return false
		}

		for name, version := range packages {
			if entry.Packages[name] != version {
				return false
			}
		}

		return true
	})
}

// mutationProgram wraps a mutation body in the load/modify/atomic-replace
// frame. The remote script owns the file; readers only ever observe a
// complete document.
func (s *Store) mutationProgram(body string) string {
	return fmt.Sprintf(`import json, os
path = %s
os.makedirs(os.path.dirname(path), exist_ok=True)
try:
    with open(path) as f:
        doc = json.load(f)
except (OSError, ValueError):
    doc = {}
%s
tmp = path + ".tmp"
with open(tmp, "w") as f:
    json.dump(doc, f, indent=2)
os.replace(tmp, path)`, pyStr(s.remoteStatePath()), body)
}

// mutate runs the script through the remote executor and polls the
// gateway until verify passes or the budget runs out.
func (s *Store) mutate(ctx context.Context, op, program string, verify func(*Document) bool) error {
	env := remote.NewEnvelope("python3", []string{"-c", program},
		s.mirrorCfg.RemoteBase, s.mirrorCfg.RemoteBase+"/"+s.mirrorCfg.RemoteRootDir, s.nowFunc())

	result, err := s.runner.Run(ctx, env)
	if err != nil {
		return fmt.Errorf("venvstate: %s: %w", op, err)
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("venvstate: %s exited %d: %s", op, result.ExitCode, result.Stderr)
	}

	s.logger.Debug("venv mutation executed", slog.String("op", op))

	pollCtx, cancel := context.WithTimeout(ctx, s.Budget)
	defer cancel()

	err = retry.Do(pollCtx, retry.NewConstant(s.Interval), func(ctx context.Context) error {
		doc, readErr := s.Read(ctx)
		if readErr != nil {
			return retry.RetryableError(readErr)
		}

		if !verify(doc) {
			return retry.RetryableError(errStale)
		}

		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("venvstate: canceled verifying %s: %w", op, ctx.Err())
		}

		return fmt.Errorf("%w: %s", ErrVerification, op)
	}

	return nil
}

// pyStr renders a Go string as a python string literal. JSON string
// syntax is a subset of python's.
func pyStr(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
