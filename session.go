package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/cache"
	"github.com/gdshell/gdshell/internal/config"
	"github.com/gdshell/gdshell/internal/editor"
	"github.com/gdshell/gdshell/internal/gateway"
	"github.com/gdshell/gdshell/internal/listing"
	"github.com/gdshell/gdshell/internal/mirror"
	"github.com/gdshell/gdshell/internal/remote"
	"github.com/gdshell/gdshell/internal/shellreg"
	"github.com/gdshell/gdshell/internal/syncwait"
	"github.com/gdshell/gdshell/internal/upload"
	"github.com/gdshell/gdshell/internal/vpath"
)

// defaultShellName is the display name of the shell auto-created on first use.
const defaultShellName = "default"

// session wires the component graph for one command invocation. Everything
// hangs off the resolved config and the active shell record.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	gw       *gateway.Client
	registry *shellreg.Registry
	shell    *shellreg.Shell
	resolver *vpath.Resolver
	lister   *listing.Engine
	mir      *mirror.Mirror
	waiter   *syncwait.Waiter
	executor *remote.Executor
	verifier *upload.Verifier
	uploader *upload.Orchestrator
	dl       *cache.Cache
	dataDir  string

	// stagingID caches the cloud-side staging folder ID after first lookup.
	stagingID string
}

// newRegistry builds just the shell registry. Registry-only commands (pwd,
// shell management) work without saved credentials.
func newRegistry() (*shellreg.Registry, *slog.Logger) {
	logger := buildLogger()
	return shellreg.New(config.ShellsPath(config.DefaultDataDir()), logger), logger
}

// newSession builds the full component graph and loads the active shell,
// creating a default shell on first use. The returned context cancels on
// SIGINT/SIGTERM.
func newSession(cmd *cobra.Command) (*session, context.Context, error) {
	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	cfg := resolvedCfg
	dataDir := config.DefaultDataDir()

	token, err := gateway.TokenSourceFromPath(ctx, config.TokenPath(dataDir), logger)
	if err != nil {
		if errors.Is(err, gateway.ErrNotLoggedIn) {
			return nil, nil, fmt.Errorf("no saved credentials at %s", config.TokenPath(dataDir))
		}

		return nil, nil, err
	}

	gw := gateway.NewClient(cfg.Drive.APIBase, defaultHTTPClient(), token, logger)

	registry := shellreg.New(config.ShellsPath(dataDir), logger)

	shell, err := registry.Active()
	if err != nil {
		if !errors.Is(err, shellreg.ErrNoActiveShell) {
			return nil, nil, err
		}

		shell, err = registry.Create(defaultShellName, cfg.Drive.RootFolderID)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := registry.Touch(shell.ID); err != nil {
		logger.Debug("touching shell failed", slog.String("error", err.Error()))
	}

	resolver := vpath.NewResolver(gw, cfg.Drive.RootFolderID, &cfg.Mirror)
	lister := listing.NewEngine(gw, cfg.Drive.HomeURL)
	mir := mirror.New(&cfg.Mirror, logger)

	s := &session{
		cfg:      cfg,
		logger:   logger,
		gw:       gw,
		registry: registry,
		shell:    shell,
		resolver: resolver,
		lister:   lister,
		mir:      mir,
		dataDir:  dataDir,
	}

	s.waiter = syncwait.New(syncwait.ObserverFunc(s.observeSynced),
		time.Duration(cfg.Timeouts.SyncPerFileSecs)*time.Second, logger)

	// The mirror watcher delivers landing-dir hints; losing it only slows
	// the waiter down to pure polling.
	if hints, watchErr := mir.Watch(ctx); watchErr == nil {
		s.waiter.Hints = hints
	} else {
		logger.Warn("mirror watch unavailable, polling only", slog.String("error", watchErr.Error()))
	}

	store := &sentinelStore{
		localTmp: resolver.MirrorPath(vpath.Root + "/tmp"),
		keepDir:  config.RemoteFilesDir(dataDir),
		resolver: resolver,
		gw:       gw,
		logger:   logger,
	}

	s.executor = remote.NewExecutor(remote.DefaultPresenter(), store,
		time.Duration(cfg.Timeouts.ResultPollSecs)*time.Second, logger)

	s.verifier = upload.NewVerifier(lister, os.Stderr, logger)
	s.uploader = upload.NewOrchestrator(resolver, lister, mir, s.waiter, s.executor,
		s.verifier, &cfg.Mirror, os.Stderr, logger)

	dl, err := cache.Open(config.CacheDir(dataDir), gw, logger)
	if err != nil {
		return nil, nil, err
	}

	s.dl = dl

	return s, ctx, nil
}

// close releases session resources. Errors are logged, not returned: the
// command result is already decided by the time teardown runs.
func (s *session) close() {
	if err := s.dl.Close(); err != nil {
		s.logger.Warn("closing cache", slog.String("error", err.Error()))
	}
}

// cur is the resolution starting point taken from the active shell.
func (s *session) cur() vpath.Current {
	return vpath.Current{FolderID: s.shell.CurrentFolder, Display: s.shell.CurrentPath}
}

// newEnvelope wraps a command for remote execution at the shell's current
// remote directory.
func (s *session) newEnvelope(cmd string, argv []string) *remote.Envelope {
	return remote.NewEnvelope(cmd, argv,
		s.resolver.RemotePath(s.shell.CurrentPath),
		s.cfg.Mirror.RemoteBase+"/"+s.cfg.Mirror.RemoteRootDir,
		time.Now())
}

// editPipeline wires the edit flow over the session's components.
func (s *session) editPipeline() *editor.Pipeline {
	return editor.NewPipeline(s.resolver, s.dl, s.uploader, nil, s.logger)
}

// folderUploader returns an orchestrator whose waiter carries the
// per-directory sync budget: folder archives propagate slower than single
// files. The watcher hints move over; the per-file waiter sits idle for
// the rest of the command.
func (s *session) folderUploader() *upload.Orchestrator {
	w := syncwait.New(syncwait.ObserverFunc(s.observeSynced),
		time.Duration(s.cfg.Timeouts.SyncPerDirSecs)*time.Second, s.logger)
	w.Hints = s.waiter.Hints
	s.waiter.Hints = nil

	return upload.NewOrchestrator(s.resolver, s.lister, s.mir, w, s.executor,
		s.verifier, &s.cfg.Mirror, os.Stderr, s.logger)
}

// observeSynced reports whether a staged name has become visible on the
// drive side: either in the local landing directory or, once the network
// round trip is worth it, in the cloud staging folder listing.
func (s *session) observeSynced(ctx context.Context, name string) (bool, error) {
	// A landing copy of a previously deleted name may be a stale leftover;
	// only the cloud listing settles it then.
	if s.mir.Landed(name) && s.mir.DeleteCount(name) == 0 {
		return true, nil
	}

	folderID, err := s.stagingFolderID(ctx)
	if err != nil || folderID == "" {
		return false, err
	}

	files, err := s.gw.ListChildren(ctx, folderID)
	if err != nil {
		return false, err
	}

	for i := range files {
		if files[i].Name == name {
			return true, nil
		}
	}

	return false, nil
}

// stagingFolderID locates the cloud-side staging folder: a sibling of the
// virtual root under the mirror base. Cached after the first walk; an
// empty ID with nil error means the folder has not propagated yet.
func (s *session) stagingFolderID(ctx context.Context) (string, error) {
	if s.stagingID != "" {
		return s.stagingID, nil
	}

	parents, err := s.gw.Parents(ctx, s.resolver.RootID())
	if err != nil || len(parents) == 0 {
		return "", err
	}

	children, err := s.gw.ListChildren(ctx, parents[0])
	if err != nil {
		return "", err
	}

	for i := range children {
		if children[i].Name == s.cfg.Mirror.StagingDir && children[i].IsFolder() {
			s.stagingID = children[i].ID
			return s.stagingID, nil
		}
	}

	return "", nil
}

// sentinelStore fetches result files from the mirror's tmp directory,
// falling back to the cloud listing when local propagation lags. Fetched
// sentinels are kept transiently under the data dir for debugging.
type sentinelStore struct {
	localTmp string
	keepDir  string
	resolver *vpath.Resolver
	gw       *gateway.Client
	logger   *slog.Logger
}

// Fetch implements remote.SentinelStore.
func (st *sentinelStore) Fetch(ctx context.Context, filename string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(st.localTmp, filename))
	if err == nil {
		st.keep(filename, data)
		return data, true, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("reading result file %s: %w", filename, err)
	}

	// Cloud fallback: ~/tmp/<filename> through the resolver.
	res, err := st.resolver.Resolve(ctx, vpath.Root+"/tmp/"+filename, vpath.Current{})
	if err != nil {
		if errors.Is(err, vpath.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	if !res.IsFile {
		return nil, false, nil
	}

	var buf bytes.Buffer
	if _, err := st.gw.Download(ctx, res.File.ID, &buf); err != nil {
		return nil, false, err
	}

	st.keep(filename, buf.Bytes())

	return buf.Bytes(), true, nil
}

// Remove implements remote.SentinelStore. Local and cloud copies are both
// transient; either may lag the other.
func (st *sentinelStore) Remove(ctx context.Context, filename string) error {
	if err := os.Remove(filepath.Join(st.localTmp, filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing result file %s: %w", filename, err)
	}

	res, err := st.resolver.Resolve(ctx, vpath.Root+"/tmp/"+filename, vpath.Current{})
	if err != nil {
		if errors.Is(err, vpath.ErrNotFound) {
			return nil
		}

		return err
	}

	if res.IsFile {
		return st.gw.Delete(ctx, res.File.ID)
	}

	return nil
}

// keep copies a fetched sentinel under the data dir. Best effort.
func (st *sentinelStore) keep(filename string, data []byte) {
	if err := os.MkdirAll(st.keepDir, 0o755); err != nil {
		return
	}

	if err := os.WriteFile(filepath.Join(st.keepDir, filename), data, 0o644); err != nil {
		st.logger.Debug("failed to keep sentinel copy", slog.String("error", err.Error()))
	}
}

// virtualFromRemote maps an absolute remote path back to its virtual
// display form, or returns the input unchanged when it lies outside the
// virtual root.
func (s *session) virtualFromRemote(remotePath string) string {
	prefix := s.cfg.Mirror.RemoteBase + "/" + s.cfg.Mirror.RemoteRootDir
	if remotePath == prefix {
		return vpath.Root
	}

	if strings.HasPrefix(remotePath, prefix+"/") {
		return vpath.Root + "/" + strings.TrimPrefix(remotePath, prefix+"/")
	}

	return remotePath
}
