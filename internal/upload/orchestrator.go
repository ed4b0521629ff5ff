// Package upload drives the write path end to end: stage into the
// vendor-synced folder, wait for propagation, emit the server-side move
// script, verify placement by listing, and clean the staging area. The
// orchestrator is sequential per invocation; the only parallel actor is
// the vendor sync agent operating out-of-band.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdshell/gdshell/internal/config"
	"github.com/gdshell/gdshell/internal/listing"
	"github.com/gdshell/gdshell/internal/mirror"
	"github.com/gdshell/gdshell/internal/remote"
	"github.com/gdshell/gdshell/internal/syncwait"
	"github.com/gdshell/gdshell/internal/vpath"
)

// Resolver maps virtual paths to folder IDs and remote disk paths.
type Resolver interface {
	Resolve(ctx context.Context, input string, cur vpath.Current) (*vpath.Resolution, error)
	RemotePath(display string) string
}

// Lister lists a folder for conflict checks and verification.
type Lister interface {
	List(ctx context.Context, folderID string) ([]listing.Entry, error)
}

// Stager is the staging slice of the mirror.
type Stager interface {
	Stage(sourcePath, targetPath string) (*mirror.StagedFile, error)
	RemoveStaged(staged *mirror.StagedFile) error
	RecordDelete(name string)
}

// Syncer blocks until staged names propagate.
type Syncer interface {
	Wait(ctx context.Context, names []string, totalSize int64) (*syncwait.Report, error)
}

// Runner executes envelopes through the remote dialog.
type Runner interface {
	Run(ctx context.Context, env *remote.Envelope) (*remote.Result, error)
}

// Orchestrator owns the upload state machine.
type Orchestrator struct {
	resolver  Resolver
	lister    Lister
	stager    Stager
	waiter    Syncer
	runner    Runner
	verifier  *Verifier
	mirrorCfg *config.MirrorConfig
	progress  io.Writer
	logger    *slog.Logger

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewOrchestrator wires the upload pipeline. progress receives the
// user-facing tick stream; pass io.Discard to silence it.
func NewOrchestrator(resolver Resolver, lister Lister, stager Stager, waiter Syncer, runner Runner, verifier *Verifier, mirrorCfg *config.MirrorConfig, progress io.Writer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	if progress == nil {
		progress = io.Discard
	}

	return &Orchestrator{
		resolver:  resolver,
		lister:    lister,
		stager:    stager,
		waiter:    waiter,
		runner:    runner,
		verifier:  verifier,
		mirrorCfg: mirrorCfg,
		progress:  progress,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Run executes one upload invocation against the active shell position.
func (o *Orchestrator) Run(ctx context.Context, req *Request, cur vpath.Current) (*Result, error) {
	start := o.nowFunc()

	target, err := o.resolveTarget(ctx, req.Target, cur)
	if err != nil {
		return nil, err
	}

	if req.Folder != nil {
		return o.runFolder(ctx, req, target, start)
	}

	normals, larges, err := splitBySize(req.Sources, req.Folder != nil)
	if err != nil {
		return nil, err
	}

	if err := o.checkConflicts(ctx, target, originalNames(append(normals, larges...)), req.Force); err != nil {
		return nil, err
	}

	result := &Result{}

	if len(normals) > 0 {
		if err := o.runNormalPath(ctx, normals, target, result); err != nil {
			return result, err
		}
	}

	if len(larges) > 0 {
		o.runManualPath(ctx, larges, target, result)
	}

	if req.RemoveLocal {
		o.removeOrigins(result.Uploaded, req.Sources)
	}

	result.Elapsed = o.nowFunc().Sub(start)

	o.logger.Info("upload finished",
		slog.Int("uploaded", len(result.Uploaded)),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}

// runNormalPath stages, waits, moves, verifies, and cleans the regular
// size class.
func (o *Orchestrator) runNormalPath(ctx context.Context, sources []string, target *vpath.Resolution, result *Result) error {
	staged, totalSize, err := o.stageAll(sources, target.Display)
	if err != nil {
		return err
	}

	names := make([]string, len(staged))
	for i, s := range staged {
		names[i] = s.MirrorName
	}

	fmt.Fprintf(o.progress, "⏳ Waiting for sync of %s ...\n", strings.Join(names, ", "))

	report, err := o.waiter.Wait(ctx, names, totalSize)
	if report != nil {
		result.SyncElapsed += report.Elapsed
	}

	if err != nil {
		if errors.Is(err, syncwait.ErrTimeout) {
			result.Failed = append(result.Failed, originalNames(sources)...)
			return fmt.Errorf("%w: missing %s", ErrSyncTimeout, strings.Join(report.Missing, ", "))
		}

		return err
	}

	env := o.newEnvelope(o.moveScriptBody(staged, target))
	if _, err := o.runner.Run(ctx, env); err != nil {
		return fmt.Errorf("upload: executing move script: %w", err)
	}

	// The script's own exit status is advisory; placement is confirmed by
	// listing the target.
	verification := o.verifier.Verify(ctx, target.FolderID, target.Display, originalNames(sources))

	result.Uploaded = append(result.Uploaded, verification.Found...)
	result.Failed = append(result.Failed, verification.Missing...)

	// An unverified name keeps its staged copy; only confirmed placements
	// release their staging slot.
	found := make(map[string]bool, len(verification.Found))
	for _, name := range verification.Found {
		found[name] = true
	}

	for _, s := range staged {
		if !found[s.OriginalName] {
			continue
		}

		if err := o.stager.RemoveStaged(s); err != nil {
			o.logger.Warn("staging cleanup failed",
				slog.String("mirror_name", s.MirrorName),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(verification.Missing) > 0 {
		return fmt.Errorf("%w: missing %s in %s", ErrScriptFailed,
			strings.Join(verification.Missing, ", "), target.Display)
	}

	return nil
}

// runManualPath handles files above the size threshold: the user uploads
// them through the provider UI and the waiter watches for the names. The
// manual class never blocks the normal class, which has already finished.
func (o *Orchestrator) runManualPath(ctx context.Context, sources []string, target *vpath.Resolution, result *Result) {
	names := originalNames(sources)

	fmt.Fprintf(o.progress, "The following files exceed 1 GiB and must be uploaded manually to %s via the Drive web UI:\n", target.Display)

	for _, name := range names {
		fmt.Fprintf(o.progress, "  %s\n", name)
	}

	fmt.Fprintf(o.progress, "⏳ Waiting for %s to appear ...\n", strings.Join(names, ", "))

	report, err := o.waiter.Wait(ctx, names, 0)
	if report != nil {
		result.SyncElapsed += report.Elapsed
	}

	if err != nil {
		result.Failed = append(result.Failed, names...)
		o.logger.Warn("manual upload not observed", slog.Any("missing", names))

		return
	}

	verification := o.verifier.Verify(ctx, target.FolderID, target.Display, names)
	result.Uploaded = append(result.Uploaded, verification.Found...)
	result.Failed = append(result.Failed, verification.Missing...)
}

// resolveTarget resolves the destination directory, defaulting to the
// current shell position.
func (o *Orchestrator) resolveTarget(ctx context.Context, target string, cur vpath.Current) (*vpath.Resolution, error) {
	if target == "" {
		target = "."
	}

	res, err := o.resolver.Resolve(ctx, target, cur)
	if err != nil {
		return nil, fmt.Errorf("upload: resolving target: %w", err)
	}

	if res.IsFile {
		return nil, fmt.Errorf("upload: target %s is a file, not a directory", res.Display)
	}

	return res, nil
}

// checkConflicts lists the target once and fails (or warns under force)
// on name collisions.
func (o *Orchestrator) checkConflicts(ctx context.Context, target *vpath.Resolution, names []string, force bool) error {
	entries, err := o.lister.List(ctx, target.FolderID)
	if err != nil {
		return fmt.Errorf("upload: listing target %s: %w", target.Display, err)
	}

	existing := make(map[string]bool, len(entries))
	for i := range entries {
		existing[entries[i].Name] = true
	}

	var conflicts []string

	for _, name := range names {
		if existing[name] {
			conflicts = append(conflicts, name)
		}
	}

	if len(conflicts) == 0 {
		return nil
	}

	if !force {
		return fmt.Errorf("%w: %s", ErrConflict, strings.Join(conflicts, ", "))
	}

	fmt.Fprintf(o.progress, "Overriding %s in %s\n", strings.Join(conflicts, ", "), target.Display)

	return nil
}

// stageAll copies every source into the staging area and sums their sizes
// for the sync budget.
func (o *Orchestrator) stageAll(sources []string, targetDisplay string) ([]*mirror.StagedFile, int64, error) {
	staged := make([]*mirror.StagedFile, 0, len(sources))

	var totalSize int64

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, 0, fmt.Errorf("upload: reading source: %w", err)
		}

		s, err := o.stager.Stage(src, targetDisplay)
		if err != nil {
			return nil, 0, err
		}

		staged = append(staged, s)
		totalSize += info.Size()
	}

	return staged, totalSize, nil
}

// moveScriptBody renders the bash body that moves staged files from the
// drive-side mirror into the target, retrying each mv while the agent
// catches up. The destination always carries the original name, undoing
// any collision rename from staging.
func (o *Orchestrator) moveScriptBody(staged []*mirror.StagedFile, target *vpath.Resolution) string {
	remoteTarget := o.resolver.RemotePath(target.Display)
	stagingRemote := o.mirrorCfg.RemoteBase + "/" + o.mirrorCfg.StagingDir

	var b strings.Builder

	fmt.Fprintf(&b, "mkdir -p %s || exit 1\n", remote.Quote(remoteTarget))
	b.WriteString("failed=0\n")

	for _, s := range staged {
		src := stagingRemote + "/" + s.MirrorName
		dst := remoteTarget + "/" + s.OriginalName

		fmt.Fprintf(&b, "moved=0\n")
		fmt.Fprintf(&b, "for i in $(seq 1 %d); do\n", moveAttempts)
		fmt.Fprintf(&b, "  if mv %s %s 2>/dev/null; then printf '√'; moved=1; break; fi\n",
			remote.Quote(src), remote.Quote(dst))
		b.WriteString("  printf '.'\n")
		b.WriteString("  sleep 1\n")
		b.WriteString("done\n")
		b.WriteString("if [ \"$moved\" -ne 1 ]; then printf '✗'; failed=$((failed+1)); fi\n")
	}

	b.WriteString("echo\n")
	b.WriteString("exit $failed")

	return b.String()
}

// newEnvelope wraps a script body for the remote executor. The body runs
// under bash -c so the sentinel capture applies to the whole batch.
func (o *Orchestrator) newEnvelope(body string) *remote.Envelope {
	remoteRoot := o.resolver.RemotePath(vpath.Root)

	return remote.NewEnvelope("bash", []string{"-c", body}, remoteRoot, remoteRoot, o.nowFunc())
}

// removeOrigins unlinks origin files whose names were verified uploaded.
func (o *Orchestrator) removeOrigins(uploaded, sources []string) {
	ok := make(map[string]bool, len(uploaded))
	for _, name := range uploaded {
		ok[name] = true
	}

	for _, src := range sources {
		if !ok[filepath.Base(src)] {
			continue
		}

		if err := os.Remove(src); err != nil {
			o.logger.Warn("failed to remove origin file",
				slog.String("path", src),
				slog.String("error", err.Error()),
			)
		}
	}
}

// splitBySize partitions sources into the staged and manual classes and
// rejects directories on the file path.
func splitBySize(sources []string, folderMode bool) (normals, larges []string, err error) {
	for _, src := range sources {
		info, statErr := os.Stat(src)
		if statErr != nil {
			return nil, nil, fmt.Errorf("upload: reading source: %w", statErr)
		}

		if info.IsDir() && !folderMode {
			return nil, nil, fmt.Errorf("%w: %s", ErrIsDirectory, src)
		}

		if info.Size() > largeFileThreshold {
			larges = append(larges, src)
		} else {
			normals = append(normals, src)
		}
	}

	return normals, larges, nil
}

// originalNames maps source paths to their base names, preserving order.
func originalNames(sources []string) []string {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = filepath.Base(src)
	}

	return names
}
