package upload

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdshell/gdshell/internal/remote"
	"github.com/gdshell/gdshell/internal/syncwait"
	"github.com/gdshell/gdshell/internal/vpath"
)

// runFolder uploads a directory as a zip and extracts it server-side.
// Verification is skipped: post-extraction names are not predictable from
// the inputs, so the script's success signal is trusted.
func (o *Orchestrator) runFolder(ctx context.Context, req *Request, target *vpath.Resolution, start time.Time) (*Result, error) {
	if len(req.Sources) != 1 {
		return nil, fmt.Errorf("upload: folder mode takes exactly one directory")
	}

	src := req.Sources[0]

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("upload: reading source: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("upload: %s is not a directory", src)
	}

	folderName := filepath.Base(filepath.Clean(src))

	if err := o.checkConflicts(ctx, target, []string{folderName}, req.Force); err != nil {
		return nil, err
	}

	zipPath, err := zipFolder(src, folderName)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(filepath.Dir(zipPath))

	zipInfo, err := os.Stat(zipPath)
	if err != nil {
		return nil, fmt.Errorf("upload: reading archive: %w", err)
	}

	staged, err := o.stager.Stage(zipPath, target.Display)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	fmt.Fprintf(o.progress, "⏳ Waiting for sync of %s ...\n", staged.MirrorName)

	report, err := o.waiter.Wait(ctx, []string{staged.MirrorName}, zipInfo.Size())
	if report != nil {
		result.SyncElapsed = report.Elapsed
	}

	if err != nil {
		if errors.Is(err, syncwait.ErrTimeout) {
			result.Failed = []string{folderName}
			return result, fmt.Errorf("%w: missing %s", ErrSyncTimeout, staged.MirrorName)
		}

		return result, err
	}

	env := o.newEnvelope(o.extractScriptBody(staged.MirrorName, staged.OriginalName, target, req.Folder.KeepZip))

	res, err := o.runner.Run(ctx, env)
	if err != nil {
		return result, fmt.Errorf("upload: executing extract script: %w", err)
	}

	if res.ExitCode != 0 {
		// A failed extraction keeps the staged archive for a retry.
		result.Failed = []string{folderName}
		return result, fmt.Errorf("%w: extraction exited %d: %s", ErrScriptFailed, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	if err := o.stager.RemoveStaged(staged); err != nil {
		o.logger.Warn("staging cleanup failed",
			slog.String("mirror_name", staged.MirrorName),
			slog.String("error", err.Error()),
		)
	}

	result.Uploaded = []string{folderName}
	result.Elapsed = o.nowFunc().Sub(start)

	return result, nil
}

// extractScriptBody renders the bash body that moves the staged archive
// into the target and unpacks it there.
func (o *Orchestrator) extractScriptBody(mirrorName, zipName string, target *vpath.Resolution, keepZip bool) string {
	remoteTarget := o.resolver.RemotePath(target.Display)
	stagingRemote := o.mirrorCfg.RemoteBase + "/" + o.mirrorCfg.StagingDir

	src := stagingRemote + "/" + mirrorName
	dst := remoteTarget + "/" + zipName

	var b strings.Builder

	fmt.Fprintf(&b, "mkdir -p %s || exit 1\n", remote.Quote(remoteTarget))
	b.WriteString("moved=0\n")
	fmt.Fprintf(&b, "for i in $(seq 1 %d); do\n", moveAttempts)
	fmt.Fprintf(&b, "  if mv %s %s 2>/dev/null; then printf '√'; moved=1; break; fi\n",
		remote.Quote(src), remote.Quote(dst))
	b.WriteString("  printf '.'\n")
	b.WriteString("  sleep 1\n")
	b.WriteString("done\n")
	b.WriteString("echo\n")
	b.WriteString("if [ \"$moved\" -ne 1 ]; then exit 1; fi\n")
	fmt.Fprintf(&b, "cd %s || exit 1\n", remote.Quote(remoteTarget))
	fmt.Fprintf(&b, "unzip -o %s || exit 1\n", remote.Quote(zipName))

	if !keepZip {
		fmt.Fprintf(&b, "rm -f %s\n", remote.Quote(zipName))
	}

	b.WriteString("exit 0")

	return b.String()
}

// zipFolder archives srcDir into a temp file with every entry rooted at
// rootName, so extraction in the target recreates the folder itself.
func zipFolder(srcDir, rootName string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "gdsh-zip-")
	if err != nil {
		return "", fmt.Errorf("upload: creating archive dir: %w", err)
	}

	zipPath := filepath.Join(tmpDir, rootName+".zip")

	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("upload: creating archive: %w", err)
	}

	zw := zip.NewWriter(f)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			return relErr
		}

		w, createErr := zw.Create(rootName + "/" + filepath.ToSlash(rel))
		if createErr != nil {
			return createErr
		}

		in, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer in.Close()

		_, copyErr := io.Copy(w, in)

		return copyErr
	})
	if err != nil {
		zw.Close()
		f.Close()

		return "", fmt.Errorf("upload: archiving %s: %w", srcDir, err)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("upload: finalising archive: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("upload: closing archive: %w", err)
	}

	return zipPath, nil
}
