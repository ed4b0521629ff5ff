package editor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/gdshell/gdshell/internal/gateway"
	"github.com/gdshell/gdshell/internal/upload"
	"github.com/gdshell/gdshell/internal/vpath"
)

// diffContextLines is the unified diff context around changed regions.
const diffContextLines = 3

// Resolver locates the file being edited.
type Resolver interface {
	Resolve(ctx context.Context, input string, cur vpath.Current) (*vpath.Resolution, error)
}

// Getter pulls the current content through the download cache.
type Getter interface {
	Get(ctx context.Context, path string, file *gateway.File) ([]byte, error)
}

// Uploader re-uploads the modified batch.
type Uploader interface {
	Run(ctx context.Context, req *upload.Request, cur vpath.Current) (*upload.Result, error)
}

// Linter reviews the modified content. Findings are attached to the edit
// result and never fail the edit.
type Linter interface {
	Lint(ctx context.Context, name string, content []byte) []string
}

// NopLinter reports no findings.
type NopLinter struct{}

// Lint implements Linter.
func (NopLinter) Lint(_ context.Context, _ string, _ []byte) []string { return nil }

// Options control one edit invocation.
type Options struct {
	// Preview returns the diff without uploading.
	Preview bool
	// Backup uploads a timestamped copy of the original alongside the
	// modified file.
	Backup bool
}

// Result is the outcome of one edit.
type Result struct {
	Diff       string
	BackupName string
	Findings   []string
	Uploaded   []string
	Failed     []string
}

// Pipeline owns the edit flow: download, transform, diff, re-upload.
type Pipeline struct {
	resolver Resolver
	getter   Getter
	uploader Uploader
	linter   Linter
	logger   *slog.Logger

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewPipeline wires the edit pipeline.
func NewPipeline(resolver Resolver, getter Getter, uploader Uploader, linter Linter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	if linter == nil {
		linter = NopLinter{}
	}

	return &Pipeline{
		resolver: resolver,
		getter:   getter,
		uploader: uploader,
		linter:   linter,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Edit applies a replacement spec to the named file. Preview mode stops
// after the diff; otherwise the modified file (and optional backup) is
// uploaded with force, since the destination name exists by definition.
func (p *Pipeline) Edit(ctx context.Context, name, rawSpec string, opts Options, cur vpath.Current) (*Result, error) {
	spec, err := ParseSpec(rawSpec)
	if err != nil {
		return nil, err
	}

	if spec.Empty() {
		return nil, fmt.Errorf("editor: replacement spec has no operations")
	}

	res, err := p.resolver.Resolve(ctx, name, cur)
	if err != nil {
		return nil, fmt.Errorf("editor: resolving %s: %w", name, err)
	}

	if !res.IsFile {
		return nil, fmt.Errorf("editor: %s is a directory", res.Display)
	}

	raw, err := p.getter.Get(ctx, res.Display, res.File)
	if err != nil {
		return nil, err
	}

	text, wasGBK, err := decodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, res.Display)
	}

	modified, err := spec.Apply(text)
	if err != nil {
		return nil, err
	}

	diff, err := unifiedDiff(res.File.Name, text, modified)
	if err != nil {
		return nil, err
	}

	result := &Result{Diff: diff}

	if opts.Preview {
		return result, nil
	}

	encoded, err := encodeText(modified, wasGBK)
	if err != nil {
		return nil, err
	}

	if err := p.uploadBatch(ctx, res, raw, encoded, opts.Backup, cur, result); err != nil {
		return result, err
	}

	result.Findings = p.linter.Lint(ctx, res.File.Name, encoded)

	return result, nil
}

// uploadBatch writes the modified file (and optional backup of the
// original bytes) to a scratch directory and pushes both through the
// upload orchestrator in one batch. The batch is not transactional at
// the provider; the backup lands first only by argument order.
func (p *Pipeline) uploadBatch(ctx context.Context, res *vpath.Resolution, original, modified []byte, backup bool, cur vpath.Current, result *Result) error {
	scratch, err := os.MkdirTemp("", "gdsh-edit-")
	if err != nil {
		return fmt.Errorf("editor: creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var sources []string

	if backup {
		backupName := fmt.Sprintf("%s.backup.%d", res.File.Name, p.nowFunc().UnixMilli())
		backupPath := filepath.Join(scratch, backupName)

		if err := os.WriteFile(backupPath, original, 0o644); err != nil {
			return fmt.Errorf("editor: writing backup: %w", err)
		}

		sources = append(sources, backupPath)
		result.BackupName = backupName
	}

	modifiedPath := filepath.Join(scratch, res.File.Name)
	if err := os.WriteFile(modifiedPath, modified, 0o644); err != nil {
		return fmt.Errorf("editor: writing modified file: %w", err)
	}

	sources = append(sources, modifiedPath)

	parent, _, ok := vpath.Parent(res.Display)
	if !ok {
		parent = vpath.Root
	}

	p.logger.Info("uploading edit batch",
		slog.String("file", res.File.Name),
		slog.String("target", parent),
		slog.Bool("backup", backup),
	)

	uploadResult, err := p.uploader.Run(ctx, &upload.Request{
		Sources: sources,
		Target:  parent,
		Force:   true,
	}, cur)
	if uploadResult != nil {
		result.Uploaded = uploadResult.Uploaded
		result.Failed = uploadResult.Failed
	}

	return err
}

// unifiedDiff renders the change as a unified diff limited to the
// affected regions.
func unifiedDiff(name, before, after string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name,
		ToFile:   name,
		Context:  diffContextLines,
	})
	if err != nil {
		return "", fmt.Errorf("editor: rendering diff: %w", err)
	}

	return diff, nil
}
