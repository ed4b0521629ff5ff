package vpath

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gdshell/gdshell/internal/config"
	"github.com/gdshell/gdshell/internal/gateway"
)

// Gateway is the slice of the Drive API the resolver needs.
type Gateway interface {
	ListChildren(ctx context.Context, folderID string) ([]gateway.File, error)
	Parents(ctx context.Context, fileID string) ([]string, error)
}

// Current is the resolution starting point taken from the active shell.
type Current struct {
	FolderID string
	Display  string
}

// Resolution is the outcome of resolving a virtual path. Either a folder
// (FolderID set, IsFile false) or a trailing file (IsFile true, File set,
// FolderID naming the containing folder).
type Resolution struct {
	FolderID string
	Display  string
	IsFile   bool
	File     *gateway.File
}

// Resolver walks virtual paths against the Drive tree.
type Resolver struct {
	gw     Gateway
	rootID string
	mirror *config.MirrorConfig
}

// NewResolver creates a resolver rooted at rootID (the folder backing "~").
func NewResolver(gw Gateway, rootID string, mirror *config.MirrorConfig) *Resolver {
	return &Resolver{gw: gw, rootID: rootID, mirror: mirror}
}

// Resolve maps a virtual path to a folder ID and canonical display path,
// or to a trailing-file result used by ls/cat on files. It never returns
// a partial result: any unresolvable component yields ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, input string, cur Current) (*Resolution, error) {
	folderID, display := r.startPoint(input, cur)

	comps := inputComponents(input)

	for i, comp := range comps {
		last := i == len(comps)-1

		switch comp {
		case ".", "":
			continue
		case "..":
			parentID, parentDisplay, err := r.up(ctx, folderID, display)
			if err != nil {
				return nil, err
			}

			folderID, display = parentID, parentDisplay
		default:
			res, err := r.down(ctx, folderID, display, comp, last)
			if err != nil {
				return nil, err
			}

			if res.IsFile {
				return res, nil
			}

			folderID, display = res.FolderID, res.Display
		}
	}

	return &Resolution{FolderID: folderID, Display: display}, nil
}

// startPoint picks the walk origin: the root for absolute inputs, the
// current shell position otherwise.
func (r *Resolver) startPoint(input string, cur Current) (string, string) {
	if strings.HasPrefix(input, Root) || strings.HasPrefix(input, "/") {
		return r.rootID, Root
	}

	if cur.FolderID == "" {
		return r.rootID, Root
	}

	return cur.FolderID, cur.Display
}

// inputComponents splits the raw input into walk components, stripping the
// root marker and leading separator.
func inputComponents(input string) []string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, Root)
	input = strings.TrimPrefix(input, "/")

	if input == "" {
		return nil
	}

	return strings.Split(input, "/")
}

// up resolves ".." by asking the gateway for the current node's parents
// and picking the first. Fails at the root.
func (r *Resolver) up(ctx context.Context, folderID, display string) (string, string, error) {
	if display == Root {
		return "", "", fmt.Errorf("%w: %q", ErrAboveRoot, display+"/..")
	}

	parents, err := r.gw.Parents(ctx, folderID)
	if err != nil {
		return "", "", fmt.Errorf("vpath: resolving parent of %s: %w", display, err)
	}

	if len(parents) == 0 {
		return "", "", fmt.Errorf("%w: %s has no parent", ErrNotFound, display)
	}

	parentDisplay, _, _ := Parent(display)

	return parents[0], parentDisplay, nil
}

// down resolves one literal component by listing the current folder.
// A non-folder match resolves the full input only as a trailing file.
func (r *Resolver) down(ctx context.Context, folderID, display, name string, last bool) (*Resolution, error) {
	children, err := r.gw.ListChildren(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("vpath: listing %s: %w", display, err)
	}

	childDisplay := display + "/" + name
	if display == Root {
		childDisplay = Root + "/" + name
	}

	// Case-sensitive exact match; folders win so a same-named file never
	// shadows a directory mid-path.
	for i := range children {
		if children[i].Name == name && children[i].IsFolder() {
			return &Resolution{FolderID: children[i].ID, Display: childDisplay}, nil
		}
	}

	if last {
		for i := range children {
			if children[i].Name == name {
				return &Resolution{
					FolderID: folderID,
					Display:  childDisplay,
					IsFile:   true,
					File:     &children[i],
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, childDisplay)
}

// MirrorPath projects a canonical display path onto the local mirror disk
// path under REMOTE_ROOT.
func (r *Resolver) MirrorPath(display string) string {
	return filepath.Join(append([]string{r.mirror.RemoteRootPath()}, Split(display)...)...)
}

// RemotePath projects a canonical display path onto the remote filesystem
// path used inside emitted scripts.
func (r *Resolver) RemotePath(display string) string {
	parts := append([]string{r.mirror.RemoteBase, r.mirror.RemoteRootDir}, Split(display)...)
	return strings.Join(parts, "/")
}

// RootID exposes the folder ID backing "~".
func (r *Resolver) RootID() string {
	return r.rootID
}
