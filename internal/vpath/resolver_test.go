package vpath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdshell/gdshell/internal/config"
	"github.com/gdshell/gdshell/internal/gateway"
)

// fakeGateway serves a fixed tree: folder IDs map to children, file IDs
// map to parent lists.
type fakeGateway struct {
	children map[string][]gateway.File
	parents  map[string][]string
}

func (f *fakeGateway) ListChildren(_ context.Context, folderID string) ([]gateway.File, error) {
	return f.children[folderID], nil
}

func (f *fakeGateway) Parents(_ context.Context, fileID string) ([]string, error) {
	return f.parents[fileID], nil
}

func folder(id, name string) gateway.File {
	return gateway.File{ID: id, Name: name, MimeType: gateway.FolderMimeType}
}

func file(id, name string) gateway.File {
	return gateway.File{ID: id, Name: name, MimeType: "text/plain", Size: 10}
}

// testTree: ~ (root) -> tmp/ -> test/ -> x.py ; ~ -> docs/ ; ~ -> x.py
func testResolver() *Resolver {
	gw := &fakeGateway{
		children: map[string][]gateway.File{
			"root": {folder("tmp", "tmp"), folder("docs", "docs"), file("fx", "x.py")},
			"tmp":  {folder("test", "test")},
			"test": {file("fy", "x.py")},
		},
		parents: map[string][]string{
			"tmp":  {"root"},
			"test": {"tmp"},
			"docs": {"root"},
		},
	}

	mirror := &config.MirrorConfig{
		Base:          "/mnt/gd",
		RemoteRootDir: "REMOTE_ROOT",
		RemoteBase:    "/content/drive",
	}

	return NewResolver(gw, "root", mirror)
}

func TestResolve_AbsoluteFolder(t *testing.T) {
	r := testResolver()

	res, err := r.Resolve(context.Background(), "~/tmp/test", Current{})
	require.NoError(t, err)
	assert.Equal(t, "test", res.FolderID)
	assert.Equal(t, "~/tmp/test", res.Display)
	assert.False(t, res.IsFile)
}

func TestResolve_RelativeFromShell(t *testing.T) {
	r := testResolver()
	cur := Current{FolderID: "tmp", Display: "~/tmp"}

	res, err := r.Resolve(context.Background(), "test", cur)
	require.NoError(t, err)
	assert.Equal(t, "test", res.FolderID)
	assert.Equal(t, "~/tmp/test", res.Display)
}

func TestResolve_DotDotViaParents(t *testing.T) {
	r := testResolver()
	cur := Current{FolderID: "test", Display: "~/tmp/test"}

	res, err := r.Resolve(context.Background(), "..", cur)
	require.NoError(t, err)
	assert.Equal(t, "tmp", res.FolderID)
	assert.Equal(t, "~/tmp", res.Display)
}

func TestResolve_DotDotAtRootFails(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve(context.Background(), "..", Current{FolderID: "root", Display: "~"})
	assert.ErrorIs(t, err, ErrAboveRoot)
}

func TestResolve_TrailingFile(t *testing.T) {
	r := testResolver()

	res, err := r.Resolve(context.Background(), "~/tmp/test/x.py", Current{})
	require.NoError(t, err)
	assert.True(t, res.IsFile)
	assert.Equal(t, "fy", res.File.ID)
	// FolderID names the containing folder for trailing files.
	assert.Equal(t, "test", res.FolderID)
	assert.Equal(t, "~/tmp/test/x.py", res.Display)
}

func TestResolve_FileMidPathFails(t *testing.T) {
	r := testResolver()

	// x.py exists at root but is not a folder, so it cannot be traversed.
	_, err := r.Resolve(context.Background(), "~/x.py/deeper", Current{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_MissingComponent(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve(context.Background(), "~/nope", Current{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_CaseSensitive(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve(context.Background(), "~/TMP", Current{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjections_ShareCanonicalForm(t *testing.T) {
	r := testResolver()

	assert.Equal(t, "/mnt/gd/REMOTE_ROOT/tmp/test", r.MirrorPath("~/tmp/test"))
	assert.Equal(t, "/content/drive/REMOTE_ROOT/tmp/test", r.RemotePath("~/tmp/test"))
	assert.Equal(t, "/mnt/gd/REMOTE_ROOT", r.MirrorPath("~"))
	assert.Equal(t, "/content/drive/REMOTE_ROOT", r.RemotePath("~"))
}
