package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdshell/gdshell/internal/gateway"
)

type fakeGateway struct {
	children map[string][]gateway.File
}

func (f *fakeGateway) ListChildren(_ context.Context, folderID string) ([]gateway.File, error) {
	return f.children[folderID], nil
}

func newTestEngine(children map[string][]gateway.File) *Engine {
	return NewEngine(&fakeGateway{children: children}, "https://drive.google.com")
}

func TestList_SortsAndDedupes(t *testing.T) {
	engine := newTestEngine(map[string][]gateway.File{
		"root": {
			{ID: "f2", Name: "b.txt", MimeType: "text/plain"},
			{ID: "f1", Name: "a.txt", MimeType: "text/plain"},
			// Duplicate name: the provider allows it, the view must not.
			{ID: "f3", Name: "a.txt", MimeType: "text/plain"},
			{ID: "d1", Name: "zeta", MimeType: gateway.FolderMimeType},
		},
	})

	entries, err := engine.List(context.Background(), "root")
	require.NoError(t, err)

	// Folder first despite name order; no two entries share a name.
	require.Len(t, entries, 3)
	assert.Equal(t, "zeta", entries[0].Name)
	assert.Equal(t, KindFolder, entries[0].Kind)
	assert.Equal(t, "a.txt", entries[1].Name)
	assert.Equal(t, "f1", entries[1].ID) // first occurrence after stable sort wins
	assert.Equal(t, "b.txt", entries[2].Name)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		file gateway.File
		want Kind
	}{
		{"folder", gateway.File{MimeType: gateway.FolderMimeType}, KindFolder},
		{"doc", gateway.File{MimeType: "application/vnd.google-apps.document"}, KindDoc},
		{"sheet", gateway.File{MimeType: "application/vnd.google-apps.spreadsheet"}, KindSheet},
		{"slide", gateway.File{MimeType: "application/vnd.google-apps.presentation"}, KindSlide},
		{"notebook", gateway.File{Name: "nb.ipynb", MimeType: "application/json"}, KindNotebook},
		{"plain", gateway.File{Name: "x.bin", MimeType: "application/octet-stream"}, KindFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(&tt.file))
		})
	}
}

func TestWebURL(t *testing.T) {
	engine := newTestEngine(nil)

	assert.Equal(t, "https://drive.google.com/drive/folders/id1", engine.WebURL(KindFolder, "id1"))
	assert.Equal(t, "https://docs.google.com/document/d/id2/edit", engine.WebURL(KindDoc, "id2"))
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/id3/edit", engine.WebURL(KindSheet, "id3"))
	assert.Equal(t, "https://docs.google.com/presentation/d/id4/edit", engine.WebURL(KindSlide, "id4"))
	assert.Equal(t, "https://colab.research.google.com/drive/id5", engine.WebURL(KindNotebook, "id5"))
	assert.Equal(t, "https://drive.google.com/file/d/id6/view", engine.WebURL(KindFile, "id6"))
}

func TestListRecursive_NestedStructure(t *testing.T) {
	engine := newTestEngine(map[string][]gateway.File{
		"root": {
			{ID: "d1", Name: "pkg", MimeType: gateway.FolderMimeType},
			{ID: "f1", Name: "top.txt", MimeType: "text/plain"},
		},
		"d1": {
			{ID: "f2", Name: "inner.txt", MimeType: "text/plain"},
		},
	})

	tree, err := engine.ListRecursive(context.Background(), "root", "~", 0)
	require.NoError(t, err)

	require.Len(t, tree.Files, 1)
	assert.Equal(t, "top.txt", tree.Files[0].Name)
	require.Len(t, tree.Folders, 1)
	assert.Equal(t, "pkg", tree.Folders[0].Name)
	require.Len(t, tree.Folders[0].Files, 1)
	assert.Equal(t, "inner.txt", tree.Folders[0].Files[0].Name)

	assert.Equal(t, []string{"top.txt", "pkg/", "pkg/inner.txt"}, tree.Flatten())
}

func TestListRecursive_CycleProtection(t *testing.T) {
	// d1 and d2 reference each other (shortcut cross-link).
	engine := newTestEngine(map[string][]gateway.File{
		"d1": {{ID: "d2", Name: "loop", MimeType: gateway.FolderMimeType}},
		"d2": {{ID: "d1", Name: "back", MimeType: gateway.FolderMimeType}},
	})

	tree, err := engine.ListRecursive(context.Background(), "d1", "top", 10)
	require.NoError(t, err)

	// The walk terminates; the revisited folder is present but not expanded.
	require.Len(t, tree.Folders, 1)
	sub := tree.Folders[0]
	require.Len(t, sub.Folders, 1)
	assert.Empty(t, sub.Folders[0].Folders)
}

func TestListRecursive_DepthBound(t *testing.T) {
	engine := newTestEngine(map[string][]gateway.File{
		"a": {{ID: "b", Name: "b", MimeType: gateway.FolderMimeType}},
		"b": {{ID: "c", Name: "c", MimeType: gateway.FolderMimeType}},
		"c": {{ID: "d", Name: "d", MimeType: gateway.FolderMimeType}},
	})

	tree, err := engine.ListRecursive(context.Background(), "a", "a", 2)
	require.NoError(t, err)

	// Depth 2: a's children and b's children are listed, c is not expanded.
	require.Len(t, tree.Folders, 1)
	require.Len(t, tree.Folders[0].Folders, 1)
	assert.Empty(t, tree.Folders[0].Folders[0].Folders)
}
