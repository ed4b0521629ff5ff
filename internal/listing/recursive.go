package listing

import (
	"context"
)

// DefaultMaxDepth bounds recursive listings when the caller passes 0.
const DefaultMaxDepth = 5

// Tree is the nested structure returned by recursive detailed listings.
// Every folder contains its own files and subfolders.
type Tree struct {
	Name    string  `json:"name"`
	ID      string  `json:"id"`
	Files   []Entry `json:"files"`
	Folders []*Tree `json:"folders"`
}

// ListRecursive performs a depth-first walk from folderID, bounded by
// maxDepth, with a visited set for cycle protection (Drive permits
// cross-linking via shortcuts). Each level is the de-duplicated sorted
// view that List produces.
func (e *Engine) ListRecursive(ctx context.Context, folderID, name string, maxDepth int) (*Tree, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := make(map[string]bool)

	return e.walk(ctx, folderID, name, maxDepth, visited)
}

func (e *Engine) walk(ctx context.Context, folderID, name string, depth int, visited map[string]bool) (*Tree, error) {
	tree := &Tree{Name: name, ID: folderID, Files: []Entry{}, Folders: []*Tree{}}

	if depth == 0 || visited[folderID] {
		return tree, nil
	}

	visited[folderID] = true

	entries, err := e.List(ctx, folderID)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entry := entries[i]
		if !entry.IsFolder() {
			tree.Files = append(tree.Files, entry)
			continue
		}

		sub, err := e.walk(ctx, entry.ID, entry.Name, depth-1, visited)
		if err != nil {
			return nil, err
		}

		tree.Folders = append(tree.Folders, sub)
	}

	return tree, nil
}

// Flatten returns all entries in a tree as "relative/path" names, used by
// the plain (non-detailed) recursive view.
func (t *Tree) Flatten() []string {
	var out []string

	t.flattenInto("", &out)

	return out
}

func (t *Tree) flattenInto(prefix string, out *[]string) {
	for i := range t.Files {
		*out = append(*out, prefix+t.Files[i].Name)
	}

	for _, sub := range t.Folders {
		*out = append(*out, prefix+sub.Name+"/")
		sub.flattenInto(prefix+sub.Name+"/", out)
	}
}
