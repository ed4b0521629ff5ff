// Package listing composes the directory views shown by ls: single-level
// and recursive listings with name de-duplication, folder/file
// classification, and web URL derivation.
package listing

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gdshell/gdshell/internal/gateway"
)

// Kind classifies a listing entry. Google-native documents get their own
// kinds because their web URLs and handling differ from plain files.
type Kind string

// Entry kinds.
const (
	KindFolder   Kind = "folder"
	KindFile     Kind = "file"
	KindDoc      Kind = "doc"
	KindSheet    Kind = "sheet"
	KindSlide    Kind = "slide"
	KindNotebook Kind = "notebook"
)

// Google-native MIME types.
const (
	mimeDoc   = "application/vnd.google-apps.document"
	mimeSheet = "application/vnd.google-apps.spreadsheet"
	mimeSlide = "application/vnd.google-apps.presentation"
)

// Entry is one row of a listing view.
type Entry struct {
	Name         string    `json:"name"`
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size,omitempty"`
	ModifiedTime time.Time `json:"modified_time,omitzero"`
	WebURL       string    `json:"web_url"`
}

// IsFolder reports whether the entry is a folder.
func (e *Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Gateway is the slice of the Drive API the listing engine needs.
type Gateway interface {
	ListChildren(ctx context.Context, folderID string) ([]gateway.File, error)
}

// Engine builds listing views over the gateway.
type Engine struct {
	gw      Gateway
	homeURL string
}

// NewEngine creates a listing engine. homeURL is the Drive web UI base
// used when composing folder and file URLs.
func NewEngine(gw Gateway, homeURL string) *Engine {
	return &Engine{gw: gw, homeURL: homeURL}
}

// List returns the de-duplicated single-level view of a folder.
// The provider permits duplicate names under one parent; the view keeps
// the first occurrence in insertion order after the stable sort.
func (e *Engine) List(ctx context.Context, folderID string) ([]Entry, error) {
	files, err := e.gw.ListChildren(ctx, folderID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for i := range files {
		entries = append(entries, e.toEntry(&files[i]))
	}

	sortEntries(entries)

	return dedupeByName(entries), nil
}

// toEntry classifies a file and derives its web URL.
func (e *Engine) toEntry(f *gateway.File) Entry {
	kind := classify(f)

	return Entry{
		Name:         f.Name,
		ID:           f.ID,
		Kind:         kind,
		MimeType:     f.MimeType,
		Size:         f.Size,
		ModifiedTime: f.ModifiedTime,
		WebURL:       e.WebURL(kind, f.ID),
	}
}

// classify maps a file's MIME type (and name, for notebooks) to a Kind.
func classify(f *gateway.File) Kind {
	switch f.MimeType {
	case gateway.FolderMimeType:
		return KindFolder
	case mimeDoc:
		return KindDoc
	case mimeSheet:
		return KindSheet
	case mimeSlide:
		return KindSlide
	}

	if strings.HasSuffix(f.Name, ".ipynb") {
		return KindNotebook
	}

	return KindFile
}

// WebURL derives the browser URL for an entry. The final URL shape depends
// on the kind: folders and plain files live under the Drive UI, native
// documents under docs.google.com, notebooks under Colab.
func (e *Engine) WebURL(kind Kind, id string) string {
	switch kind {
	case KindFolder:
		return e.homeURL + "/drive/folders/" + id
	case KindDoc:
		return "https://docs.google.com/document/d/" + id + "/edit"
	case KindSheet:
		return "https://docs.google.com/spreadsheets/d/" + id + "/edit"
	case KindSlide:
		return "https://docs.google.com/presentation/d/" + id + "/edit"
	case KindNotebook:
		return "https://colab.research.google.com/drive/" + id
	default:
		return e.homeURL + "/file/d/" + id + "/view"
	}
}

// sortEntries orders folders first, then case-insensitive by name.
// The sort is stable so duplicate names keep their insertion order and
// de-duplication picks a deterministic winner.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsFolder() != entries[j].IsFolder() {
			return entries[i].IsFolder()
		}

		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// dedupeByName keeps the first occurrence of each name.
func dedupeByName(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]

	for i := range entries {
		if seen[entries[i].Name] {
			continue
		}

		seen[entries[i].Name] = true
		out = append(out, entries[i])
	}

	return out
}
