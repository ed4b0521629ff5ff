package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListChildren_Paginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "'folder-1' in parents")
		assert.Contains(t, r.URL.Query().Get("q"), "trashed=false")

		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{
				"files": [
					{"id": "f1", "name": "a.txt", "mimeType": "text/plain", "size": "42",
					 "modifiedTime": "2026-01-02T03:04:05Z", "parents": ["folder-1"]},
					{"id": "d1", "name": "sub", "mimeType": "application/vnd.google-apps.folder"}
				],
				"nextPageToken": "page2"
			}`)

			return
		}

		assert.Equal(t, "page2", r.URL.Query().Get("pageToken"))
		fmt.Fprint(w, `{"files": [{"id": "f2", "name": "b.txt", "mimeType": "text/plain", "size": "7"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	files, err := client.ListChildren(context.Background(), "folder-1")
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, int64(42), files[0].Size)
	assert.Equal(t, 2026, files[0].ModifiedTime.Year())
	assert.False(t, files[0].IsFolder())

	assert.True(t, files[1].IsFolder())
	assert.Equal(t, int64(0), files[1].Size)

	assert.Equal(t, "f2", files[2].ID)
}

func TestGet_ReturnsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/file-9", r.URL.Path)
		fmt.Fprint(w, `{"id": "file-9", "name": "notes.md", "mimeType": "text/markdown",
			"size": "100", "modifiedTime": "2026-03-01T00:00:00Z", "parents": ["p1"]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	file, err := client.Get(context.Background(), "file-9")
	require.NoError(t, err)

	assert.Equal(t, "notes.md", file.Name)
	assert.Equal(t, []string{"p1"}, file.Parents)
}

func TestParents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id": "x", "name": "x", "parents": ["parent-a", "parent-b"]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	parents, err := client.Parents(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"parent-a", "parent-b"}, parents)
}

func TestDownload_StreamsMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		fmt.Fprint(w, "hello media")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	n, err := client.Download(context.Background(), "file-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello media")), n)
	assert.Equal(t, "hello media", buf.String())
}

func TestDelete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/files/file-del", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	require.NoError(t, client.Delete(context.Background(), "file-del"))
}

func TestNetworkLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		fmt.Fprint(w, `{"kind": "drive#about"}`)
	}))
	defer srv.Close()

	assert.True(t, newTestClient(t, srv.URL).NetworkLive(context.Background()))

	srv.Close()
	assert.False(t, newTestClient(t, srv.URL).NetworkLive(context.Background()))
}
