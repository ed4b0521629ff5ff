package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FolderMimeType is the Drive MIME type marking a folder node.
const FolderMimeType = "application/vnd.google-apps.folder"

// listPageSize is the pageSize value for files.list requests.
// 100 is the Drive v3 default; the API caps it at 1000.
const listPageSize = 100

// fileFields is the fields projection requested for every file.
const fileFields = "id,name,mimeType,size,modifiedTime,parents"

// File is the normalized view of a Drive file resource.
type File struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	ModifiedTime time.Time
	Parents      []string
}

// IsFolder reports whether the file is a Drive folder.
func (f *File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// fileResponse mirrors the Drive v3 file resource JSON exactly.
// Unexported — callers use File via toFile() normalization.
// Drive returns size as a decimal string, hence the string field.
type fileResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Size         string   `json:"size"`
	ModifiedTime string   `json:"modifiedTime"`
	Parents      []string `json:"parents"`
}

type listResponse struct {
	Files         []fileResponse `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

// toFile normalizes a Drive file resource into our File type.
func (r *fileResponse) toFile(logger *slog.Logger) File {
	f := File{
		ID:       r.ID,
		Name:     r.Name,
		MimeType: r.MimeType,
		Parents:  r.Parents,
	}

	if r.Size != "" {
		size, err := strconv.ParseInt(r.Size, 10, 64)
		if err != nil {
			logger.Warn("invalid size in file resource",
				slog.String("file_id", r.ID),
				slog.String("raw", r.Size),
			)
		} else {
			f.Size = size
		}
	}

	if r.ModifiedTime != "" {
		t, err := time.Parse(time.RFC3339, r.ModifiedTime)
		if err != nil {
			logger.Warn("invalid modifiedTime in file resource",
				slog.String("file_id", r.ID),
				slog.String("raw", r.ModifiedTime),
			)
		} else {
			f.ModifiedTime = t
		}
	}

	return f
}

// ListChildren returns all non-trashed children of a folder, handling
// pagination automatically.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]File, error) {
	c.logger.Debug("listing children", slog.String("folder_id", folderID))

	var files []File

	pageToken := ""

	for {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("'%s' in parents and trashed=false", folderID))
		q.Set("pageSize", strconv.Itoa(listPageSize))
		q.Set("fields", "nextPageToken,files("+fileFields+")")

		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		resp, err := c.Do(ctx, http.MethodGet, "/files?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var lr listResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&lr)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("gateway: decoding list response: %w", decodeErr)
		}

		for i := range lr.Files {
			files = append(files, lr.Files[i].toFile(c.logger))
		}

		if lr.NextPageToken == "" {
			break
		}

		pageToken = lr.NextPageToken
	}

	c.logger.Debug("listed children",
		slog.String("folder_id", folderID),
		slog.Int("total", len(files)),
	)

	return files, nil
}

// Get retrieves a single file resource by ID.
func (c *Client) Get(ctx context.Context, fileID string) (*File, error) {
	c.logger.Debug("getting file", slog.String("file_id", fileID))

	path := fmt.Sprintf("/files/%s?fields=%s", url.PathEscape(fileID), url.QueryEscape(fileFields))

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var fr fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("gateway: decoding file response: %w", err)
	}

	file := fr.toFile(c.logger)

	return &file, nil
}

// Parents returns the parent folder IDs of a file. Root folders have none.
func (c *Client) Parents(ctx context.Context, fileID string) ([]string, error) {
	file, err := c.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	return file.Parents, nil
}

// Download streams the media content of a file to w and returns the number
// of bytes written.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	c.logger.Debug("downloading file", slog.String("file_id", fileID))

	path := fmt.Sprintf("/files/%s?alt=media", url.PathEscape(fileID))

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("gateway: reading media for %s: %w", fileID, err)
	}

	return n, nil
}

// Delete removes a file by ID. Returns nil on success (HTTP 204).
func (c *Client) Delete(ctx context.Context, fileID string) error {
	c.logger.Debug("deleting file", slog.String("file_id", fileID))

	path := "/files/" + url.PathEscape(fileID)

	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	// 204 No Content — drain and close to reuse the connection.
	defer resp.Body.Close()

	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("gateway: draining delete response body: %w", copyErr)
	}

	return nil
}

// NetworkLive probes provider reachability with a lightweight metadata
// request. A false return is a warning condition, never fatal: the mirror
// agent may still be able to sync later.
func (c *Client) NetworkLive(ctx context.Context) bool {
	resp, err := c.Do(ctx, http.MethodGet, "/about?fields=kind", nil)
	if err != nil {
		c.logger.Warn("network probe failed", slog.String("error", err.Error()))
		return false
	}

	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	return true
}
