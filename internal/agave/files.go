package agave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// ChunkSize is the fixed buffer size for streaming file content, bounding
// memory use regardless of file size.
const ChunkSize = 1024

// uploadField is the multipart form field the media service reads.
const uploadField = "fileToUpload"

// FileInfo is one entry of a listing, or the record returned by an upload.
type FileInfo struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Type         string `json:"type"`
	Length       int64  `json:"length"`
	Permissions  string `json:"permissions"`
	LastModified string `json:"lastModified"`
	Format       string `json:"format"`
	MimeType     string `json:"mimeType"`
	SystemID     string `json:"systemId"`
	Status       string `json:"status"`
}

// IsDir reports whether the entry is a directory.
func (f FileInfo) IsDir() bool {
	return f.Type == "dir"
}

// SplitSystemPath splits "system/some/dir" into ("system", "some/dir").
func SplitSystemPath(syspath string) (string, string) {
	system, rest, _ := strings.Cut(strings.TrimPrefix(syspath, "/"), "/")

	return system, rest
}

// CopyChunks copies src to dst in ChunkSize pieces. The wrappers hide
// ReaderFrom/WriterTo so io.CopyBuffer cannot bypass the fixed buffer.
func CopyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)

	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
}

// ListFiles lists a remote directory given as "system/path".
func (c *Client) ListFiles(ctx context.Context, endpoint, syspath string) ([]FileInfo, error) {
	resp, err := c.Do(ctx, http.MethodGet, endpoint+"/"+syspath, nil, "")
	if err != nil {
		return nil, err
	}

	files, err := decodeResult[[]FileInfo](resp)
	if err != nil {
		return nil, fmt.Errorf("decoding listing of %s: %w", syspath, err)
	}

	return files, nil
}

// Mkdir creates a directory on a remote system. syspath is "system/dir/path";
// the media service takes the system in the URL and the path in the form.
func (c *Client) Mkdir(ctx context.Context, endpoint, syspath string) error {
	system, dirPath := SplitSystemPath(syspath)
	if system == "" {
		return fmt.Errorf("agave: no system in %q", syspath)
	}

	c.logger.Info("creating directory",
		slog.String("system", system),
		slog.String("path", dirPath),
	)

	form := url.Values{"action": {"mkdir"}, "path": {dirPath}}

	resp, err := c.Do(ctx, http.MethodPut, endpoint+"/"+system, strings.NewReader(form.Encode()), formContentType)
	if err != nil {
		return err
	}

	drain(resp)

	return nil
}

// Remove deletes a file or directory given as "system/path".
func (c *Client) Remove(ctx context.Context, endpoint, syspath string) error {
	c.logger.Info("removing remote path", slog.String("syspath", syspath))

	resp, err := c.Do(ctx, http.MethodDelete, endpoint+"/"+syspath, nil, "")
	if err != nil {
		return err
	}

	drain(resp)

	return nil
}

// Upload streams r as the multipart field fileToUpload with the given file
// name to endpoint/syspath. The body is produced through a pipe so the file
// is never held in memory.
func (c *Client) Upload(ctx context.Context, endpoint, syspath, name string, r io.Reader) (*FileInfo, error) {
	c.logger.Info("uploading file",
		slog.String("syspath", syspath),
		slog.String("name", name),
	)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(uploadField, name)
		if err == nil {
			_, err = CopyChunks(part, r)
		}

		if err == nil {
			err = mw.Close()
		}

		pw.CloseWithError(err)
	}()

	resp, err := c.Do(ctx, http.MethodPost, endpoint+"/"+syspath, pr, mw.FormDataContentType())

	// Unblocks the writer goroutine when the request never consumed the body.
	pr.Close()

	if err != nil {
		return nil, err
	}

	uploaded, err := decodeResult[FileInfo](resp)
	if errors.Is(err, errEmptyBody) {
		return &FileInfo{Name: name}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}

	return &uploaded, nil
}

// Open starts a streaming download of endpoint/syspath. The caller must
// close the returned body.
func (c *Client) Open(ctx context.Context, endpoint, syspath string) (io.ReadCloser, error) {
	c.logger.Info("downloading file", slog.String("syspath", syspath))

	resp, err := c.Do(ctx, http.MethodGet, endpoint+"/"+syspath, nil, "")
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}
