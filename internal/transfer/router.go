package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agave-cli/agavecli/internal/agave"
)

// partialSuffix marks a download that has not finished yet.
const partialSuffix = ".partial"

// Files is the remote media API the router drives. *agave.Client satisfies it.
type Files interface {
	Upload(ctx context.Context, endpoint, syspath, name string, r io.Reader) (*agave.FileInfo, error)
	Open(ctx context.Context, endpoint, syspath string) (io.ReadCloser, error)
}

// Result describes a completed copy.
type Result struct {
	Direction Direction `json:"direction"`
	Bytes     int64     `json:"bytes"`

	// LocalPath is the file written by a download.
	LocalPath string `json:"local_path,omitempty"`

	// Remote is the server's record of an uploaded file.
	Remote *agave.FileInfo `json:"remote,omitempty"`
}

// Router dispatches copy requests to the matching strategy. Endpoint is the
// media service path, e.g. "files/v2/media/system".
type Router struct {
	files    Files
	endpoint string
	logger   *slog.Logger

	// TempRoot is where relay staging directories are created. Empty means
	// the system default.
	TempRoot string
}

// NewRouter creates a router over files. logger may be nil.
func NewRouter(files Files, endpoint string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{files: files, endpoint: endpoint, logger: logger}
}

// Copy parses origin and dest, selects a strategy, and runs it.
func (r *Router) Copy(ctx context.Context, origin, dest string) (*Result, error) {
	o, d := ParseLocation(origin), ParseLocation(dest)

	dir, err := Classify(o, d)
	if err != nil {
		return nil, err
	}

	r.logger.Info("copy strategy selected",
		slog.String("strategy", dir.String()),
		slog.String("origin", o.String()),
		slog.String("destination", d.String()),
	)

	switch dir {
	case Upload:
		return r.upload(ctx, o, d)
	case Download:
		return r.download(ctx, o, d)
	default:
		return r.relay(ctx, o, d)
	}
}

// upload sends a local file to a remote directory under its own name.
func (r *Router) upload(ctx context.Context, origin, dest Location) (*Result, error) {
	if origin.Remote || !dest.Remote {
		return nil, fmt.Errorf("%w: upload needs a local origin and a remote destination", ErrCopyDirection)
	}

	f, err := os.Open(origin.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", origin.Path, err)
	}
	defer f.Close()

	counter := &countingReader{r: f}

	info, err := r.files.Upload(ctx, r.endpoint, dest.Path, filepath.Base(origin.Path), counter)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", origin.Path, err)
	}

	return &Result{Direction: Upload, Bytes: counter.n, Remote: info}, nil
}

// download streams a remote file to a local path. The status is checked
// before anything is created locally, and the data lands in a .partial file
// that is renamed only once complete.
func (r *Router) download(ctx context.Context, origin, dest Location) (*Result, error) {
	if !origin.Remote || dest.Remote {
		return nil, fmt.Errorf("%w: download needs a remote origin and a local destination", ErrCopyDirection)
	}

	target, err := localTarget(dest.Path, remoteName(origin.Path))
	if err != nil {
		return nil, err
	}

	body, err := r.files.Open(ctx, r.endpoint, origin.Path)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", origin, err)
	}
	defer body.Close()

	n, err := writeFile(target, body)
	if err != nil {
		return nil, err
	}

	return &Result{Direction: Download, Bytes: n, LocalPath: target}, nil
}

// relay downloads into a staging directory and uploads from there. The
// staging directory is removed on every return path.
func (r *Router) relay(ctx context.Context, origin, dest Location) (*Result, error) {
	if !origin.Remote || !dest.Remote {
		return nil, fmt.Errorf("%w: relay needs remote origin and destination", ErrCopyDirection)
	}

	body, err := r.files.Open(ctx, r.endpoint, origin.Path)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", origin, err)
	}
	defer body.Close()

	tmpDir, err := os.MkdirTemp(r.TempRoot, "agavecli-relay-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			r.logger.Warn("removing staging directory",
				slog.String("path", tmpDir),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	name := dest.Base()
	if name == "" {
		name = remoteName(origin.Path)
	}

	staged := filepath.Join(tmpDir, name)

	if _, err := writeFile(staged, body); err != nil {
		return nil, err
	}

	r.logger.Debug("relay staged", slog.String("path", staged))

	f, err := os.Open(staged)
	if err != nil {
		return nil, fmt.Errorf("opening staged copy: %w", err)
	}
	defer f.Close()

	counter := &countingReader{r: f}

	info, err := r.files.Upload(ctx, r.endpoint, dest.Path, name, counter)
	if err != nil {
		return nil, fmt.Errorf("uploading to %s: %w", dest, err)
	}

	return &Result{Direction: Relay, Bytes: counter.n, Remote: info}, nil
}

// localTarget resolves where a download named name lands for the user's
// destination: inside dest when it ends in a separator or is an existing
// directory, otherwise at dest itself.
func localTarget(dest, name string) (string, error) {
	if dest == "" || strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(filepath.Separator)) {
		return filepath.Join(dest, name), nil
	}

	info, err := os.Stat(dest)

	switch {
	case err == nil && info.IsDir():
		return filepath.Join(dest, name), nil
	case err == nil || errors.Is(err, fs.ErrNotExist):
		return dest, nil
	default:
		return "", fmt.Errorf("checking destination %s: %w", dest, err)
	}
}

// writeFile copies src into path through a .partial sibling in fixed-size
// chunks. The partial file is removed on failure.
func writeFile(path string, src io.Reader) (int64, error) {
	partial := path + partialSuffix

	f, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", partial, err)
	}

	n, copyErr := agave.CopyChunks(f, src)
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partial)

		if copyErr != nil {
			return n, fmt.Errorf("writing %s: %w", path, copyErr)
		}

		return n, fmt.Errorf("closing %s: %w", path, closeErr)
	}

	if err := os.Rename(partial, path); err != nil {
		_ = os.Remove(partial)
		return n, fmt.Errorf("renaming %s: %w", partial, err)
	}

	return n, nil
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	return n, err
}
