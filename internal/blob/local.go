package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
)

// LocalUploader keeps media on the local disk. Its locations are file://
// references that remote services cannot reach.
type LocalUploader struct {
	dir    string
	logger *slog.Logger
}

var _ Uploader = (*LocalUploader)(nil)

func NewLocalUploader(dir string, logger *slog.Logger) *LocalUploader {
	return &LocalUploader{dir: dir, logger: logger}
}

func (l *LocalUploader) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress ProgressFunc) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", &UploadError{Backend: "local", Err: fmt.Errorf("create dir: %w", err)}
	}
	path, err := filepath.Abs(filepath.Join(l.dir, filepath.Base(key)))
	if err != nil {
		return "", &UploadError{Backend: "local", Err: err}
	}

	out, err := os.Create(path)
	if err != nil {
		return "", &UploadError{Backend: "local", Err: fmt.Errorf("create file: %w", err)}
	}
	defer out.Close()

	if _, err := io.Copy(out, newProgressReader(ctxReader{ctx: ctx, r: body}, size, onProgress)); err != nil {
		_ = os.Remove(path)
		return "", &UploadError{Backend: "local", Err: fmt.Errorf("write file: %w", err)}
	}

	l.logger.Info("stored media locally", "path", path)
	return LocalScheme + filepath.ToSlash(path), nil
}

// LocalScheme is the scheme prefix of LocalUploader locations.
const LocalScheme = "file://"

// IsLocal reports whether location was produced by LocalUploader.
func IsLocal(location string) bool {
	u, err := url.Parse(location)
	return err == nil && u.Scheme == "file"
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
