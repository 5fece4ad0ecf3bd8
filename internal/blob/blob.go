// Package blob stores uploaded media bytes and reports upload progress.
package blob

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ProgressFunc receives upload progress as a percentage in 0..100.
type ProgressFunc func(percent int)

// Uploader stores body under key and returns the resolved media location.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress ProgressFunc) (string, error)
}

// UploadError reports a transport or authorization failure against a
// blob backend.
type UploadError struct {
	Backend string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s failed: %v", e.Backend, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// progressReader reports the share of size read so far. Only increasing
// percentages are reported. Reads may come from several goroutines when the
// S3 manager uploads parts concurrently.
//
// Under the S3 manager this counts bytes buffered into parts, not parts the
// service has acknowledged, so 100 can be reported while the last parts are
// still in flight. The upload is only done when Upload returns.
type progressReader struct {
	r          io.Reader
	size       int64
	onProgress ProgressFunc

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, size int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, size: size, onProgress: fn, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onProgress != nil && p.size > 0 {
		p.mu.Lock()
		p.read += int64(n)
		percent := int(p.read * 100 / p.size)
		if percent > 100 {
			percent = 100
		}
		report := percent > p.last
		if report {
			p.last = percent
		}
		p.mu.Unlock()
		if report {
			p.onProgress(percent)
		}
	}
	return n, err
}
