package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReaderIsMonotonicAndEndsAt100(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10_000)
	var got []int
	r := newProgressReader(bytes.NewReader(data), int64(len(data)), func(p int) { got = append(got, p) })

	buf := make([]byte, 333)
	for {
		if _, err := r.Read(buf); err == io.EOF {
			break
		}
	}

	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
	assert.Equal(t, 100, got[len(got)-1])
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var last int
	loc, err := u.Upload(context.Background(), "../escape/video.mp4", strings.NewReader("payload"), 7, "video/mp4", func(p int) { last = p })
	require.NoError(t, err)
	assert.True(t, IsLocal(loc))
	assert.Equal(t, 100, last)

	data, err := os.ReadFile(strings.TrimPrefix(loc, LocalScheme))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalUploaderHonoursCancellation(t *testing.T) {
	u := NewLocalUploader(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Upload(ctx, "video.mp4", strings.NewReader("payload"), 7, "", nil)
	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal("file:///tmp/a.mp4"))
	assert.False(t, IsLocal("https://bucket.s3.amazonaws.com/a.mp4"))
}
