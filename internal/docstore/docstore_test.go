package docstore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

func TestOpenSelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(context.Background(), Config{Backend: BackendNone}, logger)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)
	assert.NoError(t, s.Create(context.Background(), models.Transcript{VideoID: "v"}))

	_, err = Open(context.Background(), Config{Backend: "cosmos"}, logger)
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Backend: BackendMongo}, logger)
	assert.Error(t, err, "missing mongo settings")
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	var err error = &PersistenceError{Backend: BackendMongo, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "mongo")
}

func TestSQLiteCreateReplaces(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil && strings.Contains(err.Error(), "cgo") {
		t.Skip("sqlite3 requires cgo")
	}
	require.NoError(t, err)
	defer s.Close(context.Background())

	ctx := context.Background()
	created := time.Date(2025, 3, 13, 3, 27, 16, 0, time.UTC)
	require.NoError(t, s.Create(ctx, models.Transcript{VideoID: "v", Content: "first", Language: "en", CreatedAt: created}))
	require.NoError(t, s.Create(ctx, models.Transcript{VideoID: "v", Content: "second", RawStructuredData: `{"phrases":[]}`, Language: "fr", CreatedAt: created}))

	got, err := findSQLite(ctx, s, "v")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
	assert.Equal(t, "fr", got.Language)
	assert.Equal(t, `{"phrases":[]}`, got.RawStructuredData)
	assert.True(t, created.Equal(got.CreatedAt))
}

func findSQLite(ctx context.Context, s *SQLite, videoID string) (models.Transcript, error) {
	var t models.Transcript
	var raw, lang sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT video_id, content, raw_structured_data, language, created_at FROM transcripts WHERE video_id = ?`, videoID)
	if err := row.Scan(&t.VideoID, &t.Content, &raw, &lang, &t.CreatedAt); err != nil {
		return models.Transcript{}, err
	}
	t.RawStructuredData = raw.String
	t.Language = lang.String
	return t, nil
}
