package docstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// Postgres stores transcripts through gorm. Writes for an existing video
// replace the row.
type Postgres struct {
	db *gorm.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&transcriptRecord{}); err != nil {
		return nil, fmt.Errorf("migrate transcripts table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Create(ctx context.Context, t models.Transcript) error {
	rec := newRecord(t)
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return &PersistenceError{Backend: BackendPostgres, Err: err}
	}
	return nil
}

func (p *Postgres) Close(context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLite stores transcripts in a local database file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			video_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			raw_structured_data TEXT,
			language TEXT,
			created_at DATETIME
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create transcripts table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Create(ctx context.Context, t models.Transcript) error {
	rec := newRecord(t)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transcripts (video_id, content, raw_structured_data, language, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.VideoID, rec.Content, rec.RawStructuredData, rec.Language, rec.CreatedAt,
	)
	if err != nil {
		return &PersistenceError{Backend: BackendSQLite, Err: err}
	}
	return nil
}

func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}
