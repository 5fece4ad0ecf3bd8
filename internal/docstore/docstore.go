// Package docstore persists finished transcripts to an external database.
// Persistence is best effort: the in-memory store stays authoritative and
// callers only log write failures.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// Store is a write-mostly document store for transcripts.
type Store interface {
	Create(ctx context.Context, t models.Transcript) error
	Close(ctx context.Context) error
}

// PersistenceError wraps a failed document store write.
type PersistenceError struct {
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist transcript to %s: %v", e.Backend, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Config selects and configures a backend.
type Config struct {
	Backend string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	DynamoDBTable string
	AWSRegion     string

	PostgresDSN string
	SQLitePath  string
}

const (
	BackendNone     = "none"
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case BackendDynamoDB:
		return NewDynamoDB(ctx, cfg.DynamoDBTable, cfg.AWSRegion)
	case BackendPostgres:
		return NewPostgres(cfg.PostgresDSN)
	case BackendSQLite:
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown docstore backend %q", cfg.Backend)
	}
}

// Nop discards every write.
type Nop struct{}

func (Nop) Create(context.Context, models.Transcript) error { return nil }
func (Nop) Close(context.Context) error                     { return nil }

// transcriptRecord is the backend-neutral persisted shape.
type transcriptRecord struct {
	VideoID           string    `bson:"videoId" dynamodbav:"videoId" gorm:"primaryKey;column:video_id"`
	Content           string    `bson:"content" dynamodbav:"content" gorm:"column:content"`
	RawStructuredData string    `bson:"rawStructuredData,omitempty" dynamodbav:"rawStructuredData,omitempty" gorm:"column:raw_structured_data"`
	Language          string    `bson:"language" dynamodbav:"language" gorm:"column:language"`
	CreatedAt         time.Time `bson:"createdAt" dynamodbav:"createdAt" gorm:"column:created_at"`
}

func (transcriptRecord) TableName() string {
	return "transcripts"
}

func newRecord(t models.Transcript) transcriptRecord {
	return transcriptRecord{
		VideoID:           t.VideoID,
		Content:           t.Content,
		RawStructuredData: t.RawStructuredData,
		Language:          t.Language,
		CreatedAt:         t.CreatedAt.UTC(),
	}
}
