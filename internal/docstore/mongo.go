package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// Mongo stores one document per transcript.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Store = (*Mongo)(nil)

func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if uri == "" || database == "" || collection == "" {
		return nil, fmt.Errorf("mongo uri, database and collection are required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	return &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (m *Mongo) Create(ctx context.Context, t models.Transcript) error {
	if _, err := m.collection.InsertOne(ctx, newRecord(t)); err != nil {
		return &PersistenceError{Backend: BackendMongo, Err: err}
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
