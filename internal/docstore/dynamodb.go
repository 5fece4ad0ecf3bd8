package docstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// DynamoDB stores transcripts in a table keyed by videoId.
type DynamoDB struct {
	client    *dynamodb.Client
	tableName string
}

var _ Store = (*DynamoDB)(nil)

func NewDynamoDB(ctx context.Context, tableName, region string) (*DynamoDB, error) {
	if tableName == "" {
		return nil, fmt.Errorf("DynamoDB table name cannot be empty")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &DynamoDB{client: dynamodb.NewFromConfig(cfg), tableName: tableName}, nil
}

func (d *DynamoDB) Create(ctx context.Context, t models.Transcript) error {
	av, err := attributevalue.MarshalMap(newRecord(t))
	if err != nil {
		return &PersistenceError{Backend: BackendDynamoDB, Err: fmt.Errorf("marshal item: %w", err)}
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	})
	if err != nil {
		return &PersistenceError{Backend: BackendDynamoDB, Err: err}
	}
	return nil
}

func (d *DynamoDB) Close(context.Context) error { return nil }
