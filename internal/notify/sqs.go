package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// sqsAPI is the subset of the SQS client used here.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS forwards notifications to a queue for out-of-process consumers.
// Send failures are logged and dropped.
type SQS struct {
	client   sqsAPI
	queueURL string
	logger   *slog.Logger
}

func NewSQS(ctx context.Context, queueURL, region string, logger *slog.Logger) (*SQS, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS queue url cannot be empty")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SQS{client: sqs.NewFromConfig(cfg), queueURL: queueURL, logger: logger}, nil
}

func (s *SQS) Notify(ctx context.Context, n models.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("encode notification", "error", err)
		return
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		s.logger.Warn("send notification to SQS", "video_id", n.VideoID, "error", err)
	}
}
