package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader implements Uploader using AWS S3 multipart uploads.
type S3Uploader struct {
	uploader   *manager.Uploader
	bucketName string
	logger     *slog.Logger
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader loads AWS configuration from the environment.
func NewS3Uploader(ctx context.Context, bucketName, region string, logger *slog.Logger) (*S3Uploader, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("S3 bucket name cannot be empty")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		uploader:   manager.NewUploader(client),
		bucketName: bucketName,
		logger:     logger,
	}, nil
}

func (s *S3Uploader) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress ProgressFunc) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        newProgressReader(body, size, onProgress),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &UploadError{Backend: "s3", Err: err}
	}

	s.logger.Info("uploaded to S3", "bucket", s.bucketName, "key", key, "location", out.Location)
	return out.Location, nil
}
