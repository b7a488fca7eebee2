package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
)

const jsonContentType = "application/json"

// S3Store uploads artifacts to a bucket under an optional key prefix.
type S3Store struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
	logger   hclog.Logger
}

// NewS3Store creates an uploader from the shared AWS credential chain.
func NewS3Store(cfg config.Storage, logger hclog.Logger) (*S3Store, error) {
	awsCfg := &aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create AWS session: %w", err)
	}
	return NewS3StoreWithUploader(s3manager.NewUploader(sess), cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreWithUploader wires an existing uploader.
func NewS3StoreWithUploader(uploader s3manageriface.UploaderAPI, bucket, prefix string, logger hclog.Logger) *S3Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &S3Store{
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   logger,
	}
}

// Key returns the object key for name.
func (s *S3Store) Key(name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Save uploads data and returns the object location.
func (s *S3Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	key := s.Key(name)
	s.logger.Info("Uploading results", "bucket", s.bucket, "key", key)

	result, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(jsonContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", name, s.bucket, key, err)
	}
	return result.Location, nil
}
