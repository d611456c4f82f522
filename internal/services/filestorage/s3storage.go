package filestorage

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labzang/sentiment-server/internal/config"
)

type S3Storage struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3Storage(cfg *config.S3Config) (*S3Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 config is not set")
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = &cfg.EndpointURL
		}
	})

	return &S3Storage{client: client, cfg: cfg}, nil
}

func (s *S3Storage) key(name string) string {
	if s.cfg.Folder == "" {
		return name
	}
	return strings.TrimSuffix(s.cfg.Folder, "/") + "/" + name
}

func (s *S3Storage) Store(name string, content io.Reader) (string, error) {
	key := s.key(name)
	contentType := "application/gzip"
	_, err := s.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      &s.cfg.Bucket,
		Key:         &key,
		Body:        content,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Storage) Open(name string) (io.ReadCloser, error) {
	key := s.key(name)
	object, err := s.client.GetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	return object.Body, nil
}
